package modem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/northfield-iot/gsmmodem/modem"
	"github.com/northfield-iot/gsmmodem/pdu"
)

// scriptedTransport wires a MockTransport so that each Write is answered by
// the next response in a fixed script, queued onto a channel the blocking
// Read drains. This sidesteps any race between the init sequence's writes
// and the port's independent read-pump goroutine: Read always blocks for
// its corresponding Write's response rather than racing gomock's ordered
// expectations against a tight-looping reader.
type scriptedTransport struct {
	t         *testing.T
	transport *modem.MockTransport
	responses chan string
	wantCmds  []string
	seen      int
}

func newScriptedTransport(t *testing.T, ctrl *gomock.Controller, script map[string]string, order []string) *scriptedTransport {
	t.Helper()
	st := &scriptedTransport{
		t:         t,
		transport: modem.NewMockTransport(ctrl),
		responses: make(chan string, len(order)+1),
		wantCmds:  order,
	}

	st.transport.EXPECT().Write(gomock.Any()).AnyTimes().DoAndReturn(func(p []byte) (int, error) {
		cmd := string(p)
		if st.seen < len(st.wantCmds) {
			want := st.wantCmds[st.seen] + "\r"
			if cmd != want {
				t.Errorf("write %d: got %q, want %q", st.seen, cmd, want)
			}
		}
		st.seen++
		if resp, ok := script[cmd]; ok {
			st.responses <- resp
		}
		return len(p), nil
	})
	st.transport.EXPECT().Read(gomock.Any()).AnyTimes().DoAndReturn(func(p []byte) (int, error) {
		resp, ok := <-st.responses
		if !ok {
			return 0, nil
		}
		return copy(p, []byte(resp)), nil
	})
	st.transport.EXPECT().Close().AnyTimes().DoAndReturn(func() error {
		close(st.responses)
		return nil
	})
	return st
}

var initScript = map[string]string{
	"ATE0\r":             "ATE0\r\nOK\r\n",
	"ATQ0\r":             "OK\r\n",
	"ATV1\r":             "OK\r\n",
	"ATS0=0\r":           "OK\r\n",
	"AT+CNMI=2,1,0,0,0\r": "OK\r\n",
	"AT+CMGF=0\r":        "OK\r\n",
}

var initOrder = []string{"ATE0", "ATQ0", "ATV1", "ATS0=0", "AT+CNMI=2,1,0,0,0", "AT+CMGF=0"}

func newInitializedModem(t *testing.T, ctrl *gomock.Controller) (*modem.Modem, *scriptedTransport) {
	t.Helper()

	st := newScriptedTransport(t, ctrl, initScript, initOrder)
	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(st.transport, nil)

	cfg, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithCodec(pdu.GSM0340Codec{}).
		Build()
	require.NoError(t, err)

	m, err := modem.New(context.Background(), cfg)
	require.NoError(t, err)
	return m, st
}

func TestNewRunsInitSequenceInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m, st := newInitializedModem(t, ctrl)
	defer m.Close()

	require.Equal(t, len(initOrder), st.seen)
}

func TestNewFailsOnInitError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	script := map[string]string{"ATE0\r": "ERROR\r\n"}
	st := newScriptedTransport(t, ctrl, script, []string{"ATE0"})
	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(st.transport, nil)

	cfg, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithCodec(pdu.GSM0340Codec{}).
		Build()
	require.NoError(t, err)

	_, err = modem.New(context.Background(), cfg)
	require.Error(t, err)
	var initErr *modem.InitFailure
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, "ATE0", initErr.Command)
}
