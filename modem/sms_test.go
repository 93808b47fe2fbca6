package modem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/northfield-iot/gsmmodem/modem"
	"github.com/northfield-iot/gsmmodem/pdu"
)

func TestDeleteMessageReturnsDeletedMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	segs, err := (pdu.GSM0340Codec{}).GenerateSubmit("+15551234567", "hi")
	require.NoError(t, err)
	require.Len(t, segs, 1)

	script := map[string]string{
		"ATE0\r":              "ATE0\r\nOK\r\n",
		"ATQ0\r":              "OK\r\n",
		"ATV1\r":              "OK\r\n",
		"ATS0=0\r":            "OK\r\n",
		"AT+CNMI=2,1,0,0,0\r": "OK\r\n",
		"AT+CMGF=0\r":         "OK\r\n",
		"AT+CMGR=5\r":         "+CMGR: 1,,24\r\n" + segs[0].Hex + "\r\nOK\r\n",
		"AT+CMGD=5\r":         "OK\r\n",
	}
	order := append(append([]string{}, initOrder...), "AT+CMGR=5", "AT+CMGD=5")

	st := newScriptedTransport(t, ctrl, script, order)
	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(st.transport, nil)

	cfg, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithCodec(pdu.GSM0340Codec{}).
		Build()
	require.NoError(t, err)

	m, err := modem.New(context.Background(), cfg)
	require.NoError(t, err)
	defer m.Close()

	deleted, err := m.DeleteMessage(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "+15551234567", deleted.To)
	assert.Equal(t, "hi", deleted.Text)
}
