package modem

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeTransport simulates a blocking serial link using a channel, so reads
// block until data is queued (mirroring how a real port behaves) rather
// than returning EOF on an empty buffer.
type fakeTransport struct {
	mu       sync.Mutex
	readCh   chan []byte
	writeBuf bytes.Buffer
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readCh: make(chan []byte, 16)}
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	data, ok := <-f.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.writeBuf.Write(p)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.readCh)
	return nil
}

func (f *fakeTransport) push(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.readCh <- []byte(data)
	}
}

type fakeDialer struct{ transport *fakeTransport }

func (d fakeDialer) Dial(ctx context.Context) (Transport, error) { return d.transport, nil }

func TestPortExecSuccess(t *testing.T) {
	ft := newFakeTransport()
	p := NewPort(fakeDialer{ft})
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	go ft.push("AT\r\nOK\r\n")

	resp, err := p.Exec(context.Background(), "AT")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp != "AT\nOK" && resp != "OK" {
		t.Errorf("unexpected response: %q", resp)
	}
}

func TestPortExecBusy(t *testing.T) {
	ft := newFakeTransport()
	p := NewPort(fakeDialer{ft})
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	go p.Exec(context.Background(), "AT+FIRST")
	time.Sleep(20 * time.Millisecond)

	_, err := p.Exec(context.Background(), "AT+SECOND")
	if err != ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestPortExecTimeout(t *testing.T) {
	ft := newFakeTransport()
	p := NewPort(fakeDialer{ft})
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	_, err := p.Exec(context.Background(), "AT", WithTimeout(30*time.Millisecond))
	var timeout *Timeout
	if !errorsAs(err, &timeout) {
		t.Fatalf("expected *Timeout, got %v", err)
	}

	// Slot is released after timeout; a subsequent command can proceed.
	go ft.push("AT\r\nOK\r\n")
	if _, err := p.Exec(context.Background(), "AT"); err != nil {
		t.Errorf("Exec after timeout: %v", err)
	}
}

func TestPortExecPortClosed(t *testing.T) {
	p := NewPort(fakeDialer{newFakeTransport()})
	_, err := p.Exec(context.Background(), "AT")
	if err != ErrPortClosed {
		t.Errorf("expected ErrPortClosed, got %v", err)
	}
}

func TestPortOpenCloseIdempotent(t *testing.T) {
	ft := newFakeTransport()
	p := NewPort(fakeDialer{ft})

	var opens, closes int
	p.Events.Subscribe(func(ev Event) {
		switch ev.Kind {
		case EventPortOpen:
			opens++
		case EventPortClose:
			closes++
		}
	})

	ctx := context.Background()
	if err := p.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Open(ctx); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if opens != 1 || closes != 1 {
		t.Errorf("expected exactly one open/close event each, got opens=%d closes=%d", opens, closes)
	}
}

func TestPortNotificationDuringIdle(t *testing.T) {
	ft := newFakeTransport()
	p := NewPort(fakeDialer{ft})

	notified := make(chan string, 1)
	p.OnNotification = func(line string) { notified <- line }

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	ft.push("+CMTI: \"SM\",3\r\n")

	select {
	case line := <-notified:
		if line != `+CMTI: "SM",3` {
			t.Errorf("unexpected notification line: %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

// errorsAs is a tiny local wrapper so this file doesn't need to import
// "errors" solely for As in one place.
func errorsAs(err error, target **Timeout) bool {
	t, ok := err.(*Timeout)
	if !ok {
		return false
	}
	*target = t
	return true
}
