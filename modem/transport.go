package modem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/northfield-iot/gsmmodem/at"
	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a GSM
// modem. A Transport is assumed to be already connected; typical
// implementations are serial ports, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a GSM modem. It abstracts how the connection
// is created (serial port, test double, ...) and is only used during Port
// construction.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// allowedBaudRates is the set of baud rates §6 permits for the serial link.
var allowedBaudRates = map[int]bool{
	9600: true, 14400: true, 19200: true, 38400: true,
	57600: true, 115200: true, 128000: true, 256000: true,
}

// DefaultBaudRate is used when SerialDialer.BaudRate is zero.
const DefaultBaudRate = 115200

// SerialDialer opens a GSM modem over a serial port using go.bug.st/serial,
// configured 8N1 per §6.
type SerialDialer struct {
	// PortName is the OS device path (e.g. "/dev/ttyUSB0", "COM3").
	PortName string

	// BaudRate must be one of the values in §6's allowed set. Zero selects
	// DefaultBaudRate.
	BaudRate int
}

// Dial opens the serial port. If ctx is canceled before the open completes,
// Dial returns ctx.Err(); if the port opens anyway afterwards it is closed
// to avoid leaking the file descriptor.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, &ValidationError{Field: "PortName", Reason: "must not be empty"}
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	if !allowedBaudRates[baud] {
		return nil, &ValidationError{Field: "BaudRate", Reason: fmt.Sprintf("%d is not a supported baud rate", baud)}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	type result struct {
		p   serial.Port
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := serial.Open(d.PortName, mode)
		ch <- result{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.err == nil && r.p != nil {
				_ = r.p.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("modem: open serial port %q: %w", d.PortName, r.err)
		}
		return r.p, nil
	}
}

// execResult is delivered on a pending command's result channel.
type execResult struct {
	text string
	err  error
}

// pendingCmd tracks the single outstanding command.
type pendingCmd struct {
	cmd        string
	terminator byte
	resultCh   chan execResult
	timer      *time.Timer
	done       bool
}

// ExecOption configures a single Exec call.
type ExecOption func(*execConfig)

type execConfig struct {
	timeout    time.Duration
	terminator byte
}

// WithTimeout overrides the default 10s command timeout. Values are clamped
// into the 1..60000ms range documented in §5.
func WithTimeout(d time.Duration) ExecOption {
	return func(c *execConfig) {
		if d < time.Millisecond {
			d = time.Millisecond
		}
		if d > 60000*time.Millisecond {
			d = 60000 * time.Millisecond
		}
		c.timeout = d
	}
}

// WithTerminatorByte overrides the default command terminator (0x0D). The
// PDU-body write that follows a CMGS/CMGW "> " prompt uses 0x1A (Ctrl-Z).
func WithTerminatorByte(b byte) ExecOption {
	return func(c *execConfig) {
		c.terminator = b
	}
}

// Port is the AT command transport (C2): it serializes commands onto a
// Transport, enforces a single outstanding command, classifies incoming
// lines, and routes non-response lines to the event surface.
type Port struct {
	Events EventBus

	// OnNotification, when set, is invoked (outside the port's lock) for
	// every unsolicited "+TAG: ..." line seen while idle. The session layer
	// uses this to recognize +CMTI and trigger live reassembly.
	OnNotification func(line string)

	dialer Dialer

	mu        sync.Mutex
	transport Transport
	opened    bool
	closed    bool
	carryCR   bool // trailing bare CR pending from the previous chunk

	pending *pendingCmd
	respBuf bytes.Buffer
}

// NewPort constructs a Port bound to dialer. The port is created closed;
// call Open to connect.
func NewPort(dialer Dialer) *Port {
	return &Port{dialer: dialer}
}

// Open acquires the underlying transport. It is idempotent: calling Open
// twice yields exactly one EventPortOpen.
func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.opened {
		p.mu.Unlock()
		return nil
	}
	if p.dialer == nil {
		p.mu.Unlock()
		return ErrNoDialer
	}
	p.mu.Unlock()

	transport, err := p.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("modem: open: %w", err)
	}

	p.mu.Lock()
	if p.opened {
		// Lost a race with a concurrent Open; discard the extra transport.
		p.mu.Unlock()
		_ = transport.Close()
		return nil
	}
	p.transport = transport
	p.opened = true
	p.closed = false
	p.mu.Unlock()

	go p.readPump()

	p.Events.publish(Event{Kind: EventPortOpen})
	return nil
}

// Close releases the underlying transport. It is idempotent and emits at
// most one EventPortClose. Any pending command is rejected with
// ErrPortClosed.
func (p *Port) Close() error {
	p.mu.Lock()
	if !p.opened || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	transport := p.transport
	pending := p.pending
	p.pending = nil
	if pending != nil {
		pending.done = true
	}
	p.mu.Unlock()

	if pending != nil {
		pending.timer.Stop()
		pending.resultCh <- execResult{err: ErrPortClosed}
	}

	var err error
	if transport != nil {
		err = transport.Close()
	}
	p.Events.publish(Event{Kind: EventPortClose})
	return err
}

// readPump continuously reads from the transport and feeds the classifier
// until the transport errors out (typically because Close was called).
func (p *Port) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := p.transport.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			p.Events.publish(Event{Kind: EventRawBytes, Payload: chunk})
			p.ingest(chunk)
		}
		if err != nil {
			return
		}
	}
}

// ingest normalizes chunk and routes it either into the in-flight response
// buffer or, while idle, to the notification scanner. It takes the port's
// lock for the duration of the normalization and classification work.
func (p *Port) ingest(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	normalized := p.normalize(chunk)
	if len(normalized) == 0 {
		return
	}

	if p.pending == nil || p.pending.done {
		p.scanIdleLines(normalized)
		return
	}

	p.respBuf.Write(normalized)
	p.tryComplete()
}

// normalize replaces every CRLF or lone CR in chunk with LF, carrying a
// pending bare-CR flag across chunk boundaries so a CRLF split across two
// reads is still collapsed to a single LF.
func (p *Port) normalize(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		switch {
		case b == '\r':
			if p.carryCR {
				out = append(out, '\n')
			}
			p.carryCR = true
		case b == '\n':
			out = append(out, '\n')
			p.carryCR = false
		default:
			if p.carryCR {
				out = append(out, '\n')
				p.carryCR = false
			}
			out = append(out, b)
		}
	}
	return out
}

// scanIdleLines splits normalized (LF-delimited) data into trimmed lines
// and publishes any that match the unsolicited-notification grammar.
// Caller holds p.mu.
func (p *Port) scanIdleLines(normalized []byte) {
	for _, line := range bytes.Split(normalized, []byte{'\n'}) {
		s := string(bytes.TrimSpace(line))
		if s == "" {
			continue
		}
		if _, ok := at.IsNotification(s); ok {
			p.Events.publish(Event{Kind: EventATNotification, Payload: s})
			if p.OnNotification != nil {
				cb := p.OnNotification
				go cb(s)
			}
		}
	}
}

// tryComplete checks whether the accumulated response buffer has reached a
// terminator (OK / ERROR / +CME ERROR: / +CMS ERROR: / "> "), and if so,
// finalizes the pending command. The buffer for an in-flight command is at
// most a handful of lines, so a full rescan on every append is simpler than
// tracking a resumable offset and costs nothing measurable. Caller holds
// p.mu.
func (p *Port) tryComplete() {
	buf := p.respBuf.Bytes()
	for _, line := range bytes.Split(buf, []byte{'\n'}) {
		text := string(bytes.TrimSpace(line))
		if text == "" {
			continue
		}
		switch at.Classify(text) {
		case at.TypeFinal, at.TypePrompt:
			p.finalize(trimBlankLines(buf))
			return
		}
	}
}

// finalize completes the pending command with the given verbatim (but
// blank-line-trimmed) response text. Caller holds p.mu.
func (p *Port) finalize(text string) {
	pending := p.pending
	if pending == nil || pending.done {
		return
	}
	pending.done = true
	pending.timer.Stop()
	p.pending = nil
	p.respBuf.Reset()
	pending.resultCh <- execResult{text: text}
}

// trimBlankLines strips leading/trailing blank lines from an LF-normalized
// buffer and returns it as a string, matching the "response buffer" data
// model in §3.
func trimBlankLines(buf []byte) string {
	lines := bytes.Split(buf, []byte{'\n'})
	start, end := 0, len(lines)
	for start < end && len(bytes.TrimSpace(lines[start])) == 0 {
		start++
	}
	for end > start && len(bytes.TrimSpace(lines[end-1])) == 0 {
		end--
	}
	return string(bytes.Join(lines[start:end], []byte{'\n'}))
}

// Exec writes cmd followed by a single terminator byte (0x0D by default)
// and waits for a classified response. It resolves even when the modem
// reports ERROR; the session layer is responsible for treating that as a
// failure once it has parsed the response.
func (p *Port) Exec(ctx context.Context, cmd string, opts ...ExecOption) (string, error) {
	cfg := execConfig{timeout: 10 * time.Second, terminator: '\r'}
	for _, opt := range opts {
		opt(&cfg)
	}

	p.mu.Lock()
	if !p.opened || p.closed {
		p.mu.Unlock()
		return "", ErrPortClosed
	}
	if p.pending != nil {
		p.mu.Unlock()
		return "", ErrBusy
	}

	pending := &pendingCmd{
		cmd:        cmd,
		terminator: cfg.terminator,
		resultCh:   make(chan execResult, 1),
	}
	p.pending = pending
	p.respBuf.Reset()
	transport := p.transport
	p.mu.Unlock()

	pending.timer = time.AfterFunc(cfg.timeout, func() {
		p.onTimeout(pending)
	})

	wire := append([]byte(cmd), cfg.terminator)
	if _, err := transport.Write(wire); err != nil {
		p.mu.Lock()
		if p.pending == pending {
			p.pending = nil
		}
		p.mu.Unlock()
		pending.timer.Stop()
		return "", fmt.Errorf("modem: write command %q: %w", cmd, err)
	}

	p.Events.publish(Event{Kind: EventATCommand, Payload: cmd})

	select {
	case res := <-pending.resultCh:
		if res.err == nil {
			p.Events.publish(Event{Kind: EventATResponse, Payload: res.text})
		}
		return res.text, res.err
	case <-ctx.Done():
		p.mu.Lock()
		if p.pending == pending {
			p.pending = nil
		}
		p.mu.Unlock()
		pending.timer.Stop()
		return "", ctx.Err()
	}
}

// onTimeout fires when a command's deadline elapses with no terminator
// seen. The write-state is abandoned and the slot released; the port is
// not closed. A response chunk that arrives after this point is discarded
// because p.pending no longer matches.
func (p *Port) onTimeout(pending *pendingCmd) {
	p.mu.Lock()
	if p.pending != pending || pending.done {
		p.mu.Unlock()
		return
	}
	pending.done = true
	p.pending = nil
	p.respBuf.Reset()
	p.mu.Unlock()

	pending.resultCh <- execResult{err: &Timeout{Command: pending.cmd, Terminator: pending.terminator}}
}
