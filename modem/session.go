package modem

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// initSequence is the fixed modem-initialization command list (§4.4),
// run once in order on New.
var initSequence = []string{
	"ATE0",
	"ATQ0",
	"ATV1",
	"ATS0=0",
	"AT+CNMI=2,1,0,0,0",
	"AT+CMGF=0",
}

// Modem binds a Port for its lifetime and implements the high-level SMS
// session operations (C4). Construct with New, which dials, opens, and
// runs the modem-initialization sequence before returning.
type Modem struct {
	cfg    Config
	port   *Port
	logger *slog.Logger

	Events EventBus

	mu             sync.Mutex
	liveReassem    *Reassembler
	liveReassembOn bool
}

// New dials cfg.Dialer, opens the port, and runs the fixed
// modem-initialization sequence. It fails fast with *InitFailure if any
// init command does not resolve with OK.
func New(ctx context.Context, cfg Config) (*Modem, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	port := NewPort(cfg.Dialer)
	m := &Modem{
		cfg:         cfg,
		port:        port,
		logger:      slog.Default().With("component", "modem"),
		liveReassem: NewReassembler(),
	}

	port.OnNotification = m.handleNotification
	port.Events.Subscribe(func(ev Event) { m.Events.publish(ev) })

	if err := port.Open(ctx); err != nil {
		return nil, fmt.Errorf("modem: open: %w", err)
	}

	for _, cmd := range initSequence {
		resp, err := port.Exec(ctx, cmd, WithTimeout(cfg.InitTimeout))
		if err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("modem: init command %q: %w", cmd, err)
		}
		if !endsWithOK(resp) {
			_ = port.Close()
			return nil, &InitFailure{Command: cmd, Response: resp}
		}
		m.logger.Debug("init command succeeded", "command", cmd)
	}

	m.liveReassembOn = cfg.ConcatMode
	m.logger.Info("modem session initialized")
	return m, nil
}

// Close releases the underlying port.
func (m *Modem) Close() error {
	return m.port.Close()
}

// listReassembler returns a fresh Reassembler for one ListMessages call;
// list-mode reassembly state never outlives a single AT+CMGL response.
func (m *Modem) listReassembler() *Reassembler {
	return NewReassembler()
}

// handleNotification is the Port's OnNotification callback. It recognizes
// +CMTI: "<mem>",<index> and, when concat mode is enabled, reads and
// reassembles the newly-stored message before publishing EventSMSMessage.
func (m *Modem) handleNotification(line string) {
	mem, index, ok := parseCMTI(line)
	if !ok {
		return
	}
	m.logger.Debug("new message notification", "mem", mem, "index", index)

	ctx := context.Background()
	msg, err := m.ReadMessage(ctx, index)
	if err != nil || msg == nil {
		if err != nil {
			m.logger.Error("failed to read notified message", "index", index, "error", err)
		}
		return
	}

	if !m.liveReassembOn || msg.Concat == nil {
		m.Events.publish(Event{Kind: EventSMSMessage, Payload: *msg})
		return
	}

	m.mu.Lock()
	merged, complete := m.liveReassem.MergeLive(*msg)
	m.mu.Unlock()
	if complete {
		m.Events.publish(Event{Kind: EventSMSMessage, Payload: merged})
	}
}

// parseCMTI extracts the storage name and index from a +CMTI: "<mem>",<idx>
// notification line.
func parseCMTI(line string) (mem string, index int, ok bool) {
	f, matched := parseFields(line, "+CMTI:")
	if !matched || len(f) < 2 {
		return "", 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(field(f, 1)))
	if err != nil {
		return "", 0, false
	}
	return strings.Trim(field(f, 0), `"`), idx, true
}
