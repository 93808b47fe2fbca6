package modem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/northfield-iot/gsmmodem/pdu"
)

// MessageKind distinguishes a received message from a stored/sent one,
// mirroring pdu.MessageType at the session layer.
type MessageKind int

const (
	KindDeliver MessageKind = iota
	KindSubmit
)

func (k MessageKind) String() string {
	if k == KindSubmit {
		return "SMS-SUBMIT"
	}
	return "SMS-DELIVER"
}

// ConcatInfo describes a message's place in a concatenated (multi-part)
// group. Sequence is set (and Indexes nil) on an individual fragment before
// reassembly resolves it; Indexes is set (and Sequence zero) once merged.
type ConcatInfo struct {
	Reference int
	Total     int
	Sequence  int
	Indexes   []int
}

// Message is one SMS, before or after concatenation reassembly.
type Message struct {
	Index int
	Stat  int
	Kind  MessageKind

	From string // set iff Kind == KindDeliver
	To   string // set iff Kind == KindSubmit

	Date *time.Time // set iff Kind == KindDeliver

	Text string

	// Concat is nil for a single-part message.
	Concat *ConcatInfo
}

func messageFromPDU(p pdu.Message, index, stat int) Message {
	msg := Message{
		Index: index,
		Stat:  stat,
		Text:  p.Text,
	}
	if p.Type == pdu.TypeSubmit {
		msg.Kind = KindSubmit
		msg.To = p.Destination
	} else {
		msg.Kind = KindDeliver
		msg.From = p.Origination
		msg.Date = p.Timestamp
	}
	if p.Concat != nil {
		msg.Concat = &ConcatInfo{
			Reference: p.Concat.Reference,
			Total:     p.Concat.Total,
			Sequence:  p.Concat.Sequence,
		}
	}
	return msg
}

// ListMessages issues AT+CMGL=<stat> (default stat=4, "all") and decodes
// each header+PDU pair. When m.cfg.ConcatMode is enabled (the default),
// concatenated fragments are merged via the Reassembler before returning.
func (m *Modem) ListMessages(ctx context.Context, stat int) ([]Message, error) {
	cmd := fmt.Sprintf("AT+CMGL=%d", stat)
	resp, err := m.port.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !endsWithOK(resp) {
		return nil, &ModemError{Command: cmd, Response: resp}
	}

	lines := strings.Split(resp, "\n")
	var messages []Message
	for i := 0; i < len(lines); i++ {
		hdr, ok := parseCMGLHeader(lines[i])
		if !ok {
			continue
		}
		if i+1 >= len(lines) {
			return nil, &ProtocolError{Command: cmd, Reason: "header with no following PDU line"}
		}
		pduLine := strings.TrimSpace(lines[i+1])
		i++
		decoded, err := m.cfg.Codec.Parse(pduLine)
		if err != nil {
			return nil, fmt.Errorf("modem: decode PDU at index %d: %w", hdr.Index, err)
		}
		messages = append(messages, messageFromPDU(decoded, hdr.Index, hdr.Stat))
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].Index < messages[j].Index })

	if m.cfg.ConcatMode {
		messages = m.listReassembler().MergeList(messages)
	}
	return messages, nil
}

// ReadMessage issues AT+CMGR=<index>. If the decoded PDU is part of a
// concatenated group and concat mode is enabled, the full group is resolved
// via ListMessages so the caller always sees the merged text.
func (m *Modem) ReadMessage(ctx context.Context, index int) (*Message, error) {
	cmd := fmt.Sprintf("AT+CMGR=%d", index)
	resp, err := m.port.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(resp, "\n")
	var hdrLine, pduLine string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if hdrLine == "" {
			hdrLine = t
			continue
		}
		pduLine = t
		break
	}
	if hdrLine == "" {
		return nil, nil
	}
	hdr, ok := parseCMGRHeader(hdrLine)
	if !ok || pduLine == "" {
		return nil, nil
	}

	decoded, err := m.cfg.Codec.Parse(pduLine)
	if err != nil {
		return nil, fmt.Errorf("modem: decode PDU at index %d: %w", index, err)
	}
	msg := messageFromPDU(decoded, index, hdr.Stat)

	if msg.Concat != nil && m.cfg.ConcatMode {
		all, err := m.ListMessages(ctx, 4)
		if err != nil {
			return nil, err
		}
		for _, candidate := range all {
			if candidate.Concat == nil {
				continue
			}
			if candidate.Concat.Reference == msg.Concat.Reference &&
				counterpart(candidate) == counterpart(msg) &&
				containsIndex(candidate.Concat.Indexes, index) {
				return &candidate, nil
			}
		}
	}
	return &msg, nil
}

func containsIndex(indexes []int, index int) bool {
	for _, i := range indexes {
		if i == index {
			return true
		}
	}
	return false
}

// DeleteMessage reads index first (to learn whether it is part of a
// concatenated group, and to report what was deleted), then issues one
// AT+CMGD per fragment index (or just the one index for a single-part
// message). It returns the message that was deleted.
func (m *Modem) DeleteMessage(ctx context.Context, index int) (*Message, error) {
	msg, err := m.ReadMessage(ctx, index)
	if err != nil {
		return nil, err
	}

	indexes := []int{index}
	if msg != nil && msg.Concat != nil && m.cfg.ConcatMode && len(msg.Concat.Indexes) > 0 {
		indexes = msg.Concat.Indexes
	}

	for _, idx := range indexes {
		cmd := fmt.Sprintf("AT+CMGD=%d", idx)
		resp, err := m.port.Exec(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if !endsWithOK(resp) {
			return nil, &ModemError{Command: cmd, Response: resp}
		}
	}
	return msg, nil
}

// DeleteAllMessages issues AT+CMGD=0,4, deleting every stored message.
func (m *Modem) DeleteAllMessages(ctx context.Context) error {
	const cmd = "AT+CMGD=0,4"
	resp, err := m.port.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	if !endsWithOK(resp) {
		return &ModemError{Command: cmd, Response: resp}
	}
	return nil
}

// sendPDU writes one CMGS/CMGW-style two-phase exchange: the length
// announcement, then (once the modem answers with the "> " prompt) the hex
// PDU body terminated with Ctrl-Z.
func (m *Modem) sendPDU(ctx context.Context, announceCmd string, seg pdu.Segment) (string, error) {
	promptResp, err := m.port.Exec(ctx, announceCmd)
	if err != nil {
		return "", err
	}
	if !strings.Contains(promptResp, "> ") && !strings.HasSuffix(strings.TrimRight(promptResp, "\n"), ">") {
		return "", &ModemError{Command: announceCmd, Response: promptResp}
	}

	bodyResp, err := m.port.Exec(ctx, seg.Hex, WithTerminatorByte(0x1A))
	if err != nil {
		return "", err
	}
	if !endsWithOK(bodyResp) {
		return "", &ModemError{Command: seg.Hex, Response: bodyResp}
	}
	return bodyResp, nil
}

// SendMessage encodes text for dest and sends each fragment via AT+CMGS,
// aborting with SendFailure on the first fragment that fails (no rollback
// of fragments already sent).
func (m *Modem) SendMessage(ctx context.Context, dest, text string) error {
	segments, err := m.cfg.Codec.GenerateSubmit(dest, text)
	if err != nil {
		return fmt.Errorf("modem: encode message: %w", err)
	}
	for i, seg := range segments {
		announce := fmt.Sprintf("AT+CMGS=%d", seg.Length)
		resp, err := m.sendPDU(ctx, announce, seg)
		if err != nil {
			if me, ok := err.(*ModemError); ok {
				return &SendFailure{Response: me.Response, Sent: i}
			}
			return err
		}
		if _, err := parseCMGSResult(resp); err != nil {
			return &SendFailure{Response: resp, Sent: i}
		}
	}
	return nil
}

// WriteSubmitMessage encodes text for dest and stores each fragment via
// AT+CMGW=<len>,2, returning the stored indexes in fragment order.
func (m *Modem) WriteSubmitMessage(ctx context.Context, dest, text string) ([]int, error) {
	segments, err := m.cfg.Codec.GenerateSubmit(dest, text)
	if err != nil {
		return nil, fmt.Errorf("modem: encode message: %w", err)
	}
	var indexes []int
	for i, seg := range segments {
		announce := fmt.Sprintf("AT+CMGW=%d,2", seg.Length)
		resp, err := m.sendPDU(ctx, announce, seg)
		if err != nil {
			if me, ok := err.(*ModemError); ok {
				return nil, &SendFailure{Response: me.Response, Sent: i}
			}
			return nil, err
		}
		idx, err := parseCMGWResult(resp)
		if err != nil {
			return nil, &SendFailure{Response: resp, Sent: i}
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// SendStoredMessage reads index to discover its fragment indexes (if any),
// then issues AT+CMSS=<idx> for each in order, aborting at the first
// non-OK response.
func (m *Modem) SendStoredMessage(ctx context.Context, index int) error {
	msg, err := m.ReadMessage(ctx, index)
	if err != nil {
		return err
	}

	indexes := []int{index}
	if msg != nil && msg.Concat != nil && m.cfg.ConcatMode && len(msg.Concat.Indexes) > 0 {
		indexes = msg.Concat.Indexes
	}

	for _, idx := range indexes {
		cmd := fmt.Sprintf("AT+CMSS=%d", idx)
		resp, err := m.port.Exec(ctx, cmd)
		if err != nil {
			return err
		}
		if !endsWithOK(resp) {
			return &ModemError{Command: cmd, Response: resp}
		}
	}
	return nil
}
