package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrPortClosed is returned by Exec when the transport has not been
	// opened, or has been closed.
	ErrPortClosed = errors.New("modem: port is not open")

	// ErrBusy is returned by Exec when another command is already
	// outstanding. The transport never queues; callers serialize.
	ErrBusy = errors.New("modem: a command is already in flight")

	// ErrNoDialer is returned by Config.validate when no Dialer is set.
	ErrNoDialer = errors.New("modem: no dialer configured")

	// ErrSIMPinRequired reports a SIM that needs a PIN when none was
	// configured. No operation in this package returns it: the init
	// sequence does not query the SIM's PIN state.
	ErrSIMPinRequired = errors.New("modem: SIM PIN required but not configured")

	// ErrNotConcatenated reports a single-part message where a
	// concatenated one was expected. No operation in this package returns
	// it.
	ErrNotConcatenated = errors.New("modem: message is not part of a concatenated group")
)

// Timeout is returned by Exec when no response terminator is seen within
// the command's deadline. The slot is released; the port is not closed.
type Timeout struct {
	Command    string
	Terminator byte
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("modem: timeout waiting for response to %q (terminator 0x%02X)", e.Command, e.Terminator)
}

// InitFailure is returned by New when a modem-initialization command does
// not resolve with OK.
type InitFailure struct {
	Command  string
	Response string
}

func (e *InitFailure) Error() string {
	return fmt.Sprintf("modem: init command %q failed: %q", e.Command, e.Response)
}

// ModemError wraps a well-formed transport response that did not contain OK
// where the caller required it. The verbatim response is preserved.
type ModemError struct {
	Command  string
	Response string
}

func (e *ModemError) Error() string {
	return fmt.Sprintf("modem: command %q failed: %s", e.Command, e.Response)
}

// ProtocolError indicates a response that does not match the grammar the
// parser for a given command family expects.
type ProtocolError struct {
	Command string
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("modem: malformed response to %q: %s", e.Command, e.Reason)
}

// SendFailure is returned by SendMessage/WriteSubmitMessage when a fragment
// in a multi-part send is rejected by the modem (SendStoredMessage reports a
// rejected AT+CMSS as *ModemError instead). Prior fragments are not rolled
// back; Sent reports how many fragments were fully accepted before failure.
type SendFailure struct {
	Response string
	Sent     int
}

func (e *SendFailure) Error() string {
	return fmt.Sprintf("modem: send failed after %d fragment(s): %s", e.Sent, e.Response)
}

// ValidationError indicates malformed caller input, raised before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("modem: invalid %s: %s", e.Field, e.Reason)
}
