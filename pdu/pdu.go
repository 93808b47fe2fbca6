// Package pdu defines the external SMS PDU codec contract (C7) and ships a
// default GSM 03.40 implementation: decoding an SMS-DELIVER/SMS-SUBMIT PDU
// from its hex wire form, and encoding outbound text into one or more
// SMS-SUBMIT PDUs, splitting and tagging concatenated (multi-part) messages
// with a User Data Header when the text does not fit in a single segment.
//
// This package is deliberately decoupled from the AT transport and session
// layers: a Modem only depends on the Codec interface, so an alternative
// codec (a UCS2-only encoder, a vendor-specific extension) can be swapped in
// without touching modem.Modem.
package pdu

import "time"

// MessageType distinguishes a received message (SMS-DELIVER) from a stored
// or sent one (SMS-SUBMIT).
type MessageType int

const (
	TypeDeliver MessageType = iota
	TypeSubmit
)

func (t MessageType) String() string {
	if t == TypeSubmit {
		return "SMS-SUBMIT"
	}
	return "SMS-DELIVER"
}

// ConcatHeader carries the concatenated-SMS (multi-part) header fields
// decoded from a PDU's User Data Header, before reassembly has resolved
// fragment ordering across the whole group.
type ConcatHeader struct {
	Reference int // CSMS reference, 0..255 (1-byte ref) or 0..65535 (2-byte ref)
	Sequence  int // 1-based position of this fragment within the group
	Total     int // total number of fragments in the group
}

// Message is the result of decoding a single PDU: one SMS fragment (or a
// complete single-part message when Concat is nil).
type Message struct {
	Type MessageType

	// Origination is set for SMS-DELIVER (the sending address).
	Origination string

	// Destination is set for SMS-SUBMIT (the recipient address).
	Destination string

	// Timestamp is the Service Center timestamp, set for SMS-DELIVER only.
	Timestamp *time.Time

	Text string

	// Concat is non-nil when this PDU is one fragment of a concatenated
	// message.
	Concat *ConcatHeader
}

// Segment is one encoded PDU ready to be placed on the wire via AT+CMGS/
// AT+CMGW: Hex is the upper-case hex-encoded wire PDU (an SMSC length octet
// followed by the TPDU), Length is the TPDU octet count (excluding the SMSC
// prefix) to place in the AT+CMGS=/AT+CMGW= length argument.
type Segment struct {
	Hex    string
	Length int
}

// Codec parses a hex-encoded PDU into a Message, and encodes outbound text
// into one or more Segments for AT+CMGS/AT+CMGW.
//
// Implementations are consumed, not reimplemented, by the session layer;
// this module ships GSM0340Codec as the default.
type Codec interface {
	Parse(hex string) (Message, error)
	GenerateSubmit(dest, text string) ([]Segment, error)
}
