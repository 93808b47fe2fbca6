package pdu

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxSingleSegmentSeptets is the largest 7-bit message that fits in one
// SMS-SUBMIT/SMS-DELIVER TPDU without a concatenation header.
const maxSingleSegmentSeptets = 160

// concatUDHLen is the UDHL value (header octets, excluding the length byte
// itself) for a 2-byte CSMS reference concatenation header: IEI, IEDL, two
// reference octets, total, sequence.
const concatUDHLen = 6

// maxConcatSegmentSeptets is the text budget per fragment once the
// concatenation header's padding septets are subtracted.
var maxConcatSegmentSeptets = maxSingleSegmentSeptets - septetsForUDHFill(concatUDHLen)

// GSM0340Codec implements Codec using 3GPP TS 23.040 SMS-DELIVER/SMS-SUBMIT
// framing and the GSM 7-bit default alphabet, restricted to its ASCII
// subset (no character remapping against the full default-alphabet table,
// no 8-bit/UCS2 support) — matching the scope of the PDU packing this
// module's reference material implements.
type GSM0340Codec struct{}

// Parse decodes a hex-encoded PDU as received from AT+CMGL/AT+CMGR.
func (GSM0340Codec) Parse(hexStr string) (Message, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexStr))
	if err != nil {
		return Message{}, fmt.Errorf("pdu: invalid hex: %w", err)
	}
	if len(raw) < 2 {
		return Message{}, fmt.Errorf("pdu: PDU too short")
	}

	o := 0
	smscLen := int(raw[o])
	o++
	o += smscLen
	if o >= len(raw) {
		return Message{}, fmt.Errorf("pdu: PDU truncated after SMSC field")
	}

	firstOctet := raw[o]
	o++
	mti := firstOctet & 0x03
	udhi := firstOctet&0x40 != 0

	var msg Message
	var udl int
	var ud []byte

	switch mti {
	case 0x00: // SMS-DELIVER
		msg.Type = TypeDeliver
		oaLen := int(raw[o])
		o++
		oaToa := raw[o]
		o++
		oaBytes := (oaLen + 1) / 2
		if o+oaBytes > len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated in originating address")
		}
		msg.Origination = decodeAddress(oaLen, oaToa, raw[o:o+oaBytes])
		o += oaBytes

		if o+2 > len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated before PID/DCS")
		}
		_ = raw[o] // PID, unused
		dcs := raw[o+1]
		o += 2
		if dcs != 0x00 {
			return Message{}, fmt.Errorf("pdu: unsupported data coding scheme 0x%02X (only GSM 7-bit default alphabet is supported)", dcs)
		}

		if o+7 > len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated in SCTS")
		}
		ts, err := decodeTimestamp(raw[o : o+7])
		if err != nil {
			return Message{}, err
		}
		msg.Timestamp = &ts
		o += 7

		if o >= len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated before user data length")
		}
		udl = int(raw[o])
		o++
		ud = raw[o:]

	case 0x01: // SMS-SUBMIT
		msg.Type = TypeSubmit
		o++ // TP-MR, unused
		daLen := int(raw[o])
		o++
		daToa := raw[o]
		o++
		daBytes := (daLen + 1) / 2
		if o+daBytes > len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated in destination address")
		}
		msg.Destination = decodeAddress(daLen, daToa, raw[o:o+daBytes])
		o += daBytes

		if o+2 > len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated before PID/DCS")
		}
		_ = raw[o] // PID, unused
		dcs := raw[o+1]
		o += 2
		if dcs != 0x00 {
			return Message{}, fmt.Errorf("pdu: unsupported data coding scheme 0x%02X (only GSM 7-bit default alphabet is supported)", dcs)
		}

		vpf := (firstOctet >> 3) & 0x03
		switch vpf {
		case 0x00:
			// no validity period
		case 0x02:
			o++ // relative-format VP, one octet
		default:
			return Message{}, fmt.Errorf("pdu: unsupported validity period format %d", vpf)
		}

		if o >= len(raw) {
			return Message{}, fmt.Errorf("pdu: PDU truncated before user data length")
		}
		udl = int(raw[o])
		o++
		ud = raw[o:]

	default:
		return Message{}, fmt.Errorf("pdu: unsupported message type indicator %d", mti)
	}

	if udhi {
		if len(ud) == 0 {
			return Message{}, fmt.Errorf("pdu: UDHI set but no user data present")
		}
		udhLen := int(ud[0])
		if 1+udhLen > len(ud) {
			return Message{}, fmt.Errorf("pdu: PDU truncated in user data header")
		}
		udh := ud[1 : 1+udhLen]
		concat, err := parseConcatIE(udh)
		if err != nil {
			return Message{}, err
		}
		msg.Concat = concat

		fill := septetsForUDHFill(udhLen)
		body := ud[1+udhLen:]
		textSeptets := udl - fill
		if textSeptets < 0 {
			return Message{}, fmt.Errorf("pdu: user data length shorter than header padding")
		}
		msg.Text = string(unpackSeptets(body, textSeptets))
	} else {
		msg.Text = string(unpackSeptets(ud, udl))
	}

	return msg, nil
}

// parseConcatIE scans a User Data Header for the concatenated-short-message
// information element (IEI 0x00, 1-byte reference, or IEI 0x08, 2-byte
// reference).
func parseConcatIE(udh []byte) (*ConcatHeader, error) {
	i := 0
	for i+1 < len(udh) {
		iei := udh[i]
		iedl := int(udh[i+1])
		if i+2+iedl > len(udh) {
			return nil, fmt.Errorf("pdu: malformed user data header")
		}
		data := udh[i+2 : i+2+iedl]
		switch {
		case iei == 0x00 && iedl == 3:
			return &ConcatHeader{Reference: int(data[0]), Total: int(data[1]), Sequence: int(data[2])}, nil
		case iei == 0x08 && iedl == 4:
			ref := int(data[0])<<8 | int(data[1])
			return &ConcatHeader{Reference: ref, Total: int(data[2]), Sequence: int(data[3])}, nil
		}
		i += 2 + iedl
	}
	return nil, nil
}

// GenerateSubmit encodes text addressed to dest into one or more
// SMS-SUBMIT PDUs, splitting into a concatenated group (2-byte CSMS
// reference) when it does not fit in a single segment.
func (c GSM0340Codec) GenerateSubmit(dest, text string) ([]Segment, error) {
	if dest == "" {
		return nil, fmt.Errorf("pdu: destination must not be empty")
	}
	septets, err := toSeptets(text)
	if err != nil {
		return nil, err
	}

	if len(septets) <= maxSingleSegmentSeptets {
		seg, err := c.buildSubmit(dest, septets, nil)
		if err != nil {
			return nil, err
		}
		return []Segment{seg}, nil
	}

	ref, err := randomReference()
	if err != nil {
		return nil, err
	}

	var chunks [][]byte
	for len(septets) > 0 {
		n := maxConcatSegmentSeptets
		if n > len(septets) {
			n = len(septets)
		}
		chunks = append(chunks, septets[:n])
		septets = septets[n:]
	}

	segments := make([]Segment, 0, len(chunks))
	for i, chunk := range chunks {
		seg, err := c.buildSubmit(dest, chunk, &ConcatHeader{
			Reference: ref,
			Sequence:  i + 1,
			Total:     len(chunks),
		})
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (GSM0340Codec) buildSubmit(dest string, septets []byte, concat *ConcatHeader) (Segment, error) {
	firstOctet := byte(0x01) // MTI = SMS-SUBMIT, VPF = 00 (no validity period)
	if concat != nil {
		firstOctet |= 0x40 // UDHI
	}

	daLen, daToa, daDigits := encodeAddress(dest)

	var tpdu []byte
	tpdu = append(tpdu, firstOctet)
	tpdu = append(tpdu, 0x00) // TP-MR
	tpdu = append(tpdu, byte(daLen), daToa)
	tpdu = append(tpdu, daDigits...)
	tpdu = append(tpdu, 0x00) // PID
	tpdu = append(tpdu, 0x00) // DCS: GSM 7-bit default alphabet

	var udl int
	var ud []byte
	if concat == nil {
		udl = len(septets)
		ud = packSeptets(septets)
	} else {
		header := []byte{
			concatUDHLen, 0x08, 0x04,
			byte(concat.Reference >> 8), byte(concat.Reference),
			byte(concat.Total), byte(concat.Sequence),
		}
		fill := septetsForUDHFill(concatUDHLen)
		padded := make([]byte, fill+len(septets))
		copy(padded[fill:], septets)
		packed := packSeptets(padded)
		ud = append(append([]byte(nil), header...), packed[len(header):]...)
		udl = len(padded)
	}

	tpdu = append(tpdu, byte(udl))
	tpdu = append(tpdu, ud...)

	// The PDU placed on the wire after AT+CMGS=<length> carries an SMSC
	// field first; 0x00 tells the modem to use its configured service
	// center. <length> itself counts only the TPDU that follows it.
	wire := append([]byte{0x00}, tpdu...)

	return Segment{
		Hex:    strings.ToUpper(hex.EncodeToString(wire)),
		Length: len(tpdu),
	}, nil
}

// toSeptets validates that text is representable in this codec's supported
// range (bytes 0x00..0x7F, used as septet values without remapping) and
// returns it as a septet slice.
func toSeptets(text string) ([]byte, error) {
	b := []byte(text)
	for _, c := range b {
		if c > 0x7F {
			return nil, fmt.Errorf("pdu: character %q is outside the supported 7-bit range", c)
		}
	}
	return b, nil
}

func randomReference() (int, error) {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return 0, fmt.Errorf("pdu: generate CSMS reference: %w", err)
	}
	return int(buf[0])<<8 | int(buf[1]), nil
}

var _ Codec = GSM0340Codec{}
