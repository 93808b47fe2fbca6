package pdu

import (
	"encoding/hex"
	"strings"
)

const (
	toaInternational byte = 0x91
	toaUnknown        byte = 0x81
)

// swizzleDigits nibble-swaps a digit string into the semi-octet form AT
// PDUs use for addresses, padding an odd digit count with the 0xF filler
// nibble.
func swizzleDigits(digits string) []byte {
	if len(digits)%2 == 1 {
		digits += "F"
	}
	swapped := make([]byte, 0, len(digits))
	for i := 0; i < len(digits); i += 2 {
		swapped = append(swapped, digits[i+1], digits[i])
	}
	b, _ := hex.DecodeString(string(swapped))
	return b
}

// unswizzleDigits reverses swizzleDigits, given the number of real digits
// encoded (so a padding nibble on an odd-length number is dropped rather
// than mistaken for a trailing 'F' digit).
func unswizzleDigits(b []byte, digitCount int) string {
	full := strings.ToUpper(hex.EncodeToString(b))
	var sb strings.Builder
	for i := 0; i < len(full); i += 2 {
		sb.WriteByte(full[i+1])
		sb.WriteByte(full[i])
	}
	s := sb.String()
	if len(s) > digitCount {
		s = s[:digitCount]
	}
	return s
}

// encodeAddress renders number (optionally "+"-prefixed for international
// format) as the (length, type-of-address, swizzled-digits) triple an AT
// PDU address field requires.
func encodeAddress(number string) (digitLen int, toa byte, digits []byte) {
	toa = toaUnknown
	if strings.HasPrefix(number, "+") {
		toa = toaInternational
		number = number[1:]
	}
	return len(number), toa, swizzleDigits(number)
}

// decodeAddress reverses encodeAddress.
func decodeAddress(digitLen int, toa byte, raw []byte) string {
	number := unswizzleDigits(raw, digitLen)
	if toa&0x70 == 0x10 {
		return "+" + number
	}
	return number
}
