package pdu

import (
	"fmt"
	"time"
)

// decodeSemiOctet reverses the nibble-swapped BCD digit pair AT PDUs use
// for each timestamp field.
func decodeSemiOctet(b byte) int {
	return int(b&0x0F)*10 + int(b>>4)
}

// decodeTimestamp parses the 7-byte SCTS (Service Center Time Stamp) field
// of an SMS-DELIVER TPDU: YY MM DD HH MM SS TZ, each a nibble-swapped BCD
// pair, with the timezone's sign carried in the high bit of its tens digit.
func decodeTimestamp(b []byte) (time.Time, error) {
	if len(b) != 7 {
		return time.Time{}, fmt.Errorf("pdu: timestamp must be 7 octets, got %d", len(b))
	}
	year := 2000 + decodeSemiOctet(b[0])
	month := decodeSemiOctet(b[1])
	day := decodeSemiOctet(b[2])
	hour := decodeSemiOctet(b[3])
	minute := decodeSemiOctet(b[4])
	second := decodeSemiOctet(b[5])

	tzByte := b[6]
	negative := tzByte&0x08 != 0
	tzByte = (tzByte &^ 0x08)
	quarterHours := int(tzByte&0x0F)*10 + int(tzByte>>4)
	offsetMinutes := quarterHours * 15
	if negative {
		offsetMinutes = -offsetMinutes
	}

	loc := time.FixedZone(fmt.Sprintf("UTC%+03d:%02d", offsetMinutes/60, abs(offsetMinutes%60)), offsetMinutes*60)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("pdu: invalid timestamp digits")
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
