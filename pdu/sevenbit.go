package pdu

import "math"

// packSeptets packs a byte slice of septet values (0..127, one value per
// output character) into GSM 7-bit default-alphabet octets, 8 septets to 7
// octets. Character remapping against the full 3GPP TS 23.038 alphabet is
// deliberately not performed: callers are expected to supply text already
// restricted to the 7-bit range, matching this codec's documented
// restriction to the ASCII subset of the default alphabet.
func packSeptets(septets []byte) []byte {
	if len(septets) == 0 {
		return nil
	}
	length := int(math.Ceil(float64(len(septets))*7.0/8.0)) + 1
	ret := make([]byte, length)
	for idx, c := range septets {
		row := idx - idx/8
		prevRow := row - 1
		if idx%8 == 0 {
			prevRow++
		}
		lsb := c << uint(8-(idx%8))
		ret[prevRow] += lsb
		msb := c >> uint(idx%8)
		ret[row] += msb
	}
	return ret[:length-1]
}

// unpackSeptets reverses packSeptets, returning exactly septetCount septet
// values.
func unpackSeptets(octets []byte, septetCount int) []byte {
	if len(octets) == 0 || septetCount == 0 {
		return nil
	}
	length := int(math.Floor(float64(len(octets))*8.0/7.0)) + 1
	out := make([]byte, length)
	for i := 0; i < len(octets); i++ {
		idx := i + i/7
		lsb := (octets[i] << uint(i%7)) & 0x7F
		out[idx] += lsb
		msb := octets[i] >> uint(7-(i%7))
		out[idx+1] += msb
	}
	out = out[:length-1]
	if len(out) > septetCount {
		out = out[:septetCount]
	}
	return out
}

// septetsForUDHFill returns how many filler septets are consumed by udhLen
// octets of User Data Header when the header is followed by 7-bit packed
// text, so the text after the header always starts on a septet boundary.
func septetsForUDHFill(udhLen int) int {
	bits := (udhLen + 1) * 8
	septets := bits / 7
	if bits%7 != 0 {
		septets++
	}
	return septets
}
