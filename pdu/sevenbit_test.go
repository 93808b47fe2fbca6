package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackSeptetsRoundTrip(t *testing.T) {
	cases := []string{
		"hello",
		"a",
		"",
		"exactly one hundred and sixty characters........................................................................................................................",
	}
	for _, s := range cases {
		septets := []byte(s)
		packed := packSeptets(septets)
		unpacked := unpackSeptets(packed, len(septets))
		assert.Equal(t, s, string(unpacked))
	}
}

func TestPackSeptetsEmpty(t *testing.T) {
	assert.Nil(t, packSeptets(nil))
	assert.Nil(t, unpackSeptets(nil, 0))
}

func TestSeptetsForUDHFill(t *testing.T) {
	// A 6-octet UDH (7 octets including the length byte) occupies 8 septets
	// once packed, so the concatenation header consumes 8 septets of the
	// 160-septet budget.
	assert.Equal(t, 8, septetsForUDHFill(6))
}
