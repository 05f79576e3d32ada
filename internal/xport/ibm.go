package xport

import (
	"encoding/binary"
	"math"
)

// XPORT stores numerics in IBM System/360 hexadecimal floating point:
// sign bit, 7-bit base-16 exponent biased by 64, 56-bit fraction. Fields
// may be truncated to as few as 2 bytes; missing bytes are zero.

// ibmToFloat converts a (possibly truncated) IBM double to IEEE 754.
func ibmToFloat(b []byte) float64 {
	var buf [8]byte
	copy(buf[:], b)
	bits := binary.BigEndian.Uint64(buf[:])

	frac := bits & 0x00ffffffffffffff
	if frac == 0 {
		return 0
	}
	exp := int((bits>>56)&0x7f) - 64

	// value = fraction/2^56 * 16^exp, scaled as exact powers of two so the
	// only rounding is the uint64 -> float64 conversion.
	v := math.Ldexp(float64(frac), 4*exp-56)
	if bits&0x8000000000000000 != 0 {
		return -v
	}
	return v
}

// isMissing reports a SAS missing numeric value: '.' (or the special
// missings '_' and 'A'-'Z') in the first byte, zeros after.
func isMissing(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	c := b[0]
	if c != '.' && c != '_' && (c < 'A' || c > 'Z') {
		return false
	}
	for _, rest := range b[1:] {
		if rest != 0 {
			return false
		}
	}
	return true
}
