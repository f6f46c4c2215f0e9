package cpu

// Flag is a condition code. The values match the n, z and p bits of a BR
// instruction, so a branch is taken when (nzp & Flag) != 0.
type Flag uint16

const (
	FLAG_P = Flag(1 << 0) // p
	FLAG_Z = Flag(1 << 1) // z
	FLAG_N = Flag(1 << 2) // n
)

// String returns the flag as lower case n, z, or p; or "-" if unset.
func (fl Flag) String() (text string) {
	if fl&FLAG_N != 0 {
		text += "n"
	}
	if fl&FLAG_Z != 0 {
		text += "z"
	}
	if fl&FLAG_P != 0 {
		text += "p"
	}
	if len(text) == 0 {
		text = "-"
	}
	return
}

// SignCategory returns the condition code of a result, as a two's
// complement signed value.
func SignCategory(value uint16) Flag {
	switch {
	case value == 0:
		return FLAG_Z
	case value&0x8000 != 0:
		return FLAG_N
	default:
		return FLAG_P
	}
}

// SignExtend widens the low 'bits' of value to 16 bits, replicating the sign
// bit into the upper bits. Widths of 16 or more return value unchanged; a
// width below 1 has no bits and returns 0.
func SignExtend(value uint16, bits int) uint16 {
	switch {
	case bits >= 16:
		return value
	case bits < 1:
		return 0
	}
	value &= (1 << bits) - 1
	if (value>>(bits-1))&1 != 0 {
		value |= 0xffff << bits
	}
	return value
}
