package descriptor

import (
	"strconv"

	"github.com/wippyai/wasm-memview/structure"
)

// scalarMember parses scalar spellings: iN and uN up to 64 bits, f32, f64,
// bool, void, isize and usize (32-bit addresses).
func scalarMember(name string) (structure.Member, bool) {
	m := structure.Member{}
	switch name {
	case "bool":
		m.Type, m.BitSize = structure.MemberBool, 8
		return m, true
	case "void":
		m.Type = structure.MemberVoid
		return m, true
	case "usize":
		m.Type, m.BitSize = structure.MemberUint, 32
		return m, true
	case "isize":
		m.Type, m.BitSize = structure.MemberInt, 32
		return m, true
	}
	if len(name) < 2 {
		return m, false
	}
	bits, err := strconv.Atoi(name[1:])
	if err != nil || bits <= 0 || bits > 64 {
		return m, false
	}
	switch name[0] {
	case 'i':
		m.Type = structure.MemberInt
	case 'u':
		m.Type = structure.MemberUint
	case 'f':
		if bits != 32 && bits != 64 {
			return m, false
		}
		m.Type = structure.MemberFloat
	default:
		return m, false
	}
	m.BitSize = bits
	return m, true
}

// byteSize rounds a scalar to whole bytes, as extern layout stores it.
func byteSize(bits int) int {
	n := (bits + 7) / 8
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
