package witimport

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-memview/structure"
)

func discriminantSize(cases int) int {
	switch {
	case cases <= 256:
		return 1
	case cases <= 65536:
		return 2
	}
	return 4
}

// flagsSize returns the byte size of a flags value with n flags.
func flagsSize(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= 8:
		return 1
	case n <= 16:
		return 2
	}
	return 4 * ((n + 31) / 32)
}

type scalar struct {
	name string
	bits int
	typ  structure.MemberType
}

func primitive(t wit.Type) (scalar, bool) {
	switch t.(type) {
	case wit.Bool:
		return scalar{"bool", 8, structure.MemberBool}, true
	case wit.U8:
		return scalar{"u8", 8, structure.MemberUint}, true
	case wit.S8:
		return scalar{"s8", 8, structure.MemberInt}, true
	case wit.U16:
		return scalar{"u16", 16, structure.MemberUint}, true
	case wit.S16:
		return scalar{"s16", 16, structure.MemberInt}, true
	case wit.U32:
		return scalar{"u32", 32, structure.MemberUint}, true
	case wit.S32:
		return scalar{"s32", 32, structure.MemberInt}, true
	case wit.U64:
		return scalar{"u64", 64, structure.MemberUint}, true
	case wit.S64:
		return scalar{"s64", 64, structure.MemberInt}, true
	case wit.F32:
		return scalar{"f32", 32, structure.MemberFloat}, true
	case wit.F64:
		return scalar{"f64", 64, structure.MemberFloat}, true
	case wit.Char:
		return scalar{"char", 32, structure.MemberUint}, true
	}
	return scalar{}, false
}

func (p scalar) member(name string) structure.Member {
	return structure.Member{Name: name, Type: p.typ, BitSize: p.bits, ByteSize: p.bits / 8}
}
