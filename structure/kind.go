package structure

import "strings"

// Kind is the category of a foreign type.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindStruct
	KindUnion
	KindArray
	KindSlice
	KindPointer
	KindOptional
	KindEnum
	KindErrorSet
	KindErrorUnion
	KindFunction
	KindOpaque
)

var kindNames = [...]string{
	KindPrimitive:  "primitive",
	KindStruct:     "struct",
	KindUnion:      "union",
	KindArray:      "array",
	KindSlice:      "slice",
	KindPointer:    "pointer",
	KindOptional:   "optional",
	KindEnum:       "enum",
	KindErrorSet:   "error-set",
	KindErrorUnion: "error-union",
	KindFunction:   "function",
	KindOpaque:     "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(s)
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Flags annotate a structure.
type Flags uint32

const (
	FlagHasPointer Flags = 1 << iota
	FlagHasObject
	FlagHasSlot
	FlagTagged
	FlagConst
	FlagNullable
	FlagSingle
	FlagMultiple
	FlagHasLength
	FlagCPointer
	FlagExtern
	FlagPacked
	FlagTuple
	FlagHasSentinel
)

var flagNames = map[string]Flags{
	"has-pointer":  FlagHasPointer,
	"has-object":   FlagHasObject,
	"has-slot":     FlagHasSlot,
	"tagged":       FlagTagged,
	"const":        FlagConst,
	"nullable":     FlagNullable,
	"single":       FlagSingle,
	"multiple":     FlagMultiple,
	"has-length":   FlagHasLength,
	"c-pointer":    FlagCPointer,
	"extern":       FlagExtern,
	"packed":       FlagPacked,
	"tuple":        FlagTuple,
	"has-sentinel": FlagHasSentinel,
}

// Has reports whether every bit of x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// ParseFlag maps a flag name such as "nullable" to its bit.
func ParseFlag(s string) (Flags, bool) {
	f, ok := flagNames[strings.ToLower(s)]
	return f, ok
}

// MemberType is the storage class of a member.
type MemberType uint8

const (
	MemberVoid MemberType = iota
	MemberBool
	MemberInt
	MemberUint
	MemberFloat
	MemberObject
)

var memberTypeNames = [...]string{
	MemberVoid:   "void",
	MemberBool:   "bool",
	MemberInt:    "int",
	MemberUint:   "uint",
	MemberFloat:  "float",
	MemberObject: "object",
}

func (t MemberType) String() string {
	if int(t) < len(memberTypeNames) {
		return memberTypeNames[t]
	}
	return "unknown"
}

// ParseMemberType maps a member type name back to its MemberType.
func ParseMemberType(s string) (MemberType, bool) {
	s = strings.ToLower(s)
	for t, name := range memberTypeNames {
		if name == s {
			return MemberType(t), true
		}
	}
	return 0, false
}

// MemberFlags annotate a member.
type MemberFlags uint8

const (
	MemberRequired MemberFlags = 1 << iota
	MemberReadOnly
	MemberSelector
	MemberSentinel
)

// Has reports whether every bit of x is set.
func (f MemberFlags) Has(x MemberFlags) bool { return f&x == x }
