package structure

import (
	"testing"

	"github.com/wippyai/wasm-memview/errors"
)

func u32(name string, offset int) Member {
	return Member{Name: name, Type: MemberUint, BitOffset: offset * 8, BitSize: 32, ByteSize: 4}
}

func TestRegistryBeginEnd(t *testing.T) {
	r := NewRegistry()
	s := r.Begin(Descriptor{Name: "Pair", Kind: KindStruct, ByteSize: 8, Align: 4})
	if err := r.AttachMember(s, u32("cat", 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.AttachMember(s, u32("dog", 4)); err != nil {
		t.Fatal(err)
	}
	if err := r.End(s); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !s.Frozen() {
		t.Error("structure should be frozen")
	}
	if s.HasPointer() {
		t.Error("scalar struct reports pointers")
	}
	if err := r.AttachMember(s, u32("extra", 0)); !errors.Is(err, errors.ErrStructureFrozen) {
		t.Errorf("AttachMember after End = %v, want frozen", err)
	}
	got, ok := r.Lookup("Pair")
	if !ok || got != s {
		t.Errorf("Lookup = %v, %v", got, ok)
	}
	if at, _ := r.At(s.Index); at != s {
		t.Error("At(Index) should return the structure")
	}
}

func TestRegistryPlaceholderCycle(t *testing.T) {
	r := NewRegistry()
	node := r.Declare("Node")
	ptr := r.Begin(Descriptor{Name: "*Node", Kind: KindPointer, ByteSize: 4, Align: 4, Flags: FlagSingle | FlagNullable})
	if err := r.AttachMember(ptr, Member{Type: MemberObject, Structure: node, BitSize: 32, ByteSize: 4}); err != nil {
		t.Fatal(err)
	}
	if err := r.End(ptr); err != nil {
		t.Fatal(err)
	}

	filled := r.Begin(Descriptor{Name: "Node", Kind: KindStruct, ByteSize: 8, Align: 4})
	if filled != node {
		t.Fatal("Begin should fill the declared placeholder")
	}
	if err := r.AttachMember(node, u32("value", 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.AttachMember(node, Member{Name: "next", Type: MemberObject, Structure: ptr, BitOffset: 32, BitSize: 32, ByteSize: 4}); err != nil {
		t.Fatal(err)
	}
	if err := r.End(node); err != nil {
		t.Fatal(err)
	}
	if !node.HasPointer() {
		t.Error("Node holds a pointer")
	}
	if !node.Flags.Has(FlagHasSlot) {
		t.Error("object member should set FlagHasSlot")
	}
	if m, _ := node.Member("next"); m.Slot != 0 {
		t.Errorf("next slot = %d, want 0", m.Slot)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		members []Member
	}{
		{
			name:    "member past end",
			desc:    Descriptor{Name: "S", Kind: KindStruct, ByteSize: 4},
			members: []Member{u32("a", 2)},
		},
		{
			name: "primitive without member",
			desc: Descriptor{Name: "u32", Kind: KindPrimitive, ByteSize: 4},
		},
		{
			name:    "array size mismatch",
			desc:    Descriptor{Name: "[3]u32", Kind: KindArray, ByteSize: 8, Length: 3},
			members: []Member{u32("", 0)},
		},
		{
			name:    "tagged union without selector",
			desc:    Descriptor{Name: "U", Kind: KindUnion, ByteSize: 8, Flags: FlagTagged},
			members: []Member{u32("a", 0)},
		},
		{
			name:    "pointer without target",
			desc:    Descriptor{Name: "*u32", Kind: KindPointer, ByteSize: 4},
			members: []Member{u32("", 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			s := r.Begin(tt.desc)
			for _, m := range tt.members {
				if err := r.AttachMember(s, m); err != nil {
					t.Fatal(err)
				}
			}
			if err := r.End(s); !errors.Is(err, errors.ErrInvalidStructure) {
				t.Errorf("End = %v, want invalid structure", err)
			}
		})
	}
}

func TestAttachTemplateLength(t *testing.T) {
	r := NewRegistry()
	s := r.Begin(Descriptor{Name: "S", Kind: KindStruct, ByteSize: 4})
	if err := r.AttachTemplate(s, Template{Bytes: []byte{1, 2}}); !errors.Is(err, errors.ErrLengthMismatch) {
		t.Errorf("AttachTemplate = %v, want length mismatch", err)
	}
	if err := r.AttachTemplate(s, Template{Bytes: []byte{1, 2, 3, 4}}); err != nil {
		t.Errorf("AttachTemplate: %v", err)
	}
}

func TestAutoLayout(t *testing.T) {
	members := []Member{
		{Name: "a", Type: MemberUint, BitSize: 8, ByteSize: 1},
		{Name: "b", Type: MemberUint, BitSize: 32, ByteSize: 4},
		{Name: "c", Type: MemberUint, BitSize: 16, ByteSize: 2},
	}
	size, align := AutoLayout(members, false)
	if size != 12 || align != 4 {
		t.Errorf("extern layout = (%d, %d), want (12, 4)", size, align)
	}
	wantOffsets := []int{0, 32, 64}
	for i, m := range members {
		if m.BitOffset != wantOffsets[i] {
			t.Errorf("%s offset = %d, want %d", m.Name, m.BitOffset, wantOffsets[i])
		}
	}

	packed := []Member{
		{Name: "x", Type: MemberUint, BitSize: 3},
		{Name: "y", Type: MemberBool, BitSize: 1},
		{Name: "z", Type: MemberUint, BitSize: 12},
	}
	size, _ = AutoLayout(packed, true)
	if size != 2 {
		t.Errorf("packed size = %d, want 2", size)
	}
	if packed[2].BitOffset != 4 {
		t.Errorf("z offset = %d, want 4", packed[2].BitOffset)
	}

	size, align = UnionLayout([]Member{
		{Name: "i", Type: MemberInt, BitSize: 64, ByteSize: 8},
		{Name: "f", Type: MemberFloat, BitSize: 32, ByteSize: 4},
	})
	if size != 8 || align != 8 {
		t.Errorf("union layout = (%d, %d), want (8, 8)", size, align)
	}
}

func TestParseNames(t *testing.T) {
	if k, ok := ParseKind("error-union"); !ok || k != KindErrorUnion {
		t.Errorf("ParseKind = %v, %v", k, ok)
	}
	if f, ok := ParseFlag("C-Pointer"); !ok || f != FlagCPointer {
		t.Errorf("ParseFlag = %v, %v", f, ok)
	}
	if mt, ok := ParseMemberType("float"); !ok || mt != MemberFloat {
		t.Errorf("ParseMemberType = %v, %v", mt, ok)
	}
	if _, ok := ParseKind("class"); ok {
		t.Error("ParseKind accepted an unknown kind")
	}
}
