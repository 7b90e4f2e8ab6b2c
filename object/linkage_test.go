package object_test

import (
	"encoding/binary"
	"testing"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

func TestLinkScalar(t *testing.T) {
	f := newFixture(t)
	i32 := f.primitive("i32", structure.MemberInt, 32)

	obj := mustNew(t, i32, 1234)
	if obj.IsFixed() {
		t.Fatal("New should allocate relocatable storage")
	}
	if err := f.env.Link([]*object.Object{obj}, true); err != nil {
		t.Fatal(err)
	}
	if !obj.IsFixed() {
		t.Fatal("Link should move the object into fixed memory")
	}
	if v, _ := obj.Value(); v != int64(1234) {
		t.Errorf("Value after link = %v", v)
	}
	raw, err := f.host.Read(ownAddress(t, obj), 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := int32(binary.LittleEndian.Uint32(raw)); got != 1234 {
		t.Errorf("foreign bytes = %d, want 1234", got)
	}
	again, err := i32.Cast(obj.View())
	if err != nil || again != obj {
		t.Error("linked view should map back to the same object")
	}

	if err := f.host.Write(ownAddress(t, obj), []byte{7, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if v, _ := obj.Value(); v != int64(7) {
		t.Errorf("foreign write not visible, Value = %v", v)
	}
}

func TestLinkPointerTargets(t *testing.T) {
	f := newFixture(t)
	holder, i32 := f.holder()
	target := mustNew(t, i32, 42)
	obj := mustNew(t, holder, map[string]any{"p": target})

	if err := f.env.Link([]*object.Object{obj}, true); err != nil {
		t.Fatal(err)
	}
	if !target.IsFixed() {
		t.Fatal("pointer targets should be linked with their pointer")
	}
	p := mustGet(t, obj, "p").(*object.Object)
	if !p.IsFixed() {
		t.Error("children should follow their parent into fixed memory")
	}
	raw, _ := f.host.Read(ownAddress(t, p), 4)
	if got := binary.LittleEndian.Uint32(raw); uint64(got) != uint64(ownAddress(t, target)) {
		t.Errorf("pointer bytes = 0x%x, want target address", got)
	}
	if mustGet(t, p, "$") != target {
		t.Error("target identity should survive linking")
	}
	q := mustGet(t, obj, "q").(*object.Object)
	if null, _ := q.IsNull(); !null {
		t.Error("null pointer should stay null")
	}

	if err := f.env.Unlink([]*object.Object{obj}); err != nil {
		t.Fatal(err)
	}
	if obj.IsFixed() || target.IsFixed() {
		t.Fatal("Unlink should move the object and its targets out of fixed memory")
	}
	if v := mustGet(t, p, "*"); v != int64(42) {
		t.Errorf("*p after unlink = %v", v)
	}
	if mustGet(t, p, "$") != target {
		t.Error("target identity should survive unlinking")
	}
}

func TestLinkNarrowedSlice(t *testing.T) {
	f := newFixture(t)
	u8s := f.slice("[]u8", scalar("", structure.MemberUint, 8, 0), nil)
	ptr := f.pointer("[*]u8", u8s.Structure(), structure.FlagMultiple|structure.FlagHasLength)

	p := mustNew(t, ptr, "hello")
	if err := p.SetLength(2); err != nil {
		t.Fatal(err)
	}
	if err := f.env.Link([]*object.Object{p}, true); err != nil {
		t.Fatal(err)
	}
	raw, _ := f.host.Read(ownAddress(t, p), 8)
	if n := binary.LittleEndian.Uint32(raw[4:]); n != 2 {
		t.Errorf("linked length word = %d, want 2", n)
	}
	if err := p.SetLength(5); err != nil {
		t.Fatal(err)
	}
	v, err := p.Value()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.([]any); len(got) != 5 || got[4] != uint64('o') {
		t.Errorf("Value after restoring length = %v", got)
	}
}

func TestLinkVariables(t *testing.T) {
	f := newFixture(t)
	i32 := f.primitive("i32", structure.MemberInt, 32)

	addr, err := f.host.DefineVariable("counter", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	counter := mustNew(t, i32, 10)
	if err := f.env.RegisterVariable("counter", counter); err != nil {
		t.Fatal(err)
	}

	preset, err := f.host.DefineVariable("preset", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.host.Write(preset, []byte{9, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	adopted := mustNew(t, i32, 0)
	if err := f.env.RegisterVariable("preset", adopted); err != nil {
		t.Fatal(err)
	}
	if len(f.env.Variables()) != 2 {
		t.Fatalf("Variables = %v", f.env.Variables())
	}

	if err := f.env.Link([]*object.Object{counter}, true); err != nil {
		t.Fatal(err)
	}
	if ownAddress(t, counter) != addr {
		t.Errorf("variable linked at 0x%x, want 0x%x", ownAddress(t, counter), addr)
	}
	if err := f.env.LinkVariables(false); err != nil {
		t.Fatal(err)
	}
	if v, _ := adopted.Value(); v != int64(9) {
		t.Errorf("linking without write-back should adopt foreign bytes, got %v", v)
	}
	if v, _ := counter.Value(); v != int64(10) {
		t.Errorf("counter = %v", v)
	}

	if err := f.env.UnlinkVariables(); err != nil {
		t.Fatal(err)
	}
	if counter.IsFixed() || adopted.IsFixed() {
		t.Error("UnlinkVariables should relocate every variable")
	}

	if err := f.env.RegisterVariable("nil", nil); !errors.Is(err, errors.ErrInvalidData) {
		t.Errorf("RegisterVariable(nil) = %v", err)
	}
	other := newFixture(t)
	foreign := mustNew(t, other.primitive("i32", structure.MemberInt, 32), 1)
	if err := f.env.RegisterVariable("foreign", foreign); !errors.Is(err, errors.ErrInvalidData) {
		t.Errorf("RegisterVariable from another env = %v", err)
	}
	if _, err := f.host.RecreateAddress("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("RecreateAddress(missing) = %v", err)
	}
}

func TestLinkWithoutHost(t *testing.T) {
	f := newFixture(t)
	f.env = object.NewEnv(nil)
	i32 := f.primitive("i32", structure.MemberInt, 32)
	obj := mustNew(t, i32, 1)

	if err := f.env.Link([]*object.Object{obj}, true); !errors.Is(err, errors.ErrNotInitialized) {
		t.Errorf("Link without host = %v", err)
	}
	if _, err := i32.New(1, object.Fixed()); !errors.Is(err, errors.ErrNotInitialized) {
		t.Errorf("New(Fixed) without host = %v", err)
	}
}

func TestLinkVariableAtPointerTarget(t *testing.T) {
	f := newFixture(t)
	i32 := f.primitive("i32", structure.MemberInt, 32)
	ptr := f.pointer("?*i32", i32.Structure(), structure.FlagSingle|structure.FlagNullable)

	addr, err := f.host.DefineVariable("counter", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	p := mustNew(t, ptr, nil, object.Fixed())
	f.writeAddr(ownAddress(t, p), addr)
	before, err := p.Deref()
	if err != nil {
		t.Fatal(err)
	}

	counter := mustNew(t, i32, 10)
	if err := f.env.RegisterVariable("counter", counter); err != nil {
		t.Fatal(err)
	}
	if err := f.env.LinkVariables(true); err != nil {
		t.Fatal(err)
	}
	if counter.View() != before.View() {
		t.Fatal("variable should link into the view the pointer already uses")
	}

	cast, err := i32.Cast(counter.View())
	if err != nil {
		t.Fatal(err)
	}
	target, err := p.Deref()
	if err != nil {
		t.Fatal(err)
	}
	if cast != counter || target != counter {
		t.Errorf("one canonical object per range: cast==variable %v, target==variable %v",
			cast == counter, target == counter)
	}
	if v, _ := before.Value(); v != int64(10) {
		t.Errorf("earlier target handle = %v, want 10", v)
	}
	if err := before.Assign(11); err != nil {
		t.Fatal(err)
	}
	if v, _ := counter.Value(); v != int64(11) {
		t.Errorf("write through earlier handle not seen by variable, got %v", v)
	}
}

func TestUnlinkVariablesKeepsOtherViews(t *testing.T) {
	f := newFixture(t)
	i32 := f.primitive("i32", structure.MemberInt, 32)

	if _, err := f.host.DefineVariable("counter", 4, 4); err != nil {
		t.Fatal(err)
	}
	counter := mustNew(t, i32, 1)
	if err := f.env.RegisterVariable("counter", counter); err != nil {
		t.Fatal(err)
	}
	if err := f.env.LinkVariables(true); err != nil {
		t.Fatal(err)
	}
	other := mustNew(t, i32, 2, object.Fixed())

	if err := f.env.UnlinkVariables(); err != nil {
		t.Fatal(err)
	}
	v, err := f.env.ObtainView(ownAddress(t, other), 4, true)
	if err != nil {
		t.Fatal(err)
	}
	if v != other.View() {
		t.Error("unlinking variables should not drop views held by other objects")
	}
}
