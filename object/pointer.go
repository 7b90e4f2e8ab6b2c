package object

import (
	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/internal/coerce"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// pointerState tracks a pointer's target. The target itself lives in slot
// 0. addr and length mirror the pointer's own bytes once synced is set.
type pointerState struct {
	full     *Object // target at full capacity
	addr     memview.Address
	length   int
	capacity int // elements reachable from the target address, -1 if unknown
	derefed  bool
	synced   bool
}

func isConst(s *structure.Structure) bool { return s.Flags.Has(structure.FlagConst) }

func isMulti(s *structure.Structure) bool { return s.Flags.Has(structure.FlagMultiple) }

func (c *Constructor) targetCtor() (*Constructor, error) {
	return c.env.Constructor(c.s.Members[0].Structure)
}

func (o *Object) requirePointer(op string) error {
	if o.Kind() != structure.KindPointer {
		return errors.Unsupported(errors.PhasePointer, o.name(), op+" on "+o.Kind().String())
	}
	return nil
}

func (st *state) readWords() (memview.Address, int, error) {
	s := st.ctor.s
	bits := s.AddressSize() * 8
	addr, err := st.view.Uint(0, bits)
	if err != nil {
		return 0, 0, err
	}
	length := st.ptr.length
	if s.Flags.Has(structure.FlagHasLength) {
		n, err := st.view.Uint(bits, bits)
		if err != nil {
			return 0, 0, err
		}
		length = int(n)
	}
	return memview.Address(addr), length, nil
}

// writeWords serializes a target address, and the length for kinds that
// carry one, into the pointer's own bytes.
func (st *state) writeWords(addr memview.Address, length int) error {
	s := st.ctor.s
	bits := s.AddressSize() * 8
	if err := st.view.SetUint(0, bits, uint64(addr)); err != nil {
		return err
	}
	if s.Flags.Has(structure.FlagHasLength) {
		if err := st.view.SetUint(bits, bits, uint64(length)); err != nil {
			return err
		}
	}
	st.ptr.addr, st.ptr.length, st.ptr.synced = addr, length, true
	return nil
}

// update re-reads a pointer in fixed memory and rebuilds its target when
// the address or length changed since the last read.
func (o *Object) update() error {
	st := o.st
	ps := st.ptr
	s := st.ctor.s
	if !st.view.IsFixed() {
		return nil
	}
	addr, length, err := st.readWords()
	if err != nil {
		return err
	}
	if ps.synced && addr == ps.addr && length == ps.length {
		return nil
	}
	ps.addr, ps.length, ps.synced = addr, length, true
	ps.derefed = false
	if addr == 0 {
		delete(st.slots, 0)
		ps.full = nil
		ps.capacity = 0
		return nil
	}

	tc, err := st.ctor.targetCtor()
	if err != nil {
		return err
	}
	if align := tc.s.Align; align > 1 && uint64(addr)%uint64(align) != 0 {
		return errors.Misaligned(errors.PhasePointer, s.Name, uint64(addr), align)
	}
	el := tc.elemSize()
	var size, capacity int
	switch {
	case !isMulti(s):
		size, capacity = tc.s.ByteSize, 1
	case s.Flags.Has(structure.FlagHasLength):
		capacity = length
		size = length * el
		if tc.hasSentinel() {
			size += el
		}
	case tc.hasSentinel():
		if st.ctor.env.host == nil {
			return errors.NotInitialized(errors.PhaseHost, "host")
		}
		n, err := st.ctor.env.host.FindSentinel(addr, tc.s.Sentinel.Value, el)
		if err != nil {
			return err
		}
		if n < 0 {
			return errors.MissingSentinel(errors.PhasePointer, tc.s.Name)
		}
		capacity = n
		size = (n + 1) * el
		ps.length = n
	default:
		n := max(length, 1)
		size, capacity = n*el, -1
		ps.length = n
	}

	v, err := st.ctor.env.ObtainView(addr, size, !isConst(s))
	if err != nil {
		return err
	}
	t, err := tc.castView(v)
	if err != nil {
		return err
	}
	st.setSlot(0, t)
	ps.full = t
	ps.capacity = capacity
	return nil
}

func (o *Object) deref() (*Object, error) {
	if err := o.update(); err != nil {
		return nil, err
	}
	st := o.st
	t := st.target()
	if t == nil {
		return nil, errors.NullPointer(st.ctor.s.Name)
	}
	st.ptr.derefed = true
	if isConst(st.ctor.s) || o.readOnly {
		return ReadOnly(t), nil
	}
	return t, nil
}

// Deref returns the pointer's target. Targets of const pointers, and of
// pointers reached through read-only handles, are returned read-only.
func (o *Object) Deref() (*Object, error) {
	if err := o.requirePointer("dereference"); err != nil {
		return nil, err
	}
	return o.deref()
}

// Retarget re-points the pointer. A compatible object becomes the target,
// a []byte is cast to the target type sharing its storage, nil makes a
// nullable pointer null, and any other value is copied into a new target.
func (o *Object) Retarget(v any) error {
	if err := o.requirePointer("retarget"); err != nil {
		return err
	}
	if err := o.mutating("retarget"); err != nil {
		return err
	}
	return o.retarget(v)
}

func (o *Object) retarget(v any) error {
	st := o.st
	s := st.ctor.s
	switch x := v.(type) {
	case nil:
		if !s.Flags.Has(structure.FlagNullable) {
			return errors.InvalidPointerTarget(s.Name, nil, "pointer is not nullable")
		}
		return o.setTarget(nil)
	case *Object:
		t, err := o.targetFrom(x)
		if err != nil {
			return err
		}
		return o.setTarget(t)
	case []byte:
		t, err := o.bufferTarget(x)
		if err != nil {
			return err
		}
		return o.setTarget(t)
	case *view.View:
		tc, err := st.ctor.targetCtor()
		if err != nil {
			return err
		}
		t, err := tc.castView(x)
		if err != nil {
			return err
		}
		return o.setTarget(t)
	}

	if st.view.IsFixed() {
		return errors.FixedMemoryRequired(s.Name)
	}
	tc, err := st.ctor.targetCtor()
	if err != nil {
		return err
	}
	t, err := tc.New(v)
	if err != nil {
		return err
	}
	return o.setTarget(t)
}

func (o *Object) targetFrom(x *Object) (*Object, error) {
	s := o.st.ctor.s
	tc, err := o.st.ctor.targetCtor()
	if err != nil {
		return nil, err
	}
	if x.readOnly && !isConst(s) {
		return nil, errors.ConstTargetMismatch(s.Name, x.name())
	}
	xs := x.st.ctor.s
	switch {
	case xs == tc.s:
		return x.st.self, nil
	case xs.Kind == structure.KindPointer:
		inner, err := x.deref()
		if err != nil {
			return nil, err
		}
		if inner.st.ctor.s == xs {
			return nil, errors.InvalidPointerTarget(s.Name, xs.Name, "pointer refers to itself")
		}
		return o.targetFrom(inner)
	case isMulti(s) && compatible(tc.s, xs):
		t, err := tc.castView(x.st.view)
		if err != nil {
			return nil, err
		}
		return t.st.self, nil
	}
	return nil, errors.InvalidPointerTarget(s.Name, xs.Name, "incompatible target "+quote(xs.Name))
}

func (o *Object) bufferTarget(buf []byte) (*Object, error) {
	st := o.st
	s := st.ctor.s
	tc, err := st.ctor.targetCtor()
	if err != nil {
		return nil, err
	}
	if !st.view.IsFixed() {
		return tc.castView(st.ctor.env.wrapBuffer(buf))
	}
	host := st.ctor.env.host
	if host == nil {
		return nil, errors.FixedMemoryRequired(s.Name)
	}
	addr, err := host.GetBufferAddress(buf)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.FixedMemoryRequired(s.Name)
		}
		return nil, err
	}
	v, err := st.ctor.env.ObtainView(addr, len(buf), !isConst(s))
	if err != nil {
		return nil, err
	}
	return tc.castView(v)
}

// setTarget stores t in slot 0 and serializes its address when it lives in
// fixed memory.
func (o *Object) setTarget(t *Object) error {
	st := o.st
	ps := st.ptr
	s := st.ctor.s
	if t == nil {
		delete(st.slots, 0)
		ps.full = nil
		ps.capacity = 0
		ps.derefed = false
		return st.writeWords(0, 0)
	}
	addr, fixed := t.st.view.Address()
	if st.view.IsFixed() && !fixed {
		return errors.FixedMemoryRequired(s.Name)
	}
	count := 1
	if isMulti(s) {
		count = t.Len()
	}
	st.setSlot(0, t.st.self)
	ps.full = t.st.self
	ps.capacity = count
	ps.derefed = false
	if fixed {
		return st.writeWords(addr, count)
	}
	ps.length = count
	ps.synced = false
	return nil
}

// assignThrough implements assignment to the target of a pointer.
func (o *Object) assignThrough(v any) error {
	st := o.st
	s := st.ctor.s
	if o.readOnly || isConst(s) {
		return errors.ReadOnlyViolation(s.Name, "assignment through const pointer")
	}
	if err := o.update(); err != nil {
		return err
	}
	t := st.target()
	if t != nil && st.ptr.derefed {
		return t.assignValue(v)
	}
	if _, ok := v.(*Object); ok {
		return o.retarget(v)
	}
	if t != nil {
		return t.assignValue(v)
	}
	return o.retarget(v)
}

// SetLength changes how many elements a multi-item pointer exposes. The
// new target is a view into the full target without copying; restoring
// the full length returns the original target object. A narrowed sentinel
// target stops short of its terminator.
func (o *Object) SetLength(k int) error {
	if err := o.requirePointer("set length"); err != nil {
		return err
	}
	st := o.st
	ps := st.ptr
	s := st.ctor.s
	if !isMulti(s) {
		return errors.Unsupported(errors.PhasePointer, s.Name, "length of a single-item pointer")
	}
	if err := o.mutating("set length"); err != nil {
		return err
	}
	if err := o.update(); err != nil {
		return err
	}
	tc, err := st.ctor.targetCtor()
	if err != nil {
		return err
	}
	t := st.target()
	if t == nil {
		if k == 0 {
			return nil
		}
		return errors.InvalidSliceLength(s.Name, k, 0)
	}
	el := tc.elemSize()

	if ps.capacity < 0 {
		if k < 0 {
			return errors.InvalidSliceLength(s.Name, k, 0)
		}
		v, err := st.ctor.env.ObtainView(ps.addr, k*el, !isConst(s))
		if err != nil {
			return err
		}
		nt, err := tc.castView(v)
		if err != nil {
			return err
		}
		st.setSlot(0, nt)
		ps.full = nt
		ps.length = k
		return nil
	}

	if k < 0 || k > ps.capacity {
		return errors.InvalidSliceLength(s.Name, k, ps.capacity)
	}
	nt := ps.full.st.self
	if k != nt.Len() {
		sub, err := nt.st.view.Slice(0, k*el)
		if err != nil {
			return err
		}
		if tc.hasSentinel() {
			nt = tc.castOpen(sub)
		} else if nt, err = tc.castView(sub); err != nil {
			return err
		}
	}
	st.setSlot(0, nt)
	if addr, ok := nt.st.view.Address(); ok {
		return st.writeWords(addr, k)
	}
	ps.length = k
	return nil
}

// IsNull reports whether the pointer has no target.
func (o *Object) IsNull() (bool, error) {
	if err := o.requirePointer("null check"); err != nil {
		return false, err
	}
	if err := o.update(); err != nil {
		return false, err
	}
	return o.st.target() == nil, nil
}

// Address returns the foreign address of the pointer's target.
func (o *Object) Address() (memview.Address, bool) {
	if o.Kind() != structure.KindPointer {
		return o.st.view.Address()
	}
	if err := o.update(); err != nil {
		return 0, false
	}
	t := o.st.target()
	if t == nil {
		return 0, false
	}
	return t.st.view.Address()
}

func (o *Object) pointerGet(name string) (any, error) {
	switch name {
	case "*":
		t, err := o.deref()
		if err != nil {
			return nil, err
		}
		return natural(t)
	case "$":
		return o.deref()
	case "length":
		if _, err := o.deref(); err != nil {
			return nil, err
		}
		return o.Len(), nil
	}
	t, err := o.deref()
	if err != nil {
		return nil, err
	}
	if t.Kind() == structure.KindPointer {
		return nil, noMember(o.Structure(), name)
	}
	return t.Get(name)
}

func (o *Object) pointerSet(name string, v any) error {
	switch name {
	case "*":
		return o.assignThrough(v)
	case "$":
		return o.Retarget(v)
	case "length":
		n, ok := coerce.Int64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhasePointer, []string{name}, o.name(), v)
		}
		return o.SetLength(int(n))
	}
	t, err := o.deref()
	if err != nil {
		return err
	}
	if t.Kind() == structure.KindPointer {
		return noMember(o.Structure(), name)
	}
	return t.Set(name, v)
}
