package object

import (
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// Object is a live instance of a structure over a memory view. Every kind
// of structure is represented by an *Object; the kind decides which methods
// apply.
//
// Each (structure, view) pair has one canonical mutable Object and at most
// one read-only handle returned by ReadOnly. Both share the same state.
type Object struct {
	st       *state
	readOnly bool
}

type state struct {
	ctor   *Constructor
	view   *view.View
	slots  map[int]*Object // canonical children, or the target of a pointer
	self   *Object
	frozen *Object
	ptr    *pointerState
	handle Handle
	active int  // active member of a bare union, -1 for none
	open   bool // sentinel slice narrowed past its terminator
}

// ReadOnly returns the read-only handle of o. Repeated calls return the
// same handle and every mutator on it fails with read_only_violation.
func ReadOnly(o *Object) *Object {
	if o == nil || o.readOnly {
		return o
	}
	st := o.st
	if st.frozen == nil {
		st.frozen = &Object{st: st, readOnly: true}
	}
	return st.frozen
}

// Structure returns the object's structure.
func (o *Object) Structure() *structure.Structure { return o.st.ctor.s }

// Kind returns the kind of the object's structure.
func (o *Object) Kind() structure.Kind { return o.st.ctor.s.Kind }

// Constructor returns the constructor the object belongs to.
func (o *Object) Constructor() *Constructor { return o.st.ctor }

// View returns the memory view currently backing the object.
func (o *Object) View() *view.View { return o.st.view }

// IsReadOnly reports whether o is a read-only handle.
func (o *Object) IsReadOnly() bool { return o.readOnly }

// IsFixed reports whether the object lives in foreign memory.
func (o *Object) IsFixed() bool { return o.st.view.IsFixed() }

func (o *Object) name() string { return o.st.ctor.s.Name }

func (o *Object) mutating(op string) error {
	if o.readOnly {
		return errors.ReadOnlyViolation(o.name(), op)
	}
	return nil
}

func (o *Object) wrapChild(c *Object) *Object {
	if o.readOnly {
		return ReadOnly(c)
	}
	return c
}

func noMember(s *structure.Structure, name string) error {
	return errors.New(errors.PhaseAccess, errors.KindNotFound).
		Structure(s.Name).
		Path(name).
		Detail("no member %q", name).
		Build()
}

// natural returns scalar-like objects as their value and everything else
// as the object itself.
func natural(c *Object) (any, error) {
	switch c.Kind() {
	case structure.KindPrimitive, structure.KindEnum, structure.KindErrorSet:
		return c.Value()
	}
	return c, nil
}

func (st *state) setSlot(k int, c *Object) {
	if st.slots == nil {
		st.slots = make(map[int]*Object)
	}
	st.slots[k] = c
}

// slot returns the canonical child under slot k. Children merged into
// another state by linkage are replaced by the surviving handle.
func (st *state) slot(k int) (*Object, bool) {
	c, ok := st.slots[k]
	if !ok {
		return nil, false
	}
	if c != c.st.self {
		c = c.st.self
		st.slots[k] = c
	}
	return c, true
}

// target returns the pointer's target, nil when the pointer is null.
func (st *state) target() *Object {
	t, _ := st.slot(0)
	return t
}

// terminated reports whether the view ends in the sentinel.
func (st *state) terminated() bool {
	return st.ctor.hasSentinel() && !st.open
}

func (st *state) memberChild(i int) (*Object, error) {
	m := &st.ctor.s.Members[i]
	if c, ok := st.slot(m.Slot); ok {
		return c, nil
	}
	size := m.ByteSize
	if size == 0 {
		size = m.Structure.ByteSize
	}
	return st.materialize(m.Slot, m.ByteOffset(), size, m.Structure)
}

func (st *state) elementChild(i int) (*Object, error) {
	if c, ok := st.slot(i); ok {
		return c, nil
	}
	el := st.ctor.s.Element()
	return st.materialize(i, i*el.ByteSize, el.ByteSize, el.Structure)
}

func (st *state) materialize(k, off, size int, s *structure.Structure) (*Object, error) {
	ctor, err := st.ctor.env.Constructor(s)
	if err != nil {
		return nil, err
	}
	sub, err := st.view.Slice(off, size)
	if err != nil {
		return nil, err
	}
	c, err := ctor.castView(sub)
	if err != nil {
		return nil, err
	}
	st.setSlot(k, c)
	return c, nil
}

// slotChild returns the child stored under slot k, creating it on demand.
func (st *state) slotChild(k int) (*Object, error) {
	s := st.ctor.s
	switch s.Kind {
	case structure.KindPointer:
		if c, ok := st.slot(k); ok {
			return c, nil
		}
		return nil, errors.NotFound(errors.PhaseAccess, "slot", itoa(k))
	case structure.KindArray, structure.KindSlice:
		return st.elementChild(k)
	}
	for i := range s.Members {
		if s.Members[i].Type == structure.MemberObject && s.Members[i].Slot == k {
			return st.memberChild(i)
		}
	}
	return nil, errors.NotFound(errors.PhaseAccess, "slot", itoa(k))
}

// slotRange returns the byte range of the child under slot k.
func (st *state) slotRange(k int) (off, size int, ok bool) {
	s := st.ctor.s
	switch s.Kind {
	case structure.KindPointer:
		return 0, 0, false
	case structure.KindArray, structure.KindSlice:
		el := s.Element().ByteSize
		return k * el, el, true
	}
	for i := range s.Members {
		m := &s.Members[i]
		if m.Type == structure.MemberObject && m.Slot == k {
			size := m.ByteSize
			if size == 0 {
				size = m.Structure.ByteSize
			}
			return m.ByteOffset(), size, true
		}
	}
	return 0, 0, false
}

// seed applies the structure's template.
func (o *Object) seed() error {
	st := o.st
	t := st.ctor.s.Template
	if t == nil {
		return nil
	}
	if len(t.Bytes) > 0 && len(t.Bytes) == st.view.Len() {
		if err := st.view.WriteAt(0, t.Bytes); err != nil {
			return err
		}
	}
	for k, val := range t.Slots {
		src, ok := val.(*Object)
		if !ok || src == nil {
			continue
		}
		if st.ptr != nil && k == 0 {
			if err := o.setTarget(src.st.self); err != nil {
				return err
			}
			continue
		}
		child, err := st.slotChild(k)
		if err != nil {
			return err
		}
		if err := copySlots(child.st, src.st); err != nil {
			return err
		}
	}
	return nil
}

func (o *Object) initialize(init any) error {
	if init == nil {
		return nil
	}
	s := o.st.ctor.s
	if s.Kind == structure.KindPointer {
		if src, ok := init.(*Object); ok && src.st.ctor.s == s {
			return o.copyFrom(src)
		}
		return o.retarget(init)
	}
	switch v := init.(type) {
	case *view.View:
		data, err := v.Bytes()
		if err != nil {
			return err
		}
		return o.copyRaw(data)
	case []byte:
		return o.copyRaw(v)
	case int:
		if s.Kind == structure.KindSlice {
			return nil
		}
	}
	return o.assignValue(init)
}

func (o *Object) copyRaw(data []byte) error {
	st := o.st
	c := st.ctor
	n := st.view.Len()
	if len(data) == n || (st.terminated() && len(data) == n-c.elemSize()) {
		return st.view.WriteAt(0, data)
	}
	return errors.LengthMismatch(errors.PhaseConstruct, c.s.Name, len(data), n)
}

// assignValue replaces the whole value of o.
func (o *Object) assignValue(v any) error {
	s := o.st.ctor.s
	if src, ok := v.(*Object); ok && s.Kind != structure.KindPointer {
		return o.copyFrom(src)
	}
	switch s.Kind {
	case structure.KindPrimitive:
		return o.st.ctor.members[0].write(o.st.view, 0, v)
	case structure.KindEnum, structure.KindErrorSet:
		return o.setEnum(v)
	case structure.KindStruct:
		return o.setStruct(v)
	case structure.KindUnion:
		return o.setUnion(v)
	case structure.KindArray, structure.KindSlice:
		return o.setElements(v)
	case structure.KindOptional:
		return o.setOptional(v)
	case structure.KindErrorUnion:
		return o.setErrorUnion(v)
	case structure.KindPointer:
		if src, ok := v.(*Object); ok && src.st.ctor.s == s {
			return o.copyFrom(src)
		}
		return o.retarget(v)
	}
	return errors.Unsupported(errors.PhaseAccess, s.Name, "assignment to "+s.Kind.String())
}

func compatible(a, b *structure.Structure) bool {
	if a == b {
		return true
	}
	if (a.Kind != structure.KindArray && a.Kind != structure.KindSlice) ||
		(b.Kind != structure.KindArray && b.Kind != structure.KindSlice) {
		return false
	}
	ea, eb := a.Element(), b.Element()
	if ea == nil || eb == nil {
		return false
	}
	if ea.Type == structure.MemberObject || eb.Type == structure.MemberObject {
		return ea.Structure == eb.Structure
	}
	return ea.Type == eb.Type && ea.BitSize == eb.BitSize && ea.ByteSize == eb.ByteSize
}

// copyFrom copies the bytes of src into o along with the targets of every
// pointer they contain.
func (o *Object) copyFrom(src *Object) error {
	if src.st == o.st {
		return nil
	}
	s := o.st.ctor.s
	if !compatible(s, src.st.ctor.s) {
		return errors.TypeMismatch(errors.PhaseAccess, nil, s.Name, src.st.ctor.s.Name)
	}
	if src.st.view.Len() != o.st.view.Len() {
		return errors.LengthMismatch(errors.PhaseAccess, s.Name, src.st.view.Len(), o.st.view.Len())
	}
	if err := view.Copy(o.st.view, src.st.view); err != nil {
		return err
	}
	return copySlots(o.st, src.st)
}

func copySlots(dst, src *state) error {
	if dst.ptr != nil && src.ptr != nil {
		return dst.self.setTarget(src.target())
	}
	if dst.ctor.s.Kind == structure.KindUnion && !dst.ctor.s.Flags.Has(structure.FlagTagged) {
		dst.active = src.active
	}
	for k, sc := range src.slots {
		if !sc.st.ctor.s.HasPointer() {
			continue
		}
		dc, err := dst.slotChild(k)
		if err != nil {
			return err
		}
		if err := copySlots(dc.st, sc.st); err != nil {
			return err
		}
	}
	return nil
}

// Assign replaces the value of o. On a pointer it writes through to the
// target: once the target was dereferenced the value is copied into it in
// place, otherwise an *Object value re-points the pointer.
func (o *Object) Assign(v any) error {
	if o.Kind() == structure.KindPointer {
		return o.assignThrough(v)
	}
	if err := o.mutating("assign"); err != nil {
		return err
	}
	return o.assignValue(v)
}

// Get reads a member by name. Scalars and enums are returned as values,
// aggregates and pointers as *Object. Array and slice elements are named
// by index. On pointers, "*" dereferences, "$" returns the target object
// and other names are forwarded to the target.
func (o *Object) Get(name string) (any, error) {
	switch o.Kind() {
	case structure.KindPointer:
		return o.pointerGet(name)
	case structure.KindUnion:
		return o.unionGet(name, false)
	case structure.KindArray, structure.KindSlice:
		i, err := indexOf(name)
		if err != nil {
			return nil, noMember(o.Structure(), name)
		}
		return o.At(i)
	case structure.KindStruct, structure.KindOptional, structure.KindErrorUnion:
		return o.memberGet(name)
	}
	return nil, errors.Unsupported(errors.PhaseAccess, o.name(), "members of "+o.Kind().String())
}

// Set writes a member by name.
func (o *Object) Set(name string, v any) error {
	if o.Kind() == structure.KindPointer {
		return o.pointerSet(name, v)
	}
	if err := o.mutating("set " + quote(name)); err != nil {
		return err
	}
	switch o.Kind() {
	case structure.KindUnion:
		return o.unionSet(name, v)
	case structure.KindArray, structure.KindSlice:
		i, err := indexOf(name)
		if err != nil {
			return noMember(o.Structure(), name)
		}
		return o.SetAt(i, v)
	case structure.KindStruct:
		i, ok := o.st.ctor.byName[name]
		if !ok {
			return noMember(o.Structure(), name)
		}
		return o.setMember(i, v)
	case structure.KindOptional, structure.KindErrorUnion:
		i, ok := o.st.ctor.byName[name]
		if !ok {
			return noMember(o.Structure(), name)
		}
		if i == o.st.ctor.selector {
			return errors.NotWritable(o.name(), name)
		}
		return o.assignValue(v)
	}
	return errors.Unsupported(errors.PhaseAccess, o.name(), "members of "+o.Kind().String())
}
