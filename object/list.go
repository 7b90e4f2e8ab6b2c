package object

import (
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

// Len returns the element count of arrays and slices, the member count of
// structs, and the target's length for pointers. A sentinel terminator is
// not counted.
func (o *Object) Len() int {
	st := o.st
	s := st.ctor.s
	switch s.Kind {
	case structure.KindArray:
		return s.Length
	case structure.KindSlice:
		el := st.ctor.elemSize()
		if el == 0 {
			return 0
		}
		n := st.view.Len() / el
		if st.terminated() && n > 0 {
			n--
		}
		return n
	case structure.KindPointer:
		t, err := o.deref()
		if err != nil {
			return 0
		}
		return t.Len()
	case structure.KindStruct:
		return len(s.Members)
	}
	return 1
}

func (c *Constructor) strideBits() int {
	el := c.s.Element()
	if el.ByteSize > 0 {
		return el.ByteSize * 8
	}
	return el.BitSize
}

// At returns element i. Pointers forward to their target.
func (o *Object) At(i int) (any, error) {
	st := o.st
	switch st.ctor.s.Kind {
	case structure.KindPointer:
		t, err := o.Deref()
		if err != nil {
			return nil, err
		}
		return t.At(i)
	case structure.KindArray, structure.KindSlice:
	default:
		return nil, errors.Unsupported(errors.PhaseAccess, o.name(), "indexing "+o.Kind().String())
	}
	if n := o.Len(); i < 0 || i >= n {
		return nil, errors.OutOfBounds(errors.PhaseAccess, nil, i, n)
	}
	return o.readElement(i)
}

func (o *Object) readElement(i int) (any, error) {
	st := o.st
	a := st.ctor.members[0]
	if !a.isObject() {
		return a.read(st.view, i*st.ctor.strideBits())
	}
	child, err := st.elementChild(i)
	if err != nil {
		return nil, err
	}
	return natural(o.wrapChild(child))
}

// SetAt writes element i. Pointers forward to their target.
func (o *Object) SetAt(i int, v any) error {
	st := o.st
	switch st.ctor.s.Kind {
	case structure.KindPointer:
		t, err := o.Deref()
		if err != nil {
			return err
		}
		return t.SetAt(i, v)
	case structure.KindArray, structure.KindSlice:
	default:
		return errors.Unsupported(errors.PhaseAccess, o.name(), "indexing "+o.Kind().String())
	}
	if err := o.mutating("set element"); err != nil {
		return err
	}
	if n := o.Len(); i < 0 || i >= n {
		return errors.OutOfBounds(errors.PhaseAccess, nil, i, n)
	}
	if st.ctor.members[0].m.Flags.Has(structure.MemberReadOnly) {
		return errors.NotWritable(o.name(), itoa(i))
	}
	return errors.WithPath(o.writeElement(i, v), itoa(i))
}

func (o *Object) writeElement(i int, v any) error {
	st := o.st
	a := st.ctor.members[0]
	if !a.isObject() {
		return a.write(st.view, i*st.ctor.strideBits(), v)
	}
	child, err := st.elementChild(i)
	if err != nil {
		return err
	}
	return child.assignValue(v)
}

func (c *Constructor) byteElements() bool {
	el := c.s.Element()
	return el != nil && el.BitSize == 8 &&
		(el.Type == structure.MemberUint || el.Type == structure.MemberInt)
}

func (o *Object) setElements(v any) error {
	st := o.st
	c := st.ctor
	n := o.Len()
	switch x := v.(type) {
	case string:
		if !c.byteElements() {
			return errors.TypeMismatch(errors.PhaseAccess, nil, c.s.Name, v)
		}
		if len(x) != n {
			return errors.LengthMismatch(errors.PhaseAccess, c.s.Name, len(x), n)
		}
		return st.view.WriteAt(0, []byte(x))
	case []byte:
		return o.copyRaw(x)
	}
	list, ok := listValues(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseAccess, nil, c.s.Name, v)
	}
	if len(list) != n {
		return errors.LengthMismatch(errors.PhaseAccess, c.s.Name, len(list), n)
	}
	for i, val := range list {
		if err := o.writeElement(i, val); err != nil {
			return errors.WithPath(err, itoa(i))
		}
	}
	return nil
}
