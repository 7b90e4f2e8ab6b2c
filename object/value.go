package object

import (
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

// Value returns a plain Go copy of the object: scalars, enum names,
// map[string]any for structs and unions, []any for tuples, arrays and
// slices, nil for absent optionals and null pointers. Pointers are followed;
// a pointer that leads back into the walk yields its *Object instead.
//
// An error union holding an error returns it as a *ForeignError; nested
// inside an aggregate the *ForeignError is the member value.
func (o *Object) Value() (any, error) {
	v, err := o.plain(make(map[*state]bool))
	if err != nil {
		return nil, err
	}
	if fe, ok := v.(*ForeignError); ok && o.Kind() == structure.KindErrorUnion {
		return nil, fe
	}
	return v, nil
}

func (o *Object) plain(seen map[*state]bool) (any, error) {
	st := o.st
	c := st.ctor
	s := c.s
	switch s.Kind {
	case structure.KindPrimitive:
		return c.members[0].read(st.view, 0)
	case structure.KindEnum, structure.KindErrorSet:
		return o.enumName()
	case structure.KindStruct:
		if s.Flags.Has(structure.FlagTuple) {
			out := make([]any, len(c.members))
			for i := range c.members {
				v, err := o.plainMember(i, seen)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}
		out := make(map[string]any, len(c.members))
		for i, a := range c.members {
			if a.m.Type == structure.MemberVoid {
				continue
			}
			v, err := o.plainMember(i, seen)
			if err != nil {
				return nil, err
			}
			out[a.label] = v
		}
		return out, nil
	case structure.KindUnion:
		act, err := o.activeIndex()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, 1)
		if act >= 0 {
			v, err := o.plainMember(act, seen)
			if err != nil {
				return nil, err
			}
			out[c.members[act].label] = v
		}
		return out, nil
	case structure.KindArray, structure.KindSlice:
		n := o.Len()
		out := make([]any, n)
		for i := range n {
			v, err := o.plainElement(i, seen)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case structure.KindOptional:
		present, err := o.present()
		if err != nil || !present {
			return nil, err
		}
		return o.plainMember(c.payload[0], seen)
	case structure.KindErrorUnion:
		code, err := o.errorCode()
		if err != nil {
			return nil, err
		}
		if code != 0 {
			return o.foreignError(code), nil
		}
		return o.plainMember(c.payload[0], seen)
	case structure.KindPointer:
		if seen[st] {
			return o, nil
		}
		t, err := o.deref()
		if err != nil {
			if errors.Is(err, errors.ErrNullPointer) {
				return nil, nil
			}
			return nil, err
		}
		seen[st] = true
		defer delete(seen, st)
		return t.plain(seen)
	}
	return nil, errors.Unsupported(errors.PhaseAccess, s.Name, "value of "+s.Kind.String())
}

func (o *Object) plainMember(i int, seen map[*state]bool) (any, error) {
	st := o.st
	a := st.ctor.members[i]
	if !a.isObject() {
		return a.read(st.view, 0)
	}
	child, err := st.memberChild(i)
	if err != nil {
		return nil, errors.WithPath(err, a.label)
	}
	v, err := o.wrapChild(child).plain(seen)
	return v, errors.WithPath(err, a.label)
}

func (o *Object) plainElement(i int, seen map[*state]bool) (any, error) {
	st := o.st
	a := st.ctor.members[0]
	if !a.isObject() {
		return a.read(st.view, i*st.ctor.strideBits())
	}
	child, err := st.elementChild(i)
	if err != nil {
		return nil, errors.WithPath(err, itoa(i))
	}
	v, err := o.wrapChild(child).plain(seen)
	return v, errors.WithPath(err, itoa(i))
}
