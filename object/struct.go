package object

import (
	"sort"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

// Entry is one named value of an aggregate.
type Entry struct {
	Value any
	Name  string
}

func (o *Object) memberGet(name string) (any, error) {
	c := o.st.ctor
	i, ok := c.byName[name]
	if !ok {
		return nil, noMember(c.s, name)
	}
	switch c.s.Kind {
	case structure.KindOptional:
		if i != c.selector {
			present, err := o.present()
			if err != nil || !present {
				return nil, err
			}
		}
	case structure.KindErrorUnion:
		code, err := o.errorCode()
		if err != nil {
			return nil, err
		}
		if i == c.selector {
			if code == 0 {
				return nil, nil
			}
			return o.foreignError(code), nil
		}
		if code != 0 {
			return nil, o.foreignError(code)
		}
	}
	v, err := o.readMember(i)
	return v, errors.WithPath(err, name)
}

func (o *Object) readMember(i int) (any, error) {
	st := o.st
	a := st.ctor.members[i]
	if !a.isObject() {
		return a.read(st.view, 0)
	}
	child, err := st.memberChild(i)
	if err != nil {
		return nil, err
	}
	return natural(o.wrapChild(child))
}

func (o *Object) setMember(i int, v any) error {
	a := o.st.ctor.members[i]
	if a.m.Flags.Has(structure.MemberReadOnly) {
		return errors.NotWritable(o.name(), a.label)
	}
	return errors.WithPath(o.writeMember(i, v), a.label)
}

// writeMember stores v into member i without checking member flags.
// Pointer members are re-targeted, other object members copied into.
func (o *Object) writeMember(i int, v any) error {
	st := o.st
	a := st.ctor.members[i]
	if !a.isObject() {
		return a.write(st.view, 0, v)
	}
	child, err := st.memberChild(i)
	if err != nil {
		return err
	}
	return child.assignValue(v)
}

func (o *Object) setStruct(v any) error {
	c := o.st.ctor
	s := c.s
	if list, ok := listValues(v); ok && s.Flags.Has(structure.FlagTuple) {
		if len(list) != len(c.members) {
			return errors.LengthMismatch(errors.PhaseAccess, s.Name, len(list), len(c.members))
		}
		for i, val := range list {
			if err := o.writeMember(i, val); err != nil {
				return errors.WithPath(err, c.members[i].label)
			}
		}
		return nil
	}

	vals, ok := v.(map[string]any)
	if !ok {
		return errors.TypeMismatch(errors.PhaseAccess, nil, s.Name, v)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if _, ok := c.byName[k]; !ok {
			return errors.UnknownInitializer(s.Name, k)
		}
		keys = append(keys, k)
	}
	if s.Template == nil {
		var missing []string
		for _, a := range c.members {
			if !a.m.Flags.Has(structure.MemberRequired) {
				continue
			}
			if _, ok := vals[a.label]; !ok {
				missing = append(missing, a.label)
			}
		}
		if len(missing) > 0 {
			return errors.MissingInitializer(s.Name, missing)
		}
	}
	sort.Slice(keys, func(x, y int) bool { return c.byName[keys[x]] < c.byName[keys[y]] })
	for _, k := range keys {
		if err := o.writeMember(c.byName[k], vals[k]); err != nil {
			return errors.WithPath(err, k)
		}
	}
	return nil
}

// Entries lists the object's members in declaration order. Unions yield
// their active member only, arrays and slices their elements named by index.
func (o *Object) Entries() ([]Entry, error) {
	c := o.st.ctor
	switch c.s.Kind {
	case structure.KindPointer:
		t, err := o.Deref()
		if err != nil {
			return nil, err
		}
		return t.Entries()
	case structure.KindStruct:
		out := make([]Entry, 0, len(c.members))
		for i, a := range c.members {
			if a.m.Type == structure.MemberVoid {
				continue
			}
			v, err := o.readMember(i)
			if err != nil {
				return nil, errors.WithPath(err, a.label)
			}
			out = append(out, Entry{Name: a.label, Value: v})
		}
		return out, nil
	case structure.KindUnion:
		act, err := o.activeIndex()
		if err != nil || act < 0 {
			return nil, err
		}
		v, err := o.readMember(act)
		if err != nil {
			return nil, err
		}
		return []Entry{{Name: c.members[act].label, Value: v}}, nil
	case structure.KindArray, structure.KindSlice:
		n := o.Len()
		out := make([]Entry, n)
		for i := range n {
			v, err := o.At(i)
			if err != nil {
				return nil, err
			}
			out[i] = Entry{Name: itoa(i), Value: v}
		}
		return out, nil
	case structure.KindOptional, structure.KindErrorUnion:
		if len(c.payload) == 0 {
			return nil, nil
		}
		label := c.members[c.payload[0]].label
		v, err := o.memberGet(label)
		if err != nil {
			var fe *ForeignError
			if asForeign(err, &fe) {
				return []Entry{{Name: c.members[c.selector].label, Value: fe}}, nil
			}
			return nil, err
		}
		if c.s.Kind == structure.KindOptional && v == nil {
			return nil, nil
		}
		return []Entry{{Name: label, Value: v}}, nil
	}
	return nil, errors.Unsupported(errors.PhaseAccess, c.s.Name, "entries of "+c.s.Kind.String())
}
