package object

import (
	"sort"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/internal/coerce"
	"github.com/wippyai/wasm-memview/structure"
)

func (o *Object) tagged() bool { return o.st.ctor.s.Flags.Has(structure.FlagTagged) }

// activeIndex returns the member index of the active union member, -1 when
// none is active. Tagged unions decode it from the selector bits.
func (o *Object) activeIndex() (int, error) {
	st := o.st
	if !o.tagged() {
		return st.active, nil
	}
	raw, err := o.selectorValue()
	if err != nil {
		return -1, err
	}
	return st.ctor.caseIndex(raw), nil
}

func (o *Object) selectorValue() (int64, error) {
	st := o.st
	c := st.ctor
	a := c.members[c.selector]
	if a.isObject() {
		child, err := st.memberChild(c.selector)
		if err != nil {
			return 0, err
		}
		return child.Int()
	}
	v, err := a.read(st.view, 0)
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

func (c *Constructor) caseIndex(raw int64) int {
	if c.tag != nil {
		k, ok := c.tag.s.ConstantOf(raw)
		if !ok {
			return -1
		}
		i, ok := c.byName[k.Name]
		if !ok || i == c.selector {
			return -1
		}
		return i
	}
	if raw < 0 || raw >= int64(len(c.payload)) {
		return -1
	}
	return c.payload[raw]
}

func (c *Constructor) caseValue(i int) (int64, bool) {
	if c.tag != nil {
		k, ok := c.tag.s.Constant(c.members[i].label)
		return k.Value, ok
	}
	for n, p := range c.payload {
		if p == i {
			return int64(n), true
		}
	}
	return 0, false
}

// caseOf resolves a selector value given by case name or tag value.
func (c *Constructor) caseOf(v any) int {
	if name, ok := v.(string); ok {
		i, ok := c.byName[name]
		if !ok || i == c.selector {
			return -1
		}
		return i
	}
	n, ok := coerce.Int64(v)
	if !ok {
		return -1
	}
	return c.caseIndex(n)
}

func (o *Object) writeSelector(i int) error {
	st := o.st
	c := st.ctor
	val, ok := c.caseValue(i)
	if !ok {
		return errors.InvalidEnum(errors.PhaseAccess, c.s.Name, c.members[i].label)
	}
	a := c.members[c.selector]
	if !a.isObject() {
		return a.write(st.view, 0, val)
	}
	child, err := st.memberChild(c.selector)
	if err != nil {
		return err
	}
	return child.writeRaw(val)
}

func (o *Object) unionGet(name string, peek bool) (any, error) {
	c := o.st.ctor
	i, ok := c.byName[name]
	if !ok {
		return nil, noMember(c.s, name)
	}
	act, err := o.activeIndex()
	if err != nil {
		return nil, err
	}
	if i == c.selector {
		if act < 0 {
			return nil, nil
		}
		return c.members[act].label, nil
	}
	if peek {
		if o.tagged() {
			return nil, errors.Unsupported(errors.PhaseAccess, c.s.Name, "peek on a tagged union")
		}
		return o.readMember(i)
	}
	if act != i {
		active := ""
		if act >= 0 {
			active = c.members[act].label
		}
		return nil, errors.InactiveUnionMember(c.s.Name, name, active)
	}
	v, err := o.readMember(i)
	return v, errors.WithPath(err, name)
}

// Peek reinterprets the bytes of a bare union as member name, whether or
// not it is active.
func (o *Object) Peek(name string) (any, error) {
	if o.Kind() != structure.KindUnion {
		return nil, errors.Unsupported(errors.PhaseAccess, o.name(), "peek on "+o.Kind().String())
	}
	return o.unionGet(name, true)
}

// Active returns the name of the active union member.
func (o *Object) Active() (string, bool) {
	if o.Kind() != structure.KindUnion {
		return "", false
	}
	act, err := o.activeIndex()
	if err != nil || act < 0 {
		return "", false
	}
	return o.st.ctor.members[act].label, true
}

func (o *Object) unionSet(name string, v any) error {
	c := o.st.ctor
	i, ok := c.byName[name]
	if !ok {
		return noMember(c.s, name)
	}
	if i == c.selector {
		target := c.caseOf(v)
		if target < 0 {
			return errors.InvalidEnum(errors.PhaseAccess, c.s.Name, v)
		}
		return o.activate(target)
	}
	if c.members[i].m.Flags.Has(structure.MemberReadOnly) {
		return errors.NotWritable(c.s.Name, name)
	}
	if err := o.writeMember(i, v); err != nil {
		return errors.WithPath(err, name)
	}
	return o.activate(i)
}

// activate makes member i the active one. A previously active member that
// holds pointers has them reset and its slot released.
func (o *Object) activate(i int) error {
	st := o.st
	prev, err := o.activeIndex()
	if err != nil {
		return err
	}
	if prev >= 0 && prev != i {
		if err := o.release(prev); err != nil {
			return err
		}
	}
	if o.tagged() {
		return o.writeSelector(i)
	}
	st.active = i
	return nil
}

func (o *Object) release(i int) error {
	st := o.st
	m := &st.ctor.s.Members[i]
	if m.Type != structure.MemberObject || !m.Structure.HasPointer() {
		return nil
	}
	child, ok := st.slots[m.Slot]
	if !ok {
		return nil
	}
	if err := Visit(child, VisitReset, func(*Object, bool) error { return nil }); err != nil {
		return err
	}
	delete(st.slots, m.Slot)
	return nil
}

func (o *Object) setUnion(v any) error {
	c := o.st.ctor
	vals, ok := v.(map[string]any)
	if !ok {
		return errors.TypeMismatch(errors.PhaseAccess, nil, c.s.Name, v)
	}
	switch len(vals) {
	case 0:
		names := make([]string, 0, len(c.payload))
		for _, i := range c.payload {
			names = append(names, c.members[i].label)
		}
		return errors.MissingInitializer(c.s.Name, names)
	case 1:
	default:
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return errors.AmbiguousUnion(c.s.Name, keys)
	}
	for k, val := range vals {
		i, ok := c.byName[k]
		if !ok || i == c.selector {
			return errors.UnknownInitializer(c.s.Name, k)
		}
		if err := o.writeMember(i, val); err != nil {
			return errors.WithPath(err, k)
		}
		return o.activate(i)
	}
	return nil
}
