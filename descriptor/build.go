package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

var memberFlags = map[string]structure.MemberFlags{
	"required":  structure.MemberRequired,
	"read-only": structure.MemberReadOnly,
	"selector":  structure.MemberSelector,
	"sentinel":  structure.MemberSentinel,
}

// Options returns the environment options the file asks for.
func (f *File) Options() []object.EnvOption {
	switch f.ByteOrder {
	case "big":
		return []object.EnvOption{object.WithByteOrder(binary.BigEndian)}
	case "little":
		return []object.EnvOption{object.WithByteOrder(binary.LittleEndian)}
	}
	return nil
}

// Build defines every structure of f in env and returns the constructors
// by name. Members and pointers may also refer to structures env already
// holds.
func (f *File) Build(env *object.Env) (map[string]*object.Constructor, error) {
	b := &builder{
		env:    env,
		decls:  make(map[string]*Structure, len(f.Structures)),
		built:  make(map[string]*structure.Structure, len(f.Structures)),
		active: make(map[string]bool),
	}
	for i := range f.Structures {
		b.decls[f.Structures[i].Name] = &f.Structures[i]
	}
	out := make(map[string]*object.Constructor, len(f.Structures))
	for i := range f.Structures {
		name := f.Structures[i].Name
		s, err := b.build(name)
		if err != nil {
			return nil, err
		}
		c, err := env.Constructor(s)
		if err != nil {
			return nil, errors.WithPath(err, name)
		}
		out[name] = c
	}
	return out, nil
}

type builder struct {
	env    *object.Env
	decls  map[string]*Structure
	built  map[string]*structure.Structure
	active map[string]bool
}

func (b *builder) build(name string) (*structure.Structure, error) {
	if s, ok := b.built[name]; ok {
		return s, nil
	}
	d, ok := b.decls[name]
	if !ok {
		if s, ok := b.env.Registry().Lookup(name); ok && s.Frozen() {
			return s, nil
		}
		return nil, errors.NotFound(errors.PhaseLoad, "structure", name)
	}
	if b.active[name] {
		return nil, errors.InvalidData(errors.PhaseLoad, []string{name}, "structure contains itself by value")
	}
	b.active[name] = true
	defer delete(b.active, name)

	s, err := b.define(d)
	if err != nil {
		return nil, errors.WithPath(err, name)
	}
	b.built[name] = s
	return s, nil
}

// target resolves a pointer target. Targets declared in the file are not
// built first, so pointers may form cycles.
func (b *builder) target(name string) (*structure.Structure, error) {
	if s, ok := b.built[name]; ok {
		return s, nil
	}
	if _, ok := b.decls[name]; ok {
		return b.env.DeclareStructure(name), nil
	}
	if s, ok := b.env.Registry().Lookup(name); ok {
		return s, nil
	}
	if m, ok := scalarMember(name); ok {
		return b.primitive(name, m)
	}
	return nil, errors.NotFound(errors.PhaseLoad, "pointer target", name)
}

func (b *builder) primitive(name string, m structure.Member) (*structure.Structure, error) {
	if s, ok := b.env.Registry().Lookup(name); ok && s.Frozen() {
		return s, nil
	}
	if m.BitSize > 0 {
		m.ByteSize = byteSize(m.BitSize)
	}
	return b.end(structure.Descriptor{
		Name:     name,
		Kind:     structure.KindPrimitive,
		ByteSize: m.ByteSize,
		Align:    max(m.ByteSize, 1),
	}, []structure.Member{m}, nil)
}

func (b *builder) define(d *Structure) (*structure.Structure, error) {
	kind, _ := structure.ParseKind(d.Kind)
	desc := structure.Descriptor{Name: d.Name, Kind: kind, Length: d.Length}
	for _, name := range d.Flags {
		f, _ := structure.ParseFlag(name)
		desc.Flags |= f
	}
	packed := d.Layout == "packed" || desc.Flags.Has(structure.FlagPacked)
	if packed {
		desc.Flags |= structure.FlagPacked
	}
	for _, c := range d.Constants {
		desc.Constants = append(desc.Constants, structure.Constant{Name: c.Name, Value: c.Value})
	}

	var members []structure.Member
	switch kind {
	case structure.KindPrimitive, structure.KindEnum, structure.KindErrorSet:
		m, err := b.member(Member{Type: d.Type}, false)
		if err != nil {
			return nil, err
		}
		if m.Type == structure.MemberObject {
			return nil, errors.InvalidData(errors.PhaseLoad, []string{"type"}, fmt.Sprintf("%s needs a scalar type, got %q", kind, d.Type))
		}
		m.BitOffset = 0
		members = []structure.Member{m}
		desc.ByteSize, desc.Align = m.ByteSize, structure.MemberAlign(&m)

	case structure.KindArray, structure.KindSlice:
		m, err := b.member(Member{Type: d.Element}, false)
		if err != nil {
			return nil, err
		}
		m.BitOffset = 0
		members = []structure.Member{m}
		desc.ByteSize, desc.Align = m.ByteSize, structure.MemberAlign(&m)
		if kind == structure.KindArray {
			desc.ByteSize = d.Length * m.ByteSize
		}
		if len(d.Sentinel) > 0 {
			desc.Sentinel = &structure.Sentinel{Value: bytesOf(d.Sentinel)}
			desc.Flags |= structure.FlagHasSentinel
		}

	case structure.KindPointer:
		target, err := b.target(d.Target)
		if err != nil {
			return nil, err
		}
		addr := d.AddressSize
		if addr == 0 {
			addr = 4
		}
		if !desc.Flags.Has(structure.FlagMultiple) {
			desc.Flags |= structure.FlagSingle
		}
		desc.ByteSize, desc.Align = addr, addr
		if desc.Flags.Has(structure.FlagHasLength) {
			desc.ByteSize = 2 * addr
		}
		members = []structure.Member{{Type: structure.MemberObject, Structure: target, BitSize: addr * 8, ByteSize: addr}}

	case structure.KindStruct, structure.KindUnion, structure.KindOptional, structure.KindErrorUnion:
		var err error
		members, err = b.members(d.Members, packed)
		if err != nil {
			return nil, err
		}
		if kind == structure.KindOptional || kind == structure.KindErrorUnion {
			members = selectorLast(members)
		}
		desc.ByteSize, desc.Align, err = layout(kind, members, packed)
		if err != nil {
			return nil, err
		}
		if kind == structure.KindUnion && hasSelector(members) {
			desc.Flags |= structure.FlagTagged
		}
	}

	if d.Size > 0 {
		if d.Size < desc.ByteSize {
			return nil, errors.New(errors.PhaseLoad, errors.KindLengthMismatch).
				Structure(d.Name).
				Value(d.Size).
				Detail("declared size %d is smaller than the %d bytes its members need", d.Size, desc.ByteSize).
				Build()
		}
		desc.ByteSize = d.Size
	}
	if d.Align > 0 {
		desc.Align = d.Align
	}

	var tmpl *structure.Template
	if len(d.Template) > 0 {
		tmpl = &structure.Template{Bytes: bytesOf(d.Template)}
	}
	return b.end(desc, members, tmpl)
}

func (b *builder) end(desc structure.Descriptor, members []structure.Member, tmpl *structure.Template) (*structure.Structure, error) {
	s := b.env.BeginStructure(desc)
	for _, m := range members {
		if err := b.env.AttachMember(s, m); err != nil {
			return nil, err
		}
	}
	if tmpl != nil {
		if err := b.env.AttachTemplate(s, *tmpl); err != nil {
			return nil, err
		}
	}
	if err := b.env.EndStructure(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *builder) members(dms []Member, packed bool) ([]structure.Member, error) {
	out := make([]structure.Member, 0, len(dms))
	for i, dm := range dms {
		m, err := b.member(dm, packed)
		if err != nil {
			label := dm.Name
			if label == "" {
				label = fmt.Sprint(i)
			}
			return nil, errors.WithPath(err, label)
		}
		out = append(out, m)
	}
	return out, nil
}

// member converts a member declaration. Offsets, when given, are applied
// here; layout fills in the rest.
func (b *builder) member(dm Member, packed bool) (structure.Member, error) {
	m, ok := scalarMember(dm.Type)
	if ok {
		if dm.Bits > 0 {
			if m.Type == structure.MemberVoid || m.Type == structure.MemberFloat {
				return m, errors.InvalidData(errors.PhaseLoad, []string{"bits"}, dm.Type+" cannot be narrowed")
			}
			if dm.Bits > m.BitSize {
				return m, errors.InvalidData(errors.PhaseLoad, []string{"bits"}, fmt.Sprintf("%d bits do not fit %s", dm.Bits, dm.Type))
			}
			m.BitSize = dm.Bits
		}
		switch {
		case m.BitSize == 0:
		case packed:
			if m.BitSize%8 == 0 {
				m.ByteSize = m.BitSize / 8
			}
		case dm.Bits > 0 && !packed:
			// A narrowed field keeps the storage of its declared type.
			full, _ := scalarMember(dm.Type)
			m.ByteSize = byteSize(full.BitSize)
		default:
			m.ByteSize = byteSize(m.BitSize)
		}
	} else {
		if dm.Bits > 0 {
			return m, errors.InvalidData(errors.PhaseLoad, []string{"bits"}, "structure members cannot be narrowed")
		}
		s, err := b.build(dm.Type)
		if err != nil {
			return m, err
		}
		m = structure.Member{Type: structure.MemberObject, Structure: s, BitSize: s.ByteSize * 8, ByteSize: s.ByteSize}
	}

	m.Name = dm.Name
	for _, name := range dm.Flags {
		m.Flags |= memberFlags[name]
	}
	switch {
	case dm.Offset != nil:
		m.BitOffset = *dm.Offset * 8
	case dm.BitOffset != nil:
		m.BitOffset = *dm.BitOffset
	default:
		m.BitOffset = -1
	}
	return m, nil
}

func bytesOf(v []int) []byte {
	out := make([]byte, len(v))
	for i, n := range v {
		out[i] = byte(n)
	}
	return out
}
