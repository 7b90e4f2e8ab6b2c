package witimport

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

// TagName is the selector member of variants and results. WIT identifiers
// cannot contain '$'.
const TagName = "$tag"

// Importer converts WIT types into structures of one Env. Each type
// definition is imported once; anonymous types with the same spelling
// share a structure.
type Importer struct {
	env  *object.Env
	defs map[*wit.TypeDef]*structure.Structure
}

// New creates an importer defining structures in env.
func New(env *object.Env) *Importer {
	return &Importer{env: env, defs: make(map[*wit.TypeDef]*structure.Structure)}
}

// Import returns the constructor of t, defining structures as needed.
func (im *Importer) Import(t wit.Type) (*object.Constructor, error) {
	s, err := im.structure(t)
	if err != nil {
		return nil, err
	}
	return im.env.Constructor(s)
}

// ImportAll imports every named type definition of res.
func (im *Importer) ImportAll(res *wit.Resolve) (map[string]*object.Constructor, error) {
	out := make(map[string]*object.Constructor)
	for _, td := range res.TypeDefs {
		if td.Name == nil {
			continue
		}
		c, err := im.Import(td)
		if err != nil {
			return nil, errors.WithPath(err, *td.Name)
		}
		out[*td.Name] = c
	}
	return out, nil
}

func (im *Importer) define(d structure.Descriptor, members ...structure.Member) (*structure.Structure, error) {
	s := im.env.BeginStructure(d)
	for _, m := range members {
		if err := im.env.AttachMember(s, m); err != nil {
			return nil, err
		}
	}
	if err := im.env.EndStructure(s); err != nil {
		return nil, err
	}
	return s, nil
}

// shared returns the frozen structure registered under name or builds it.
func (im *Importer) shared(name string, build func() (*structure.Structure, error)) (*structure.Structure, error) {
	if s, ok := im.env.Registry().Lookup(name); ok && s.Frozen() {
		return s, nil
	}
	return build()
}

func (im *Importer) structure(t wit.Type) (*structure.Structure, error) {
	if p, ok := primitive(t); ok {
		return im.primitive(p.name, p)
	}
	switch x := t.(type) {
	case wit.String:
		return im.list("string", wit.U8{})
	case *wit.TypeDef:
		return im.typeDef(x)
	}
	return nil, errors.Unsupported(errors.PhaseLoad, typeName(t), "WIT type")
}

func (im *Importer) primitive(name string, p scalar) (*structure.Structure, error) {
	return im.shared(name, func() (*structure.Structure, error) {
		size := p.bits / 8
		return im.define(structure.Descriptor{Name: name, Kind: structure.KindPrimitive, ByteSize: size, Align: size},
			p.member(""))
	})
}

func (im *Importer) typeDef(td *wit.TypeDef) (*structure.Structure, error) {
	if s, ok := im.defs[td]; ok {
		return s, nil
	}
	name := typeName(td)
	if td.Name == nil && name != "" {
		if s, ok := im.env.Registry().Lookup(name); ok && s.Frozen() {
			im.defs[td] = s
			return s, nil
		}
	}

	var s *structure.Structure
	var err error
	switch k := td.Kind.(type) {
	case *wit.Record:
		s, err = im.record(name, k)
	case *wit.Tuple:
		s, err = im.tuple(name, k)
	case *wit.Flags:
		s, err = im.flags(name, k)
	case *wit.Enum:
		names := make([]string, len(k.Cases))
		for i, c := range k.Cases {
			names[i] = c.Name
		}
		s, err = im.enum(name, names)
	case *wit.Variant:
		cases := make([]variantCase, len(k.Cases))
		for i, c := range k.Cases {
			cases[i] = variantCase{name: c.Name, typ: c.Type}
		}
		s, err = im.variant(name, cases)
	case *wit.Result:
		s, err = im.variant(name, []variantCase{{name: "ok", typ: k.OK}, {name: "err", typ: k.Err}})
	case *wit.Option:
		s, err = im.option(name, k.Type)
	case *wit.List:
		s, err = im.list(name, k.Type)
	case *wit.Own, *wit.Borrow:
		s, err = im.primitive(name, scalar{name, 32, structure.MemberUint})
	case *wit.Resource:
		s, err = im.define(structure.Descriptor{Name: name, Kind: structure.KindOpaque})
	case wit.Type:
		s, err = im.structure(k)
	default:
		err = errors.Unsupported(errors.PhaseLoad, name, "WIT type definition")
	}
	if err != nil {
		return nil, errors.WithPath(err, name)
	}
	im.defs[td] = s
	return s, nil
}

// member returns the member holding a value of t. Primitives, and aliases
// and handles that resolve to them, are stored inline as scalars.
func (im *Importer) member(name string, t wit.Type) (structure.Member, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		switch k := td.Kind.(type) {
		case *wit.Own, *wit.Borrow:
			return scalar{"", 32, structure.MemberUint}.member(name), nil
		case wit.Type:
			return im.member(name, k)
		}
	}
	if p, ok := primitive(t); ok {
		return p.member(name), nil
	}
	s, err := im.structure(t)
	if err != nil {
		return structure.Member{}, err
	}
	return structure.Member{
		Name:      name,
		Type:      structure.MemberObject,
		Structure: s,
		BitSize:   s.ByteSize * 8,
		ByteSize:  s.ByteSize,
	}, nil
}

func (im *Importer) record(name string, r *wit.Record) (*structure.Structure, error) {
	members := make([]structure.Member, len(r.Fields))
	for i, f := range r.Fields {
		m, err := im.member(f.Name, f.Type)
		if err != nil {
			return nil, errors.WithPath(err, f.Name)
		}
		m.Flags |= structure.MemberRequired
		members[i] = m
	}
	size, align := structure.AutoLayout(members, false)
	return im.define(structure.Descriptor{Name: name, Kind: structure.KindStruct, ByteSize: size, Align: align}, members...)
}

func (im *Importer) tuple(name string, t *wit.Tuple) (*structure.Structure, error) {
	members := make([]structure.Member, len(t.Types))
	for i, typ := range t.Types {
		m, err := im.member("", typ)
		if err != nil {
			return nil, err
		}
		m.Flags |= structure.MemberRequired
		members[i] = m
	}
	size, align := structure.AutoLayout(members, false)
	return im.define(structure.Descriptor{
		Name: name, Kind: structure.KindStruct, ByteSize: size, Align: align, Flags: structure.FlagTuple,
	}, members...)
}

func (im *Importer) flags(name string, f *wit.Flags) (*structure.Structure, error) {
	members := make([]structure.Member, len(f.Flags))
	for i, fl := range f.Flags {
		members[i] = structure.Member{Name: fl.Name, Type: structure.MemberBool, BitOffset: i, BitSize: 1}
	}
	size := flagsSize(len(f.Flags))
	return im.define(structure.Descriptor{
		Name: name, Kind: structure.KindStruct, ByteSize: size, Align: max(min(size, 4), 1), Flags: structure.FlagPacked,
	}, members...)
}

func (im *Importer) enum(name string, cases []string) (*structure.Structure, error) {
	size := discriminantSize(len(cases))
	consts := make([]structure.Constant, len(cases))
	for i, c := range cases {
		consts[i] = structure.Constant{Name: c, Value: int64(i)}
	}
	return im.define(structure.Descriptor{
		Name: name, Kind: structure.KindEnum, ByteSize: size, Align: size, Constants: consts,
	}, structure.Member{Type: structure.MemberUint, BitSize: size * 8})
}

type variantCase struct {
	typ  wit.Type
	name string
}

func (im *Importer) variant(name string, cases []variantCase) (*structure.Structure, error) {
	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.name
	}
	tag, err := im.enum(name+"."+TagName, names)
	if err != nil {
		return nil, err
	}

	members := make([]structure.Member, 0, len(cases)+1)
	align, payload := tag.ByteSize, 0
	for _, c := range cases {
		if c.typ == nil {
			members = append(members, structure.Member{Name: c.name, Type: structure.MemberVoid})
			continue
		}
		m, err := im.member(c.name, c.typ)
		if err != nil {
			return nil, errors.WithPath(err, c.name)
		}
		align = max(align, structure.MemberAlign(&m))
		payload = max(payload, m.ByteSize)
		members = append(members, m)
	}
	off := structure.AlignTo(tag.ByteSize, align)
	for i := range members {
		members[i].BitOffset = off * 8
	}
	members = append(members, structure.Member{
		Name:      TagName,
		Type:      structure.MemberObject,
		Structure: tag,
		BitSize:   tag.ByteSize * 8,
		ByteSize:  tag.ByteSize,
		Flags:     structure.MemberSelector,
	})
	return im.define(structure.Descriptor{
		Name:     name,
		Kind:     structure.KindUnion,
		ByteSize: structure.AlignTo(off+payload, align),
		Align:    align,
		Flags:    structure.FlagTagged,
	}, members...)
}

func (im *Importer) option(name string, t wit.Type) (*structure.Structure, error) {
	m, err := im.member("value", t)
	if err != nil {
		return nil, err
	}
	align := max(structure.MemberAlign(&m), 1)
	off := structure.AlignTo(1, align)
	m.BitOffset = off * 8
	return im.define(structure.Descriptor{
		Name: name, Kind: structure.KindOptional, ByteSize: structure.AlignTo(off+m.ByteSize, align), Align: align,
	}, m, structure.Member{Name: "present", Type: structure.MemberBool, BitSize: 8, Flags: structure.MemberSelector})
}

// list defines name as a pointer with length to a slice of elem, the
// canonical (ptr, len) pair.
func (im *Importer) list(name string, elem wit.Type) (*structure.Structure, error) {
	return im.shared(name, func() (*structure.Structure, error) {
		m, err := im.member("", elem)
		if err != nil {
			return nil, err
		}
		sliceName := "[]" + typeName(elem)
		sl, err := im.shared(sliceName, func() (*structure.Structure, error) {
			return im.define(structure.Descriptor{
				Name: sliceName, Kind: structure.KindSlice, ByteSize: m.ByteSize, Align: max(structure.MemberAlign(&m), 1),
			}, m)
		})
		if err != nil {
			return nil, err
		}
		return im.define(structure.Descriptor{
			Name:     name,
			Kind:     structure.KindPointer,
			ByteSize: 8,
			Align:    4,
			Flags:    structure.FlagMultiple | structure.FlagHasLength | structure.FlagNullable,
		}, structure.Member{Type: structure.MemberObject, Structure: sl, BitSize: 32, ByteSize: 4})
	})
}

func typeName(t wit.Type) string {
	if p, ok := primitive(t); ok {
		return p.name
	}
	switch x := t.(type) {
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if x.Name != nil {
			return *x.Name
		}
		switch k := x.Kind.(type) {
		case *wit.List:
			return "list<" + typeName(k.Type) + ">"
		case *wit.Option:
			return "option<" + typeName(k.Type) + ">"
		case *wit.Result:
			return "result<" + optionalName(k.OK) + ", " + optionalName(k.Err) + ">"
		case *wit.Tuple:
			names := make([]string, len(k.Types))
			for i, typ := range k.Types {
				names[i] = typeName(typ)
			}
			return "tuple<" + strings.Join(names, ", ") + ">"
		case *wit.Own:
			return "own<" + typeName(k.Type) + ">"
		case *wit.Borrow:
			return "borrow<" + typeName(k.Type) + ">"
		case wit.Type:
			return typeName(k)
		}
	}
	return ""
}

func optionalName(t wit.Type) string {
	if t == nil {
		return "_"
	}
	return typeName(t)
}
