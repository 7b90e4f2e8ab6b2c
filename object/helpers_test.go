package object_test

import (
	"testing"

	"github.com/wippyai/wasm-memview/memhost"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

type fixture struct {
	t    *testing.T
	env  *object.Env
	host *memhost.Host
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := memhost.New()
	return &fixture{t: t, env: object.NewEnv(host), host: host}
}

func (f *fixture) define(d structure.Descriptor, members ...structure.Member) *object.Constructor {
	f.t.Helper()
	s := f.env.BeginStructure(d)
	for _, m := range members {
		if err := f.env.AttachMember(s, m); err != nil {
			f.t.Fatalf("AttachMember %s: %v", d.Name, err)
		}
	}
	ctor, err := f.env.DefineStructure(s)
	if err != nil {
		f.t.Fatalf("DefineStructure %s: %v", d.Name, err)
	}
	if err := f.env.EndStructure(s); err != nil {
		f.t.Fatalf("EndStructure %s: %v", d.Name, err)
	}
	return ctor
}

func scalar(name string, typ structure.MemberType, bits, offset int) structure.Member {
	return structure.Member{Name: name, Type: typ, BitOffset: offset * 8, BitSize: bits, ByteSize: bits / 8}
}

func objectMember(name string, s *structure.Structure, offset int) structure.Member {
	return structure.Member{Name: name, Type: structure.MemberObject, Structure: s, BitOffset: offset * 8, BitSize: s.ByteSize * 8, ByteSize: s.ByteSize}
}

func (f *fixture) primitive(name string, typ structure.MemberType, bits int) *object.Constructor {
	size := bits / 8
	return f.define(structure.Descriptor{Name: name, Kind: structure.KindPrimitive, ByteSize: size, Align: size},
		scalar("", typ, bits, 0))
}

// pair defines struct { cat: u32, dog: u32 }.
func (f *fixture) pair() *object.Constructor {
	return f.define(structure.Descriptor{Name: "Pair", Kind: structure.KindStruct, ByteSize: 8, Align: 4},
		scalar("cat", structure.MemberUint, 32, 0),
		scalar("dog", structure.MemberUint, 32, 4))
}

func (f *fixture) slice(name string, elem structure.Member, sentinel []byte) *object.Constructor {
	d := structure.Descriptor{Name: name, Kind: structure.KindSlice, ByteSize: elem.ByteSize, Align: max(elem.ByteSize, 1)}
	if sentinel != nil {
		d.Sentinel = &structure.Sentinel{Value: sentinel}
		d.Flags |= structure.FlagHasSentinel
	}
	return f.define(d, elem)
}

func (f *fixture) pointer(name string, target *structure.Structure, flags structure.Flags) *object.Constructor {
	size := 4
	if flags.Has(structure.FlagHasLength) {
		size = 8
	}
	return f.define(structure.Descriptor{Name: name, Kind: structure.KindPointer, ByteSize: size, Align: 4, Flags: flags},
		structure.Member{Type: structure.MemberObject, Structure: target, BitSize: 32, ByteSize: 4})
}

func mustNew(t *testing.T, c *object.Constructor, init any, opts ...object.Option) *object.Object {
	t.Helper()
	obj, err := c.New(init, opts...)
	if err != nil {
		t.Fatalf("New %s: %v", c.Name(), err)
	}
	return obj
}

func mustGet(t *testing.T, o *object.Object, name string) any {
	t.Helper()
	v, err := o.Get(name)
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return v
}
