package witimport

import (
	"reflect"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func mustImport(t *testing.T, im *Importer, typ wit.Type) *object.Constructor {
	t.Helper()
	c, err := im.Import(typ)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return c
}

func TestImportLayout(t *testing.T) {
	im := New(object.NewEnv(nil))

	tests := []struct {
		typ   wit.Type
		name  string
		size  int
		align int
	}{
		{wit.U8{}, "u8", 1, 1},
		{wit.S64{}, "s64", 8, 8},
		{wit.Char{}, "char", 4, 4},
		{wit.String{}, "string", 8, 4},
		{named("mixed", &wit.Record{Fields: []wit.Field{
			{Name: "a", Type: wit.U8{}},
			{Name: "b", Type: wit.U32{}},
			{Name: "c", Type: wit.U8{}},
		}}), "mixed", 12, 4},
		{named("color", &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}}), "color", 1, 1},
		{named("perms", &wit.Flags{Flags: []wit.Flag{{Name: "read"}, {Name: "write"}, {Name: "exec"}}}), "perms", 1, 1},
		{&wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}}, "option<u32>", 8, 4},
		{&wit.TypeDef{Kind: &wit.Result{OK: wit.U32{}, Err: wit.String{}}}, "result<u32, string>", 12, 4},
		{&wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U16{}}}}, "tuple<u8, u16>", 4, 2},
		{&wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}, "list<u16>", 8, 4},
		{named("shape", &wit.Variant{Cases: []wit.Case{
			{Name: "circle", Type: wit.F32{}},
			{Name: "square", Type: wit.U32{}},
			{Name: "none"},
		}}), "shape", 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustImport(t, im, tt.typ).Structure()
			if s.Name != tt.name {
				t.Errorf("name = %q, want %q", s.Name, tt.name)
			}
			if s.ByteSize != tt.size || s.Align != tt.align {
				t.Errorf("size/align = %d/%d, want %d/%d", s.ByteSize, s.Align, tt.size, tt.align)
			}
		})
	}
}

func TestImportRecord(t *testing.T) {
	im := New(object.NewEnv(nil))
	person := named("person", &wit.Record{Fields: []wit.Field{
		{Name: "name", Type: wit.String{}},
		{Name: "age", Type: wit.U8{}},
	}})
	c := mustImport(t, im, person)
	if again := mustImport(t, im, person); again != c {
		t.Error("importing the same definition twice should reuse the structure")
	}

	obj, err := c.New(map[string]any{"name": "bob", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	v, err := obj.Value()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"name": []any{uint64('b'), uint64('o'), uint64('b')},
		"age":  uint64(30),
	}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Value = %v, want %v", v, want)
	}
	if _, err := c.New(map[string]any{"age": 1}); !errors.Is(err, errors.ErrMissingInitializer) {
		t.Errorf("record fields should be required, got %v", err)
	}
}

func TestImportVariant(t *testing.T) {
	im := New(object.NewEnv(nil))
	shape := mustImport(t, im, named("shape", &wit.Variant{Cases: []wit.Case{
		{Name: "circle", Type: wit.F32{}},
		{Name: "square", Type: wit.U32{}},
		{Name: "none"},
	}}))

	obj, err := shape.New(map[string]any{"square": 3})
	if err != nil {
		t.Fatal(err)
	}
	if tag, _ := obj.Get(TagName); tag != "square" {
		t.Errorf("tag = %v, want square", tag)
	}
	raw, _ := obj.View().Bytes()
	if raw[0] != 1 || raw[4] != 3 {
		t.Errorf("bytes = % x", raw)
	}
	if _, err := obj.Get("circle"); !errors.Is(err, errors.ErrInactiveUnionMember) {
		t.Errorf("Get(circle) = %v", err)
	}

	if err := obj.Assign(map[string]any{"none": nil}); err != nil {
		t.Fatal(err)
	}
	v, _ := obj.Value()
	if !reflect.DeepEqual(v, map[string]any{"none": nil}) {
		t.Errorf("Value = %v", v)
	}

	res := mustImport(t, im, &wit.TypeDef{Kind: &wit.Result{OK: wit.U32{}}})
	ok, err := res.New(map[string]any{"ok": 7})
	if err != nil {
		t.Fatal(err)
	}
	if tag, _ := ok.Get(TagName); tag != "ok" {
		t.Errorf("result tag = %v", tag)
	}
}

func TestImportFlagsAndEnum(t *testing.T) {
	im := New(object.NewEnv(nil))
	perms := mustImport(t, im, named("perms", &wit.Flags{Flags: []wit.Flag{{Name: "read"}, {Name: "write"}, {Name: "exec"}}}))
	obj, err := perms.New(map[string]any{"read": true, "exec": true})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := obj.View().Bytes()
	if raw[0] != 0b101 {
		t.Errorf("flags byte = %08b, want 00000101", raw[0])
	}

	color := mustImport(t, im, named("color", &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}, {Name: "blue"}}}))
	c, err := color.New("blue")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Int(); n != 2 {
		t.Errorf("blue = %d, want 2", n)
	}
}

func TestImportOptionAndTuple(t *testing.T) {
	im := New(object.NewEnv(nil))
	opt := mustImport(t, im, &wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}})
	some, err := opt.New(5)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := some.Value(); v != uint64(5) {
		t.Errorf("Value = %v, want 5", v)
	}

	tup := mustImport(t, im, &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U16{}}}})
	obj, err := tup.New([]any{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := obj.Value()
	if !reflect.DeepEqual(v, []any{uint64(1), uint64(2)}) {
		t.Errorf("Value = %v", v)
	}
}

func TestImportHandlesAndResources(t *testing.T) {
	im := New(object.NewEnv(nil))
	file := named("file", &wit.Resource{})
	rec := mustImport(t, im, named("open-file", &wit.Record{Fields: []wit.Field{
		{Name: "handle", Type: &wit.TypeDef{Kind: &wit.Own{Type: file}}},
	}}))
	m, _ := rec.Structure().Member("handle")
	if m == nil || m.Type != structure.MemberUint || m.BitSize != 32 {
		t.Errorf("handle member = %+v", m)
	}

	res := mustImport(t, im, file)
	if res.Structure().Kind != structure.KindOpaque {
		t.Errorf("resource kind = %s", res.Structure().Kind)
	}
	if _, err := res.New(nil); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("New(resource) = %v", err)
	}
}

func TestImportAll(t *testing.T) {
	im := New(object.NewEnv(nil))
	res := &wit.Resolve{TypeDefs: []*wit.TypeDef{
		named("point", &wit.Record{Fields: []wit.Field{{Name: "x", Type: wit.S32{}}, {Name: "y", Type: wit.S32{}}}}),
		{Kind: &wit.List{Type: wit.U8{}}},
		named("bytes", &wit.List{Type: wit.U8{}}),
	}}
	ctors, err := im.ImportAll(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(ctors) != 2 {
		t.Errorf("imported %d named types, want 2", len(ctors))
	}
	if ctors["bytes"].Structure().Kind != structure.KindPointer {
		t.Errorf("bytes kind = %s", ctors["bytes"].Structure().Kind)
	}
}
