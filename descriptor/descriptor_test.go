package descriptor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
)

const sample = `
[[structure]]
name = "Point"
kind = "struct"
member = [
  { name = "x", type = "i32", flags = ["required"] },
  { name = "y", type = "i32" },
]

[[structure]]
name = "Header"
kind = "struct"
layout = "packed"
member = [
  { name = "lo", type = "u3" },
  { name = "on", type = "bool", bits = 1 },
  { name = "hi", type = "u16", bits = 12 },
]

[[structure]]
name = "Shape"
kind = "union"
member = [
  { name = "circle", type = "f32" },
  { name = "square", type = "u32" },
  { name = "tag", type = "ShapeTag", flags = ["selector"] },
]

[[structure]]
name = "ShapeTag"
kind = "enum"
type = "u8"
constant = [
  { name = "circle", value = 0 },
  { name = "square", value = 1 },
]

[[structure]]
name = "?u32"
kind = "optional"
member = [
  { name = "present", type = "bool", flags = ["selector"] },
  { name = "value", type = "u32" },
]

[[structure]]
name = "Node"
kind = "struct"
member = [
  { name = "value", type = "i32" },
  { name = "next", type = "?*Node" },
]

[[structure]]
name = "?*Node"
kind = "pointer"
target = "Node"
flags = ["single", "nullable"]

[[structure]]
name = "[4]u16"
kind = "array"
element = "u16"
length = 4

[[structure]]
name = "[:0]u8"
kind = "slice"
element = "u8"
sentinel = [0]
`

func build(t *testing.T, src string, opts ...object.EnvOption) (*object.Env, map[string]*object.Constructor) {
	t.Helper()
	f, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := object.NewEnv(nil, append(f.Options(), opts...)...)
	ctors, err := f.Build(env)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return env, ctors
}

func TestBuildLayout(t *testing.T) {
	_, ctors := build(t, sample)

	tests := []struct {
		name  string
		kind  structure.Kind
		size  int
		align int
	}{
		{"Point", structure.KindStruct, 8, 4},
		{"Header", structure.KindStruct, 2, 2},
		{"Shape", structure.KindUnion, 8, 4},
		{"ShapeTag", structure.KindEnum, 1, 1},
		{"?u32", structure.KindOptional, 8, 4},
		{"Node", structure.KindStruct, 8, 4},
		{"?*Node", structure.KindPointer, 4, 4},
		{"[4]u16", structure.KindArray, 8, 2},
		{"[:0]u8", structure.KindSlice, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ctors[tt.name]
			if !ok {
				t.Fatalf("no constructor for %s", tt.name)
			}
			s := c.Structure()
			if s.Kind != tt.kind || s.ByteSize != tt.size || s.Align != tt.align {
				t.Errorf("got %s size %d align %d, want %s size %d align %d",
					s.Kind, s.ByteSize, s.Align, tt.kind, tt.size, tt.align)
			}
		})
	}

	shape := ctors["Shape"].Structure()
	if !shape.Flags.Has(structure.FlagTagged) {
		t.Error("union with a selector should be tagged")
	}
	if sel, _ := shape.Selector(); sel == nil || sel.BitOffset != 32 {
		t.Errorf("selector = %+v, want offset 4", sel)
	}
	if el := ctors["?u32"].Structure().Element(); el.Name != "value" {
		t.Errorf("optional element = %q, want value", el.Name)
	}

	node := ctors["Node"].Structure()
	next, _ := node.Member("next")
	if next == nil || next.Structure.Element().Structure != node {
		t.Error("pointer cycle should resolve to the Node structure")
	}
	if !ctors["[:0]u8"].Structure().Flags.Has(structure.FlagHasSentinel) {
		t.Error("slice with a sentinel should be flagged")
	}
}

func TestBuildValues(t *testing.T) {
	_, ctors := build(t, sample)

	p, err := ctors["Point"].New(map[string]any{"x": 3, "y": -4})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := p.Value()
	if !reflect.DeepEqual(v, map[string]any{"x": int64(3), "y": int64(-4)}) {
		t.Errorf("Point = %v", v)
	}
	if _, err := ctors["Point"].New(map[string]any{"y": 1}); !errors.Is(err, errors.ErrMissingInitializer) {
		t.Errorf("required member: %v", err)
	}

	h, err := ctors["Header"].New(map[string]any{"lo": 5, "on": true, "hi": 0xABC})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := h.View().Bytes()
	if raw[0] != 0xcd || raw[1] != 0xab {
		t.Errorf("Header bytes = % x, want cd ab", raw)
	}

	s, err := ctors["Shape"].New(map[string]any{"square": 3})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ = s.View().Bytes()
	if raw[0] != 3 || raw[4] != 1 {
		t.Errorf("Shape bytes = % x", raw)
	}

	opt, err := ctors["?u32"].New(9)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := opt.Value(); v != uint64(9) {
		t.Errorf("optional = %v", v)
	}
}

func TestByteOrder(t *testing.T) {
	_, ctors := build(t, "byte-order = \"big\"\n"+sample)
	p, err := ctors["Point"].New(map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := p.View().Bytes()
	if want := []byte{0, 0, 0, 1, 0, 0, 0, 2}; !reflect.DeepEqual(raw, want) {
		t.Errorf("bytes = % x, want % x", raw, want)
	}
}

func TestExplicitOffsets(t *testing.T) {
	_, ctors := build(t, `
[[structure]]
name = "Sparse"
kind = "struct"
size = 16
template = [0, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
member = [
  { name = "a", type = "u16", offset = 2 },
  { name = "b", type = "u32", offset = 4 },
  { name = "c", type = "u8", bit-offset = 68, bits = 4 },
]
`)
	c := ctors["Sparse"]
	if c.Structure().ByteSize != 16 {
		t.Errorf("size = %d, want 16", c.Structure().ByteSize)
	}
	o, err := c.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := o.Get("b"); b != uint64(7) {
		t.Errorf("b = %v, want template value 7", b)
	}
	if err := o.Set("c", 0xf); err != nil {
		t.Fatal(err)
	}
	raw, _ := o.View().Bytes()
	if raw[8] != 0xf0 {
		t.Errorf("byte 8 = %#x, want 0xf0", raw[8])
	}
}

func TestBuildAgainstExistingEnv(t *testing.T) {
	env, _ := build(t, sample)
	f, err := Parse([]byte(`
[[structure]]
name = "Segment"
kind = "struct"
member = [
  { name = "from", type = "Point" },
  { name = "to", type = "Point" },
]

[[structure]]
name = "*u8"
kind = "pointer"
target = "u8"
`))
	if err != nil {
		t.Fatal(err)
	}
	ctors, err := f.Build(env)
	if err != nil {
		t.Fatal(err)
	}
	if size := ctors["Segment"].Structure().ByteSize; size != 16 {
		t.Errorf("Segment size = %d, want 16", size)
	}
	if target := ctors["*u8"].Structure().Element().Structure; target.Kind != structure.KindPrimitive || target.ByteSize != 1 {
		t.Errorf("*u8 target = %+v", target)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"malformed", `[[structure]`, errors.ErrInvalidData},
		{"empty", ``, errors.ErrInvalidData},
		{"unknown key", "[[structure]]\nname = \"A\"\nkind = \"struct\"\ncolour = 1\n", errors.ErrInvalidData},
		{"missing name", "[[structure]]\nkind = \"struct\"\n", errors.ErrInvalidData},
		{"bad kind", "[[structure]]\nname = \"A\"\nkind = \"class\"\n", errors.ErrInvalidData},
		{"duplicate", "[[structure]]\nname = \"A\"\nkind = \"opaque\"\n[[structure]]\nname = \"A\"\nkind = \"opaque\"\n", errors.ErrInvalidData},
		{"pointer without target", "[[structure]]\nname = \"*A\"\nkind = \"pointer\"\n", errors.ErrInvalidData},
		{"enum without type", "[[structure]]\nname = \"E\"\nkind = \"enum\"\n", errors.ErrInvalidData},
		{"bad member flag", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"x\", type = \"u8\", flags = [\"hidden\"] }]\n", errors.ErrInvalidData},
		{"sentinel byte range", "[[structure]]\nname = \"S\"\nkind = \"slice\"\nelement = \"u8\"\nsentinel = [256]\n", errors.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidationPath(t *testing.T) {
	_, err := Parse([]byte("[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"x\" }]\n"))
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("got %T: %v", err, err)
	}
	if got := strings.Join(e.Path, "."); got != "Structures[0].Members[0].Type" {
		t.Errorf("path = %q", got)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown type", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"x\", type = \"Nope\" }]\n", errors.ErrNotFound},
		{"unknown target", "[[structure]]\nname = \"*A\"\nkind = \"pointer\"\ntarget = \"Nope\"\n", errors.ErrNotFound},
		{"contains itself", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"a\", type = \"A\" }]\n", errors.ErrInvalidData},
		{"mixed offsets", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"a\", type = \"u8\", offset = 0 }, { name = \"b\", type = \"u8\" }]\n", errors.ErrInvalidData},
		{"size too small", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nsize = 2\nmember = [{ name = \"a\", type = \"u32\" }]\n", errors.ErrLengthMismatch},
		{"narrowed float", "[[structure]]\nname = \"A\"\nkind = \"struct\"\nmember = [{ name = \"a\", type = \"f32\", bits = 3 }]\n", errors.ErrInvalidData},
		{"template size", "[[structure]]\nname = \"A\"\nkind = \"struct\"\ntemplate = [1]\nmember = [{ name = \"a\", type = \"u16\" }]\n", errors.ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err = f.Build(object.NewEnv(nil))
			if !errors.Is(err, tt.want) {
				t.Errorf("Build = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.toml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Structures) != 9 {
		t.Errorf("loaded %d structures, want 9", len(f.Structures))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Load(missing) = %v", err)
	}
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", out)
	}
	for _, key := range []string{"byte-order", "structure"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema lacks %q", key)
		}
	}
	if !strings.Contains(string(out), "error-union") {
		t.Error("schema should enumerate kinds")
	}
}
