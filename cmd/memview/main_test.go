package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-memview/object"
)

const types = `
[[structure]]
name = "Point"
kind = "struct"
member = [
  { name = "x", type = "i32" },
  { name = "y", type = "i32" },
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
flags = ["nullable"]
`

func openTypes(t *testing.T) *session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.toml")
	if err := os.WriteFile(path, []byte(types), 0o600); err != nil {
		t.Fatal(err)
	}
	sess, err := open(context.Background(), &options{desc: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sess.Close(context.Background()) })
	return sess
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"null", nil},
		{"true", true},
		{"-3", int64(-3)},
		{"0x10", int64(16)},
		{"18446744073709551615", uint64(18446744073709551615)},
		{"1.5", 1.5},
		{`"hi"`, "hi"},
		{"green", "green"},
	}
	for _, tt := range tests {
		if got := parseInput(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseInput(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestResolveWithoutModule(t *testing.T) {
	sess := openTypes(t)
	obj, err := sess.resolve(&options{typeName: "Point"})
	if err != nil {
		t.Fatal(err)
	}
	if !obj.IsFixed() {
		t.Error("objects without a module should live in the arena")
	}
	if _, err := sess.resolve(&options{typeName: "Nope"}); err == nil {
		t.Error("unknown structure should fail")
	}
}

func TestPrintObject(t *testing.T) {
	sess := openTypes(t)
	n, err := sess.ctors["Node"].New(map[string]any{"value": 1}, object.Fixed())
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Set("next", n); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := newPrinter(&buf, 4, false).print("Node", n); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Node (struct, 8 bytes @ 0x", "value: 1", "next: -> ?*Node", "(seen)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrintTypes(t *testing.T) {
	sess := openTypes(t)
	var buf bytes.Buffer
	printTypes(&buf, sess.ctors, false)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "?*Node") || !strings.Contains(lines[2], "size 8") {
		t.Errorf("unexpected listing:\n%s", buf.String())
	}
}
