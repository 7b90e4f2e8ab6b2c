package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseAccess,
				Kind:      KindNotWritable,
				Path:      []string{"header", "flags"},
				Structure: "Packet",
				Detail:    "read-only member",
			},
			contains: []string{"[access]", "not_writable", "header.flags", "Packet", "read-only member"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhasePointer,
				Kind:  KindNullPointer,
			},
			contains: []string{"[pointer]", "null_pointer_dereference"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[link]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseHost,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseAccess,
		Kind:  KindReadOnlyViolation,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseAccess, Kind: KindReadOnlyViolation}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhasePointer, Kind: KindReadOnlyViolation}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseAccess, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrReadOnlyViolation) {
		t.Error("errors.Is should match the phaseless sentinel")
	}
	if errors.Is(err, ErrNotWritable) {
		t.Error("errors.Is should not match another sentinel")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrReadOnlyViolation) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if k := KindOf(nil); k != "" {
		t.Errorf("KindOf(nil) = %q", k)
	}
	if k := KindOf(errors.New("plain")); k != "" {
		t.Errorf("KindOf(plain) = %q", k)
	}
	err := fmt.Errorf("ctx: %w", NullPointer("*u8"))
	if k := KindOf(err); k != KindNullPointer {
		t.Errorf("KindOf = %q, want %q", k, KindNullPointer)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseConstruct, KindTypeMismatch).
		Path("header", "len").
		Structure("Packet").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "u32", "string").
		Build()

	if err.Phase != PhaseConstruct {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseConstruct)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "header" || err.Path[1] != "len" {
		t.Errorf("Path = %v, want [header len]", err.Path)
	}
	if err.Structure != "Packet" {
		t.Errorf("Structure = %v, want 'Packet'", err.Structure)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected u32, got string" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("MissingInitializer", func(t *testing.T) {
		err := MissingInitializer("Pair", []string{"cat", "dog"})
		if err.Kind != KindMissingInitializer {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, `"cat"`) || !strings.Contains(err.Detail, `"dog"`) {
			t.Errorf("Detail = %q, should list expected names", err.Detail)
		}
	})

	t.Run("AmbiguousUnion", func(t *testing.T) {
		err := AmbiguousUnion("U", []string{"a", "b"})
		if err.Kind != KindAmbiguousUnion {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("InvalidSliceLength", func(t *testing.T) {
		err := InvalidSliceLength("[]u8", 9, 3)
		if err.Value != 9 {
			t.Errorf("Value = %v, want 9", err.Value)
		}
		if !strings.Contains(err.Detail, "[0, 3]") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("InactiveUnionMember", func(t *testing.T) {
		err := InactiveUnionMember("U", "dog", "cat")
		if err.Kind != KindInactiveUnionMember {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Error(), `"cat"`) {
			t.Errorf("message %q should name the active member", err.Error())
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseAccess, []string{"items"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v", err.Kind)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseAccess, []string{"val"}, 300, 8, false)
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "u8") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseLink, 1024, 8, nil)
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("Misaligned", func(t *testing.T) {
		err := Misaligned(PhasePointer, "*u32", 0x1001, 4)
		if !strings.Contains(err.Detail, "0x1001") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})
}

func TestWithPath(t *testing.T) {
	base := NotWritable("Inner", "x")
	err := WithPath(base, "outer")

	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("WithPath returned %T", err)
	}
	if strings.Join(e.Path, ".") != "outer.x" {
		t.Errorf("Path = %v, want [outer x]", e.Path)
	}
	if len(base.Path) != 1 {
		t.Errorf("WithPath mutated the original: %v", base.Path)
	}

	plain := errors.New("plain")
	if WithPath(plain, "a") != plain {
		t.Error("WithPath should return non-structured errors unchanged")
	}
}
