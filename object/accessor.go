package object

import (
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/internal/coerce"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// accessor reads and writes one member. base is a bit offset added to the
// member's own, used for array and slice elements.
type accessor struct {
	m     *structure.Member
	read  func(v *view.View, base int) (any, error)
	write func(v *view.View, base int, val any) error
	label string
	index int
}

func newAccessor(s *structure.Structure, index int) *accessor {
	m := &s.Members[index]
	a := &accessor{m: m, index: index, label: m.Label(index)}
	path := []string{a.label}
	off, bits := m.BitOffset, m.BitSize

	switch m.Type {
	case structure.MemberBool:
		a.read = func(v *view.View, base int) (any, error) {
			return v.Bool(base+off, bits)
		}
		a.write = func(v *view.View, base int, val any) error {
			b, ok := coerce.Bool(val)
			if !ok {
				return errors.TypeMismatch(errors.PhaseAccess, path, s.Name, val)
			}
			return v.SetBool(base+off, bits, b)
		}
	case structure.MemberInt:
		a.read = func(v *view.View, base int) (any, error) {
			return v.Int(base+off, bits)
		}
		a.write = func(v *view.View, base int, val any) error {
			n, ok := coerce.Int64(val)
			if !ok {
				if _, big := coerce.Uint64(val); big {
					return errors.Overflow(errors.PhaseAccess, path, val, bits, true)
				}
				return errors.TypeMismatch(errors.PhaseAccess, path, s.Name, val)
			}
			if !coerce.FitsInt(n, bits) {
				return errors.Overflow(errors.PhaseAccess, path, val, bits, true)
			}
			return v.SetInt(base+off, bits, n)
		}
	case structure.MemberUint:
		a.read = func(v *view.View, base int) (any, error) {
			return v.Uint(base+off, bits)
		}
		a.write = func(v *view.View, base int, val any) error {
			n, ok := coerce.Uint64(val)
			if !ok {
				if _, signed := coerce.Int64(val); signed {
					return errors.Overflow(errors.PhaseAccess, path, val, bits, false)
				}
				return errors.TypeMismatch(errors.PhaseAccess, path, s.Name, val)
			}
			if !coerce.FitsUint(n, bits) {
				return errors.Overflow(errors.PhaseAccess, path, val, bits, false)
			}
			return v.SetUint(base+off, bits, n)
		}
	case structure.MemberFloat:
		a.read = func(v *view.View, base int) (any, error) {
			return v.Float(base+off, bits)
		}
		a.write = func(v *view.View, base int, val any) error {
			f, ok := coerce.Float64(val)
			if !ok {
				return errors.TypeMismatch(errors.PhaseAccess, path, s.Name, val)
			}
			return v.SetFloat(base+off, bits, f)
		}
	case structure.MemberVoid:
		a.read = func(*view.View, int) (any, error) { return nil, nil }
		a.write = func(*view.View, int, any) error { return nil }
	}
	return a
}

func (a *accessor) isObject() bool { return a.m.Type == structure.MemberObject }
