package structure

import (
	"fmt"

	"github.com/wippyai/wasm-memview/errors"
)

// Registry is the arena holding every structure of one environment.
// It is not safe for concurrent use.
type Registry struct {
	byName     map[string]*Structure
	structures []*Structure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Structure)}
}

// Declare returns the structure registered under name, creating an empty
// placeholder when there is none yet.
func (r *Registry) Declare(name string) *Structure {
	if s, ok := r.byName[name]; ok && name != "" {
		return s
	}
	s := &Structure{Name: name, Index: len(r.structures)}
	r.structures = append(r.structures, s)
	if name != "" {
		r.byName[name] = s
	}
	return s
}

// Begin starts a structure. A placeholder created by Declare under the same
// name is filled in place so earlier references stay valid.
func (r *Registry) Begin(d Descriptor) *Structure {
	var s *Structure
	if existing, ok := r.byName[d.Name]; ok && d.Name != "" && !existing.begun {
		s = existing
	} else {
		s = &Structure{Index: len(r.structures)}
		r.structures = append(r.structures, s)
		if d.Name != "" {
			r.byName[d.Name] = s
		}
	}
	s.Name = d.Name
	s.Kind = d.Kind
	s.ByteSize = d.ByteSize
	s.Align = d.Align
	s.Length = d.Length
	s.Flags = d.Flags
	s.Sentinel = d.Sentinel
	s.Constants = append([]Constant(nil), d.Constants...)
	if s.Align <= 0 {
		s.Align = 1
	}
	s.begun = true
	return s
}

// AttachMember appends a member. Object members get the next free slot.
func (r *Registry) AttachMember(s *Structure, m Member) error {
	if s.frozen {
		return errors.Frozen(s.Name)
	}
	if m.Type == MemberObject {
		if m.Structure == nil {
			return errors.InvalidStructure(s.Name, fmt.Sprintf("object member %q has no structure", m.Name))
		}
		m.Slot = s.slotNext
		s.slotNext++
	}
	if m.ByteSize == 0 && m.BitSize > 0 && m.BitSize%8 == 0 {
		m.ByteSize = m.BitSize / 8
	}
	if m.BitSize == 0 && m.ByteSize > 0 {
		m.BitSize = m.ByteSize * 8
	}
	s.Members = append(s.Members, m)
	return nil
}

// AttachTemplate sets the seed value.
func (r *Registry) AttachTemplate(s *Structure, t Template) error {
	if s.frozen {
		return errors.Frozen(s.Name)
	}
	if len(t.Bytes) != 0 && len(t.Bytes) != s.ByteSize {
		return errors.LengthMismatch(errors.PhaseDefine, s.Name, len(t.Bytes), s.ByteSize)
	}
	s.Template = &t
	return nil
}

// End validates the structure, derives its flags and freezes it.
func (r *Registry) End(s *Structure) error {
	if s.frozen {
		return nil
	}
	if !s.begun {
		return errors.InvalidStructure(s.Name, "structure was declared but never begun")
	}
	if err := validate(s); err != nil {
		return err
	}
	for i := range s.Members {
		if s.Members[i].Type == MemberObject {
			s.Flags |= FlagHasObject | FlagHasSlot
		}
	}
	if s.Kind == KindPointer {
		s.Flags |= FlagHasPointer
	}
	s.frozen = true
	return nil
}

// Lookup finds a structure by name.
func (r *Registry) Lookup(name string) (*Structure, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// At returns the structure at arena index i.
func (r *Registry) At(i int) (*Structure, bool) {
	if i < 0 || i >= len(r.structures) {
		return nil, false
	}
	return r.structures[i], true
}

// Len returns the number of structures, placeholders included.
func (r *Registry) Len() int { return len(r.structures) }

// All returns the structures in arena order.
func (r *Registry) All() []*Structure {
	return append([]*Structure(nil), r.structures...)
}

func validate(s *Structure) error {
	invalid := func(format string, args ...any) error {
		return errors.InvalidStructure(s.Name, fmt.Sprintf(format, args...))
	}
	if s.Kind != KindSlice {
		for i := range s.Members {
			m := &s.Members[i]
			if s.Kind == KindArray {
				continue
			}
			if m.BitOffset+m.BitSize > s.ByteSize*8 {
				return invalid("member %q exceeds %d bytes", m.Label(i), s.ByteSize)
			}
		}
	}

	switch s.Kind {
	case KindPrimitive, KindEnum, KindErrorSet:
		if len(s.Members) != 1 || s.Members[0].Type == MemberObject {
			return invalid("%s needs exactly one scalar member", s.Kind)
		}
	case KindArray:
		if len(s.Members) != 1 {
			return invalid("array needs one element member")
		}
		if el := s.Members[0].ByteSize; el > 0 && s.Length*el != s.ByteSize {
			return invalid("array of %d x %d bytes declared as %d bytes", s.Length, el, s.ByteSize)
		}
	case KindSlice:
		if len(s.Members) != 1 {
			return invalid("slice needs one element member")
		}
		if s.Sentinel != nil && len(s.Sentinel.Value) != s.Members[0].ByteSize {
			return invalid("sentinel is %d bytes, element is %d", len(s.Sentinel.Value), s.Members[0].ByteSize)
		}
	case KindPointer:
		if len(s.Members) != 1 || s.Members[0].Type != MemberObject {
			return invalid("pointer needs one object member")
		}
		target := s.Members[0].Structure
		if s.Flags.Has(FlagMultiple) && target.begun && target.Kind != KindSlice {
			return invalid("multi-item pointer must target a slice structure")
		}
		if size := s.AddressSize(); size != 4 && size != 8 {
			return invalid("address size %d", size)
		}
	case KindUnion:
		if s.Flags.Has(FlagTagged) {
			if sel, _ := s.Selector(); sel == nil {
				return invalid("tagged union has no selector")
			}
		}
	case KindOptional, KindErrorUnion:
		if len(s.Members) != 2 {
			return invalid("%s needs a value and a selector member", s.Kind)
		}
		if sel, _ := s.Selector(); sel == nil {
			return invalid("%s has no selector", s.Kind)
		}
	}
	return nil
}
