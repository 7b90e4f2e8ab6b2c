package object

import (
	"fmt"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

// VisitMode selects how Visit treats the pointers it finds.
type VisitMode string

const (
	// VisitNormal reports every nested pointer; pointers under inactive
	// union members, absent optionals and failed error unions are reported
	// inactive.
	VisitNormal VisitMode = "normal"
	// VisitReset reports every materialized pointer inactive and clears its
	// target.
	VisitReset VisitMode = "reset"
)

// Visitor is called for each pointer found by Visit.
type Visitor func(ptr *Object, active bool) error

// Visit walks the object graph under root, without following pointers, and
// calls fn for every pointer it contains. root itself is reported when it
// is a pointer.
func Visit(root *Object, mode VisitMode, fn Visitor) error {
	if fn == nil {
		return errors.InvalidVisitor("callback is nil")
	}
	if mode != VisitNormal && mode != VisitReset {
		return errors.InvalidVisitor(fmt.Sprintf("unknown mode %q", mode))
	}
	if root == nil {
		return nil
	}
	w := &walker{mode: mode, fn: fn, seen: make(map[*state]bool)}
	return w.walk(root.st, true)
}

type walker struct {
	fn   Visitor
	seen map[*state]bool
	mode VisitMode
}

func (w *walker) walk(st *state, active bool) error {
	s := st.ctor.s
	if w.seen[st] || !s.HasPointer() {
		return nil
	}
	w.seen[st] = true

	if st.ptr != nil {
		if w.mode == VisitReset {
			delete(st.slots, 0)
			st.ptr.full = nil
			st.ptr.capacity = 0
			st.ptr.derefed = false
			st.ptr.synced = false
			return w.fn(st.self, false)
		}
		return w.fn(st.self, active)
	}

	obj := st.self
	switch s.Kind {
	case structure.KindArray, structure.KindSlice:
		n := obj.Len()
		for i := range n {
			if err := w.child(st, i, active, func() (*Object, error) { return st.elementChild(i) }); err != nil {
				return errors.WithPath(err, itoa(i))
			}
		}
		return nil
	}

	live := -1
	switch s.Kind {
	case structure.KindUnion:
		act, err := obj.activeIndex()
		if err != nil {
			return err
		}
		live = act
	case structure.KindOptional:
		present, err := obj.present()
		if err != nil {
			return err
		}
		if present {
			live = st.ctor.payload[0]
		}
	case structure.KindErrorUnion:
		code, err := obj.errorCode()
		if err != nil {
			return err
		}
		if code == 0 {
			live = st.ctor.payload[0]
		}
	}

	for i := range s.Members {
		m := &s.Members[i]
		if m.Type != structure.MemberObject || !m.Structure.HasPointer() {
			continue
		}
		memberActive := active
		if s.Kind != structure.KindStruct {
			memberActive = active && i == live
		}
		if !memberActive {
			if c, ok := st.slots[m.Slot]; ok {
				if err := w.walk(c.st, false); err != nil {
					return err
				}
			}
			continue
		}
		if err := w.child(st, m.Slot, true, func() (*Object, error) { return st.memberChild(i) }); err != nil {
			return errors.WithPath(err, m.Label(i))
		}
	}
	return nil
}

// child walks a child slot. Normal mode creates missing children so every
// pointer is reported; reset mode only touches children that exist.
func (w *walker) child(st *state, slot int, active bool, get func() (*Object, error)) error {
	if w.mode == VisitReset || !active {
		if c, ok := st.slots[slot]; ok {
			return w.walk(c.st, active && w.mode == VisitNormal)
		}
		return nil
	}
	c, err := get()
	if err != nil {
		return err
	}
	return w.walk(c.st, active)
}
