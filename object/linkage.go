package object

import (
	"go.uber.org/zap"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// RegisterVariable records obj as the foreign variable named by handle.
// LinkVariables places it at the address the host recreates for handle.
func (e *Env) RegisterVariable(handle Handle, obj *Object) error {
	if obj == nil {
		return errors.InvalidData(errors.PhaseLink, []string{string(handle)}, "nil object")
	}
	if obj.st.ctor.env != e {
		return errors.InvalidData(errors.PhaseLink, []string{string(handle)}, "object belongs to another environment")
	}
	obj.st.handle = handle
	for i := range e.variables {
		if e.variables[i].handle == handle {
			e.variables[i].obj = obj.st.self
			return nil
		}
	}
	e.variables = append(e.variables, variable{handle: handle, obj: obj.st.self})
	return nil
}

// Variables returns the registered variables by handle.
func (e *Env) Variables() map[Handle]*Object {
	out := make(map[Handle]*Object, len(e.variables))
	for _, v := range e.variables {
		out[v.handle] = v.obj
	}
	return out
}

// LinkVariables links every registered variable. With writeBack the
// host-side bytes are copied into foreign memory, otherwise the foreign
// bytes are adopted as they are.
func (e *Env) LinkVariables(writeBack bool) error {
	objs := make([]*Object, len(e.variables))
	for i, v := range e.variables {
		objs[i] = v.obj
	}
	return e.Link(objs, writeBack)
}

// UnlinkVariables copies every registered variable out of foreign memory
// and forgets the cached fixed views the variables lived in.
func (e *Env) UnlinkVariables() error {
	objs := make([]*Object, len(e.variables))
	for i, v := range e.variables {
		objs[i] = v.obj
	}
	fixed := make([]*view.View, 0, len(objs))
	for _, o := range objs {
		if o.IsFixed() {
			fixed = append(fixed, o.View())
		}
	}
	if err := e.Unlink(objs); err != nil {
		return err
	}
	for _, v := range fixed {
		e.forgetView(v)
	}
	return nil
}

// Link moves objs into fixed memory. Objects already in fixed memory keep
// their storage. Pointer targets still in relocatable memory are linked
// first so their addresses can be written into the pointers.
func (e *Env) Link(objs []*Object, writeBack bool) error {
	seen := make(map[*state]bool)
	for _, o := range objs {
		if o == nil {
			continue
		}
		if err := e.link(o.st, writeBack, seen); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) link(st *state, writeBack bool, seen map[*state]bool) error {
	if seen[st] {
		return nil
	}
	seen[st] = true
	s := st.ctor.s

	if !st.view.IsFixed() {
		addr, err := e.addressFor(st)
		if err != nil {
			return err
		}
		fv, err := e.ObtainView(addr, st.view.Len(), true)
		if err != nil {
			return err
		}
		if writeBack && fv != st.view {
			if err := view.Copy(fv, st.view); err != nil {
				return err
			}
		}
		if err := e.rebind(st, fv); err != nil {
			return err
		}
		e.logger.Debug("object linked",
			zap.String("structure", s.Name),
			zap.Uint64("addr", uint64(addr)),
			zap.Int("length", fv.Len()),
			zap.Bool("write_back", writeBack))
	}

	// Without write-back the foreign pointer values win; targets are
	// re-read on the next dereference.
	if !writeBack || !s.HasPointer() {
		return nil
	}
	return Visit(st.self, VisitNormal, func(p *Object, active bool) error {
		if !active {
			return nil
		}
		pst := p.st
		t := pst.target()
		if t == nil {
			return pst.writeWords(0, 0)
		}
		if !t.st.view.IsFixed() {
			if err := e.linkTarget(pst, seen); err != nil {
				return err
			}
			t = pst.target()
		}
		addr, _ := t.st.view.Address()
		count := 1
		if isMulti(pst.ctor.s) {
			count = t.Len()
		}
		return pst.writeWords(addr, count)
	})
}

// linkTarget links a pointer's target. A target narrowed by SetLength is
// rebound into the linked full target.
func (e *Env) linkTarget(pst *state, seen map[*state]bool) error {
	t := pst.target()
	full := pst.ptr.full
	if full == nil || full.st == t.st {
		return e.link(t.st, true, seen)
	}
	if err := e.link(full.st, true, seen); err != nil {
		return err
	}
	sub, err := full.st.view.Slice(0, t.st.view.Len())
	if err != nil {
		return err
	}
	if err := e.rebind(t.st, sub); err != nil {
		return err
	}
	return e.link(t.st, true, seen)
}

func (e *Env) addressFor(st *state) (memview.Address, error) {
	if e.host == nil {
		return 0, errors.NotInitialized(errors.PhaseHost, "host")
	}
	if st.handle != "" {
		return e.host.RecreateAddress(st.handle)
	}
	if buf := st.view.Buffer(); len(buf) > 0 {
		addr, err := e.host.GetBufferAddress(buf)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return 0, err
		}
	}
	align := max(st.ctor.s.Align, 1)
	return e.host.AllocateExternMemory(MemoryNormal, st.view.Len(), align)
}

// Unlink copies objs out of fixed memory into fresh relocatable storage,
// together with the fixed targets of their pointers.
func (e *Env) Unlink(objs []*Object) error {
	seen := make(map[*state]bool)
	for _, o := range objs {
		if o == nil {
			continue
		}
		if err := e.unlink(o.st, seen); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) unlink(st *state, seen map[*state]bool) error {
	if seen[st] {
		return nil
	}
	seen[st] = true
	s := st.ctor.s

	if s.HasPointer() {
		err := Visit(st.self, VisitNormal, func(p *Object, active bool) error {
			if !active {
				return nil
			}
			if err := p.update(); err != nil {
				return err
			}
			pst := p.st
			t := pst.target()
			if t == nil || !t.st.view.IsFixed() {
				return nil
			}
			full := pst.ptr.full
			if full != nil && full.st != t.st {
				if err := e.unlink(full.st, seen); err != nil {
					return err
				}
				sub, err := full.st.view.Slice(0, t.st.view.Len())
				if err != nil {
					return err
				}
				if err := e.rebind(t.st, sub); err != nil {
					return err
				}
				seen[t.st] = true
			} else if err := e.unlink(t.st, seen); err != nil {
				return err
			}
			pst.ptr.synced = false
			return nil
		})
		if err != nil {
			return err
		}
	}

	if !st.view.IsFixed() {
		return nil
	}
	old := st.view
	nv := view.New(old.Len(), view.WithAlign(s.Align), view.WithOrder(e.order))
	if err := view.Copy(nv, old); err != nil {
		return err
	}
	if err := e.rebind(st, nv); err != nil {
		return err
	}
	e.logger.Debug("object unlinked",
		zap.String("structure", s.Name),
		zap.Int("length", nv.Len()))
	return nil
}

// rebind swaps the storage of st and of every child under it. Pointer
// targets keep their own storage. When nv already carries a canonical
// object of the same structure, that object is merged into st so the range
// keeps a single instance.
func (e *Env) rebind(st *state, nv *view.View) error {
	old := st.view
	if old == nv {
		return nil
	}
	s := st.ctor.s
	if cur, ok := old.Memo(s); ok && cur == st.self {
		old.DeleteMemo(s)
	}
	if cur, ok := nv.Memo(s); ok {
		if other := cur.(*Object).st; other != st {
			st.absorb(other)
			e.logger.Debug("object merged",
				zap.String("structure", s.Name),
				zap.Int("length", nv.Len()))
		}
	}
	st.view = nv
	nv.SetMemo(s, st.self)
	if st.ptr != nil {
		st.ptr.synced = false
		return nil
	}
	if s.Kind == structure.KindSlice || s.Kind == structure.KindArray || s.Flags.Has(structure.FlagHasSlot) {
		for k, child := range st.slots {
			off, size, ok := st.slotRange(k)
			if !ok {
				continue
			}
			sub, err := nv.Slice(off, size)
			if err != nil {
				return err
			}
			if err := e.rebind(child.st, sub); err != nil {
				return errors.WithPath(err, itoa(k))
			}
		}
	}
	return nil
}

// absorb redirects the handles of other to st. Children st has not
// materialized are adopted as they are.
func (st *state) absorb(other *state) {
	other.self.st = st
	if other.frozen != nil {
		if st.frozen == nil {
			st.frozen = other.frozen
		}
		other.frozen.st = st
	}
	if st.handle == "" {
		st.handle = other.handle
	}
	if st.ptr != nil {
		return
	}
	for k, c := range other.slots {
		if _, ok := st.slots[k]; !ok {
			st.setSlot(k, c)
		}
	}
}
