package object

import (
	"bytes"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// Constructor creates and casts objects of one structure.
type Constructor struct {
	env      *Env
	s        *structure.Structure
	members  []*accessor
	byName   map[string]int
	tag      *Constructor // enum naming the cases of a tagged union
	payload  []int        // union members other than the selector
	selector int
	ready    bool
}

func newConstructor(e *Env, s *structure.Structure) (*Constructor, error) {
	c := &Constructor{
		env:      e,
		s:        s,
		members:  make([]*accessor, len(s.Members)),
		byName:   make(map[string]int, len(s.Members)),
		selector: -1,
	}
	for i := range s.Members {
		a := newAccessor(s, i)
		c.members[i] = a
		c.byName[a.label] = i
		if s.Members[i].Flags.Has(structure.MemberSelector) {
			c.selector = i
		} else {
			c.payload = append(c.payload, i)
		}
	}
	return c, nil
}

// finalize resolves static properties once the structure is frozen.
func (c *Constructor) finalize() error {
	if c.ready {
		return nil
	}
	if c.selector >= 0 {
		if sel := c.s.Members[c.selector].Structure; sel != nil && len(sel.Constants) > 0 {
			tag, err := c.env.Constructor(sel)
			if err != nil {
				return err
			}
			c.tag = tag
		}
	}
	c.ready = true
	return nil
}

// Structure returns the structure this constructor builds.
func (c *Constructor) Structure() *structure.Structure { return c.s }

// Name returns the structure name.
func (c *Constructor) Name() string { return c.s.Name }

// Env returns the owning environment.
func (c *Constructor) Env() *Env { return c.env }

// Constants returns the named values of an enum or error set.
func (c *Constructor) Constants() []structure.Constant {
	return append([]structure.Constant(nil), c.s.Constants...)
}

// Tag returns the enum constructor naming the cases of a tagged union.
func (c *Constructor) Tag() *Constructor { return c.tag }

// Member returns the constructor of an object-typed member.
func (c *Constructor) Member(name string) (*Constructor, error) {
	i, ok := c.byName[name]
	if !ok || !c.members[i].isObject() {
		return nil, errors.NotFound(errors.PhaseConstruct, "object member", name)
	}
	return c.env.Constructor(c.s.Members[i].Structure)
}

// Element returns the constructor of array and slice elements, or of a
// pointer's target.
func (c *Constructor) Element() (*Constructor, error) {
	el := c.s.Element()
	if el == nil || el.Structure == nil {
		return nil, errors.NotFound(errors.PhaseConstruct, "element of", c.s.Name)
	}
	return c.env.Constructor(el.Structure)
}

func (c *Constructor) check() error {
	if !c.s.Frozen() {
		return errors.NotInitialized(errors.PhaseConstruct, "structure "+quote(c.s.Name))
	}
	switch c.s.Kind {
	case structure.KindFunction, structure.KindOpaque:
		return errors.Unsupported(errors.PhaseConstruct, c.s.Name, "instances of "+c.s.Kind.String()+" types")
	}
	return c.finalize()
}

// elemSize returns the byte size of one array or slice element.
func (c *Constructor) elemSize() int {
	if el := c.s.Element(); el != nil {
		return el.ByteSize
	}
	return 0
}

func (c *Constructor) hasSentinel() bool {
	return c.s.Kind == structure.KindSlice && c.s.Sentinel != nil
}

// New creates an object in fresh storage and initializes it from init:
// a *view.View or []byte copied byte for byte, a compatible *Object, a
// map[string]any of members, a list or string of elements, a scalar, or nil
// for the zero value or template.
func (c *Constructor) New(init any, opts ...Option) (*Object, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var cfg newOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	size, err := c.sizeFor(init)
	if err != nil {
		return nil, err
	}
	var v *view.View
	if cfg.fixed {
		v, err = c.env.allocate(size, c.s.Align)
		if err != nil {
			return nil, err
		}
	} else {
		v = view.New(size, view.WithAlign(c.s.Align), view.WithOrder(c.env.order))
	}

	obj := c.wrap(v)
	if err := obj.seed(); err != nil {
		return nil, err
	}
	if c.hasSentinel() {
		if err := v.WriteAt(size-len(c.s.Sentinel.Value), c.s.Sentinel.Value); err != nil {
			return nil, err
		}
	}
	if err := obj.initialize(init); err != nil {
		return nil, err
	}
	v.SetMemo(c.s, obj)
	return obj, nil
}

// Cast returns the canonical object over src, a *view.View, []byte or
// another object's storage. Casting the same storage twice returns the
// same object.
func (c *Constructor) Cast(src any) (*Object, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	switch s := src.(type) {
	case *view.View:
		return c.castView(s)
	case []byte:
		return c.castView(c.env.wrapBuffer(s))
	case *Object:
		obj, err := c.castView(s.st.view)
		if err != nil || !s.readOnly {
			return obj, err
		}
		return ReadOnly(obj), nil
	default:
		return nil, errors.TypeMismatch(errors.PhaseConstruct, nil, c.s.Name, src)
	}
}

func (c *Constructor) castView(v *view.View) (*Object, error) {
	if obj, ok := v.Memo(c.s); ok {
		return obj.(*Object), nil
	}
	if c.s.Kind == structure.KindSlice {
		el := c.elemSize()
		if el == 0 || v.Len()%el != 0 {
			return nil, errors.LengthMismatch(errors.PhaseConstruct, c.s.Name, v.Len(), v.Len()/max(el, 1)*el)
		}
		if c.hasSentinel() {
			if v.Len() < el {
				return nil, errors.MissingSentinel(errors.PhaseConstruct, c.s.Name)
			}
			last, err := v.ReadAt(v.Len()-el, el)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(last, c.s.Sentinel.Value) {
				return nil, errors.MissingSentinel(errors.PhaseConstruct, c.s.Name)
			}
		}
	} else if v.Len() < c.s.ByteSize {
		return nil, errors.LengthMismatch(errors.PhaseConstruct, c.s.Name, v.Len(), c.s.ByteSize)
	} else if v.Len() > c.s.ByteSize {
		sub, err := v.Slice(0, c.s.ByteSize)
		if err != nil {
			return nil, err
		}
		return c.castView(sub)
	}
	obj := c.wrap(v)
	v.SetMemo(c.s, obj)
	return obj, nil
}

// castOpen returns the canonical sentinel slice over v, a prefix of a
// terminated slice that does not include the terminator.
func (c *Constructor) castOpen(v *view.View) *Object {
	if obj, ok := v.Memo(c.s); ok {
		return obj.(*Object)
	}
	obj := c.wrap(v)
	obj.st.open = true
	v.SetMemo(c.s, obj)
	return obj
}

func (c *Constructor) wrap(v *view.View) *Object {
	st := &state{ctor: c, view: v, active: -1}
	if c.s.Kind == structure.KindPointer {
		st.ptr = &pointerState{capacity: -1}
	}
	st.self = &Object{st: st}
	return st.self
}

// sizeFor returns the byte size of a new object built from init.
func (c *Constructor) sizeFor(init any) (int, error) {
	if c.s.Kind != structure.KindSlice {
		return c.s.ByteSize, nil
	}
	el := c.elemSize()
	count := 0
	switch v := init.(type) {
	case nil:
	case int:
		if v < 0 {
			return 0, errors.InvalidSliceLength(c.s.Name, v, 0)
		}
		count = v
	case string:
		count = len(v)
	case []byte:
		return c.rawSize(len(v), v)
	case *view.View:
		data, err := v.Bytes()
		if err != nil {
			return 0, err
		}
		return c.rawSize(len(data), data)
	case *Object:
		if v.Kind() == structure.KindPointer {
			t, err := v.deref()
			if err != nil {
				return 0, err
			}
			return c.sizeFor(t)
		}
		count = v.Len()
	default:
		list, ok := listValues(init)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseConstruct, nil, c.s.Name, init)
		}
		count = len(list)
	}
	if c.hasSentinel() {
		count++
	}
	return count * el, nil
}

// rawSize sizes a slice copied from raw bytes. A sentinel slice whose bytes
// lack the terminator gets one appended.
func (c *Constructor) rawSize(n int, data []byte) (int, error) {
	el := c.elemSize()
	if el == 0 || n%el != 0 {
		return 0, errors.LengthMismatch(errors.PhaseConstruct, c.s.Name, n, n/max(el, 1)*el)
	}
	if c.hasSentinel() && (n < el || !bytes.Equal(data[n-el:], c.s.Sentinel.Value)) {
		return n + el, nil
	}
	return n, nil
}
