package object

import (
	"encoding/binary"
	"unsafe"
	"weak"

	"go.uber.org/zap"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

// Env is the environment of one foreign module on one thread: its structure
// registry, constructors, cached fixed views and linked variables.
// An Env is not safe for concurrent use.
type Env struct {
	host      Host
	registry  *structure.Registry
	ctors     map[*structure.Structure]*Constructor
	fixed     map[fixedKey]weak.Pointer[view.View]
	buffers   map[bufferKey]weak.Pointer[view.View]
	order     binary.ByteOrder
	logger    *zap.Logger
	variables []variable
}

type fixedKey struct {
	addr   memview.Address
	length int
}

type bufferKey struct {
	ptr    uintptr
	length int
}

type variable struct {
	obj    *Object
	handle Handle
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithByteOrder sets the byte order of relocatable views. Little endian
// by default.
func WithByteOrder(order binary.ByteOrder) EnvOption {
	return func(e *Env) {
		if order != nil {
			e.order = order
		}
	}
}

// WithLogger sets the environment's logger.
func WithLogger(l *zap.Logger) EnvOption {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegistry builds on an existing registry instead of a fresh one.
func WithRegistry(r *structure.Registry) EnvOption {
	return func(e *Env) {
		if r != nil {
			e.registry = r
		}
	}
}

// NewEnv creates an environment over host. A nil host restricts the
// environment to relocatable memory.
func NewEnv(host Host, opts ...EnvOption) *Env {
	e := &Env{
		host:     host,
		registry: structure.NewRegistry(),
		ctors:    make(map[*structure.Structure]*Constructor),
		fixed:    make(map[fixedKey]weak.Pointer[view.View]),
		buffers:  make(map[bufferKey]weak.Pointer[view.View]),
		order:    binary.LittleEndian,
		logger:   Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Host returns the embedding host.
func (e *Env) Host() Host { return e.host }

// Registry returns the structure registry.
func (e *Env) Registry() *structure.Registry { return e.registry }

// ByteOrder returns the byte order of relocatable views.
func (e *Env) ByteOrder() binary.ByteOrder { return e.order }

// DeclareStructure reserves a named placeholder so that structures can
// refer to each other before they are begun.
func (e *Env) DeclareStructure(name string) *structure.Structure {
	return e.registry.Declare(name)
}

// BeginStructure starts a structure from its descriptor.
func (e *Env) BeginStructure(d structure.Descriptor) *structure.Structure {
	return e.registry.Begin(d)
}

// AttachMember appends a member to an unfinished structure.
func (e *Env) AttachMember(s *structure.Structure, m structure.Member) error {
	return e.registry.AttachMember(s, m)
}

// AttachTemplate sets the seed value of an unfinished structure. Template
// slots hold *Object values.
func (e *Env) AttachTemplate(s *structure.Structure, t structure.Template) error {
	for k, v := range t.Slots {
		if _, ok := v.(*Object); !ok && v != nil {
			return errors.InvalidStructure(s.Name, "template slot "+itoa(k)+" is not an object")
		}
	}
	return e.registry.AttachTemplate(s, t)
}

// DefineStructure builds the constructor of s. Accessors are computed once
// here; child constructors are resolved on first use.
func (e *Env) DefineStructure(s *structure.Structure) (*Constructor, error) {
	if c, ok := e.ctors[s]; ok {
		return c, nil
	}
	c, err := newConstructor(e, s)
	if err != nil {
		return nil, err
	}
	e.ctors[s] = c
	e.logger.Debug("structure defined",
		zap.String("name", s.Name),
		zap.Stringer("kind", s.Kind),
		zap.Int("size", s.ByteSize),
		zap.Int("members", len(s.Members)))
	return c, nil
}

// EndStructure validates and freezes s, defining its constructor when
// DefineStructure was not called.
func (e *Env) EndStructure(s *structure.Structure) error {
	if err := e.registry.End(s); err != nil {
		return err
	}
	c, err := e.DefineStructure(s)
	if err != nil {
		return err
	}
	return c.finalize()
}

// Constructor returns the constructor of a frozen structure.
func (e *Env) Constructor(s *structure.Structure) (*Constructor, error) {
	if c, ok := e.ctors[s]; ok {
		return c, nil
	}
	if !s.Frozen() {
		return nil, errors.NotInitialized(errors.PhaseConstruct, "structure "+quote(s.Name))
	}
	c, err := e.DefineStructure(s)
	if err != nil {
		return nil, err
	}
	return c, c.finalize()
}

// Lookup returns the constructor of a named structure.
func (e *Env) Lookup(name string) (*Constructor, error) {
	s, ok := e.registry.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseConstruct, "structure", name)
	}
	return e.Constructor(s)
}

// ObtainView returns a view of foreign memory. Views are cached by range
// while they are alive, so the same range yields the same *view.View
// whatever access was asked for. A read-only view asked for again as
// writable is unsealed in place; const access is enforced by read-only
// handles rather than by the view.
func (e *Env) ObtainView(addr memview.Address, length int, writable bool) (*view.View, error) {
	if e.host == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "host")
	}
	key := fixedKey{addr: addr, length: length}
	if wp, ok := e.fixed[key]; ok {
		if v := wp.Value(); v != nil {
			if writable && !v.Writable() {
				if _, err := e.host.ObtainFixedView(addr, length, true); err != nil {
					return nil, err
				}
				v.Unseal()
			}
			return v, nil
		}
		delete(e.fixed, key)
	}
	v, err := e.host.ObtainFixedView(addr, length, writable)
	if err != nil {
		return nil, err
	}
	e.fixed[key] = weak.Make(v)
	e.logger.Debug("fixed view obtained",
		zap.Uint64("addr", uint64(addr)),
		zap.Int("length", length),
		zap.Bool("writable", writable))
	return v, nil
}

// forgetView drops v from the fixed view cache.
func (e *Env) forgetView(v *view.View) {
	addr, ok := v.Address()
	if !ok {
		return
	}
	key := fixedKey{addr: addr, length: v.Len()}
	if wp, ok := e.fixed[key]; ok && wp.Value() == v {
		delete(e.fixed, key)
	}
}

// wrapBuffer returns the relocatable view over buf, reusing the view of an
// earlier call with the same slice.
func (e *Env) wrapBuffer(buf []byte) *view.View {
	if len(buf) == 0 {
		return view.Wrap(buf, view.WithOrder(e.order))
	}
	key := bufferKey{ptr: uintptr(unsafe.Pointer(unsafe.SliceData(buf))), length: len(buf)}
	if wp, ok := e.buffers[key]; ok {
		if v := wp.Value(); v != nil {
			return v
		}
	}
	v := view.Wrap(buf, view.WithOrder(e.order))
	e.buffers[key] = weak.Make(v)
	return v
}

func (e *Env) allocate(length, align int) (*view.View, error) {
	if e.host == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "host")
	}
	addr, err := e.host.AllocateExternMemory(MemoryNormal, length, align)
	if err != nil {
		return nil, err
	}
	return e.ObtainView(addr, length, true)
}
