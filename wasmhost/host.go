package wasmhost

import (
	"bytes"
	"context"
	"encoding/binary"
	"unsafe"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/view"
)

// DefaultAllocator is the export used for guest allocations.
const DefaultAllocator = "cabi_realloc"

// Host implements object.Host over a wazero module instance. It is not safe
// for concurrent use, matching the module instance it wraps.
type Host struct {
	mem       *Memory
	alloc     memview.Allocator
	mod       api.Module
	logger    *zap.Logger
	allocName string
	memName   string
}

// Option configures a Host.
type Option func(*Host)

// WithAllocator sets the name of the cabi_realloc style export. An empty
// name disables guest allocation in favor of memory growth.
func WithAllocator(name string) Option {
	return func(h *Host) { h.allocName = name }
}

// WithMemory sets the name of the memory export.
func WithMemory(name string) Option {
	return func(h *Host) { h.memName = name }
}

// WithLogger sets the host's logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a host for mod. ctx is used for guest allocator calls.
func New(ctx context.Context, mod api.Module, opts ...Option) (*Host, error) {
	h := &Host{
		mod:       mod,
		logger:    Logger(),
		allocName: DefaultAllocator,
		memName:   "memory",
	}
	for _, opt := range opts {
		opt(h)
	}
	if mod == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "module")
	}
	mem := mod.ExportedMemory(h.memName)
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseHost, "memory export", h.memName)
	}
	h.mem = WrapMemory(mem)

	if fn := h.exportedFunction(h.allocName); fn != nil {
		h.alloc = WrapAllocator(ctx, fn)
	} else {
		h.alloc = &growAllocator{mem: mem}
	}
	h.logger.Debug("host created",
		zap.String("module", mod.Name()),
		zap.Uint64("memory", h.mem.Size()),
		zap.Bool("guest_allocator", h.GuestAllocator()))
	return h, nil
}

func (h *Host) exportedFunction(name string) api.Function {
	if name == "" {
		return nil
	}
	fn := h.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 4 || len(def.ResultTypes()) != 1 {
		h.logger.Warn("allocator export has the wrong signature",
			zap.String("name", name))
		return nil
	}
	return fn
}

var _ object.Host = (*Host)(nil)

// Memory returns the wrapped linear memory.
func (h *Host) Memory() *Memory { return h.mem }

// Module returns the wrapped module instance.
func (h *Host) Module() api.Module { return h.mod }

// GuestAllocator reports whether allocations go through a guest export.
func (h *Host) GuestAllocator() bool {
	_, ok := h.alloc.(*Allocator)
	return ok
}

// Alloc allocates size bytes of linear memory.
func (h *Host) Alloc(size, align uint64) (memview.Address, error) {
	return h.alloc.Alloc(size, align)
}

// Free releases memory obtained from Alloc.
func (h *Host) Free(addr memview.Address, size, align uint64) {
	h.alloc.Free(addr, size, align)
}

// ObtainFixedView returns a little-endian view of linear memory.
func (h *Host) ObtainFixedView(addr memview.Address, length int, writable bool) (*view.View, error) {
	if length < 0 {
		return nil, errors.InvalidData(errors.PhaseHost, nil, "negative view length")
	}
	if end := uint64(addr) + uint64(length); end < uint64(addr) || end > h.mem.Size() {
		return nil, rangeError(addr, uint64(length), h.mem.Size())
	}
	return view.NewFixed(h.mem, addr, length, writable, view.WithOrder(binary.LittleEndian)), nil
}

// RecreateAddress returns the value of the exported global named by handle.
func (h *Host) RecreateAddress(handle object.Handle) (memview.Address, error) {
	g := h.mod.ExportedGlobal(string(handle))
	if g == nil {
		return 0, errors.NotFound(errors.PhaseHost, "global export", string(handle))
	}
	switch g.Type() {
	case api.ValueTypeI32:
		return memview.Address(api.DecodeU32(g.Get())), nil
	case api.ValueTypeI64:
		return memview.Address(g.Get()), nil
	}
	return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		Path(string(handle)).
		Detail("global of type %s does not hold an address", api.ValueTypeName(g.Type())).
		Build()
}

// AllocateExternMemory allocates linear memory for linked objects.
func (h *Host) AllocateExternMemory(kind object.MemoryKind, length, align int) (memview.Address, error) {
	addr, err := h.alloc.Alloc(uint64(length), uint64(max(align, 1)))
	if err != nil {
		return 0, err
	}
	h.logger.Debug("extern memory allocated",
		zap.Int("kind", int(kind)),
		zap.Uint64("addr", uint64(addr)),
		zap.Int("length", length))
	return addr, nil
}

// FindSentinel scans elements from addr to the end of linear memory.
func (h *Host) FindSentinel(addr memview.Address, sentinel []byte, elemSize int) (int, error) {
	if elemSize <= 0 || len(sentinel) != elemSize {
		return -1, errors.InvalidData(errors.PhaseHost, nil, "sentinel does not match element size")
	}
	size := h.mem.Size()
	if uint64(addr) > size {
		return -1, rangeError(addr, 0, size)
	}
	data, err := h.mem.Read(addr, size-uint64(addr))
	if err != nil {
		return -1, err
	}
	for i, off := 0, 0; off+elemSize <= len(data); i, off = i+1, off+elemSize {
		if bytes.Equal(data[off:off+elemSize], sentinel) {
			return i, nil
		}
	}
	return -1, nil
}

// GetBufferAddress returns the linear memory address of buf when buf
// aliases linear memory, as slices returned by Memory.Read do.
func (h *Host) GetBufferAddress(buf []byte) (memview.Address, error) {
	size := h.mem.Size()
	if len(buf) > 0 && size > 0 {
		all, err := h.mem.Read(0, size)
		if err != nil {
			return 0, err
		}
		start := uintptr(unsafe.Pointer(unsafe.SliceData(all)))
		p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
		if p >= start && p+uintptr(len(buf)) <= start+uintptr(len(all)) {
			return memview.Address(p - start), nil
		}
	}
	return 0, errors.NotFound(errors.PhaseHost, "buffer", "")
}
