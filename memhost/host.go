package memhost

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/object"
	"github.com/wippyai/wasm-memview/structure"
	"github.com/wippyai/wasm-memview/view"
)

const (
	defaultSize = 64 * 1024
	reserved    = 16
)

// Host is an arena-backed object.Host. It is not safe for concurrent use.
type Host struct {
	order     binary.ByteOrder
	variables map[object.Handle]memview.Address
	data      []byte
	next      uint64
}

// Option configures a Host.
type Option func(*Host)

// WithSize sets the arena size in bytes.
func WithSize(n int) Option {
	return func(h *Host) {
		if n > reserved {
			h.data = make([]byte, n)
		}
	}
}

// WithByteOrder sets the byte order of views handed out by the host.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(h *Host) {
		if order != nil {
			h.order = order
		}
	}
}

// New creates a host with a zeroed arena.
func New(opts ...Option) *Host {
	h := &Host{
		order:     binary.LittleEndian,
		variables: make(map[object.Handle]memview.Address),
		next:      reserved,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.data == nil {
		h.data = make([]byte, defaultSize)
	}
	return h
}

var (
	_ memview.Memory    = (*Host)(nil)
	_ memview.Allocator = (*Host)(nil)
	_ object.Host       = (*Host)(nil)
)

// Size returns the arena size.
func (h *Host) Size() uint64 { return uint64(len(h.data)) }

// Used returns the number of bytes handed out so far.
func (h *Host) Used() uint64 { return h.next }

func (h *Host) bounds(addr memview.Address, length uint64) error {
	end := uint64(addr) + length
	if end < uint64(addr) || end > uint64(len(h.data)) {
		return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
			Value(uint64(addr)).
			Detail("range [0x%x, 0x%x) outside %d byte arena", uint64(addr), end, len(h.data)).
			Build()
	}
	return nil
}

// Read returns a slice aliasing the arena.
func (h *Host) Read(addr memview.Address, length uint64) ([]byte, error) {
	if err := h.bounds(addr, length); err != nil {
		return nil, err
	}
	return h.data[addr : uint64(addr)+length : uint64(addr)+length], nil
}

// Write copies data into the arena.
func (h *Host) Write(addr memview.Address, data []byte) error {
	if err := h.bounds(addr, uint64(len(data))); err != nil {
		return err
	}
	copy(h.data[addr:], data)
	return nil
}

// Alloc reserves size bytes aligned to align.
func (h *Host) Alloc(size, align uint64) (memview.Address, error) {
	if align == 0 {
		align = 1
	}
	ptr := uint64(structure.AlignTo(int(h.next), int(align)))
	if ptr+size > uint64(len(h.data)) {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align),
			errors.New(errors.PhaseHost, errors.KindAllocation).
				Detail("arena exhausted: %d of %d bytes used", h.next, len(h.data)).
				Build())
	}
	h.next = ptr + size
	return memview.Address(ptr), nil
}

// Free is a no-op; the arena is released as a whole.
func (h *Host) Free(memview.Address, uint64, uint64) {}

// ObtainFixedView returns a view over the arena.
func (h *Host) ObtainFixedView(addr memview.Address, length int, writable bool) (*view.View, error) {
	if length < 0 {
		return nil, errors.InvalidData(errors.PhaseHost, nil, "negative view length")
	}
	if err := h.bounds(addr, uint64(length)); err != nil {
		return nil, err
	}
	return view.NewFixed(h, addr, length, writable, view.WithOrder(h.order)), nil
}

// DefineVariable allocates storage for a named variable.
func (h *Host) DefineVariable(handle object.Handle, size, align int) (memview.Address, error) {
	addr, err := h.Alloc(uint64(size), uint64(align))
	if err != nil {
		return 0, err
	}
	h.variables[handle] = addr
	return addr, nil
}

// SetVariable maps handle to an existing address.
func (h *Host) SetVariable(handle object.Handle, addr memview.Address) {
	h.variables[handle] = addr
}

// RecreateAddress returns the address of a named variable.
func (h *Host) RecreateAddress(handle object.Handle) (memview.Address, error) {
	addr, ok := h.variables[handle]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "variable", string(handle))
	}
	return addr, nil
}

// AllocateExternMemory allocates from the arena.
func (h *Host) AllocateExternMemory(_ object.MemoryKind, length, align int) (memview.Address, error) {
	return h.Alloc(uint64(length), uint64(max(align, 1)))
}

// FindSentinel scans elements from addr to the end of the arena.
func (h *Host) FindSentinel(addr memview.Address, sentinel []byte, elemSize int) (int, error) {
	if elemSize <= 0 || len(sentinel) != elemSize {
		return -1, errors.InvalidData(errors.PhaseHost, nil, "sentinel does not match element size")
	}
	if err := h.bounds(addr, 0); err != nil {
		return -1, err
	}
	for i, off := 0, uint64(addr); off+uint64(elemSize) <= uint64(len(h.data)); i, off = i+1, off+uint64(elemSize) {
		if bytes.Equal(h.data[off:off+uint64(elemSize)], sentinel) {
			return i, nil
		}
	}
	return -1, nil
}

// GetBufferAddress returns the arena address of buf when buf lies inside
// the arena.
func (h *Host) GetBufferAddress(buf []byte) (memview.Address, error) {
	if len(buf) > 0 && len(h.data) > 0 {
		start := uintptr(unsafe.Pointer(unsafe.SliceData(h.data)))
		p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
		if p >= start && p+uintptr(len(buf)) <= start+uintptr(len(h.data)) {
			return memview.Address(p - start), nil
		}
	}
	return 0, errors.NotFound(errors.PhaseHost, "buffer", "")
}
