package wasmhost

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

const pageSize = 65536

// WrapMemory wraps a wazero api.Memory to implement memview.Memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

// WrapAllocator wraps a cabi_realloc style export to implement
// memview.Allocator.
func WrapAllocator(ctx context.Context, fn api.Function) *Allocator {
	if fn == nil {
		return nil
	}
	return &Allocator{Ctx: ctx, Fn: fn}
}

// Memory adapts wazero api.Memory to memview.Memory.
type Memory struct {
	Mem api.Memory
}

var (
	_ memview.Memory      = (*Memory)(nil)
	_ memview.MemorySizer = (*Memory)(nil)
	_ memview.Allocator   = (*Allocator)(nil)
)

func rangeError(addr memview.Address, length, size uint64) error {
	return errors.New(errors.PhaseHost, errors.KindOutOfBounds).
		Value(uint64(addr)).
		Detail("range [0x%x, 0x%x) outside %d byte linear memory", uint64(addr), uint64(addr)+length, size).
		Build()
}

func narrow(addr memview.Address, length uint64) (uint32, uint32, bool) {
	if uint64(addr) > math.MaxUint32 || length > math.MaxUint32 {
		return 0, 0, false
	}
	return uint32(addr), uint32(length), true
}

// Read returns a slice aliasing linear memory. It is invalidated when the
// memory grows.
func (m *Memory) Read(addr memview.Address, length uint64) ([]byte, error) {
	off, n, ok := narrow(addr, length)
	if !ok {
		return nil, rangeError(addr, length, m.Size())
	}
	data, ok := m.Mem.Read(off, n)
	if !ok {
		return nil, rangeError(addr, length, m.Size())
	}
	return data, nil
}

// Write copies data into linear memory.
func (m *Memory) Write(addr memview.Address, data []byte) error {
	off, _, ok := narrow(addr, uint64(len(data)))
	if !ok || !m.Mem.Write(off, data) {
		return rangeError(addr, uint64(len(data)), m.Size())
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint64 { return uint64(m.Mem.Size()) }

// Allocator adapts wazero api.Function (cabi_realloc) to memview.Allocator.
type Allocator struct {
	Ctx context.Context
	Fn  api.Function
}

// Alloc allocates memory using cabi_realloc.
func (a *Allocator) Alloc(size, align uint64) (memview.Address, error) {
	results, err := a.Fn.Call(a.Ctx, 0, 0, align, size)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align), err)
	}
	if len(results) == 0 {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align),
			errors.InvalidData(errors.PhaseHost, nil, "allocator returned no result"))
	}
	ptr := api.DecodeU32(results[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align),
			errors.InvalidData(errors.PhaseHost, nil, "allocator returned null"))
	}
	return memview.Address(ptr), nil
}

// Free deallocates memory using cabi_realloc.
func (a *Allocator) Free(addr memview.Address, size, align uint64) {
	if _, err := a.Fn.Call(a.Ctx, uint64(addr), size, align, 0); err != nil {
		Logger().Warn("free failed",
			zap.Uint64("addr", uint64(addr)),
			zap.Uint64("size", size),
			zap.Error(err))
	}
}

// growAllocator hands out memory past the module's initial data by
// growing linear memory.
type growAllocator struct {
	mem  api.Memory
	next uint64
}

func (g *growAllocator) Alloc(size, align uint64) (memview.Address, error) {
	if align == 0 {
		align = 1
	}
	if g.next == 0 {
		g.next = uint64(g.mem.Size())
	}
	ptr := uint64(structure.AlignTo(int(g.next), int(align)))
	end := ptr + size
	if cur := uint64(g.mem.Size()); end > cur {
		pages := (end - cur + pageSize - 1) / pageSize
		if pages > math.MaxUint32 {
			return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align), nil)
		}
		if _, ok := g.mem.Grow(uint32(pages)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseHost, size, int(align),
				errors.New(errors.PhaseHost, errors.KindAllocation).
					Detail("memory.grow by %d pages refused", pages).
					Build())
		}
	}
	g.next = end
	return memview.Address(ptr), nil
}

func (g *growAllocator) Free(memview.Address, uint64, uint64) {}
