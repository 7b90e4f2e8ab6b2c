package object

import (
	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/view"
)

// MemoryKind tells the host what an extern allocation is used for.
type MemoryKind uint8

// MemoryNormal backs objects linked into foreign memory.
const MemoryNormal MemoryKind = 0

// Handle names a foreign variable whose address the host can recreate,
// typically an exported global.
type Handle string

// Host is the embedding environment that owns foreign memory.
//
// Errors returned by a Host are passed to callers unchanged. GetBufferAddress
// reports a buffer outside foreign memory with an error of kind not_found.
// FindSentinel returns the element index of the first sentinel at or after
// addr, or -1 when there is none.
type Host interface {
	ObtainFixedView(addr memview.Address, length int, writable bool) (*view.View, error)
	RecreateAddress(handle Handle) (memview.Address, error)
	AllocateExternMemory(kind MemoryKind, length, align int) (memview.Address, error)
	FindSentinel(addr memview.Address, sentinel []byte, elemSize int) (int, error)
	GetBufferAddress(buf []byte) (memview.Address, error)
}
