package memview

// Address is a byte address inside a foreign module's memory.
type Address uint64

// Memory represents foreign (fixed) memory addressed numerically.
// Read may return a slice aliasing the underlying storage; callers copy
// before retaining it.
type Memory interface {
	Read(addr Address, length uint64) ([]byte, error)
	Write(addr Address, data []byte) error
}

// MemorySizer provides the current size of foreign memory in bytes.
type MemorySizer interface {
	Size() uint64
}

// Allocator allocates memory inside the foreign module
type Allocator interface {
	Alloc(size, align uint64) (Address, error)
	Free(addr Address, size, align uint64)
}
