package view

import (
	"encoding/binary"

	memview "github.com/wippyai/wasm-memview"
	"github.com/wippyai/wasm-memview/errors"
)

// Backing tells where a view's bytes live.
type Backing uint8

const (
	Relocatable Backing = iota
	Fixed
)

func (b Backing) String() string {
	if b == Fixed {
		return "fixed"
	}
	return "relocatable"
}

type span struct {
	off, n int
}

// View is a window over a byte range. The zero value is not usable.
type View struct {
	buf      []byte
	mem      memview.Memory
	subs     map[span]*View
	memo     map[any]any
	order    binary.ByteOrder
	addr     memview.Address
	length   int
	align    int
	backing  Backing
	writable bool
}

// Option configures a new view.
type Option func(*View)

// WithOrder sets the byte order used by byte-aligned scalar accessors.
func WithOrder(order binary.ByteOrder) Option {
	return func(v *View) {
		if order != nil {
			v.order = order
		}
	}
}

// WithAlign records the alignment the bytes were allocated with.
func WithAlign(align int) Option {
	return func(v *View) {
		if align > 0 {
			v.align = align
		}
	}
}

// New allocates zeroed relocatable storage.
func New(length int, opts ...Option) *View {
	if length < 0 {
		length = 0
	}
	return Wrap(make([]byte, length), opts...)
}

// Wrap creates a relocatable view over buf without copying.
func Wrap(buf []byte, opts ...Option) *View {
	v := &View{
		buf:      buf,
		length:   len(buf),
		align:    1,
		order:    binary.LittleEndian,
		backing:  Relocatable,
		writable: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewFixed creates a view over foreign memory at addr.
func NewFixed(mem memview.Memory, addr memview.Address, length int, writable bool, opts ...Option) *View {
	v := &View{
		mem:      mem,
		addr:     addr,
		length:   length,
		align:    addrAlign(uint64(addr)),
		order:    binary.LittleEndian,
		backing:  Fixed,
		writable: writable,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Len returns the view's byte length.
func (v *View) Len() int { return v.length }

// Align returns the alignment guaranteed for the first byte.
func (v *View) Align() int { return v.align }

// Backing returns where the bytes live.
func (v *View) Backing() Backing { return v.backing }

// IsFixed reports whether the view is backed by foreign memory.
func (v *View) IsFixed() bool { return v.backing == Fixed }

// Writable reports whether writes are permitted.
func (v *View) Writable() bool { return v.writable }

// Unseal permits writes through v and every sub-view taken from it.
func (v *View) Unseal() {
	v.writable = true
	for _, sub := range v.subs {
		sub.Unseal()
	}
}

// Order returns the byte order of scalar accessors.
func (v *View) Order() binary.ByteOrder { return v.order }

// Memory returns the foreign memory of a fixed view, nil otherwise.
func (v *View) Memory() memview.Memory { return v.mem }

// Address returns the foreign address of a fixed view.
func (v *View) Address() (memview.Address, bool) {
	if v.backing != Fixed {
		return 0, false
	}
	return v.addr, true
}

// Buffer returns the relocatable storage, nil for fixed views.
func (v *View) Buffer() []byte { return v.buf }

// Slice returns a sub-view sharing storage with v. The same range always
// yields the same *View.
func (v *View) Slice(off, n int) (*View, error) {
	if off < 0 || n < 0 || off+n > v.length {
		return nil, errors.OutOfBounds(errors.PhaseAccess, nil, off+n, v.length)
	}
	if off == 0 && n == v.length {
		return v, nil
	}
	key := span{off, n}
	if sub, ok := v.subs[key]; ok {
		return sub, nil
	}
	sub := &View{
		length:   n,
		align:    subAlign(v.align, off),
		order:    v.order,
		backing:  v.backing,
		writable: v.writable,
	}
	if v.backing == Fixed {
		sub.mem = v.mem
		sub.addr = v.addr + memview.Address(off)
	} else {
		sub.buf = v.buf[off : off+n : off+n]
	}
	if v.subs == nil {
		v.subs = make(map[span]*View)
	}
	v.subs[key] = sub
	return sub, nil
}

// ReadAt returns n bytes at off. For relocatable views the result aliases
// the storage; for fixed views it may alias foreign memory. Copy before
// retaining.
func (v *View) ReadAt(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > v.length {
		return nil, errors.OutOfBounds(errors.PhaseAccess, nil, off+n, v.length)
	}
	if v.backing == Fixed {
		return v.mem.Read(v.addr+memview.Address(off), uint64(n))
	}
	return v.buf[off : off+n], nil
}

// WriteAt stores data at off.
func (v *View) WriteAt(off int, data []byte) error {
	if off < 0 || off+len(data) > v.length {
		return errors.OutOfBounds(errors.PhaseAccess, nil, off+len(data), v.length)
	}
	if !v.writable {
		return errors.New(errors.PhaseAccess, errors.KindReadOnlyViolation).
			Detail("view at 0x%x is not writable", uint64(v.addr)).
			Build()
	}
	if v.backing == Fixed {
		return v.mem.Write(v.addr+memview.Address(off), data)
	}
	copy(v.buf[off:], data)
	return nil
}

// Bytes returns a copy of the whole range.
func (v *View) Bytes() ([]byte, error) {
	data, err := v.ReadAt(0, v.length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Fill sets every byte to b.
func (v *View) Fill(b byte) error {
	data := make([]byte, v.length)
	if b != 0 {
		for i := range data {
			data[i] = b
		}
	}
	return v.WriteAt(0, data)
}

// Copy copies src into dst byte for byte. Lengths must match.
func Copy(dst, src *View) error {
	if dst.length != src.length {
		return errors.LengthMismatch(errors.PhaseAccess, "", src.length, dst.length)
	}
	if dst == src || dst.length == 0 {
		return nil
	}
	data, err := src.Bytes()
	if err != nil {
		return err
	}
	return dst.WriteAt(0, data)
}

// Memo returns a value cached on this view.
func (v *View) Memo(key any) (any, bool) {
	val, ok := v.memo[key]
	return val, ok
}

// SetMemo caches a value on this view.
func (v *View) SetMemo(key, val any) {
	if v.memo == nil {
		v.memo = make(map[any]any)
	}
	v.memo[key] = val
}

// DeleteMemo drops a cached value.
func (v *View) DeleteMemo(key any) {
	delete(v.memo, key)
}

func addrAlign(addr uint64) int {
	if addr == 0 {
		return 16
	}
	a := 1
	for addr&1 == 0 && a < 16 {
		addr >>= 1
		a <<= 1
	}
	return a
}

func subAlign(parent, off int) int {
	if off == 0 {
		return parent
	}
	a := addrAlign(uint64(off))
	if a > parent {
		return parent
	}
	return a
}
