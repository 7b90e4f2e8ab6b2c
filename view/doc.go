// Package view provides typed windows over byte ranges.
//
// A View is backed either by Go-owned storage ("relocatable") or by an
// address inside foreign memory ("fixed"). Relocatable views can later be
// exchanged for fixed ones by the object linkage layer; the bytes move,
// the objects built on top of them do not.
//
// # Fixed Views
//
// Reads from a fixed view always go through memview.Memory, so they reflect
// the current foreign content. Nothing decoded is cached:
//
//	v := view.NewFixed(mem, 0x1000, 8, true)
//	n, _ := v.Uint(0, 32) // reads foreign memory now
//
// # Sub-views
//
// Slice returns a view sharing storage with its parent. Slicing the same
// range twice returns the same *View, which lets callers key per-view
// caches on view identity.
//
// # Scalars
//
// Accessors take bit offsets and bit sizes. Byte-aligned widths honor the
// view's byte order; bit fields are little-endian, as packed layouts are.
package view
