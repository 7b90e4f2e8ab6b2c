// Package coerce converts loosely typed Go values (as produced by literals,
// JSON or TOML decoding) into the scalar forms stored in foreign memory.
//
// Conversions never truncate: a value that does not fit reports ok=false
// and the caller raises an overflow or type mismatch error.
package coerce
