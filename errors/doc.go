// Package errors provides structured error types for the memview library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, structure name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccess, errors.KindNotWritable).
//		Path("header", "flags").
//		Structure("Packet").
//		Detail("member is read-only").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NullPointer("*u32")
//	err := errors.OutOfBounds(errors.PhaseAccess, path, 10, 5)
//
// Every kind has a phaseless sentinel, so callers can test the category
// without caring where it was raised:
//
//	if errors.Is(err, memerrors.ErrInactiveUnionMember) { ... }
package errors
