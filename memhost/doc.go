// Package memhost provides an in-process foreign memory host.
//
// A Host owns one byte arena that plays the role of a foreign module's
// address space. Address 0 is never handed out so it can serve as null.
// Allocation is a bump allocator; named variables map handles to
// addresses for object.Env.LinkVariables.
//
//	host := memhost.New(memhost.WithSize(1 << 16))
//	env := object.NewEnv(host)
//
// Host is useful for tests and for embedders whose foreign side shares the
// process heap.
package memhost
