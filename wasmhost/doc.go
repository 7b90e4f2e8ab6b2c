// Package wasmhost hosts memview objects in the linear memory of a wazero
// module instance.
//
// # Memory
//
// Memory adapts api.Memory to memview.Memory. Reads alias linear memory
// and fail with an out_of_bounds error past the current memory size:
//
//	mem := wasmhost.WrapMemory(mod.ExportedMemory("memory"))
//
// # Allocation
//
// Allocator calls the guest's cabi_realloc export. Modules without one get
// a bump allocator that grows memory page by page:
//
//	host, err := wasmhost.New(ctx, mod)
//	env := object.NewEnv(host)
//
// # Variables
//
// RecreateAddress resolves a handle to the value of the exported global of
// the same name, so a guest's static data can be linked into an Env:
//
//	env.RegisterVariable("buffer", obj)
//	env.LinkVariables(false)
package wasmhost
