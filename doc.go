// Package memview lets Go code hold live objects directly over a foreign
// module's memory: structs, unions, arrays, slices, optionals, enums and
// pointers laid out exactly as the foreign compiler emitted them.
//
// Nothing is copied into an intermediate plain-data form. An object is a
// typed window over a byte range that lives either in Go-owned storage
// ("relocatable") or at an address inside the foreign module ("fixed").
//
// # Architecture Overview
//
//	memview/          Root package with Address, Memory and Allocator interfaces
//	├── view/         Memory views: relocatable and fixed byte windows
//	├── structure/    Structure metadata registry and C ABI layout
//	├── object/       Definers, pointers, proxies, linkage and visitation
//	├── memhost/      In-process host backed by a Go byte arena
//	├── wasmhost/     Host backed by a wazero module's linear memory
//	├── witimport/    WIT types to structures (canonical ABI layout)
//	├── descriptor/   TOML structure descriptors
//	├── errors/       Structured error types
//	└── cmd/memview/  Inspector CLI
//
// # Quick Start
//
//	host := memhost.New()
//	env := object.NewEnv(host)
//
//	u32 := env.BeginStructure(structure.Descriptor{Name: "u32", Kind: structure.KindPrimitive, ByteSize: 4, Align: 4})
//	env.AttachMember(u32, structure.Member{Type: structure.MemberUint, BitSize: 32, ByteSize: 4})
//	env.DefineStructure(u32)
//	env.EndStructure(u32)
//
//	pair := env.BeginStructure(structure.Descriptor{Name: "Pair", Kind: structure.KindStruct, ByteSize: 8, Align: 4})
//	env.AttachMember(pair, structure.Member{Name: "cat", Type: structure.MemberUint, BitSize: 32, ByteSize: 4})
//	env.AttachMember(pair, structure.Member{Name: "dog", Type: structure.MemberUint, BitOffset: 32, BitSize: 32, ByteSize: 4})
//	ctor, _ := env.DefineStructure(pair)
//	env.EndStructure(pair)
//
//	obj, err := ctor.New(map[string]any{"cat": 123, "dog": 456})
//	cat, _ := obj.Get("cat") // uint64(123)
//
// # Thread Safety
//
// An object.Env and every object it produces are NOT safe for concurrent
// use. If the foreign module runs genuine OS threads, give each thread its
// own Env; only fixed memory is shared, by address.
package memview
