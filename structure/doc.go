// Package structure describes foreign types.
//
// A Structure records a type's kind, byte size, alignment, flags, ordered
// members and an optional template value. Structures are created once when
// a module loads, populated member by member, and frozen by Registry.End
// before any instance of them exists.
//
// # Cycles
//
// Types may reference each other (a list node holding a pointer to its own
// type). The Registry is an arena: Declare creates an empty placeholder that
// members of other structures can reference immediately, and Begin later
// fills the placeholder in place.
//
//	reg := structure.NewRegistry()
//	node := reg.Declare("Node")
//	ptr := reg.Begin(structure.Descriptor{Name: "*Node", Kind: structure.KindPointer, ...})
//	reg.AttachMember(ptr, structure.Member{Type: structure.MemberObject, Structure: node, ...})
//	reg.Begin(structure.Descriptor{Name: "Node", Kind: structure.KindStruct, ...}) // fills node
package structure
