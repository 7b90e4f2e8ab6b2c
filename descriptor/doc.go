// Package descriptor loads structure metadata from TOML files.
//
// A descriptor lists structures by name. Members refer to scalars by
// spelling (u8, i32, f64, bool, void, usize) and to other structures by
// name; references may point forward, and pointers may form cycles.
// Offsets are computed with C ABI rules unless every member gives one.
//
//	byte-order = "little"
//
//	[[structure]]
//	name = "Point"
//	kind = "struct"
//	member = [
//	  { name = "x", type = "i32" },
//	  { name = "y", type = "i32" },
//	]
//
//	[[structure]]
//	name = "*Point"
//	kind = "pointer"
//	target = "Point"
//	flags = ["single", "nullable"]
//
// Parse decodes and validates a file, Build defines its structures in an
// object.Env, and Schema returns the JSON Schema of the format.
package descriptor
