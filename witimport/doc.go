// Package witimport defines memview structures from WIT types.
//
// Types are laid out with the component model's canonical ABI, so objects
// cast over a guest's linear memory line up with what wit-bindgen
// generated code reads and writes.
//
//	im := witimport.New(env)
//	point, err := im.Import(pointTypeDef)
//	obj, err := point.Cast(view)
//
// The mapping is:
//
//	bool, u8..u64, s8..s64, f32, f64, char  primitive (char as u32)
//	string                                   [*]u8 pointer with length
//	list<T>                                  [*]T pointer with length
//	record                                   struct
//	tuple<...>                               tuple struct
//	flags                                    packed struct of bools
//	enum                                     enum
//	variant, result<T, E>                    tagged union with an enum tag
//	option<T>                                optional
//	own<R>, borrow<R>                        u32 handle
//
// Resources themselves are opaque and cannot be instantiated.
package witimport
