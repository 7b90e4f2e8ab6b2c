package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDefine    Phase = "define"    // structure registration
	PhaseConstruct Phase = "construct" // instance construction and casting
	PhaseAccess    Phase = "access"    // member reads and writes
	PhasePointer   Phase = "pointer"   // dereference and re-targeting
	PhaseLink      Phase = "link"      // object linkage
	PhaseVisit     Phase = "visit"     // pointer visitation
	PhaseHost      Phase = "host"      // embedding host operations
	PhaseLoad      Phase = "load"      // descriptor loading
)

// Kind categorizes the error
type Kind string

const (
	KindMissingInitializer   Kind = "missing_initializer"
	KindUnknownInitializer   Kind = "unknown_initializer"
	KindAmbiguousUnion       Kind = "ambiguous_union_initializer"
	KindInvalidSliceLength   Kind = "invalid_slice_length"
	KindLengthMismatch       Kind = "length_mismatch"
	KindReadOnlyViolation    Kind = "read_only_violation"
	KindNullPointer          Kind = "null_pointer_dereference"
	KindInactiveUnionMember  Kind = "inactive_union_member"
	KindConstTargetMismatch  Kind = "const_target_mismatch"
	KindFixedMemoryRequired  Kind = "fixed_memory_target_required"
	KindInvalidVisitor       Kind = "invalid_visitor"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindNotWritable          Kind = "not_writable"
	KindTypeMismatch         Kind = "type_mismatch"
	KindOverflow             Kind = "overflow"
	KindInvalidEnum          Kind = "invalid_enum"
	KindInvalidPointerTarget Kind = "invalid_pointer_target"
	KindMissingSentinel      Kind = "missing_sentinel"
	KindMisaligned           Kind = "misaligned"
	KindNotInitialized       Kind = "not_initialized"
	KindUnsupported          Kind = "unsupported"
	KindAllocation           Kind = "allocation"
	KindNotFound             Kind = "not_found"
	KindInvalidData          Kind = "invalid_data"
	KindStructureFrozen      Kind = "structure_frozen"
	KindInvalidStructure     Kind = "invalid_structure"
)

// Sentinels for errors.Is. A sentinel has no phase, so it matches its kind
// in every phase.
var (
	ErrMissingInitializer   = &Error{Kind: KindMissingInitializer}
	ErrUnknownInitializer   = &Error{Kind: KindUnknownInitializer}
	ErrAmbiguousUnion       = &Error{Kind: KindAmbiguousUnion}
	ErrInvalidSliceLength   = &Error{Kind: KindInvalidSliceLength}
	ErrLengthMismatch       = &Error{Kind: KindLengthMismatch}
	ErrReadOnlyViolation    = &Error{Kind: KindReadOnlyViolation}
	ErrNullPointer          = &Error{Kind: KindNullPointer}
	ErrInactiveUnionMember  = &Error{Kind: KindInactiveUnionMember}
	ErrConstTargetMismatch  = &Error{Kind: KindConstTargetMismatch}
	ErrFixedMemoryRequired  = &Error{Kind: KindFixedMemoryRequired}
	ErrInvalidVisitor       = &Error{Kind: KindInvalidVisitor}
	ErrOutOfBounds          = &Error{Kind: KindOutOfBounds}
	ErrNotWritable          = &Error{Kind: KindNotWritable}
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
	ErrOverflow             = &Error{Kind: KindOverflow}
	ErrInvalidEnum          = &Error{Kind: KindInvalidEnum}
	ErrInvalidPointerTarget = &Error{Kind: KindInvalidPointerTarget}
	ErrMissingSentinel      = &Error{Kind: KindMissingSentinel}
	ErrMisaligned           = &Error{Kind: KindMisaligned}
	ErrNotInitialized       = &Error{Kind: KindNotInitialized}
	ErrUnsupported          = &Error{Kind: KindUnsupported}
	ErrAllocation           = &Error{Kind: KindAllocation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidData          = &Error{Kind: KindInvalidData}
	ErrStructureFrozen      = &Error{Kind: KindStructureFrozen}
	ErrInvalidStructure     = &Error{Kind: KindInvalidStructure}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Structure string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Structure != "" {
		b.WriteString(": ")
		b.WriteString(e.Structure)
	}

	if e.Detail != "" {
		if e.Structure != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Structure sets the structure name
func (b *Builder) Structure(name string) *Builder {
	b.err.Structure = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MissingInitializer lists every required member that was not supplied.
func MissingInitializer(structure string, names []string) *Error {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return &Error{
		Phase:     PhaseConstruct,
		Kind:      KindMissingInitializer,
		Structure: structure,
		Detail:    "missing initializers: " + strings.Join(quoted, ", "),
		Value:     names,
	}
}

// UnknownInitializer creates an unknown initializer key error
func UnknownInitializer(structure, key string) *Error {
	return &Error{
		Phase:     PhaseConstruct,
		Kind:      KindUnknownInitializer,
		Structure: structure,
		Detail:    fmt.Sprintf("unknown initializer %q", key),
		Value:     key,
	}
}

// AmbiguousUnion creates an error for a union initializer with several keys
func AmbiguousUnion(structure string, keys []string) *Error {
	return &Error{
		Phase:     PhaseConstruct,
		Kind:      KindAmbiguousUnion,
		Structure: structure,
		Detail:    fmt.Sprintf("union initializer has %d keys: %s", len(keys), strings.Join(keys, ", ")),
		Value:     keys,
	}
}

// InvalidSliceLength creates an error for a length outside [0, capacity]
func InvalidSliceLength(structure string, length, capacity int) *Error {
	return &Error{
		Phase:     PhasePointer,
		Kind:      KindInvalidSliceLength,
		Structure: structure,
		Detail:    fmt.Sprintf("length %d outside [0, %d]", length, capacity),
		Value:     length,
	}
}

// LengthMismatch creates an error for a byte or element count that does not fit
func LengthMismatch(phase Phase, structure string, got, want int) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindLengthMismatch,
		Structure: structure,
		Detail:    fmt.Sprintf("length %d does not match %d", got, want),
		Value:     got,
	}
}

// ReadOnlyViolation creates an error for a mutation through a read-only object
func ReadOnlyViolation(structure, op string) *Error {
	return &Error{
		Phase:     PhaseAccess,
		Kind:      KindReadOnlyViolation,
		Structure: structure,
		Detail:    fmt.Sprintf("%s on read-only object", op),
	}
}

// NullPointer creates a null dereference error
func NullPointer(structure string) *Error {
	return &Error{
		Phase:     PhasePointer,
		Kind:      KindNullPointer,
		Structure: structure,
		Detail:    "null pointer dereference",
	}
}

// InactiveUnionMember creates an error for reading a member that is not selected
func InactiveUnionMember(structure, member, active string) *Error {
	detail := fmt.Sprintf("member %q is not active", member)
	if active != "" {
		detail += fmt.Sprintf(" (active: %q)", active)
	}
	return &Error{
		Phase:     PhaseAccess,
		Kind:      KindInactiveUnionMember,
		Structure: structure,
		Path:      []string{member},
		Detail:    detail,
	}
}

// ConstTargetMismatch creates an error for a read-only target given to a non-const pointer
func ConstTargetMismatch(structure, target string) *Error {
	return &Error{
		Phase:     PhasePointer,
		Kind:      KindConstTargetMismatch,
		Structure: structure,
		Detail:    fmt.Sprintf("read-only %s cannot be the target of a non-const pointer", target),
	}
}

// FixedMemoryRequired creates an error for a fixed pointer given a host-owned target
func FixedMemoryRequired(structure string) *Error {
	return &Error{
		Phase:     PhasePointer,
		Kind:      KindFixedMemoryRequired,
		Structure: structure,
		Detail:    "pointer in fixed memory requires a target in fixed memory",
	}
}

// InvalidVisitor creates a visitation error
func InvalidVisitor(detail string) *Error {
	return &Error{
		Phase:  PhaseVisit,
		Kind:   KindInvalidVisitor,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NotWritable creates an error for writing a read-only or inactive member
func NotWritable(structure, member string) *Error {
	return &Error{
		Phase:     PhaseAccess,
		Kind:      KindNotWritable,
		Structure: structure,
		Path:      []string{member},
		Detail:    fmt.Sprintf("member %q is not writable", member),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, structure string, value any) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		Structure: structure,
		Detail:    fmt.Sprintf("cannot use %T", value),
		Value:     value,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, bits int, signed bool) *Error {
	prefix := "u"
	if signed {
		prefix = "i"
	}
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s%d", value, prefix, bits),
		Value:  value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, structure string, value any) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindInvalidEnum,
		Structure: structure,
		Detail:    fmt.Sprintf("invalid value %v", value),
		Value:     value,
	}
}

// InvalidPointerTarget creates an error for a value a pointer cannot point at
func InvalidPointerTarget(structure string, value any, detail string) *Error {
	return &Error{
		Phase:     PhasePointer,
		Kind:      KindInvalidPointerTarget,
		Structure: structure,
		Detail:    detail,
		Value:     value,
	}
}

// MissingSentinel creates an error for a terminator that was not found
func MissingSentinel(phase Phase, structure string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindMissingSentinel,
		Structure: structure,
		Detail:    "sentinel not found",
	}
}

// Misaligned creates an error for an address that breaks alignment
func Misaligned(phase Phase, structure string, addr uint64, align int) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindMisaligned,
		Structure: structure,
		Detail:    fmt.Sprintf("address 0x%x is not aligned to %d", addr, align),
		Value:     addr,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, structure, what string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindUnsupported,
		Structure: structure,
		Detail:    what,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint64, align int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Frozen creates an error for mutating a structure after EndStructure
func Frozen(structure string) *Error {
	return &Error{
		Phase:     PhaseDefine,
		Kind:      KindStructureFrozen,
		Structure: structure,
		Detail:    "structure is frozen",
	}
}

// InvalidStructure creates an error for inconsistent structure metadata
func InvalidStructure(structure, detail string) *Error {
	return &Error{
		Phase:     PhaseDefine,
		Kind:      KindInvalidStructure,
		Structure: structure,
		Detail:    detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath prepends path segments to err when it is an *Error, so nested
// accessors report the full member path.
func WithPath(err error, segments ...string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = append(append([]string(nil), segments...), e.Path...)
	return &cp
}
