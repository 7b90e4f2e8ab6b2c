package structure

import "strconv"

// Member is one field, element or selector of a structure.
type Member struct {
	Structure *Structure // set for MemberObject
	Name      string
	Type      MemberType
	BitOffset int
	BitSize   int
	ByteSize  int
	Slot      int
	Flags     MemberFlags
}

// ByteOffset returns the member's offset in whole bytes.
func (m *Member) ByteOffset() int { return m.BitOffset / 8 }

// Label returns the member's name, or its index for unnamed members.
func (m *Member) Label(index int) string {
	if m.Name != "" {
		return m.Name
	}
	return strconv.Itoa(index)
}

// Constant is a named value of an enum or error set.
type Constant struct {
	Name  string
	Value int64
}

// Sentinel is the terminating element of a slice.
type Sentinel struct {
	Value []byte
}

// Template seeds new instances: bytes are copied, slots are child objects
// shared by reference.
type Template struct {
	Slots map[int]any
	Bytes []byte
}

// Descriptor carries the scalar metadata passed to Registry.Begin.
type Descriptor struct {
	Sentinel  *Sentinel
	Name      string
	Constants []Constant
	Kind      Kind
	ByteSize  int
	Align     int
	Length    int
	Flags     Flags
}

// Structure describes one foreign type.
type Structure struct {
	Template  *Template
	Sentinel  *Sentinel
	Name      string
	Members   []Member
	Constants []Constant
	Kind      Kind
	ByteSize  int
	Align     int
	Length    int // element count of arrays
	Index     int // position in the registry arena
	Flags     Flags

	frozen   bool
	begun    bool
	hasPtr   int8 // 0 unknown, 1 yes, -1 no
	slotNext int
}

// Frozen reports whether Registry.End has run.
func (s *Structure) Frozen() bool { return s.frozen }

// Member looks a member up by label.
func (s *Structure) Member(name string) (*Member, int) {
	for i := range s.Members {
		if s.Members[i].Label(i) == name {
			return &s.Members[i], i
		}
	}
	return nil, -1
}

// Selector returns the member that tracks the active state of unions,
// optionals and error unions.
func (s *Structure) Selector() (*Member, int) {
	for i := range s.Members {
		if s.Members[i].Flags.Has(MemberSelector) {
			return &s.Members[i], i
		}
	}
	return nil, -1
}

// Element returns the first member: the element of arrays and slices, the
// target of pointers, the payload of optionals and error unions.
func (s *Structure) Element() *Member {
	if len(s.Members) == 0 {
		return nil
	}
	return &s.Members[0]
}

// Constant finds a named constant.
func (s *Structure) Constant(name string) (Constant, bool) {
	for _, c := range s.Constants {
		if c.Name == name {
			return c, true
		}
	}
	return Constant{}, false
}

// ConstantOf finds the constant with the given value.
func (s *Structure) ConstantOf(value int64) (Constant, bool) {
	for _, c := range s.Constants {
		if c.Value == value {
			return c, true
		}
	}
	return Constant{}, false
}

// AddressSize returns the byte width of one address word of a pointer.
func (s *Structure) AddressSize() int {
	if s.Flags.Has(FlagHasLength) {
		return s.ByteSize / 2
	}
	return s.ByteSize
}

// HasPointer reports whether instances can contain pointers, directly or
// through nested members.
func (s *Structure) HasPointer() bool {
	if s.hasPtr != 0 {
		return s.hasPtr > 0
	}
	found, complete := s.scanPointers(map[*Structure]bool{})
	if complete {
		s.hasPtr = -1
		if found {
			s.hasPtr = 1
		}
	}
	return found
}

func (s *Structure) scanPointers(seen map[*Structure]bool) (found, complete bool) {
	if s.Kind == KindPointer || s.Flags.Has(FlagHasPointer) {
		return true, true
	}
	if seen[s] {
		return false, true
	}
	seen[s] = true
	complete = s.frozen
	for i := range s.Members {
		child := s.Members[i].Structure
		if child == nil {
			continue
		}
		f, c := child.scanPointers(seen)
		if f {
			return true, true
		}
		complete = complete && c
	}
	return false, complete
}
