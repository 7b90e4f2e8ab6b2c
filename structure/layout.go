package structure

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align int) int {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}

// MemberAlign returns the natural alignment of a member.
func MemberAlign(m *Member) int {
	if m.Type == MemberObject && m.Structure != nil {
		return m.Structure.Align
	}
	a := 1
	for a < m.ByteSize && a < 8 {
		a <<= 1
	}
	return a
}

// AutoLayout assigns bit offsets to members in declaration order and returns
// the total byte size and alignment. Extern layout pads each member to its
// natural alignment; packed layout places members bit after bit.
func AutoLayout(members []Member, packed bool) (size, align int) {
	if packed {
		bits := 0
		for i := range members {
			members[i].BitOffset = bits
			bits += members[i].BitSize
		}
		size = (bits + 7) / 8
		align = 1
		for align < size && align < 8 {
			align <<= 1
		}
		return AlignTo(size, align), align
	}

	align = 1
	offset := 0
	for i := range members {
		m := &members[i]
		a := MemberAlign(m)
		offset = AlignTo(offset, a)
		m.BitOffset = offset * 8
		if a > align {
			align = a
		}
		offset += m.ByteSize
	}
	return AlignTo(offset, align), align
}

// UnionLayout places every member at offset zero and returns the size of
// the largest one, rounded to the strictest alignment.
func UnionLayout(members []Member) (size, align int) {
	align = 1
	for i := range members {
		m := &members[i]
		m.BitOffset = 0
		if a := MemberAlign(m); a > align {
			align = a
		}
		if m.ByteSize > size {
			size = m.ByteSize
		}
	}
	return AlignTo(size, align), align
}
