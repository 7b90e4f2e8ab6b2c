package descriptor

import (
	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/structure"
)

// layout places members that carry no offset. Either every member gives
// an offset or none does.
func layout(kind structure.Kind, members []structure.Member, packed bool) (size, align int, err error) {
	placed := 0
	for i := range members {
		if members[i].BitOffset >= 0 {
			placed++
		}
	}
	switch {
	case placed == len(members) && placed > 0:
		size, align = explicitLayout(members, packed)
		return size, align, nil
	case placed > 0:
		return 0, 0, errors.InvalidData(errors.PhaseLoad, []string{"member"}, "either every member or none gives an offset")
	case kind == structure.KindStruct:
		size, align = structure.AutoLayout(members, packed)
		return size, align, nil
	}
	size, align = unionLayout(members)
	return size, align, nil
}

func explicitLayout(members []structure.Member, packed bool) (size, align int) {
	align = 1
	bits := 0
	for i := range members {
		m := &members[i]
		bits = max(bits, m.BitOffset+m.BitSize)
		if !packed {
			align = max(align, structure.MemberAlign(m))
		}
	}
	return structure.AlignTo((bits+7)/8, align), align
}

// unionLayout overlaps payload members at offset zero and places the
// selector, if any, after the largest of them.
func unionLayout(members []structure.Member) (size, align int) {
	align = 1
	sel := -1
	for i := range members {
		m := &members[i]
		if m.Flags.Has(structure.MemberSelector) {
			sel = i
			continue
		}
		m.BitOffset = 0
		align = max(align, structure.MemberAlign(m))
		size = max(size, m.ByteSize, (m.BitSize+7)/8)
	}
	if sel >= 0 {
		m := &members[sel]
		a := structure.MemberAlign(m)
		off := structure.AlignTo(size, a)
		m.BitOffset = off * 8
		size = off + max(m.ByteSize, (m.BitSize+7)/8)
		align = max(align, a)
	}
	return structure.AlignTo(size, align), align
}

// selectorLast moves the selector behind the value member of optionals and
// error unions.
func selectorLast(members []structure.Member) []structure.Member {
	out := make([]structure.Member, 0, len(members))
	var sel []structure.Member
	for _, m := range members {
		if m.Flags.Has(structure.MemberSelector) {
			sel = append(sel, m)
			continue
		}
		out = append(out, m)
	}
	return append(out, sel...)
}

func hasSelector(members []structure.Member) bool {
	for i := range members {
		if members[i].Flags.Has(structure.MemberSelector) {
			return true
		}
	}
	return false
}
