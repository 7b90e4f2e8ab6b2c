package object

import (
	"fmt"

	"github.com/wippyai/wasm-memview/errors"
	"github.com/wippyai/wasm-memview/internal/coerce"
	"github.com/wippyai/wasm-memview/structure"
)

// ForeignError is a value of a foreign error set.
type ForeignError struct {
	Name string
	Code int64
}

func (e *ForeignError) Error() string {
	if e.Name != "" {
		return "foreign error " + e.Name
	}
	return fmt.Sprintf("foreign error %d", e.Code)
}

func asForeign(err error, target **ForeignError) bool {
	return errors.As(err, target)
}

func asInt64(v any) int64 {
	if n, ok := coerce.Int64(v); ok {
		return n
	}
	if u, ok := coerce.Uint64(v); ok {
		return int64(u)
	}
	return 0
}

// Int returns the numeric value of a primitive, enum or error set.
func (o *Object) Int() (int64, error) {
	switch o.Kind() {
	case structure.KindPrimitive, structure.KindEnum, structure.KindErrorSet:
	default:
		return 0, errors.Unsupported(errors.PhaseAccess, o.name(), "numeric value of "+o.Kind().String())
	}
	v, err := o.st.ctor.members[0].read(o.st.view, 0)
	if err != nil {
		return 0, err
	}
	if f, ok := v.(float64); ok {
		return int64(f), nil
	}
	return asInt64(v), nil
}

func (o *Object) writeRaw(n int64) error {
	return o.st.ctor.members[0].write(o.st.view, 0, n)
}

func (o *Object) enumName() (string, error) {
	n, err := o.Int()
	if err != nil {
		return "", err
	}
	k, ok := o.st.ctor.s.ConstantOf(n)
	if !ok {
		return "", errors.InvalidEnum(errors.PhaseAccess, o.name(), n)
	}
	return k.Name, nil
}

func (o *Object) setEnum(v any) error {
	s := o.st.ctor.s
	switch x := v.(type) {
	case string:
		k, ok := s.Constant(x)
		if !ok {
			return errors.InvalidEnum(errors.PhaseAccess, s.Name, x)
		}
		return o.writeRaw(k.Value)
	case *ForeignError:
		if k, ok := s.Constant(x.Name); ok {
			return o.writeRaw(k.Value)
		}
		v = x.Code
	}
	n, ok := coerce.Int64(v)
	if !ok {
		return errors.TypeMismatch(errors.PhaseAccess, nil, s.Name, v)
	}
	if _, ok := s.ConstantOf(n); !ok {
		return errors.InvalidEnum(errors.PhaseAccess, s.Name, n)
	}
	return o.writeRaw(n)
}

func (o *Object) present() (bool, error) {
	st := o.st
	c := st.ctor
	v, err := c.members[c.selector].read(st.view, 0)
	if err != nil {
		return false, err
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return asInt64(v) != 0, nil
}

func (o *Object) setOptional(v any) error {
	st := o.st
	c := st.ctor
	sel := c.members[c.selector]
	if v == nil {
		if err := o.release(c.payload[0]); err != nil {
			return err
		}
		if err := o.zeroMember(c.payload[0]); err != nil {
			return err
		}
		return sel.write(st.view, 0, 0)
	}
	if err := o.writeMember(c.payload[0], v); err != nil {
		return err
	}
	return sel.write(st.view, 0, 1)
}

func (o *Object) zeroMember(i int) error {
	m := &o.st.ctor.s.Members[i]
	if m.BitOffset%8 == 0 && m.ByteSize > 0 {
		return o.st.view.WriteAt(m.ByteOffset(), make([]byte, m.ByteSize))
	}
	return o.st.view.SetUint(m.BitOffset, m.BitSize, 0)
}

func (o *Object) errorCode() (int64, error) {
	st := o.st
	c := st.ctor
	a := c.members[c.selector]
	if a.isObject() {
		child, err := st.memberChild(c.selector)
		if err != nil {
			return 0, err
		}
		return child.Int()
	}
	v, err := a.read(st.view, 0)
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

func (o *Object) errorSet() *structure.Structure {
	c := o.st.ctor
	return c.s.Members[c.selector].Structure
}

func (o *Object) foreignError(code int64) *ForeignError {
	fe := &ForeignError{Code: code}
	if set := o.errorSet(); set != nil {
		if k, ok := set.ConstantOf(code); ok {
			fe.Name = k.Name
		}
	}
	return fe
}

func (o *Object) writeErrorCode(code int64) error {
	st := o.st
	c := st.ctor
	a := c.members[c.selector]
	if !a.isObject() {
		return a.write(st.view, 0, code)
	}
	child, err := st.memberChild(c.selector)
	if err != nil {
		return err
	}
	return child.writeRaw(code)
}

func (o *Object) setErrorUnion(v any) error {
	c := o.st.ctor
	if err, ok := v.(error); ok {
		var fe *ForeignError
		if !asForeign(err, &fe) {
			return errors.TypeMismatch(errors.PhaseAccess, nil, c.s.Name, v)
		}
		code := fe.Code
		if set := o.errorSet(); set != nil && fe.Name != "" {
			k, ok := set.Constant(fe.Name)
			if !ok {
				return errors.InvalidEnum(errors.PhaseAccess, set.Name, fe.Name)
			}
			code = k.Value
		}
		if code == 0 {
			return errors.InvalidEnum(errors.PhaseAccess, c.s.Name, code)
		}
		if err := o.release(c.payload[0]); err != nil {
			return err
		}
		return o.writeErrorCode(code)
	}
	if err := o.writeMember(c.payload[0], v); err != nil {
		return err
	}
	return o.writeErrorCode(0)
}
