package view

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/wasm-memview/errors"
)

// Uint reads an unsigned integer of bits width starting at bitOff.
func (v *View) Uint(bitOff, bits int) (uint64, error) {
	if bits <= 0 {
		return 0, nil
	}
	if bits > 64 {
		return 0, errors.Unsupported(errors.PhaseAccess, "", "integers wider than 64 bits")
	}
	start, end := bitOff/8, (bitOff+bits+7)/8
	data, err := v.ReadAt(start, end-start)
	if err != nil {
		return 0, err
	}
	if bitOff%8 == 0 && bits%8 == 0 {
		return decodeBytes(data, v.order), nil
	}
	return extractBits(data, bitOff%8, bits), nil
}

// SetUint writes the low bits of val starting at bitOff.
func (v *View) SetUint(bitOff, bits int, val uint64) error {
	if bits <= 0 {
		return nil
	}
	if bits > 64 {
		return errors.Unsupported(errors.PhaseAccess, "", "integers wider than 64 bits")
	}
	start, end := bitOff/8, (bitOff+bits+7)/8
	if bitOff%8 == 0 && bits%8 == 0 {
		buf := make([]byte, end-start)
		encodeBytes(buf, val, v.order)
		return v.WriteAt(start, buf)
	}
	cur, err := v.ReadAt(start, end-start)
	if err != nil {
		return err
	}
	buf := make([]byte, len(cur))
	copy(buf, cur)
	insertBits(buf, bitOff%8, bits, val)
	return v.WriteAt(start, buf)
}

// Int reads a two's complement integer.
func (v *View) Int(bitOff, bits int) (int64, error) {
	if bits <= 0 {
		return 0, nil
	}
	u, err := v.Uint(bitOff, bits)
	if err != nil {
		return 0, err
	}
	if bits < 64 && u&(1<<uint(bits-1)) != 0 {
		u |= ^uint64(0) << uint(bits)
	}
	return int64(u), nil
}

// SetInt writes a two's complement integer.
func (v *View) SetInt(bitOff, bits int, val int64) error {
	u := uint64(val)
	if bits < 64 {
		u &= 1<<uint(bits) - 1
	}
	return v.SetUint(bitOff, bits, u)
}

// Float reads an IEEE 754 value of 32 or 64 bits.
func (v *View) Float(bitOff, bits int) (float64, error) {
	u, err := v.Uint(bitOff, bits)
	if err != nil {
		return 0, err
	}
	switch bits {
	case 32:
		return float64(math.Float32frombits(uint32(u))), nil
	case 64:
		return math.Float64frombits(u), nil
	}
	return 0, errors.Unsupported(errors.PhaseAccess, "", "float width")
}

// SetFloat writes an IEEE 754 value of 32 or 64 bits.
func (v *View) SetFloat(bitOff, bits int, val float64) error {
	switch bits {
	case 32:
		return v.SetUint(bitOff, bits, uint64(math.Float32bits(float32(val))))
	case 64:
		return v.SetUint(bitOff, bits, math.Float64bits(val))
	}
	return errors.Unsupported(errors.PhaseAccess, "", "float width")
}

// Bool reads a boolean stored in bits.
func (v *View) Bool(bitOff, bits int) (bool, error) {
	u, err := v.Uint(bitOff, bits)
	return u != 0, err
}

// SetBool writes a boolean stored in bits.
func (v *View) SetBool(bitOff, bits int, val bool) error {
	var u uint64
	if val {
		u = 1
	}
	return v.SetUint(bitOff, bits, u)
}

func decodeBytes(data []byte, order binary.ByteOrder) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(order.Uint16(data))
	case 4:
		return uint64(order.Uint32(data))
	case 8:
		return order.Uint64(data)
	}
	var u uint64
	if order == binary.BigEndian {
		for _, b := range data {
			u = u<<8 | uint64(b)
		}
		return u
	}
	for i := len(data) - 1; i >= 0; i-- {
		u = u<<8 | uint64(data[i])
	}
	return u
}

func encodeBytes(buf []byte, val uint64, order binary.ByteOrder) {
	switch len(buf) {
	case 1:
		buf[0] = byte(val)
		return
	case 2:
		order.PutUint16(buf, uint16(val))
		return
	case 4:
		order.PutUint32(buf, uint32(val))
		return
	case 8:
		order.PutUint64(buf, val)
		return
	}
	if order == binary.BigEndian {
		for i := len(buf) - 1; i >= 0; i-- {
			buf[i] = byte(val)
			val >>= 8
		}
		return
	}
	for i := range buf {
		buf[i] = byte(val)
		val >>= 8
	}
}

func extractBits(data []byte, shift, bits int) uint64 {
	var u uint64
	for i := 0; i < bits; i++ {
		pos := shift + i
		if data[pos/8]&(1<<uint(pos%8)) != 0 {
			u |= 1 << uint(i)
		}
	}
	return u
}

func insertBits(data []byte, shift, bits int, val uint64) {
	for i := 0; i < bits; i++ {
		pos := shift + i
		mask := byte(1) << uint(pos%8)
		if val&(1<<uint(i)) != 0 {
			data[pos/8] |= mask
		} else {
			data[pos/8] &^= mask
		}
	}
}
