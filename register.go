package ina219

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// field is a contiguous run of bits inside a 16-bit register.
type field struct {
	mask  uint16
	shift uint8
	width uint8
}

// newField derives the shift and width of mask. It panics on an empty or
// non-contiguous mask; fields are package level so this fires at init.
func newField(mask uint16) field {
	if mask == 0 {
		panic("ina219: empty field mask")
	}
	f := field{
		mask:  mask,
		shift: uint8(bits.TrailingZeros16(mask)),
		width: uint8(bits.OnesCount16(mask)),
	}
	if f.max()<<f.shift != mask {
		panic(fmt.Sprintf("ina219: non-contiguous field mask %#04x", mask))
	}
	return f
}

// max returns the largest value that fits in f.
func (f field) max() uint16 {
	return uint16(1<<f.width - 1)
}

func (f field) whole() bool {
	return f.mask == 0xFFFF
}

// fits reports whether v can be stored in f without truncation.
func (f field) fits(v uint16) bool {
	return v&^f.max() == 0
}

// extract returns the field value of raw, sign-extended if signed.
func (f field) extract(raw uint16, signed bool) int {
	v := (raw & f.mask) >> f.shift
	if !signed {
		return int(v)
	}
	// Move the field sign bit to bit 15 and shift back arithmetically.
	s := 16 - f.width
	return int(int16(v<<s) >> s)
}

// insert returns raw with f replaced by v. v must fit in f.
func (f field) insert(raw, v uint16) uint16 {
	return raw&^f.mask | v<<f.shift
}

// readReg reads a big-endian 16-bit register.
func (d *Dev) readReg(reg uint8) (uint16, error) {
	var b [2]byte
	if err := d.d.Tx([]byte{reg}, b[:]); err != nil {
		return 0, d.wrap(err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// writeReg writes a big-endian 16-bit register.
func (d *Dev) writeReg(reg uint8, v uint16) error {
	var b [3]byte
	b[0] = reg
	binary.BigEndian.PutUint16(b[1:], v)
	if err := d.d.Tx(b[:], nil); err != nil {
		return d.wrap(err)
	}
	return nil
}

// readField reads f from reg.
func (d *Dev) readField(reg uint8, f field, signed bool) (int, error) {
	raw, err := d.readReg(reg)
	if err != nil {
		return 0, err
	}
	return f.extract(raw, signed), nil
}

// writeField stores v in f of reg, leaving the other bits of the register
// untouched. A value wider than f is rejected before any bus traffic.
func (d *Dev) writeField(reg uint8, f field, v uint16) error {
	if !f.fits(v) {
		return fmt.Errorf("ina219: %w: %#x does not fit mask %#04x", ErrFieldOverflow, v, f.mask)
	}
	if f.whole() {
		return d.writeReg(reg, v)
	}
	raw, err := d.readReg(reg)
	if err != nil {
		return err
	}
	return d.writeReg(reg, f.insert(raw, v))
}
