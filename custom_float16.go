package dataproto

import (
	"math"
	"strconv"
)

// Float16 represents a 16-bit floating-point number.
// It is stored as a float64 in memory but travels as a big-endian IEEE 754-2008
// binary16 value, rounded to nearest even.
//
// Format (IEEE 754-2008 binary16):
// 1 bit  : Sign bit
// 5 bits : Exponent
// 10 bits: Fraction
type Float16 float64

// EncodePacket writes the binary16 form of the value.
func (f *Float16) EncodePacket(w *WritablePacket) error {
	w.WriteUint16(float16Bits(float32(*f)))
	return nil
}

// DecodePacket reads a binary16 value.
func (f *Float16) DecodePacket(r *ReadablePacket) error {
	bits, err := r.ReadUint16()
	if err != nil {
		return err
	}
	*f = Float16(float16From(bits))
	return nil
}

// String returns a string representation of the Float16 value.
func (f *Float16) String() string {
	return strconv.FormatFloat(float64(*f), 'g', -1, 32)
}

func float16Bits(v float32) uint16 {
	b := math.Float32bits(v)
	sign := uint16(b>>16) & 0x8000
	exp := int(b>>23) & 0xff
	frac := b & 0x7fffff

	if exp == 0xff {
		if frac != 0 {
			return sign | 0x7e00 // NaN
		}
		return sign | 0x7c00 // Inf
	}

	e := exp - 127 + 15
	switch {
	case e >= 0x1f:
		return sign | 0x7c00
	case e <= 0:
		// subnormal or zero
		if e < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint(14 - e)
		half := frac >> shift
		rem := frac & (1<<shift - 1)
		halfway := uint32(1) << (shift - 1)
		if rem > halfway || (rem == halfway && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	}

	half := uint32(e)<<10 | frac>>13
	rem := frac & 0x1fff
	// a carry out of the fraction bumps the exponent, up to Inf
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | uint16(half)
}

func float16From(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x3ff)

	switch exp {
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		v := float32(frac) / (1 << 24)
		if sign != 0 {
			v = -v
		}
		return v
	}
	return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
}
