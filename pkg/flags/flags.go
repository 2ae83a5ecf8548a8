// The flags package models the status registers of the Cell PPU: the
// condition register, the fixed-point exception register, the
// floating-point status and control register and the vector status
// and control register.
//
// Bit masks use Go's LSB-0 numbering. Architected (MSB-0) bit numbers
// are given next to each constant where they differ.
package flags

import (
	"fmt"
)

// A set-once flag word. Bits are only ever set; clearing is an
// explicit write of the whole word.
type Sticky uint32

// Set the bits in mask and report whether at least one of them was
// previously clear.
func (s *Sticky) Set(mask uint32) bool {
	fresh := uint32(*s)&mask != mask
	*s |= Sticky(mask)
	return fresh
}

// Report whether every bit in mask is set.
func (s Sticky) Has(mask uint32) bool {
	return uint32(s)&mask == mask
}

// Condition register field bits.
const (
	LT uint8 = 0x8
	GT uint8 = 0x4
	EQ uint8 = 0x2
	SO uint8 = 0x1 // summary overflow copy for integer compares
	UN uint8 = 0x1 // unordered, for floating point and vector compares
)

// The condition register, eight four-bit fields. Field 0 is the most
// significant nibble.
type CR uint32

func (c CR) Field(n int) uint8 {
	return uint8((uint32(c) >> (28 - 4*uint(n))) & 0xf)
}

func (c *CR) SetField(n int, v uint8) {
	shift := 28 - 4*uint(n)
	*c = CR((uint32(*c) &^ (0xf << shift)) | (uint32(v&0xf) << shift))
}

// Condition register bit b, MSB-0 numbering as used by bc.
func (c CR) Bit(b int) bool {
	return (uint32(c)>>(31-uint(b)))&1 == 1
}

// XER bits (architected 32, 33, 34).
const (
	XERSO uint32 = 0x80000000
	XEROV uint32 = 0x40000000
	XERCA uint32 = 0x20000000
)

type XER uint32

func (x XER) SO() bool { return uint32(x)&XERSO != 0 }
func (x XER) OV() bool { return uint32(x)&XEROV != 0 }
func (x XER) CA() bool { return uint32(x)&XERCA != 0 }

// Set or clear OV. A set OV is also accumulated into SO; clearing OV
// leaves SO alone.
func (x *XER) SetOV(ov bool) {
	if ov {
		*x |= XER(XEROV | XERSO)
	} else {
		*x &^= XER(XEROV)
	}
}

func (x *XER) SetCA(ca bool) {
	if ca {
		*x |= XER(XERCA)
	} else {
		*x &^= XER(XERCA)
	}
}

// FPSCR bits.
const (
	FX     uint32 = 1 << 31 // 0
	FEX    uint32 = 1 << 30 // 1
	VX     uint32 = 1 << 29 // 2
	OX     uint32 = 1 << 28 // 3
	UX     uint32 = 1 << 27 // 4
	ZX     uint32 = 1 << 26 // 5
	XX     uint32 = 1 << 25 // 6
	VXSNAN uint32 = 1 << 24 // 7
	VXISI  uint32 = 1 << 23 // 8
	VXIDI  uint32 = 1 << 22 // 9
	VXZDZ  uint32 = 1 << 21 // 10
	VXIMZ  uint32 = 1 << 20 // 11
	VXVC   uint32 = 1 << 19 // 12
	FR     uint32 = 1 << 18 // 13
	FI     uint32 = 1 << 17 // 14
	FPRF   uint32 = 0x1f << 12
	VXSOFT uint32 = 1 << 10 // 21
	VXSQRT uint32 = 1 << 9  // 22
	VXCVI  uint32 = 1 << 8  // 23
	VE     uint32 = 1 << 7
	OE     uint32 = 1 << 6
	UE     uint32 = 1 << 5
	ZE     uint32 = 1 << 4
	XE     uint32 = 1 << 3
	NI     uint32 = 1 << 2
	RN     uint32 = 0x3

	// All invalid operation causes.
	VXAll = VXSNAN | VXISI | VXIDI | VXZDZ | VXIMZ | VXVC | VXSOFT | VXSQRT | VXCVI

	// Bits whose 0->1 transition sets FX.
	Exceptions = OX | UX | ZX | XX | VXAll

	fprfShift = 12
)

// Floating point result classes, as stored in FPRF.
const (
	ClassQNaN      uint8 = 0x11
	ClassNegInf    uint8 = 0x09
	ClassNegNormal uint8 = 0x08
	ClassNegDenorm uint8 = 0x18
	ClassNegZero   uint8 = 0x12
	ClassPosZero   uint8 = 0x02
	ClassPosDenorm uint8 = 0x14
	ClassPosNormal uint8 = 0x04
	ClassPosInf    uint8 = 0x05
)

// Rounding modes, the RN field.
type RoundingMode uint8

const (
	RoundNearest RoundingMode = iota
	RoundZero
	RoundPlusInf
	RoundMinusInf
)

func (r RoundingMode) String() string {
	switch r {
	case RoundNearest:
		return "nearest"
	case RoundZero:
		return "zero"
	case RoundPlusInf:
		return "+inf"
	default:
		return "-inf"
	}
}

type FPSCR uint32

// Raise sticky exception (or status) bits. FX is set if any exception
// bit went from 0 to 1, and the VX and FEX summaries are recomputed.
// The return value reports whether any bit in mask was fresh.
func (f *FPSCR) Raise(mask uint32) bool {
	s := Sticky(*f)
	before := uint32(s)
	fresh := s.Set(mask)
	if (uint32(s)&^before)&Exceptions != 0 {
		s.Set(FX)
	}
	*f = FPSCR(s)
	f.Summarize()
	return fresh
}

// Recompute the VX and FEX summary bits, which are never set directly.
func (f *FPSCR) Summarize() {
	v := uint32(*f) &^ (VX | FEX)
	if v&VXAll != 0 {
		v |= VX
	}
	if (v&VX != 0 && v&VE != 0) ||
		(v&OX != 0 && v&OE != 0) ||
		(v&UX != 0 && v&UE != 0) ||
		(v&ZX != 0 && v&ZE != 0) ||
		(v&XX != 0 && v&XE != 0) {
		v |= FEX
	}
	*f = FPSCR(v)
}

func (f FPSCR) Has(mask uint32) bool {
	return Sticky(f).Has(mask)
}

func (f FPSCR) Rounding() RoundingMode {
	return RoundingMode(uint32(f) & RN)
}

func (f *FPSCR) SetRounding(r RoundingMode) {
	*f = FPSCR((uint32(*f) &^ RN) | uint32(r)&RN)
}

func (f FPSCR) Class() uint8 {
	return uint8((uint32(f) & FPRF) >> fprfShift)
}

func (f *FPSCR) SetClass(c uint8) {
	*f = FPSCR((uint32(*f) &^ FPRF) | (uint32(c&0x1f) << fprfShift))
}

// Set FR and FI to the outcome of the last rounding. These two are
// not sticky.
func (f *FPSCR) SetRounded(fr, fi bool) {
	v := uint32(*f) &^ (FR | FI)
	if fr {
		v |= FR
	}
	if fi {
		v |= FI
	}
	*f = FPSCR(v)
}

// The four bits copied into CR1 by floating point record forms.
func (f FPSCR) CR1() uint8 {
	return uint8(uint32(f) >> 28)
}

// VSCR bits.
const (
	SAT uint32 = 1
	NJ  uint32 = 1 << 16
)

type VSCR uint32

// Set the sticky saturation bit, reporting whether it was clear.
func (v *VSCR) SetSAT() bool {
	s := Sticky(*v)
	fresh := s.Set(SAT)
	*v = VSCR(s)
	return fresh
}

func (v VSCR) SAT() bool { return Sticky(v).Has(SAT) }
func (v VSCR) NJ() bool  { return uint32(v)&NJ != 0 }

// The whole flag state of the machine. The zero value is the clean
// baseline cases start from.
type MachineState struct {
	CR    CR
	XER   XER
	FPSCR FPSCR
	VSCR  VSCR
}

func (m MachineState) String() string {
	return fmt.Sprintf("CR=%08x XER=%08x FPSCR=%08x VSCR=%08x", uint32(m.CR), uint32(m.XER), uint32(m.FPSCR), uint32(m.VSCR))
}
