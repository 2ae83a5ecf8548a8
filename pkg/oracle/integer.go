// The oracle package decides what an instruction must produce: the
// result value and the complete flag state after it ran. Every
// function is pure; the prior flag state goes in, the expected one
// comes out.
package oracle

import (
	"math"
	"math/bits"

	"github.com/vatine/ppuconform/pkg/flags"
)

// Integer operation kinds.
type IntKind int

const (
	Add IntKind = iota
	Subf
	Neg
	Mullw
	Mulld
	Mulhw
	Mulhwu
	Mulhd
	Mulhdu
	Mulli
	Divw
	Divwu
	Divd
	Divdu
)

// How the carry bit takes part in an add or subtract-from.
type CarryMode int

const (
	CarryNone     CarryMode = iota // add, subf: CA untouched
	CarryOut                       // addc, addic, subfc, subfic: CA written
	CarryExtended                  // adde, subfe: CA in and out
	CarryMinusOne                  // addme, subfme
	CarryZero                      // addze, subfze
)

// One integer ALU operation as the oracle sees it.
type IntOp struct {
	Kind  IntKind
	Carry CarryMode
	OE    bool // "o" form
	Rc    bool // "." form
}

// Expected outcome of an integer operation.
type IntResult struct {
	Value uint64
	// The architecture leaves the target register undefined (divide by
	// zero, signed divide overflow); any value is accepted.
	Undefined bool
	// Only the low word of Value is defined.
	LowWordOnly bool
	// CR0 bits that are defined after a record form. SO is always
	// defined; LT, GT and EQ are not when the result is undefined.
	CR0Mask uint8
	State   flags.MachineState
}

// Compute the expected result and flags for op applied to a and b.
// Single-operand forms ignore b; immediate forms pass the
// sign-extended immediate as b.
func Int(op IntOp, a, b uint64, prior flags.MachineState) IntResult {
	st := prior
	res := IntResult{CR0Mask: flags.LT | flags.GT | flags.EQ | flags.SO}
	ca := uint64(0)
	if prior.XER.CA() {
		ca = 1
	}

	var ov bool
	switch op.Kind {
	case Add, Subf:
		x := a
		if op.Kind == Subf {
			x = ^a
		}
		var y, cin uint64
		switch op.Carry {
		case CarryNone, CarryOut:
			y = b
			if op.Kind == Subf {
				cin = 1
			}
		case CarryExtended:
			y, cin = b, ca
		case CarryMinusOne:
			y, cin = math.MaxUint64, ca
		case CarryZero:
			y, cin = 0, ca
		}
		sum, cout := bits.Add64(x, y, cin)
		res.Value = sum
		ov = addOverflows(x, y, sum)
		if op.Carry != CarryNone {
			st.XER.SetCA(cout == 1)
		}
	case Neg:
		res.Value = -a
		ov = a == 1<<63
	case Mullw:
		p := int64(int32(a)) * int64(int32(b))
		res.Value = uint64(p)
		ov = p != int64(int32(p))
	case Mulld:
		hi, lo := bits.Mul64(a, b)
		// Signed high part of the 128-bit product.
		shi := hi
		if int64(a) < 0 {
			shi -= b
		}
		if int64(b) < 0 {
			shi -= a
		}
		res.Value = lo
		ov = !((shi == 0 && int64(lo) >= 0) || (shi == math.MaxUint64 && int64(lo) < 0))
	case Mulli:
		res.Value = a * b
	case Mulhw:
		p := int64(int32(a)) * int64(int32(b))
		res.Value = uint64(int64(int32(p >> 32)))
		res.LowWordOnly = true
	case Mulhwu:
		p := uint64(uint32(a)) * uint64(uint32(b))
		res.Value = p >> 32
		res.LowWordOnly = true
	case Mulhd:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		if int64(b) < 0 {
			hi -= a
		}
		res.Value = hi
	case Mulhdu:
		res.Value, _ = bits.Mul64(a, b)
	case Divw:
		n, d := int32(a), int32(b)
		if d == 0 || (n == math.MinInt32 && d == -1) {
			ov = true
			res.Undefined = true
		} else {
			res.Value = uint64(int64(n / d))
		}
		res.LowWordOnly = true
	case Divwu:
		n, d := uint32(a), uint32(b)
		if d == 0 {
			ov = true
			res.Undefined = true
		} else {
			res.Value = uint64(n / d)
		}
		res.LowWordOnly = true
	case Divd:
		n, d := int64(a), int64(b)
		if d == 0 || (n == math.MinInt64 && d == -1) {
			ov = true
			res.Undefined = true
		} else {
			res.Value = uint64(n / d)
		}
	case Divdu:
		if b == 0 {
			ov = true
			res.Undefined = true
		} else {
			res.Value = a / b
		}
	}

	// CR0 takes SO as it stood before this instruction.
	so := prior.XER.SO()
	if op.OE {
		st.XER.SetOV(ov)
	}
	if op.Rc {
		if res.Undefined || res.LowWordOnly {
			res.CR0Mask = flags.SO
		}
		st.CR.SetField(0, RecordCR0(res.Value, so))
	}
	res.State = st
	return res
}

func addOverflows(x, y, sum uint64) bool {
	return (x>>63 == y>>63) && (sum>>63 != x>>63)
}

// The CR0 nibble a record form writes for a 64-bit result.
func RecordCR0(v uint64, so bool) uint8 {
	return CompareSigned(int64(v), 0, so)
}

func CompareSigned(a, b int64, so bool) uint8 {
	var n uint8
	switch {
	case a < b:
		n = flags.LT
	case a > b:
		n = flags.GT
	default:
		n = flags.EQ
	}
	if so {
		n |= flags.SO
	}
	return n
}

func CompareUnsigned(a, b uint64, so bool) uint8 {
	var n uint8
	switch {
	case a < b:
		n = flags.LT
	case a > b:
		n = flags.GT
	default:
		n = flags.EQ
	}
	if so {
		n |= flags.SO
	}
	return n
}

// Integer compare into field bf. XER is read for SO and never written.
// Word compares (l false) look only at the low words.
func Compare(bf int, a, b uint64, signed, l bool, prior flags.MachineState) flags.MachineState {
	st := prior
	so := prior.XER.SO()
	var n uint8
	switch {
	case signed && l:
		n = CompareSigned(int64(a), int64(b), so)
	case signed:
		n = CompareSigned(int64(int32(a)), int64(int32(b)), so)
	case l:
		n = CompareUnsigned(a, b, so)
	default:
		n = CompareUnsigned(uint64(uint32(a)), uint64(uint32(b)), so)
	}
	st.CR.SetField(bf, n)
	return st
}

// Algebraic right shift of a word, sign-extended to 64 bits. CA is set
// when the source is negative and one bits were shifted out.
func ShiftRightAlgebraicWord(a uint64, sh uint, prior flags.MachineState) (uint64, flags.MachineState) {
	st := prior
	s := int32(a)
	var r int32
	var lost bool
	if sh > 31 {
		if s < 0 {
			r = -1
		}
		lost = s != 0 && s < 0
	} else {
		r = s >> sh
		lost = uint32(s)&((1<<sh)-1) != 0
	}
	st.XER.SetCA(s < 0 && lost)
	return uint64(int64(r)), st
}

// Algebraic right shift of a doubleword with the same CA rule.
func ShiftRightAlgebraicDouble(a uint64, sh uint, prior flags.MachineState) (uint64, flags.MachineState) {
	st := prior
	s := int64(a)
	var r int64
	var lost bool
	if sh > 63 {
		if s < 0 {
			r = -1
		}
		lost = s < 0
	} else {
		r = s >> sh
		lost = uint64(s)&((uint64(1)<<sh)-1) != 0
	}
	st.XER.SetCA(s < 0 && lost)
	return uint64(r), st
}

// Apply a record form's CR0 update to a logical result.
func Logical(v uint64, rc bool, prior flags.MachineState) flags.MachineState {
	st := prior
	if rc {
		st.CR.SetField(0, RecordCR0(v, prior.XER.SO()))
	}
	return st
}

// Rotate-and-mask instruction shapes.
type RotKind int

const (
	RotWord             RotKind = iota // rlwinm, rlwnm
	RotWordInsert                      // rlwimi
	RotDoubleClearLeft                 // rldicl, rldcl
	RotDoubleClearRight                // rldicr, rldcr
	RotDoubleClear                     // rldic
	RotDoubleInsert                    // rldimi
)

// Ones from bit mb through bit me, MSB-0. When mb > me the mask wraps
// around both ends.
func Mask64(mb, me uint) uint64 {
	x := ^uint64(0) >> (mb & 63)
	y := ^uint64(0) << (63 - me&63)
	if mb&63 <= me&63 {
		return x & y
	}
	return x | y
}

// Result of a rotate-and-mask. s is the source register, a the prior
// contents of the target (only read by the insert forms), n the rotate
// amount. mb and me are the word-relative bounds for the word forms;
// the doubleword forms use whichever of them the instruction has.
func Rotate(k RotKind, s, a uint64, n, mb, me uint) uint64 {
	if k == RotWord || k == RotWordInsert {
		w := uint64(bits.RotateLeft32(uint32(s), int(n&31)))
		r := w<<32 | w
		m := Mask64(mb+32, me+32)
		if k == RotWordInsert {
			return r&m | a&^m
		}
		return r & m
	}
	r := bits.RotateLeft64(s, int(n&63))
	var m uint64
	switch k {
	case RotDoubleClearLeft:
		m = Mask64(mb, 63)
	case RotDoubleClearRight:
		m = Mask64(0, me)
	default:
		m = Mask64(mb, 63-n&63)
	}
	if k == RotDoubleInsert {
		return r&m | a&^m
	}
	return r & m
}
