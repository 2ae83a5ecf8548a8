package oracle

import (
	"math"
	"math/big"

	"github.com/vatine/ppuconform/pkg/flags"
)

type FPKind int

const (
	FAdd FPKind = iota
	FSub
	FMul
	FDiv
	FSqrt
	FMAdd
	FMSub
	FNMAdd
	FNMSub
	FRsp
	FCtiw
	FCtiwz
	FCtid
	FCtidz
	FCfid
	FRes
	FRsqrte
)

// One floating point operation. Operands follow the register roles of
// the A-form: fadd uses a and b, fmul uses a and c, the multiply-add
// family computes a*c +/- b.
type FPOp struct {
	Kind   FPKind
	Single bool
	Rc     bool
}

type FPResult struct {
	Value uint64
	// False when an enabled invalid-operation or zero-divide
	// exception leaves the target register untouched.
	Written bool
	// fctiw and fctiwz define only the low word.
	LowWordOnly bool
	// Relative error accepted in Value for estimate instructions.
	// Zero asks for the exact bits.
	Estimate float64
	State    flags.MachineState
}

const singleNaNMask uint64 = 0xffffffffe0000000

// Compute the expected result and flags of a floating point operation.
func FP(op FPOp, a, b, c uint64, prior flags.MachineState) FPResult {
	st := prior
	var r FPResult
	switch op.Kind {
	case FRsp:
		r = frsp(b, &st.FPSCR)
	case FCtiw, FCtiwz, FCtid, FCtidz:
		r = fcti(op.Kind, b, &st.FPSCR)
	case FCfid:
		r = fcfid(b, &st.FPSCR)
	case FRes:
		r = fres(b, &st.FPSCR)
	case FRsqrte:
		r = frsqrte(b, &st.FPSCR)
	default:
		r = arith(op, a, b, c, &st.FPSCR)
	}
	if op.Rc {
		st.CR.SetField(1, st.FPSCR.CR1())
	}
	r.State = st
	return r
}

func (k FPKind) fused() bool {
	return k == FMAdd || k == FMSub || k == FNMAdd || k == FNMSub
}

// Operands in NaN precedence order: A, then C, then B.
func operands(k FPKind, a, b, c unpacked) []unpacked {
	switch {
	case k == FMul:
		return []unpacked{a, c}
	case k == FSqrt:
		return []unpacked{b}
	case k.fused():
		return []unpacked{a, c, b}
	default:
		return []unpacked{a, b}
	}
}

func arith(op FPOp, ab, bb, cb uint64, fp *flags.FPSCR) FPResult {
	a, b, c := unpack(ab), unpack(bb), unpack(cb)
	ops := operands(op.Kind, a, b, c)
	f := Double
	if op.Single {
		f = Single
		// fdivs with an operand outside single range is carried out
		// in double precision.
		if op.Kind == FDiv && (!InSingleRange(ab) || !InSingleRange(bb)) {
			f = Double
		}
	}

	var vx uint32
	var nan *unpacked
	for i := range ops {
		if ops[i].kind == kSNaN {
			vx |= flags.VXSNAN
		}
		if nan == nil && ops[i].isNaN() {
			nan = &ops[i]
		}
	}

	// Effective sign of the addend for subtracting forms.
	bNeg := b.neg
	if op.Kind == FSub || op.Kind == FMSub || op.Kind == FNMSub {
		bNeg = !bNeg
	}

	switch op.Kind {
	case FAdd, FSub:
		if nan == nil && a.kind == kInf && b.kind == kInf && a.neg != bNeg {
			vx |= flags.VXISI
		}
	case FMul:
		if nan == nil && isInfTimesZero(a, c) {
			vx |= flags.VXIMZ
		}
	case FDiv:
		if nan == nil && a.kind == kInf && b.kind == kInf {
			vx |= flags.VXIDI
		}
		if nan == nil && a.kind == kZero && b.kind == kZero {
			vx |= flags.VXZDZ
		}
	case FSqrt:
		if nan == nil && b.neg && b.kind != kZero {
			vx |= flags.VXSQRT
		}
	default:
		if !a.isNaN() && !c.isNaN() && isInfTimesZero(a, c) {
			vx |= flags.VXIMZ
		} else if nan == nil && (a.kind == kInf || c.kind == kInf) && b.kind == kInf && (a.neg != c.neg) != bNeg {
			vx |= flags.VXISI
		}
	}

	if vx != 0 {
		fp.Raise(vx)
		if fp.Has(flags.VE) {
			fp.SetRounded(false, false)
			return FPResult{}
		}
		v := DefaultQNaN
		if nan != nil {
			v = Quiet(nan.bits)
		}
		return nanResult(v, op.Single, fp)
	}
	if nan != nil {
		return nanResult(nan.bits, op.Single, fp)
	}

	if op.Kind == FDiv && b.kind == kZero && a.kind == kFinite {
		fp.Raise(flags.ZX)
		fp.SetRounded(false, false)
		if fp.Has(flags.ZE) {
			return FPResult{}
		}
		v := PosInf
		if a.neg != b.neg {
			v = NegInf
		}
		return special(v, f, fp)
	}

	negate := op.Kind == FNMAdd || op.Kind == FNMSub
	if v, ok := infinityResult(op.Kind, a, b, c, bNeg); ok {
		if negate {
			v ^= SignBit
		}
		return special(v, f, fp)
	}

	mode := fp.Rounding()
	var x exact
	switch op.Kind {
	case FAdd, FSub:
		eb := fromUnpacked(b)
		eb.neg = bNeg
		x = addExact(fromUnpacked(a), eb)
		if x.isZero() {
			x.neg = zeroSumSign(a.neg, bNeg, mode)
		}
	case FMul:
		x = mulExact(fromUnpacked(a), fromUnpacked(c))
	case FDiv:
		if a.kind == kZero {
			x = exact{neg: a.neg != b.neg, mag: new(big.Int)}
		} else {
			x = divExact(fromUnpacked(a), fromUnpacked(b))
		}
	case FSqrt:
		if b.kind == kZero {
			return special(bb, f, fp)
		}
		x = sqrtExact(fromUnpacked(b))
	default:
		p := mulExact(fromUnpacked(a), fromUnpacked(c))
		eb := fromUnpacked(b)
		eb.neg = bNeg
		x = addExact(p, eb)
		if x.isZero() {
			x.neg = zeroSumSign(p.neg, bNeg, mode)
		}
	}

	res := roundInto(x, f, fp)
	if negate {
		res.Value ^= SignBit
		fp.SetClass(Classify(res.Value, f))
	}
	return res
}

func isInfTimesZero(a, c unpacked) bool {
	return (a.kind == kInf && c.kind == kZero) || (a.kind == kZero && c.kind == kInf)
}

// Sign of an exact zero sum: like-signed operands keep their sign,
// otherwise +0, or -0 when rounding toward minus infinity.
func zeroSumSign(aNeg, bNeg bool, mode flags.RoundingMode) bool {
	if aNeg == bNeg {
		return aNeg
	}
	return mode == flags.RoundMinusInf
}

// Results that are infinite or otherwise exact without rounding
// because an infinity is involved. Invalid combinations have already
// been filtered out.
func infinityResult(k FPKind, a, b, c unpacked, bNeg bool) (uint64, bool) {
	inf := func(neg bool) uint64 {
		if neg {
			return NegInf
		}
		return PosInf
	}
	switch k {
	case FAdd, FSub:
		if a.kind == kInf {
			return a.bits, true
		}
		if b.kind == kInf {
			return inf(bNeg), true
		}
	case FMul:
		if a.kind == kInf || c.kind == kInf {
			return inf(a.neg != c.neg), true
		}
	case FDiv:
		if a.kind == kInf {
			return inf(a.neg != b.neg), true
		}
		if b.kind == kInf {
			if a.neg != b.neg {
				return SignBit, true
			}
			return 0, true
		}
	case FSqrt:
		if b.kind == kInf {
			return b.bits, true
		}
	default:
		if a.kind == kInf || c.kind == kInf {
			return inf(a.neg != c.neg), true
		}
		if b.kind == kInf {
			return inf(bNeg), true
		}
	}
	return 0, false
}

func nanResult(v uint64, single bool, fp *flags.FPSCR) FPResult {
	if single {
		v &= singleNaNMask
	}
	fp.SetRounded(false, false)
	fp.SetClass(flags.ClassQNaN)
	return FPResult{Value: v, Written: true}
}

func special(v uint64, f Format, fp *flags.FPSCR) FPResult {
	fp.SetRounded(false, false)
	fp.SetClass(Classify(v, f))
	return FPResult{Value: v, Written: true}
}

// Round an exact value and fold the outcome into the FPSCR.
func roundInto(x exact, f Format, fp *flags.FPSCR) FPResult {
	oe, ue := fp.Has(flags.OE), fp.Has(flags.UE)
	r := roundExact(x, f, fp.Rounding(), oe, ue)
	var raise uint32
	if r.overflow {
		raise |= flags.OX
	}
	if r.tiny && (ue || r.inexact) {
		raise |= flags.UX
	}
	if r.inexact {
		raise |= flags.XX
	}
	if raise != 0 {
		fp.Raise(raise)
	}
	fp.SetRounded(r.increment, r.inexact)
	fp.SetClass(Classify(r.bits, f))
	return FPResult{Value: r.bits, Written: true}
}

func frsp(b uint64, fp *flags.FPSCR) FPResult {
	u := unpack(b)
	switch u.kind {
	case kSNaN:
		fp.Raise(flags.VXSNAN)
		if fp.Has(flags.VE) {
			fp.SetRounded(false, false)
			return FPResult{}
		}
		return nanResult(Quiet(b), true, fp)
	case kQNaN:
		return nanResult(b, true, fp)
	case kZero, kInf:
		return special(b, Single, fp)
	}
	return roundInto(fromUnpacked(u), Single, fp)
}

func fcti(k FPKind, b uint64, fp *flags.FPSCR) FPResult {
	word := k == FCtiw || k == FCtiwz
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if word {
		lo, hi = math.MinInt32, math.MaxInt32
	}
	out := func(v int64) FPResult {
		if word {
			return FPResult{Value: uint64(uint32(v)), Written: true, LowWordOnly: true}
		}
		return FPResult{Value: uint64(v), Written: true}
	}
	invalid := func(vx uint32, v int64) FPResult {
		fp.Raise(vx)
		fp.SetRounded(false, false)
		if fp.Has(flags.VE) {
			return FPResult{LowWordOnly: word}
		}
		return out(v)
	}

	u := unpack(b)
	switch u.kind {
	case kSNaN:
		return invalid(flags.VXCVI|flags.VXSNAN, lo)
	case kQNaN:
		return invalid(flags.VXCVI, lo)
	case kInf:
		if u.neg {
			return invalid(flags.VXCVI, lo)
		}
		return invalid(flags.VXCVI, hi)
	case kZero:
		fp.SetRounded(false, false)
		return out(0)
	}

	mode := fp.Rounding()
	if k == FCtiwz || k == FCtidz {
		mode = flags.RoundZero
	}
	q, inexact, up := roundMag(fromUnpacked(u), 0, mode)
	v := new(big.Int).Set(q)
	if u.neg {
		v.Neg(v)
	}
	if v.Cmp(big.NewInt(lo)) < 0 {
		return invalid(flags.VXCVI, lo)
	}
	if v.Cmp(big.NewInt(hi)) > 0 {
		return invalid(flags.VXCVI, hi)
	}
	if inexact {
		fp.Raise(flags.XX)
	}
	fp.SetRounded(up, inexact)
	return out(v.Int64())
}

func fcfid(b uint64, fp *flags.FPSCR) FPResult {
	v := int64(b)
	if v == 0 {
		return special(0, Double, fp)
	}
	x := exact{neg: v < 0, mag: new(big.Int).Abs(big.NewInt(v)), exp: 0}
	if v == math.MinInt64 {
		x.mag = new(big.Int).Lsh(big.NewInt(1), 63)
	}
	return roundInto(x, Double, fp)
}

// Floating point compare into CR field bf. Ordered compares also
// treat quiet NaNs as invalid.
func FCompare(bf int, ab, bb uint64, ordered bool, prior flags.MachineState) flags.MachineState {
	st := prior
	a, b := unpack(ab), unpack(bb)
	var nib uint8
	var vx uint32
	switch {
	case a.isNaN() || b.isNaN():
		nib = flags.UN
		snan := a.kind == kSNaN || b.kind == kSNaN
		if snan {
			vx |= flags.VXSNAN
		}
		if ordered && (!snan || !st.FPSCR.Has(flags.VE)) {
			vx |= flags.VXVC
		}
	default:
		x, y := math.Float64frombits(ab), math.Float64frombits(bb)
		switch {
		case x < y:
			nib = flags.LT
		case x > y:
			nib = flags.GT
		default:
			nib = flags.EQ
		}
	}
	st.CR.SetField(bf, nib)
	st.FPSCR.SetClass(st.FPSCR.Class()&0x10 | nib)
	if vx != 0 {
		st.FPSCR.Raise(vx)
	}
	return st
}
