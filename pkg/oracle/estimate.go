package oracle

import (
	"math"
	"math/big"

	"github.com/vatine/ppuconform/pkg/flags"
)

// Largest relative error the architecture allows for fres and frsqrte.
const (
	ResPrecision   = 1.0 / 256
	RsqrtPrecision = 1.0 / 32
)

// fres: reciprocal estimate, single precision. The value returned is
// the correctly rounded reciprocal; FPResult.Estimate tells a checker
// how far a target may stray from it. FR, FI and XX are undefined for
// estimates and left as they were.
func fres(b uint64, fp *flags.FPSCR) FPResult {
	u := unpack(b)
	switch u.kind {
	case kSNaN:
		fp.Raise(flags.VXSNAN)
		if fp.Has(flags.VE) {
			return FPResult{}
		}
		return nanResult(Quiet(b), true, fp)
	case kQNaN:
		return nanResult(b, true, fp)
	case kInf:
		return special(b&SignBit, Single, fp)
	case kZero:
		fp.Raise(flags.ZX)
		if fp.Has(flags.ZE) {
			return FPResult{}
		}
		return special(b&SignBit|PosInf, Single, fp)
	}
	one := exact{mag: big.NewInt(1)}
	r := estimateInto(divExact(one, fromUnpacked(u)), Single, fp)
	r.Estimate = ResPrecision
	return r
}

// frsqrte: reciprocal square root estimate, double precision. The
// result never leaves the double range, so only the special operands
// raise anything.
func frsqrte(b uint64, fp *flags.FPSCR) FPResult {
	u := unpack(b)
	switch {
	case u.kind == kSNaN:
		fp.Raise(flags.VXSNAN)
		if fp.Has(flags.VE) {
			return FPResult{}
		}
		return nanResult(Quiet(b), false, fp)
	case u.kind == kQNaN:
		return nanResult(b, false, fp)
	case u.kind == kZero:
		fp.Raise(flags.ZX)
		if fp.Has(flags.ZE) {
			return FPResult{}
		}
		return special(b&SignBit|PosInf, Double, fp)
	case u.neg:
		fp.Raise(flags.VXSQRT)
		if fp.Has(flags.VE) {
			return FPResult{}
		}
		return nanResult(DefaultQNaN, false, fp)
	case u.kind == kInf:
		return special(0, Double, fp)
	}
	v := math.Float64bits(1 / math.Sqrt(math.Float64frombits(b)))
	fp.SetClass(Classify(v, Double))
	return FPResult{Value: v, Written: true, Estimate: RsqrtPrecision}
}

// Round like roundInto, but raise only OX and UX.
func estimateInto(x exact, f Format, fp *flags.FPSCR) FPResult {
	ue := fp.Has(flags.UE)
	r := roundExact(x, f, fp.Rounding(), fp.Has(flags.OE), ue)
	var raise uint32
	if r.overflow {
		raise |= flags.OX
	}
	if r.tiny && (ue || r.inexact) {
		raise |= flags.UX
	}
	if raise != 0 {
		fp.Raise(raise)
	}
	fp.SetClass(Classify(r.bits, f))
	return FPResult{Value: r.bits, Written: true}
}

// fsel: c when a is zero or positive, b otherwise, including when a is
// a NaN. The FPSCR is not involved.
func FSelect(a, b, c uint64) uint64 {
	u := unpack(a)
	if u.isNaN() || (u.neg && u.kind != kZero) {
		return b
	}
	return c
}
