package oracle

import (
	"math/big"

	"github.com/vatine/ppuconform/pkg/flags"
)

// Binary floating point formats. The register file always holds
// doubles; Single only bounds precision and exponent range.
type Format struct {
	Frac   uint // stored fraction bits
	Emin   int  // smallest normal unbiased exponent
	Emax   int
	Adjust int // exponent wrap for enabled overflow/underflow
}

var (
	Double = Format{Frac: 52, Emin: -1022, Emax: 1023, Adjust: 1536}
	Single = Format{Frac: 23, Emin: -126, Emax: 127, Adjust: 192}
)

// Well-known double bit patterns.
const (
	DefaultQNaN uint64 = 0x7ff8000000000000
	PosInf      uint64 = 0x7ff0000000000000
	NegInf      uint64 = 0xfff0000000000000
	SignBit     uint64 = 1 << 63
	quietBit    uint64 = 1 << 51
	maxDouble   uint64 = 0x7fefffffffffffff
	maxSingle   uint64 = 0x47efffffe0000000
	expMask     uint64 = 0x7ff0000000000000
	fracMask    uint64 = 0x000fffffffffffff
)

type kind int

const (
	kZero kind = iota
	kFinite
	kInf
	kQNaN
	kSNaN
)

// An unpacked double: value = mant * 2^exp.
type unpacked struct {
	bits uint64
	neg  bool
	kind kind
	mant uint64
	exp  int
}

func unpack(b uint64) unpacked {
	u := unpacked{bits: b, neg: b&SignBit != 0}
	e := int((b & expMask) >> 52)
	f := b & fracMask
	switch {
	case e == 0x7ff && f == 0:
		u.kind = kInf
	case e == 0x7ff && f&quietBit != 0:
		u.kind = kQNaN
	case e == 0x7ff:
		u.kind = kSNaN
	case e == 0 && f == 0:
		u.kind = kZero
	case e == 0:
		u.kind = kFinite
		u.mant = f
		u.exp = -1074
	default:
		u.kind = kFinite
		u.mant = f | 1<<52
		u.exp = e - 1075
	}
	return u
}

func (u unpacked) isNaN() bool { return u.kind == kQNaN || u.kind == kSNaN }

func IsNaN(b uint64) bool  { return unpack(b).isNaN() }
func IsSNaN(b uint64) bool { return unpack(b).kind == kSNaN }

// Quiet a NaN by setting the most significant fraction bit.
func Quiet(b uint64) uint64 { return b | quietBit }

// Unbiased exponent of the leading one bit of a finite value.
func (u unpacked) topExp() int {
	n := 0
	for m := u.mant; m != 0; m >>= 1 {
		n++
	}
	return u.exp + n - 1
}

// An exact (or exact-plus-sticky) intermediate result:
// value = mag * 2^exp, with sticky meaning "some nonzero bits below".
type exact struct {
	neg    bool
	mag    *big.Int
	exp    int
	sticky bool
}

func (x exact) isZero() bool { return x.mag.Sign() == 0 && !x.sticky }

// Outcome of rounding an exact value into a format.
type rounded struct {
	bits      uint64 // as a double
	inexact   bool
	increment bool // magnitude rounded up
	overflow  bool
	tiny      bool // tininess detected before rounding
	wrapped   bool // exponent adjusted for an enabled exception
}

// Round x into format f under mode. oe and ue select the
// enabled-exception behaviour of wrapping the exponent instead of
// producing infinities or denormals.
func roundExact(x exact, f Format, mode flags.RoundingMode, oe, ue bool) rounded {
	if x.isZero() {
		b := uint64(0)
		if x.neg {
			b = SignBit
		}
		return rounded{bits: b}
	}
	top := x.exp + x.mag.BitLen() - 1
	if x.mag.Sign() == 0 {
		// Only sticky bits remain; they lie far below any format.
		top = f.Emin - int(f.Frac) - 2
	}
	r := rounded{tiny: top < f.Emin}
	if r.tiny && ue {
		x.exp += f.Adjust
		top += f.Adjust
		r.wrapped = true
	}
	lsb := top - int(f.Frac)
	if !r.wrapped && top < f.Emin {
		lsb = f.Emin - int(f.Frac)
	}

	q, inexact, up := roundMag(x, lsb, mode)
	r.inexact = inexact
	r.increment = up
	if q.BitLen() > int(f.Frac)+1 {
		q.Rsh(q, 1)
		lsb++
	}
	if q.Sign() == 0 {
		if x.neg {
			r.bits = SignBit
		}
		return r
	}
	e := lsb + q.BitLen() - 1
	if e > f.Emax {
		if oe {
			x.exp -= f.Adjust
			o := roundExact(x, f, mode, false, false)
			o.overflow = true
			o.wrapped = true
			o.tiny = false
			return o
		}
		r.overflow = true
		r.inexact = true
		r.bits, r.increment = overflowResult(x.neg, f, mode)
		return r
	}
	r.bits = encodeDouble(x.neg, q, lsb)
	return r
}

// Round mag*2^exp to a multiple of 2^lsb.
func roundMag(x exact, lsb int, mode flags.RoundingMode) (*big.Int, bool, bool) {
	shift := lsb - x.exp
	q := new(big.Int)
	var half, above, inexact bool
	if shift <= 0 {
		q.Lsh(x.mag, uint(-shift))
		inexact = x.sticky
	} else {
		q.Rsh(x.mag, uint(shift))
		rem := new(big.Int).Sub(x.mag, new(big.Int).Lsh(q, uint(shift)))
		h := new(big.Int).Lsh(big.NewInt(1), uint(shift-1))
		c := rem.Cmp(h)
		switch {
		case c > 0:
			above = true
		case c == 0 && x.sticky:
			above = true
		case c == 0:
			half = true
		}
		inexact = rem.Sign() != 0 || x.sticky
	}
	up := false
	if inexact {
		switch mode {
		case flags.RoundNearest:
			up = above || (half && q.Bit(0) == 1)
		case flags.RoundZero:
		case flags.RoundPlusInf:
			up = !x.neg
		case flags.RoundMinusInf:
			up = x.neg
		}
	}
	if up {
		q.Add(q, big.NewInt(1))
	}
	return q, inexact, up
}

func overflowResult(neg bool, f Format, mode flags.RoundingMode) (uint64, bool) {
	largest := maxDouble
	if f == Single {
		largest = maxSingle
	}
	inf := true
	switch mode {
	case flags.RoundZero:
		inf = false
	case flags.RoundPlusInf:
		inf = !neg
	case flags.RoundMinusInf:
		inf = neg
	}
	b := largest
	if inf {
		b = PosInf
	}
	if neg {
		b |= SignBit
	}
	return b, inf
}

// Encode q*2^lsb (q at most 53 significant bits, in double range) as
// double bits.
func encodeDouble(neg bool, q *big.Int, lsb int) uint64 {
	n := q.BitLen()
	e := lsb + n - 1
	var b uint64
	if e < -1022 {
		// Double denormal: fraction = value / 2^-1074.
		m := new(big.Int)
		if sh := lsb + 1074; sh >= 0 {
			m.Lsh(q, uint(sh))
		} else {
			m.Rsh(q, uint(-sh))
		}
		b = m.Uint64()
	} else {
		m := new(big.Int).Set(q)
		if n < 53 {
			m.Lsh(m, uint(53-n))
		} else if n > 53 {
			m.Rsh(m, uint(n-53))
		}
		b = uint64(e+1023)<<52 | (m.Uint64() & fracMask)
	}
	if neg {
		b |= SignBit
	}
	return b
}

// FPRF class of a double, judged against format f's normal range.
func Classify(b uint64, f Format) uint8 {
	u := unpack(b)
	switch u.kind {
	case kQNaN, kSNaN:
		return flags.ClassQNaN
	case kInf:
		if u.neg {
			return flags.ClassNegInf
		}
		return flags.ClassPosInf
	case kZero:
		if u.neg {
			return flags.ClassNegZero
		}
		return flags.ClassPosZero
	}
	denorm := u.topExp() < f.Emin
	switch {
	case u.neg && denorm:
		return flags.ClassNegDenorm
	case u.neg:
		return flags.ClassNegNormal
	case denorm:
		return flags.ClassPosDenorm
	default:
		return flags.ClassPosNormal
	}
}

func fromUnpacked(u unpacked) exact {
	return exact{neg: u.neg, mag: new(big.Int).SetUint64(u.mant), exp: u.exp}
}

// Exact sum of two finite (or zero) values.
func addExact(a, b exact) exact {
	e := a.exp
	if b.exp < e {
		e = b.exp
	}
	am := new(big.Int).Lsh(a.mag, uint(a.exp-e))
	bm := new(big.Int).Lsh(b.mag, uint(b.exp-e))
	if a.neg {
		am.Neg(am)
	}
	if b.neg {
		bm.Neg(bm)
	}
	s := am.Add(am, bm)
	r := exact{neg: s.Sign() < 0, mag: new(big.Int).Abs(s), exp: e}
	return r
}

func mulExact(a, b exact) exact {
	return exact{
		neg: a.neg != b.neg,
		mag: new(big.Int).Mul(a.mag, b.mag),
		exp: a.exp + b.exp,
	}
}

// Quotient with enough bits for correct rounding into a double plus a
// sticky bit for the remainder.
func divExact(a, b exact) exact {
	const extra = 2*53 + 4
	num := new(big.Int).Lsh(a.mag, extra)
	q, r := new(big.Int).QuoRem(num, b.mag, new(big.Int))
	return exact{
		neg:    a.neg != b.neg,
		mag:    q,
		exp:    a.exp - extra - b.exp,
		sticky: r.Sign() != 0,
	}
}

func sqrtExact(a exact) exact {
	m := new(big.Int).Set(a.mag)
	e := a.exp
	const extra = 2*53 + 4
	m.Lsh(m, extra)
	e -= extra
	if e%2 != 0 {
		m.Lsh(m, 1)
		e--
	}
	s := new(big.Int).Sqrt(m)
	sq := new(big.Int).Mul(s, s)
	return exact{mag: s, exp: e / 2, sticky: sq.Cmp(m) != 0}
}

// Widen a stored single to the register format (lfs). Values are
// preserved exactly and denormals are normalized. A signaling NaN
// comes back quiet. No status is touched.
func WidenSingle(w uint32) uint64 {
	sign := uint64(w>>31) << 63
	e := (w >> 23) & 0xff
	f := uint64(w & 0x7fffff)
	switch {
	case e == 0xff && f != 0:
		return sign | expMask | f<<29 | quietBit
	case e == 0xff:
		return sign | expMask
	case e == 0 && f == 0:
		return sign
	case e == 0:
		// Normalize the denormal.
		exp := -126
		for f&(1<<23) == 0 {
			f <<= 1
			exp--
		}
		return sign | uint64(exp+1023)<<52 | (f&0x7fffff)<<29
	default:
		return sign | uint64(int(e)-127+1023)<<52 | f<<29
	}
}

// Narrow a register value to a stored single (stfs). Values in single
// normal range keep their top bits without rounding. Values below it
// are shifted into the single denormal range; when that drops one bits
// UX is raised, and a value too small for any single denormal is
// stored as a signed zero.
func NarrowSingle(d uint64, prior flags.FPSCR) (uint32, flags.FPSCR) {
	fp := prior
	w, lost := narrowBits(d)
	if lost {
		fp.Raise(flags.UX)
	}
	return w, fp
}

// The bit transformation behind stfs, and whether a tiny value lost
// bits on the way.
func narrowBits(d uint64) (uint32, bool) {
	e := int((d & expMask) >> 52)
	if e > 896 || d&^SignBit == 0 {
		return uint32(d>>62)<<30 | uint32((d>>29)&0x3fffffff), false
	}
	sign := uint32(d>>63) << 31
	if e < 874 {
		return sign, true
	}
	frac := (d & fracMask) | 1<<52
	shift := uint(897 - e)
	lost := frac&(uint64(1)<<(29+shift)-1) != 0
	return sign | uint32((frac>>(29+shift))&0x7fffff), lost
}

// Whether a double is representable in single range: zero, infinity,
// NaN, or an exponent inside the single format.
func InSingleRange(b uint64) bool {
	u := unpack(b)
	if u.kind != kFinite {
		return true
	}
	t := u.topExp()
	return t >= Single.Emin-int(Single.Frac) && t <= Single.Emax
}
