package oracle

import (
	"math"

	"github.com/vatine/ppuconform/pkg/flags"
)

// A 128-bit vector register as four big-endian words; word 0 holds
// byte elements 0 to 3.
type Vec [4]uint32

func (v Vec) Byte(i int) uint8 {
	return uint8(v[i/4] >> (24 - 8*uint(i%4)))
}

func (v *Vec) SetByte(i int, b uint8) {
	shift := 24 - 8*uint(i%4)
	v[i/4] = (v[i/4] &^ (0xff << shift)) | uint32(b)<<shift
}

func (v Vec) Half(i int) uint16 {
	return uint16(v[i/2] >> (16 - 16*uint(i%2)))
}

func (v *Vec) SetHalf(i int, h uint16) {
	shift := 16 - 16*uint(i%2)
	v[i/2] = (v[i/2] &^ (0xffff << shift)) | uint32(h)<<shift
}

// Element width in bits: 8, 16 or 32.
type Lane uint

const (
	Byte Lane = 8
	Half Lane = 16
	Word Lane = 32
)

func (l Lane) count() int { return 128 / int(l) }

func (v Vec) lane(l Lane, i int) uint32 {
	switch l {
	case Byte:
		return uint32(v.Byte(i))
	case Half:
		return uint32(v.Half(i))
	default:
		return v[i]
	}
}

func (v *Vec) setLane(l Lane, i int, x uint32) {
	switch l {
	case Byte:
		v.SetByte(i, uint8(x))
	case Half:
		v.SetHalf(i, uint16(x))
	default:
		v[i] = x
	}
}

func signExt(x uint32, l Lane) int64 {
	shift := 64 - uint(l)
	return int64(uint64(x)<<shift) >> shift
}

// Clamp a wide value into a lane, reporting whether it saturated.
func saturate(x int64, l Lane, signed bool) (uint32, bool) {
	var lo, hi int64
	if signed {
		lo, hi = -(1 << (l - 1)), (1<<(l-1))-1
	} else {
		lo, hi = 0, (1<<l)-1
	}
	switch {
	case x < lo:
		return uint32(lo), true
	case x > hi:
		return uint32(hi), true
	}
	return uint32(x), false
}

// Integer vector add or subtract. Modulo forms (saturating false)
// never look at or touch SAT.
type VecIntOp struct {
	Lane       Lane
	Sub        bool
	Saturating bool
	Signed     bool
}

func VecInt(op VecIntOp, a, b Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	st := prior
	var r Vec
	sat := false
	for i := 0; i < op.Lane.count(); i++ {
		x, y := a.lane(op.Lane, i), b.lane(op.Lane, i)
		if !op.Saturating {
			v := x + y
			if op.Sub {
				v = x - y
			}
			r.setLane(op.Lane, i, v)
			continue
		}
		var wx, wy int64
		if op.Signed {
			wx, wy = signExt(x, op.Lane), signExt(y, op.Lane)
		} else {
			wx, wy = int64(x), int64(y)
		}
		w := wx + wy
		if op.Sub {
			w = wx - wy
		}
		v, s := saturate(w, op.Lane, op.Signed)
		sat = sat || s
		r.setLane(op.Lane, i, v)
	}
	if sat {
		st.VSCR.SetSAT()
	}
	return r, st
}

// Pack two vectors of wide lanes (From) into one of half-width lanes.
// The concatenation a||b supplies the sources in order.
type PackOp struct {
	From       Lane
	SrcSigned  bool
	DstSigned  bool
	Saturating bool
}

func Pack(op PackOp, a, b Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	st := prior
	to := op.From / 2
	n := op.From.count()
	var r Vec
	sat := false
	for i := 0; i < 2*n; i++ {
		src := a
		j := i
		if i >= n {
			src, j = b, i-n
		}
		x := src.lane(op.From, j)
		if !op.Saturating {
			r.setLane(to, i, x)
			continue
		}
		w := int64(x)
		if op.SrcSigned {
			w = signExt(x, op.From)
		}
		v, s := saturate(w, to, op.DstSigned)
		sat = sat || s
		r.setLane(to, i, v)
	}
	if sat {
		st.VSCR.SetSAT()
	}
	return r, st
}

// The CR6 nibble of a vector compare record form.
func CR6(all, none bool) uint8 {
	var n uint8
	if all {
		n |= flags.LT
	}
	if none {
		n |= flags.EQ
	}
	return n
}

type VecCmpKind int

const (
	CmpEqual VecCmpKind = iota
	CmpGreaterUnsigned
	CmpGreaterSigned
	CmpEqualFloat
	CmpGreaterEqualFloat
	CmpGreaterFloat
	CmpBoundsFloat
)

type VecCmpOp struct {
	Kind VecCmpKind
	Lane Lane
	Rc   bool
}

func VecCompare(op VecCmpOp, a, b Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	st := prior
	l := op.Lane
	if op.Kind >= CmpEqualFloat {
		l = Word
	}
	nj := prior.VSCR.NJ()
	var r Vec
	all, none := true, true
	inBounds := true
	for i := 0; i < l.count(); i++ {
		x, y := a.lane(l, i), b.lane(l, i)
		if op.Kind == CmpBoundsFloat {
			v := boundsLane(x, y, nj)
			r[i] = v
			if v != 0 {
				inBounds = false
			}
			continue
		}
		var t bool
		switch op.Kind {
		case CmpEqual:
			t = x == y
		case CmpGreaterUnsigned:
			t = x > y
		case CmpGreaterSigned:
			t = signExt(x, l) > signExt(y, l)
		case CmpEqualFloat:
			t = vfloat(x, nj) == vfloat(y, nj)
		case CmpGreaterEqualFloat:
			t = vfloat(x, nj) >= vfloat(y, nj)
		case CmpGreaterFloat:
			t = vfloat(x, nj) > vfloat(y, nj)
		}
		if t {
			r.setLane(l, i, uint32(1)<<l-1)
			none = false
		} else {
			all = false
		}
	}
	if op.Rc {
		if op.Kind == CmpBoundsFloat {
			// EQ here means every lane is within bounds.
			st.CR.SetField(6, CR6(false, inBounds))
		} else {
			st.CR.SetField(6, CR6(all, none))
		}
	}
	return r, st
}

// vcmpbfp lane: bit 0 set when a > b, bit 1 set when a < -b. NaN
// operands set both.
func boundsLane(x, y uint32, nj bool) uint32 {
	a, b := vfloat(x, nj), vfloat(y, nj)
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return 0xc0000000
	}
	var v uint32
	if !(a <= b) {
		v |= 0x80000000
	}
	if !(a >= -b) {
		v |= 0x40000000
	}
	return v
}

// Interpret a lane as a single, flushing denormals to a signed zero in
// non-Java mode.
func vfloat(x uint32, nj bool) float32 {
	if nj && x&0x7f800000 == 0 {
		x &= 0x80000000
	}
	return math.Float32frombits(x)
}

func flushSingle(x uint32) uint32 {
	if x&0x7f800000 == 0 {
		return x & 0x80000000
	}
	return x
}

// vaddfp and vsubfp: round to nearest, no status bits. NaN results are
// the first NaN operand quieted, or the default NaN.
func VecFloat(sub bool, a, b Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	nj := prior.VSCR.NJ()
	var r Vec
	for i := 0; i < 4; i++ {
		x, y := a[i], b[i]
		if nj {
			x, y = flushSingle(x), flushSingle(y)
		}
		if sub {
			y ^= 0x80000000
			if isNaN32(b[i]) {
				y = b[i]
			}
		}
		v := addSingle(x, y)
		if nj {
			v = flushSingle(v)
		}
		r[i] = v
	}
	return r, prior
}

func isNaN32(x uint32) bool {
	return x&0x7f800000 == 0x7f800000 && x&0x7fffff != 0
}

func addSingle(x, y uint32) uint32 {
	switch {
	case isNaN32(x):
		return x | 0x400000
	case isNaN32(y):
		return y | 0x400000
	}
	var fp flags.FPSCR
	res := arith(FPOp{Kind: FAdd, Single: true}, WidenSingle(x), WidenSingle(y), 0, &fp)
	if IsNaN(res.Value) {
		return 0x7fc00000
	}
	w, _ := narrowBits(res.Value)
	return w
}

// vmaddfp and vnmsubfp: a*c+b, or -(a*c-b), rounded once to nearest.
// NaN operands propagate in the order a, b, c.
func VecMultiplyAdd(negSub bool, a, b, c Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	nj := prior.VSCR.NJ()
	kind := FMAdd
	if negSub {
		kind = FNMSub
	}
	var r Vec
	for i := 0; i < 4; i++ {
		x, y, z := a[i], b[i], c[i]
		if nj {
			x, y, z = flushSingle(x), flushSingle(y), flushSingle(z)
		}
		var v uint32
		switch {
		case isNaN32(x):
			v = x | 0x400000
		case isNaN32(y):
			v = y | 0x400000
		case isNaN32(z):
			v = z | 0x400000
		default:
			var fp flags.FPSCR
			res := arith(FPOp{Kind: kind, Single: true}, WidenSingle(x), WidenSingle(y), WidenSingle(z), &fp)
			if IsNaN(res.Value) {
				v = 0x7fc00000
			} else {
				v, _ = narrowBits(res.Value)
			}
		}
		if nj {
			v = flushSingle(v)
		}
		r[i] = v
	}
	return r, prior
}

// vperm: byte i of the result is byte c[i]&0x1f of a||b.
func VecPerm(a, b, c Vec) Vec {
	var r Vec
	for i := 0; i < 16; i++ {
		sel := int(c.Byte(i) & 0x1f)
		src := a
		if sel >= 16 {
			src, sel = b, sel-16
		}
		r.SetByte(i, src.Byte(sel))
	}
	return r
}

// vsel: bits of b where c is set, bits of a elsewhere.
func VecSelect(a, b, c Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = a[i]&^c[i] | b[i]&c[i]
	}
	return r
}

// vspltb, vsplth, vspltw. Only the low bits of uimm that can index a
// lane are used.
func VecSplat(l Lane, uimm uint, b Vec) Vec {
	x := b.lane(l, int(uimm)&(l.count()-1))
	var r Vec
	for i := 0; i < l.count(); i++ {
		r.setLane(l, i, x)
	}
	return r
}

// vspltisb, vspltish, vspltisw: a 5-bit signed immediate, sign
// extended to the lane.
func VecSplatImm(l Lane, simm int64) Vec {
	var r Vec
	for i := 0; i < l.count(); i++ {
		r.setLane(l, i, uint32(simm))
	}
	return r
}

// Convert single lanes to saturated fixed point, scaled by 2^uimm.
// NaN lanes convert to zero.
func VecConvert(signed bool, uimm uint, b Vec, prior flags.MachineState) (Vec, flags.MachineState) {
	st := prior
	var r Vec
	sat := false
	for i := 0; i < 4; i++ {
		f := float64(vfloat(b[i], prior.VSCR.NJ()))
		if math.IsNaN(f) {
			r[i] = 0
			continue
		}
		f = math.Trunc(math.Ldexp(f, int(uimm)))
		var v uint32
		var s bool
		switch {
		case signed && f > math.MaxInt32:
			v, s = math.MaxInt32, true
		case signed && f < math.MinInt32:
			v, s = 0x80000000, true
		case signed:
			v = uint32(int32(f))
		case f > math.MaxUint32:
			v, s = math.MaxUint32, true
		case f < 0:
			v, s = 0, true
		default:
			v = uint32(f)
		}
		sat = sat || s
		r[i] = v
	}
	if sat {
		st.VSCR.SetSAT()
	}
	return r, st
}

// A two-operand vector operation with its flag effects.
type VecFunc func(a, b Vec, st flags.MachineState) (Vec, flags.MachineState)

func intVec(op VecIntOp) VecFunc {
	return func(a, b Vec, st flags.MachineState) (Vec, flags.MachineState) {
		return VecInt(op, a, b, st)
	}
}

func packVec(op PackOp) VecFunc {
	return func(a, b Vec, st flags.MachineState) (Vec, flags.MachineState) {
		return Pack(op, a, b, st)
	}
}

func floatVec(sub bool) VecFunc {
	return func(a, b Vec, st flags.MachineState) (Vec, flags.MachineState) {
		return VecFloat(sub, a, b, st)
	}
}

func wordsVec(g func(x, y uint32) uint32) VecFunc {
	return func(a, b Vec, st flags.MachineState) (Vec, flags.MachineState) {
		var r Vec
		for i := range r {
			r[i] = g(a[i], b[i])
		}
		return r, st
	}
}

// Every VX-form vector operation of the shape vD = f(vA, vB), by
// mnemonic.
var VecOps = map[string]VecFunc{
	"vaddubm": intVec(VecIntOp{Lane: Byte}),
	"vadduhm": intVec(VecIntOp{Lane: Half}),
	"vadduwm": intVec(VecIntOp{Lane: Word}),
	"vaddubs": intVec(VecIntOp{Lane: Byte, Saturating: true}),
	"vadduhs": intVec(VecIntOp{Lane: Half, Saturating: true}),
	"vadduws": intVec(VecIntOp{Lane: Word, Saturating: true}),
	"vaddsbs": intVec(VecIntOp{Lane: Byte, Saturating: true, Signed: true}),
	"vaddshs": intVec(VecIntOp{Lane: Half, Saturating: true, Signed: true}),
	"vaddsws": intVec(VecIntOp{Lane: Word, Saturating: true, Signed: true}),
	"vsububm": intVec(VecIntOp{Lane: Byte, Sub: true}),
	"vsubuhm": intVec(VecIntOp{Lane: Half, Sub: true}),
	"vsubuwm": intVec(VecIntOp{Lane: Word, Sub: true}),
	"vsububs": intVec(VecIntOp{Lane: Byte, Sub: true, Saturating: true}),
	"vsubuhs": intVec(VecIntOp{Lane: Half, Sub: true, Saturating: true}),
	"vsubuws": intVec(VecIntOp{Lane: Word, Sub: true, Saturating: true}),
	"vsubsbs": intVec(VecIntOp{Lane: Byte, Sub: true, Saturating: true, Signed: true}),
	"vsubshs": intVec(VecIntOp{Lane: Half, Sub: true, Saturating: true, Signed: true}),
	"vsubsws": intVec(VecIntOp{Lane: Word, Sub: true, Saturating: true, Signed: true}),
	"vpkuhum": packVec(PackOp{From: Half}),
	"vpkuwum": packVec(PackOp{From: Word}),
	"vpkuhus": packVec(PackOp{From: Half, Saturating: true}),
	"vpkuwus": packVec(PackOp{From: Word, Saturating: true}),
	"vpkshus": packVec(PackOp{From: Half, SrcSigned: true, Saturating: true}),
	"vpkswus": packVec(PackOp{From: Word, SrcSigned: true, Saturating: true}),
	"vpkshss": packVec(PackOp{From: Half, SrcSigned: true, DstSigned: true, Saturating: true}),
	"vpkswss": packVec(PackOp{From: Word, SrcSigned: true, DstSigned: true, Saturating: true}),
	"vaddfp":  floatVec(false),
	"vsubfp":  floatVec(true),
	"vand":    wordsVec(func(x, y uint32) uint32 { return x & y }),
	"vor":     wordsVec(func(x, y uint32) uint32 { return x | y }),
	"vxor":    wordsVec(func(x, y uint32) uint32 { return x ^ y }),
}

// Vector compares by base mnemonic; the record form sets Rc.
var VecCompares = map[string]VecCmpOp{
	"vcmpequb": {Kind: CmpEqual, Lane: Byte},
	"vcmpequh": {Kind: CmpEqual, Lane: Half},
	"vcmpequw": {Kind: CmpEqual, Lane: Word},
	"vcmpgtub": {Kind: CmpGreaterUnsigned, Lane: Byte},
	"vcmpgtuh": {Kind: CmpGreaterUnsigned, Lane: Half},
	"vcmpgtuw": {Kind: CmpGreaterUnsigned, Lane: Word},
	"vcmpgtsb": {Kind: CmpGreaterSigned, Lane: Byte},
	"vcmpgtsh": {Kind: CmpGreaterSigned, Lane: Half},
	"vcmpgtsw": {Kind: CmpGreaterSigned, Lane: Word},
	"vcmpeqfp": {Kind: CmpEqualFloat},
	"vcmpgefp": {Kind: CmpGreaterEqualFloat},
	"vcmpgtfp": {Kind: CmpGreaterFloat},
	"vcmpbfp":  {Kind: CmpBoundsFloat},
}

// Splat lane widths by mnemonic, for both the register and the
// immediate forms.
var VecSplats = map[string]Lane{
	"vspltb":   Byte,
	"vsplth":   Half,
	"vspltw":   Word,
	"vspltisb": Byte,
	"vspltish": Half,
	"vspltisw": Word,
}
