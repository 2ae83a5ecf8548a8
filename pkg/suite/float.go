package suite

import (
	"fmt"

	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// Value left in the target register before every FP case, so a write
// that should not happen shows up.
const fpSentinel uint64 = 0x5555555555555555

const (
	one      uint64 = 0x3ff0000000000000
	two      uint64 = 0x4000000000000000
	three    uint64 = 0x4008000000000000
	half     uint64 = 0x3fe0000000000000
	onePoint uint64 = 0x3ff8000000000000 // 1.5
	tenth    uint64 = 0x3fb999999999999a
	qnanA    uint64 = 0x7ff800000000000a
	qnanB    uint64 = 0x7ff800000000000b
	qnanC    uint64 = 0x7ff800000000000c
	snan     uint64 = 0x7ff0000000000001
	big200   uint64 = 0x4c70000000000000 // 2^200
)

var fpOperands = []uint64{
	0,
	oracle.SignBit,
	one,
	one | oracle.SignBit,
	onePoint,
	tenth,
	0x7fefffffffffffff,
	0x0010000000000000,
	0x0000000000000001,
	oracle.PosInf,
	oracle.NegInf,
	qnanA,
	snan,
	big200,
}

// A short list for the three-operand forms.
var fusedOperands = []uint64{0, one | oracle.SignBit, tenth, oracle.PosInf, qnanA, snan}

func fpscrState(bits uint32) flags.MachineState {
	return flags.MachineState{FPSCR: flags.FPSCR(bits)}
}

var fpPriors = []flags.MachineState{
	{},
	fpscrState(flags.VE),
	fpscrState(flags.ZE),
	fpscrState(flags.OE | flags.UE | flags.XE),
	fpscrState(uint32(flags.RoundPlusInf)),
	fpscrState(uint32(flags.RoundMinusInf)),
	fpscrState(uint32(flags.RoundZero) | flags.FX | flags.XX | flags.VXSNAN | flags.VX),
}

type fpDef struct {
	name string
	op   oracle.FPOp
}

var binaryFP = []fpDef{
	{"fadd", oracle.FPOp{Kind: oracle.FAdd}},
	{"fsub", oracle.FPOp{Kind: oracle.FSub}},
	{"fdiv", oracle.FPOp{Kind: oracle.FDiv}},
	{"fadds", oracle.FPOp{Kind: oracle.FAdd, Single: true}},
	{"fsubs", oracle.FPOp{Kind: oracle.FSub, Single: true}},
	{"fdivs", oracle.FPOp{Kind: oracle.FDiv, Single: true}},
}

var multiplyFP = []fpDef{
	{"fmul", oracle.FPOp{Kind: oracle.FMul}},
	{"fmuls", oracle.FPOp{Kind: oracle.FMul, Single: true}},
}

var unaryFP = []fpDef{
	{"fsqrt", oracle.FPOp{Kind: oracle.FSqrt}},
	{"fsqrts", oracle.FPOp{Kind: oracle.FSqrt, Single: true}},
	{"frsp", oracle.FPOp{Kind: oracle.FRsp}},
	{"fctiw", oracle.FPOp{Kind: oracle.FCtiw}},
	{"fctiwz", oracle.FPOp{Kind: oracle.FCtiwz}},
	{"fctid", oracle.FPOp{Kind: oracle.FCtid}},
	{"fctidz", oracle.FPOp{Kind: oracle.FCtidz}},
	{"fcfid", oracle.FPOp{Kind: oracle.FCfid}},
	{"fres", oracle.FPOp{Kind: oracle.FRes}},
	{"frsqrte", oracle.FPOp{Kind: oracle.FRsqrte}},
}

var fusedFP = []fpDef{
	{"fmadd", oracle.FPOp{Kind: oracle.FMAdd}},
	{"fmsub", oracle.FPOp{Kind: oracle.FMSub}},
	{"fnmadd", oracle.FPOp{Kind: oracle.FNMAdd}},
	{"fnmsub", oracle.FPOp{Kind: oracle.FNMSub}},
	{"fmadds", oracle.FPOp{Kind: oracle.FMAdd, Single: true}},
	{"fmsubs", oracle.FPOp{Kind: oracle.FMSub, Single: true}},
	{"fnmadds", oracle.FPOp{Kind: oracle.FNMAdd, Single: true}},
	{"fnmsubs", oracle.FPOp{Kind: oracle.FNMSub, Single: true}},
}

// Record forms that are exercised. fadd., fsub., fmul. and fctid. are
// left out.
var recordFP = map[string]bool{
	"fdiv": true, "fsqrt": true, "frsp": true, "fctiw": true, "fmadd": true, "fdivs": true,
	"fres": true, "frsqrte": true,
}

func fpCase(b *builder, d fpDef, line string, prior flags.MachineState, regs map[int]uint64, a, bb, c uint64) {
	op := d.op
	name := d.name
	if len(line) > len(d.name) && line[len(d.name)] == '.' {
		op.Rc = true
		name += "."
	}
	r := oracle.FP(op, a, bb, c, prior)
	regs[1] = fpSentinel
	b.single(fmt.Sprintf("%s %x,%x,%x %s", name, a, bb, c, prior), harness.FamilyFloat, line,
		harness.Setup{FPR: regs, State: prior},
		harness.ExpectFloat(1, fpSentinel, r))
}

func floatCases(b *builder) {
	for _, prior := range fpPriors {
		for _, d := range binaryFP {
			for _, x := range fpOperands {
				for _, y := range fpOperands {
					fpCase(b, d, d.name+" f1,f2,f3", prior, map[int]uint64{2: x, 3: y}, x, y, 0)
				}
			}
		}
		for _, d := range multiplyFP {
			for _, x := range fpOperands {
				for _, y := range fpOperands {
					fpCase(b, d, d.name+" f1,f2,f3", prior, map[int]uint64{2: x, 3: y}, x, 0, y)
				}
			}
		}
		for _, d := range unaryFP {
			for _, x := range append(fpOperands, 0x41e0000000000000, 0xc1e0000000000000, 0x8000000000000001) {
				fpCase(b, d, d.name+" f1,f3", prior, map[int]uint64{3: x}, 0, x, 0)
			}
		}
		for _, d := range fusedFP {
			for _, x := range fusedOperands {
				for _, y := range fusedOperands {
					for _, z := range fusedOperands {
						fpCase(b, d, d.name+" f1,f2,f3,f4", prior, map[int]uint64{2: x, 3: y, 4: z}, x, z, y)
					}
				}
			}
		}
	}

	// Record forms on the clean and the trapping states only.
	for _, prior := range fpPriors[:3] {
		for _, d := range append(append(binaryFP, unaryFP...), fusedFP...) {
			if !recordFP[d.name] {
				continue
			}
			for _, x := range fpOperands {
				switch d.op.Kind {
				case oracle.FMAdd:
					fpCase(b, d, d.name+". f1,f2,f3,f4", prior, map[int]uint64{2: x, 3: x, 4: one}, x, one, x)
				case oracle.FDiv:
					fpCase(b, d, d.name+". f1,f2,f3", prior, map[int]uint64{2: one, 3: x}, one, x, 0)
				default:
					fpCase(b, d, d.name+". f1,f3", prior, map[int]uint64{3: x}, 0, x, 0)
				}
			}
		}
	}

	fpSelectCases(b)
	fpCompareCases(b)
	fpscrMoveCases(b)
	fpMoveCases(b)
	floatSpots(b)
}

// fsel picks between frC and frB on the sign of frA and never touches
// the FPSCR.
func fpSelectCases(b *builder) {
	for _, prior := range []flags.MachineState{{}, fpscrState(flags.FX | flags.VXSNAN | flags.VX | flags.VE)} {
		for _, rc := range []string{"", "."} {
			st := prior
			if rc != "" {
				st = oracle.RecordCR1(st)
			}
			for _, a := range fpOperands {
				for _, c := range []uint64{one, qnanC} {
					v := oracle.FSelect(a, two, c)
					b.single(fmt.Sprintf("fsel%s %x,%x %s", rc, a, c, prior), harness.FamilyFloat,
						"fsel"+rc+" f1,f2,f3,f4",
						harness.Setup{FPR: map[int]uint64{1: fpSentinel, 2: a, 3: c, 4: two}, State: prior},
						harness.FloatCheck{Reg: 1, Value: v, FPSCR: uint32(st.FPSCR), CR: uint32(st.CR)})
				}
			}
		}
	}
}

func fpCompareCases(b *builder) {
	for _, prior := range []flags.MachineState{{}, fpscrState(flags.VE), {CR: 0xffffffff}} {
		for _, bf := range []int{0, 6} {
			for _, x := range fpOperands {
				for _, y := range fpOperands {
					for _, name := range []string{"fcmpu", "fcmpo"} {
						want := oracle.FCompare(bf, x, y, name == "fcmpo", prior)
						b.single(fmt.Sprintf("%s cr%d %x,%x %s", name, bf, x, y, prior), harness.FamilyFloat,
							fmt.Sprintf("%s %d,f2,f3", name, bf),
							harness.Setup{FPR: map[int]uint64{2: x, 3: y}, State: prior},
							harness.FlagsCheck{Want: want})
					}
				}
			}
		}
	}
}

func fpscrMoveCases(b *builder) {
	f := harness.FamilyFloat
	values := []uint32{0, 0xffffffff, flags.ZX | flags.ZE, flags.VXSNAN, 0x00000003, flags.FX | flags.FEX | flags.VX}
	priors := []flags.MachineState{{}, fpscrState(flags.ZX | flags.FX), fpscrState(flags.VE | flags.XE | 2)}

	for _, prior := range priors {
		for _, rc := range []string{"", "."} {
			for _, flm := range []uint8{0xff, 0x80, 0x01, 0x0c} {
				for _, v := range values {
					st := prior
					st.FPSCR = oracle.MoveToFPSCRFields(prior.FPSCR, flm, v)
					if rc != "" {
						st = oracle.RecordCR1(st)
					}
					b.single(fmt.Sprintf("mtfsf%s 0x%02x,%08x %s", rc, flm, v, prior), f,
						fmt.Sprintf("mtfsf%s 0x%x,f2", rc, flm),
						harness.Setup{FPR: map[int]uint64{2: uint64(v)}, State: prior},
						harness.FlagsCheck{Want: st})
				}
			}
			for _, bf := range []int{0, 3, 7} {
				for _, u := range []uint8{0, 3, 0xf} {
					st := prior
					st.FPSCR = oracle.MoveToFPSCRImmediate(prior.FPSCR, bf, u)
					if rc != "" {
						st = oracle.RecordCR1(st)
					}
					b.single(fmt.Sprintf("mtfsfi%s %d,%d %s", rc, bf, u, prior), f,
						fmt.Sprintf("mtfsfi%s %d,%d", rc, bf, u),
						harness.Setup{State: prior},
						harness.FlagsCheck{Want: st})
				}
			}
			for _, bt := range []int{0, 1, 2, 3, 5, 7, 13, 24, 29, 30} {
				set, clr := prior, prior
				set.FPSCR = oracle.SetFPSCRBit(prior.FPSCR, bt)
				clr.FPSCR = oracle.ClearFPSCRBit(prior.FPSCR, bt)
				if rc != "" {
					set, clr = oracle.RecordCR1(set), oracle.RecordCR1(clr)
				}
				b.single(fmt.Sprintf("mtfsb1%s %d %s", rc, bt, prior), f,
					fmt.Sprintf("mtfsb1%s %d", rc, bt),
					harness.Setup{State: prior}, harness.FlagsCheck{Want: set})
				b.single(fmt.Sprintf("mtfsb0%s %d %s", rc, bt, prior), f,
					fmt.Sprintf("mtfsb0%s %d", rc, bt),
					harness.Setup{State: prior}, harness.FlagsCheck{Want: clr})
			}
			st := prior
			if rc != "" {
				st = oracle.RecordCR1(st)
			}
			b.single(fmt.Sprintf("mffs%s %s", rc, prior), f, "mffs"+rc+" f1",
				harness.Setup{State: prior},
				harness.FloatCheck{Reg: 1, Value: uint64(prior.FPSCR), LowWord: true, FPSCR: uint32(st.FPSCR), CR: uint32(st.CR)})
		}
	}
}

// fmr, fneg, fabs and fnabs move bits and never touch the FPSCR, not
// even for a signalling NaN.
func fpMoveCases(b *builder) {
	moves := []struct {
		name string
		f    func(uint64) uint64
	}{
		{"fmr", func(x uint64) uint64 { return x }},
		{"fneg", func(x uint64) uint64 { return x ^ oracle.SignBit }},
		{"fabs", func(x uint64) uint64 { return x &^ oracle.SignBit }},
		{"fnabs", func(x uint64) uint64 { return x | oracle.SignBit }},
	}
	prior := fpscrState(flags.FX | flags.OX | flags.OE | flags.FEX)
	for _, m := range moves {
		for _, x := range fpOperands {
			b.single(fmt.Sprintf("%s %x", m.name, x), harness.FamilyFloat, m.name+" f1,f3",
				harness.Setup{FPR: map[int]uint64{3: x}, State: prior},
				harness.FloatCheck{Reg: 1, Value: m.f(x), FPSCR: uint32(prior.FPSCR)})
			st := oracle.RecordCR1(prior)
			b.single(fmt.Sprintf("%s. %x", m.name, x), harness.FamilyFloat, m.name+". f1,f3",
				harness.Setup{FPR: map[int]uint64{3: x}, State: prior},
				harness.FloatCheck{Reg: 1, Value: m.f(x), FPSCR: uint32(st.FPSCR), CR: uint32(st.CR)})
		}
	}
}

// Hand-computed floating point results.
func floatSpots(b *builder) {
	f := harness.FamilyFloat
	regs := func(r map[int]uint64) map[int]uint64 {
		r[1] = fpSentinel
		return r
	}
	classNormal := uint32(flags.ClassPosNormal) << 12
	classQNaN := uint32(flags.ClassQNaN) << 12

	b.single("fadd 1+2", f, "fadd f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: one, 3: two})},
		harness.FloatCheck{Reg: 1, Value: three, FPSCR: classNormal})
	b.single("fdiv 1/0", f, "fdiv f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: one, 3: 0})},
		harness.FloatCheck{Reg: 1, Value: oracle.PosInf, FPSCR: 0x84005000})
	b.single("fdiv 1/0 ZE enabled", f, "fdiv f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: one, 3: 0}), State: fpscrState(flags.ZE)},
		harness.FloatCheck{Reg: 1, Value: fpSentinel, FPSCR: 0xc4000010})
	b.single("fmul inf*0", f, "fmul f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: oracle.PosInf, 3: 0})},
		harness.FloatCheck{Reg: 1, Value: oracle.DefaultQNaN, FPSCR: 0xa0111000})
	b.single("fmul inf*0 VE enabled", f, "fmul f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: oracle.PosInf, 3: 0}), State: fpscrState(flags.VE)},
		harness.FloatCheck{Reg: 1, Value: fpSentinel, FPSCR: 0xe0100080})
	b.single("fadd inf-inf", f, "fadd f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: oracle.PosInf, 3: oracle.NegInf})},
		harness.FloatCheck{Reg: 1, Value: oracle.DefaultQNaN, FPSCR: 0xa0811000})
	b.single("fsqrt -1", f, "fsqrt f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: one | oracle.SignBit})},
		harness.FloatCheck{Reg: 1, Value: oracle.DefaultQNaN, FPSCR: 0xa0011200})

	// NaN precedence: A, then C, then B.
	b.single("fadd NaN precedence", f, "fadd f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: qnanA, 3: qnanB})},
		harness.FloatCheck{Reg: 1, Value: qnanA, FPSCR: classQNaN})
	b.single("fmadd NaN precedence", f, "fmadd f1,f2,f3,f4",
		harness.Setup{FPR: regs(map[int]uint64{2: one, 3: qnanC, 4: qnanB})},
		harness.FloatCheck{Reg: 1, Value: qnanC, FPSCR: classQNaN})
	b.single("fmadd inf*0+SNaN", f, "fmadd f1,f2,f3,f4",
		harness.Setup{FPR: regs(map[int]uint64{2: oracle.PosInf, 3: 0, 4: snan})},
		harness.FloatCheck{Reg: 1, Value: oracle.Quiet(snan), FPSCR: 0xa1111000})

	// frsp of 1+2^-24, halfway between two singles, in every mode.
	halfway := uint64(0x3ff0000010000000)
	up := uint64(0x3ff0000020000000)
	frsp := []struct {
		mode  flags.RoundingMode
		want  uint64
		fpscr uint32
	}{
		{flags.RoundNearest, one, 0x82024000},
		{flags.RoundZero, one, 0x82024001},
		{flags.RoundPlusInf, up, 0x82064002},
		{flags.RoundMinusInf, one, 0x82024003},
	}
	for _, tc := range frsp {
		b.single("frsp halfway "+tc.mode.String(), f, "frsp f1,f3",
			harness.Setup{FPR: regs(map[int]uint64{3: halfway}), State: fpscrState(uint32(tc.mode))},
			harness.FloatCheck{Reg: 1, Value: tc.want, FPSCR: tc.fpscr})
	}
	b.single("frsp round trip", f, "frsp f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: onePoint})},
		harness.FloatCheck{Reg: 1, Value: onePoint, FPSCR: classNormal})
	b.single("frsp 0.1", f, "frsp f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: tenth})},
		harness.FloatCheck{Reg: 1, Value: 0x3fb99999a0000000, FPSCR: 0x82064000})

	// A sticky bit that is already set does not raise FX again.
	b.single("frsp 0.1 XX already set", f, "frsp f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: tenth}), State: fpscrState(flags.XX)},
		harness.FloatCheck{Reg: 1, Value: 0x3fb99999a0000000, FPSCR: 0x02064000})
	b.sequence("fdiv 1/0 twice, FX cleared between", f,
		[]string{"fdiv f1,f2,f3", "mtfsb0 0", "fdiv f1,f2,f3"},
		harness.Setup{FPR: regs(map[int]uint64{2: one, 3: 0})},
		harness.FloatCheck{Reg: 1, Value: oracle.PosInf, FPSCR: 0x04005000})

	// Conversion sentinels.
	cvi := uint32(0xa0000100)
	b.single("fctiw NaN", f, "fctiw f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: qnanA})},
		harness.FloatCheck{Reg: 1, Value: 0x80000000, LowWord: true, FPSCR: cvi})
	b.single("fctiw 2^40", f, "fctiw f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: 0x4270000000000000})},
		harness.FloatCheck{Reg: 1, Value: 0x7fffffff, LowWord: true, FPSCR: cvi})
	b.single("fctid +inf", f, "fctid f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: oracle.PosInf})},
		harness.FloatCheck{Reg: 1, Value: 0x7fffffffffffffff, FPSCR: cvi})
	b.single("fctid -inf", f, "fctid f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: oracle.NegInf})},
		harness.FloatCheck{Reg: 1, Value: 0x8000000000000000, FPSCR: cvi})
	b.single("fctid 2^40", f, "fctid f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: 0x4270000000000000})},
		harness.FloatCheck{Reg: 1, Value: 0x10000000000})
	b.single("fctiw 1.5", f, "fctiw f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: onePoint})},
		harness.FloatCheck{Reg: 1, Value: 2, LowWord: true, FPSCR: 0x82060000})
	b.single("fctiwz 1.5", f, "fctiwz f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: onePoint})},
		harness.FloatCheck{Reg: 1, Value: 1, LowWord: true, FPSCR: 0x82020000})

	// fdivs with an operand outside single range divides in double.
	b.single("fdivs 2^200/3", f, "fdivs f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: big200, 3: three})},
		harness.FloatCheck{Reg: 1, Value: 0x4c55555555555555, FPSCR: 0x82024000})
	b.single("fmuls 0.5*3", f, "fmuls f1,f2,f3",
		harness.Setup{FPR: regs(map[int]uint64{2: half, 3: three})},
		harness.FloatCheck{Reg: 1, Value: onePoint, FPSCR: classNormal})

	// Estimates only have to land within the architected precision.
	b.single("fres 2", f, "fres f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: two})},
		harness.FloatCheck{Reg: 1, Value: half, FPSCR: classNormal, Tolerance: oracle.ResPrecision})
	b.single("fres 3", f, "fres f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: three})},
		harness.FloatCheck{Reg: 1, Value: 0x3fd5555560000000, FPSCR: classNormal, Tolerance: oracle.ResPrecision})
	b.single("fres +0", f, "fres f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: 0})},
		harness.FloatCheck{Reg: 1, Value: oracle.PosInf, FPSCR: 0x84005000})
	b.single("fres -inf", f, "fres f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: oracle.NegInf})},
		harness.FloatCheck{Reg: 1, Value: oracle.SignBit, FPSCR: uint32(flags.ClassNegZero) << 12})
	b.single("frsqrte 4", f, "frsqrte f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: 0x4010000000000000})},
		harness.FloatCheck{Reg: 1, Value: half, FPSCR: classNormal, Tolerance: oracle.RsqrtPrecision})
	b.single("frsqrte -1", f, "frsqrte f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: one | oracle.SignBit})},
		harness.FloatCheck{Reg: 1, Value: oracle.DefaultQNaN, FPSCR: 0xa0011200})
	b.single("frsqrte -0", f, "frsqrte f1,f3",
		harness.Setup{FPR: regs(map[int]uint64{3: oracle.SignBit})},
		harness.FloatCheck{Reg: 1, Value: oracle.NegInf, FPSCR: 0x84009000})

	b.single("fsel -0 picks frC", f, "fsel f1,f2,f3,f4",
		harness.Setup{FPR: regs(map[int]uint64{2: oracle.SignBit, 3: one, 4: two})},
		harness.FloatCheck{Reg: 1, Value: one})
	b.single("fsel -1 picks frB", f, "fsel f1,f2,f3,f4",
		harness.Setup{FPR: regs(map[int]uint64{2: one | oracle.SignBit, 3: one, 4: two})},
		harness.FloatCheck{Reg: 1, Value: two})
	b.single("fsel NaN picks frB", f, "fsel f1,f2,f3,f4",
		harness.Setup{FPR: regs(map[int]uint64{2: snan, 3: one, 4: two})},
		harness.FloatCheck{Reg: 1, Value: two})
}
