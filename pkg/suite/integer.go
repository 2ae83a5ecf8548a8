package suite

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
)

var intOperands = []uint64{
	0,
	1,
	0x7fffffff,
	0x80000000,
	0xffffffff,
	0x7fffffffffffffff,
	0x8000000000000000,
	0xffffffffffffffff,
}

var xerStates = []flags.XER{
	0,
	flags.XER(flags.XERSO),
	flags.XER(flags.XERCA),
	flags.XER(flags.XERSO | flags.XEROV | flags.XERCA),
}

type arithDef struct {
	name  string
	op    oracle.IntOp
	unary bool
	oe    bool
}

var arithDefs = []arithDef{
	{"add", oracle.IntOp{Kind: oracle.Add}, false, true},
	{"addc", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryOut}, false, true},
	{"adde", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryExtended}, false, true},
	{"addme", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryMinusOne}, true, true},
	{"addze", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryZero}, true, true},
	{"subf", oracle.IntOp{Kind: oracle.Subf}, false, true},
	{"subfc", oracle.IntOp{Kind: oracle.Subf, Carry: oracle.CarryOut}, false, true},
	{"subfe", oracle.IntOp{Kind: oracle.Subf, Carry: oracle.CarryExtended}, false, true},
	{"subfme", oracle.IntOp{Kind: oracle.Subf, Carry: oracle.CarryMinusOne}, true, true},
	{"subfze", oracle.IntOp{Kind: oracle.Subf, Carry: oracle.CarryZero}, true, true},
	{"neg", oracle.IntOp{Kind: oracle.Neg}, true, true},
	{"mullw", oracle.IntOp{Kind: oracle.Mullw}, false, true},
	{"mulld", oracle.IntOp{Kind: oracle.Mulld}, false, true},
	{"mulhw", oracle.IntOp{Kind: oracle.Mulhw}, false, false},
	{"mulhwu", oracle.IntOp{Kind: oracle.Mulhwu}, false, false},
	{"mulhd", oracle.IntOp{Kind: oracle.Mulhd}, false, false},
	{"mulhdu", oracle.IntOp{Kind: oracle.Mulhdu}, false, false},
	{"divw", oracle.IntOp{Kind: oracle.Divw}, false, true},
	{"divwu", oracle.IntOp{Kind: oracle.Divwu}, false, true},
	{"divd", oracle.IntOp{Kind: oracle.Divd}, false, true},
	{"divdu", oracle.IntOp{Kind: oracle.Divdu}, false, true},
}

var immArithDefs = []struct {
	name string
	op   oracle.IntOp
}{
	{"addic", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryOut}},
	{"addic.", oracle.IntOp{Kind: oracle.Add, Carry: oracle.CarryOut, Rc: true}},
	{"subfic", oracle.IntOp{Kind: oracle.Subf, Carry: oracle.CarryOut}},
	{"mulli", oracle.IntOp{Kind: oracle.Mulli}},
}

var immediates = []int64{0, 1, -1, 0x7fff, -0x8000}

func suffixes(oe bool) []string {
	if oe {
		return []string{"", "o", ".", "o."}
	}
	return []string{"", "."}
}

func integerCases(b *builder) {
	for _, d := range arithDefs {
		for _, sfx := range suffixes(d.oe) {
			op := d.op
			op.OE = strings.HasPrefix(sfx, "o")
			op.Rc = strings.HasSuffix(sfx, ".")
			for _, x := range xerStates {
				prior := flags.MachineState{XER: x}
				for _, ra := range intOperands {
					if d.unary {
						r := oracle.Int(op, ra, 0, prior)
						b.single(fmt.Sprintf("%s%s 0x%x%s", d.name, sfx, ra, xerName(x)), harness.FamilyInteger,
							fmt.Sprintf("%s%s r3,r4", d.name, sfx),
							harness.Setup{GPR: map[int]uint64{4: ra}, State: prior},
							harness.ExpectInt(3, r))
						continue
					}
					for _, rb := range intOperands {
						r := oracle.Int(op, ra, rb, prior)
						b.single(fmt.Sprintf("%s%s 0x%x,0x%x%s", d.name, sfx, ra, rb, xerName(x)), harness.FamilyInteger,
							fmt.Sprintf("%s%s r3,r4,r5", d.name, sfx),
							harness.Setup{GPR: map[int]uint64{4: ra, 5: rb}, State: prior},
							harness.ExpectInt(3, r))
					}
				}
			}
		}
	}

	for _, d := range immArithDefs {
		for _, x := range xerStates {
			prior := flags.MachineState{XER: x}
			for _, ra := range intOperands {
				for _, imm := range immediates {
					r := oracle.Int(d.op, ra, uint64(imm), prior)
					b.single(fmt.Sprintf("%s 0x%x,%d%s", d.name, ra, imm, xerName(x)), harness.FamilyInteger,
						fmt.Sprintf("%s r3,r4,%d", d.name, imm),
						harness.Setup{GPR: map[int]uint64{4: ra}, State: prior},
						harness.ExpectInt(3, r))
				}
			}
		}
	}

	integerSpots(b)
}

const (
	xerSO = flags.XERSO
	xerOV = flags.XEROV
	xerCA = flags.XERCA
)

// Hand-computed integer results.
func integerSpots(b *builder) {
	f := harness.FamilyInteger
	so := flags.MachineState{XER: flags.XER(xerSO)}

	// Carry out of addic, then no carry into the next addic.
	b.single("addic -1+3", f, "addic r3,r4,3",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Value: 2, XER: xerCA})
	b.sequence("addic -1+3 then +0", f, []string{"addic r3,r4,3", "addic r3,r3,0"},
		harness.Setup{GPR: map[int]uint64{4: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Value: 2})

	// CR0[SO] comes from XER[SO] as it was before the instruction.
	b.single("add. SO copy", f, "add. r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 1, 5: 0xffffffffffffffff}, State: so},
		harness.IntCheck{Reg: 3, Value: 0, XER: xerSO, CR: 0x30000000})
	b.single("addo. overflow", f, "addo. r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0x7fffffffffffffff, 5: 1}},
		harness.IntCheck{Reg: 3, Value: 0x8000000000000000, XER: xerSO | xerOV, CR: 0x80000000})
	b.single("addo. OV clears, SO stays", f, "addo. r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 1, 5: 1}, State: flags.MachineState{XER: flags.XER(xerSO | xerOV)}},
		harness.IntCheck{Reg: 3, Value: 2, XER: xerSO, CR: 0x50000000})

	// Undefined quotients still raise OV and SO.
	b.single("divwo. by zero", f, "divwo. r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 1, 5: 0}},
		harness.IntCheck{Reg: 3, Undefined: true, XER: xerSO | xerOV, CRMask: 0x0fffffff | uint32(flags.SO)<<28})
	b.single("divwo INT_MIN/-1", f, "divwo r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0x80000000, 5: 0xffffffff}},
		harness.IntCheck{Reg: 3, Undefined: true, XER: xerSO | xerOV})
	b.single("divdo INT_MIN/-1", f, "divdo r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0x8000000000000000, 5: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Undefined: true, XER: xerSO | xerOV})

	b.single("mullwo 2^16*2^16", f, "mullwo r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0x10000, 5: 0x10000}},
		harness.IntCheck{Reg: 3, Value: 0x100000000, XER: xerSO | xerOV})
	b.single("subfc 5-3", f, "subfc r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 3, 5: 5}},
		harness.IntCheck{Reg: 3, Value: 2, XER: xerCA})
	b.single("subfc 3-5", f, "subfc r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 5, 5: 3}},
		harness.IntCheck{Reg: 3, Value: 0xfffffffffffffffe})
	b.single("adde 1+1+CA", f, "adde r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 1, 5: 1}, State: flags.MachineState{XER: flags.XER(xerCA)}},
		harness.IntCheck{Reg: 3, Value: 3})
	b.single("nego INT_MIN", f, "nego r3,r4",
		harness.Setup{GPR: map[int]uint64{4: 0x8000000000000000}},
		harness.IntCheck{Reg: 3, Value: 0x8000000000000000, XER: xerSO | xerOV})
	b.single("addi rA=0", f, "addi r3,r0,-2",
		harness.Setup{GPR: map[int]uint64{0: 100}},
		harness.IntCheck{Reg: 3, Value: 0xfffffffffffffffe})
	b.single("addis", f, "addis r3,r4,0x1234",
		harness.Setup{GPR: map[int]uint64{4: 1}},
		harness.IntCheck{Reg: 3, Value: 0x12340001})
}

func compareCases(b *builder) {
	f := harness.FamilyCompare
	priors := []flags.MachineState{
		{},
		{XER: flags.XER(xerSO)},
		{CR: 0x12345678},
	}
	for _, prior := range priors {
		for _, bf := range []int{0, 7} {
			for _, l := range []int{0, 1} {
				for _, ra := range intOperands {
					for _, rb := range intOperands {
						for _, cmp := range []string{"cmp", "cmpl"} {
							want := oracle.Compare(bf, ra, rb, cmp == "cmp", l == 1, prior)
							b.single(fmt.Sprintf("%s cr%d,%d 0x%x,0x%x %s", cmp, bf, l, ra, rb, prior), f,
								fmt.Sprintf("%s %d,%d,r4,r5", cmp, bf, l),
								harness.Setup{GPR: map[int]uint64{4: ra, 5: rb}, State: prior},
								harness.FlagsCheck{Want: want})
						}
					}
					for _, imm := range immediates {
						want := oracle.Compare(bf, ra, uint64(imm), true, l == 1, prior)
						b.single(fmt.Sprintf("cmpi cr%d,%d 0x%x,%d %s", bf, l, ra, imm, prior), f,
							fmt.Sprintf("cmpi %d,%d,r4,%d", bf, l, imm),
							harness.Setup{GPR: map[int]uint64{4: ra}, State: prior},
							harness.FlagsCheck{Want: want})
					}
					for _, uimm := range []uint64{0, 1, 0x7fff, 0xffff} {
						want := oracle.Compare(bf, ra, uimm, false, l == 1, prior)
						b.single(fmt.Sprintf("cmpli cr%d,%d 0x%x,%d %s", bf, l, ra, uimm, prior), f,
							fmt.Sprintf("cmpli %d,%d,r4,%d", bf, l, uimm),
							harness.Setup{GPR: map[int]uint64{4: ra}, State: prior},
							harness.FlagsCheck{Want: want})
					}
				}
			}
		}
	}

	soState := func(cr uint32) flags.MachineState {
		return flags.MachineState{CR: flags.CR(cr), XER: flags.XER(xerSO)}
	}
	g := map[int]uint64{4: 0xffffffff00000005, 5: 5}
	b.single("cmpwi low word", f, "cmpwi r4,5",
		harness.Setup{GPR: g}, harness.FlagsCheck{Want: flags.MachineState{CR: 0x20000000}})
	b.single("cmpdi full width", f, "cmpdi r4,5",
		harness.Setup{GPR: g}, harness.FlagsCheck{Want: flags.MachineState{CR: 0x80000000}})
	b.single("cmplw cr7", f, "cmplw cr7,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffff, 5: 1}, State: soState(0)},
		harness.FlagsCheck{Want: soState(0x5)})
	b.single("cmpd SO copy", f, "cmpd r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 9, 5: 9}, State: soState(0)},
		harness.FlagsCheck{Want: soState(0x30000000)})

	// Condition and exception register moves.
	b.single("mfcr", f, "mfcr r3",
		harness.Setup{State: flags.MachineState{CR: 0x12345678}},
		harness.IntCheck{Reg: 3, Value: 0x12345678, CR: 0x12345678})
	b.single("mtcrf 0x81", f, "mtcrf 0x81,r4",
		harness.Setup{GPR: map[int]uint64{4: 0x12345678}},
		harness.FlagsCheck{Want: flags.MachineState{CR: 0x10000008}})
	b.single("mtcr", f, "mtcr r4",
		harness.Setup{GPR: map[int]uint64{4: 0x12345678}},
		harness.FlagsCheck{Want: flags.MachineState{CR: 0x12345678}})
	b.single("mtxer", f, "mtxer r4",
		harness.Setup{GPR: map[int]uint64{4: uint64(xerSO | xerCA)}},
		harness.FlagsCheck{Want: flags.MachineState{XER: flags.XER(xerSO | xerCA)}})
	b.single("mtxer clears SO", f, "mtxer r4",
		harness.Setup{GPR: map[int]uint64{4: 0}, State: soState(0)},
		harness.FlagsCheck{Want: flags.MachineState{}})
	b.single("mfxer", f, "mfxer r3",
		harness.Setup{State: flags.MachineState{XER: flags.XER(xerCA)}},
		harness.IntCheck{Reg: 3, Value: uint64(xerCA), XER: xerCA})
	b.single("mtctr", f, "mtctr r4",
		harness.Setup{GPR: map[int]uint64{4: 77}},
		harness.All(harness.FlagsCheck{}, ctrCheck(77)))
}

// CTR must hold v. Aux: CTR high, CTR low.
func ctrCheck(v uint64) harness.Checker {
	return harness.CheckerFunc(func(t harness.Target, o harness.Outcome) (harness.Aux, bool) {
		got := t.GetSPR(cpu.SPRCTR)
		return harness.Aux{uint32(got >> 32), uint32(got)}, got == v
	})
}

var logicDefs = []struct {
	name string
	f    func(s, b uint64) uint64
}{
	{"and", func(s, b uint64) uint64 { return s & b }},
	{"or", func(s, b uint64) uint64 { return s | b }},
	{"xor", func(s, b uint64) uint64 { return s ^ b }},
	{"nand", func(s, b uint64) uint64 { return ^(s & b) }},
	{"nor", func(s, b uint64) uint64 { return ^(s | b) }},
	{"andc", func(s, b uint64) uint64 { return s &^ b }},
	{"orc", func(s, b uint64) uint64 { return s | ^b }},
	{"eqv", func(s, b uint64) uint64 { return ^(s ^ b) }},
}

var logicImmDefs = []struct {
	name string
	rc   bool
	f    func(s, u uint64) uint64
}{
	{"ori", false, func(s, u uint64) uint64 { return s | u }},
	{"oris", false, func(s, u uint64) uint64 { return s | u<<16 }},
	{"xori", false, func(s, u uint64) uint64 { return s ^ u }},
	{"andi.", true, func(s, u uint64) uint64 { return s & u }},
}

// Logical shifts by a register amount. Amounts of the width or more
// clear the result.
var shiftDefs = []struct {
	name string
	f    func(s, sh uint64) uint64
}{
	{"slw", func(s, sh uint64) uint64 {
		if sh &= 0x3f; sh > 31 {
			return 0
		}
		return uint64(uint32(s) << sh)
	}},
	{"srw", func(s, sh uint64) uint64 {
		if sh &= 0x3f; sh > 31 {
			return 0
		}
		return uint64(uint32(s) >> sh)
	}},
	{"sld", func(s, sh uint64) uint64 {
		if sh &= 0x7f; sh > 63 {
			return 0
		}
		return s << sh
	}},
	{"srd", func(s, sh uint64) uint64 {
		if sh &= 0x7f; sh > 63 {
			return 0
		}
		return s >> sh
	}},
}

var unaryDefs = []struct {
	name string
	f    func(s uint64) uint64
}{
	{"extsb", func(s uint64) uint64 { return uint64(int64(int8(s))) }},
	{"extsh", func(s uint64) uint64 { return uint64(int64(int16(s))) }},
	{"extsw", func(s uint64) uint64 { return uint64(int64(int32(s))) }},
	{"cntlzw", func(s uint64) uint64 { return uint64(bits.LeadingZeros32(uint32(s))) }},
	{"cntlzd", func(s uint64) uint64 { return uint64(bits.LeadingZeros64(s)) }},
}

var shiftAmounts = []uint64{0, 1, 31, 32, 63, 64, 127}

type rotateDef struct {
	name string
	kind oracle.RotKind
	// The count comes from rb rather than an immediate.
	reg bool
	// One six-bit mask bound instead of mb and me.
	double bool
}

var rotateDefs = []rotateDef{
	{"rlwinm", oracle.RotWord, false, false},
	{"rlwnm", oracle.RotWord, true, false},
	{"rlwimi", oracle.RotWordInsert, false, false},
	{"rldicl", oracle.RotDoubleClearLeft, false, true},
	{"rldicr", oracle.RotDoubleClearRight, false, true},
	{"rldic", oracle.RotDoubleClear, false, true},
	{"rldimi", oracle.RotDoubleInsert, false, true},
	{"rldcl", oracle.RotDoubleClearLeft, true, true},
	{"rldcr", oracle.RotDoubleClearRight, true, true},
}

// Count, mb and me. The doubleword forms read the middle entry as
// their one bound. Wrapped word masks (mb > me) are included.
var wordShapes = [][3]uint{{0, 0, 31}, {2, 0, 29}, {31, 5, 5}, {16, 24, 7}, {8, 16, 31}}
var doubleShapes = [][3]uint{{0, 32, 0}, {4, 59, 0}, {63, 1, 0}, {32, 0, 0}, {1, 63, 0}}

// Prior contents of the target, visible through the insert forms.
const rotateBase = 0x5555aaaa5555aaaa

func (d rotateDef) shapes() [][3]uint {
	if d.double {
		return doubleShapes
	}
	return wordShapes
}

// Oracle result and assembly for one shape.
func (d rotateDef) apply(rs uint64, dot string, s [3]uint) (uint64, string) {
	count := fmt.Sprint(s[0])
	if d.reg {
		count = "r5"
	}
	if d.double {
		return oracle.Rotate(d.kind, rs, rotateBase, s[0], s[1], s[1]),
			fmt.Sprintf("%s%s r3,r4,%s,%d", d.name, dot, count, s[1])
	}
	return oracle.Rotate(d.kind, rs, rotateBase, s[0], s[1], s[2]),
		fmt.Sprintf("%s%s r3,r4,%s,%d,%d", d.name, dot, count, s[1], s[2])
}

func logicCases(b *builder) {
	f := harness.FamilyLogic
	priors := []flags.MachineState{{}, {XER: flags.XER(xerSO)}}
	for _, prior := range priors {
		for _, rc := range []bool{false, true} {
			dot := ""
			if rc {
				dot = "."
			}
			for _, d := range logicDefs {
				for _, rs := range intOperands {
					for _, rb := range intOperands {
						v := d.f(rs, rb)
						b.single(fmt.Sprintf("%s%s 0x%x,0x%x%s", d.name, dot, rs, rb, xerName(prior.XER)), f,
							fmt.Sprintf("%s%s r3,r4,r5", d.name, dot),
							harness.Setup{GPR: map[int]uint64{4: rs, 5: rb}, State: prior},
							harness.ExpectLogic(3, v, oracle.Logical(v, rc, prior)))
					}
				}
			}
			for _, d := range shiftDefs {
				for _, rs := range intOperands {
					for _, sh := range shiftAmounts {
						v := d.f(rs, sh)
						b.single(fmt.Sprintf("%s%s 0x%x,%d%s", d.name, dot, rs, sh, xerName(prior.XER)), f,
							fmt.Sprintf("%s%s r3,r4,r5", d.name, dot),
							harness.Setup{GPR: map[int]uint64{4: rs, 5: sh}, State: prior},
							harness.ExpectLogic(3, v, oracle.Logical(v, rc, prior)))
					}
				}
			}
			for _, rs := range intOperands {
				for _, sh := range shiftAmounts {
					v, st := oracle.ShiftRightAlgebraicWord(rs, uint(sh&0x3f), prior)
					b.single(fmt.Sprintf("sraw%s 0x%x,%d%s", dot, rs, sh, xerName(prior.XER)), f,
						fmt.Sprintf("sraw%s r3,r4,r5", dot),
						harness.Setup{GPR: map[int]uint64{4: rs, 5: sh}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, rc, st)))
					v, st = oracle.ShiftRightAlgebraicDouble(rs, uint(sh&0x7f), prior)
					b.single(fmt.Sprintf("srad%s 0x%x,%d%s", dot, rs, sh, xerName(prior.XER)), f,
						fmt.Sprintf("srad%s r3,r4,r5", dot),
						harness.Setup{GPR: map[int]uint64{4: rs, 5: sh}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, rc, st)))
				}
				for _, sh := range []uint{0, 1, 4, 31} {
					v, st := oracle.ShiftRightAlgebraicWord(rs, sh, prior)
					b.single(fmt.Sprintf("srawi%s 0x%x,%d%s", dot, rs, sh, xerName(prior.XER)), f,
						fmt.Sprintf("srawi%s r3,r4,%d", dot, sh),
						harness.Setup{GPR: map[int]uint64{4: rs}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, rc, st)))
				}
				for _, sh := range []uint{0, 1, 32, 63} {
					v, st := oracle.ShiftRightAlgebraicDouble(rs, sh, prior)
					b.single(fmt.Sprintf("sradi%s 0x%x,%d%s", dot, rs, sh, xerName(prior.XER)), f,
						fmt.Sprintf("sradi%s r3,r4,%d", dot, sh),
						harness.Setup{GPR: map[int]uint64{4: rs}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, rc, st)))
				}
			}
			for _, d := range unaryDefs {
				for _, rs := range intOperands {
					v := d.f(rs)
					b.single(fmt.Sprintf("%s%s 0x%x%s", d.name, dot, rs, xerName(prior.XER)), f,
						fmt.Sprintf("%s%s r3,r4", d.name, dot),
						harness.Setup{GPR: map[int]uint64{4: rs}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, rc, prior)))
				}
			}
			for _, d := range rotateDefs {
				for _, rs := range intOperands {
					for _, sh := range d.shapes() {
						v, line := d.apply(rs, dot, sh)
						// Only the low bits of rb count.
						gpr := map[int]uint64{3: rotateBase, 4: rs, 5: 0xffc0 | uint64(sh[0])}
						b.single(fmt.Sprintf("%s 0x%x%s", line, rs, xerName(prior.XER)), f, line,
							harness.Setup{GPR: gpr, State: prior},
							harness.ExpectLogic(3, v, oracle.Logical(v, rc, prior)))
					}
				}
			}
		}
		for _, d := range logicImmDefs {
			for _, rs := range intOperands {
				for _, u := range []uint64{0, 1, 0x8000, 0xffff} {
					v := d.f(rs, u)
					b.single(fmt.Sprintf("%s 0x%x,0x%x%s", d.name, rs, u, xerName(prior.XER)), f,
						fmt.Sprintf("%s r3,r4,0x%x", d.name, u),
						harness.Setup{GPR: map[int]uint64{4: rs}, State: prior},
						harness.ExpectLogic(3, v, oracle.Logical(v, d.rc, prior)))
				}
			}
		}
	}

	so := flags.MachineState{XER: flags.XER(xerSO)}
	b.single("and. zero SO", f, "and. r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0xf0, 5: 0x0f}, State: so},
		harness.IntCheck{Reg: 3, Value: 0, XER: xerSO, CR: 0x30000000})
	b.single("srawi -1,1 carries", f, "srawi r3,r4,1",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffff}},
		harness.IntCheck{Reg: 3, Value: 0xffffffffffffffff, XER: xerCA})
	b.single("srawi 2,1 no carry", f, "srawi r3,r4,1",
		harness.Setup{GPR: map[int]uint64{4: 2}, State: flags.MachineState{XER: flags.XER(xerCA)}},
		harness.IntCheck{Reg: 3, Value: 1})
	b.single("sraw by 32", f, "sraw r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0x80000000, 5: 32}},
		harness.IntCheck{Reg: 3, Value: 0xffffffffffffffff, XER: xerCA})
	b.single("cntlzw 0", f, "cntlzw r3,r4",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffff00000000}},
		harness.IntCheck{Reg: 3, Value: 32})
	b.single("extsb 0x80", f, "extsb r3,r4",
		harness.Setup{GPR: map[int]uint64{4: 0x80}},
		harness.IntCheck{Reg: 3, Value: 0xffffffffffffff80})
	b.single("slw by 32", f, "slw r3,r4,r5",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffff, 5: 32}},
		harness.IntCheck{Reg: 3, Value: 0})
	b.single("andi. sets CR0", f, "andi. r3,r4,0x8000",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Value: 0x8000, CR: 0x40000000})

	b.single("rlwinm shift left 2", f, "rlwinm r3,r4,2,0,29",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffff12345678}},
		harness.IntCheck{Reg: 3, Value: 0x48d159e0})
	// mb > me wraps the mask through the high word.
	b.single("rlwinm wrapped mask", f, "rlwinm r3,r4,0,31,0",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Value: 0xffffffff80000001})
	b.single("rlwimi inserts a byte", f, "rlwimi r3,r4,8,16,23",
		harness.Setup{GPR: map[int]uint64{3: 0xffffffff00000000, 4: 0xab}},
		harness.IntCheck{Reg: 3, Value: 0xffffffff0000ab00})
	b.single("rlwnm. rotates into CR0", f, "rlwnm. r3,r4,r5,0,31",
		harness.Setup{GPR: map[int]uint64{4: 0x80000000, 5: 0x21}},
		harness.IntCheck{Reg: 3, Value: 1, CR: 0x40000000})
	b.single("rldicl clears the high word", f, "rldicl r3,r4,0,32",
		harness.Setup{GPR: map[int]uint64{4: 0xffffffffffffffff}},
		harness.IntCheck{Reg: 3, Value: 0xffffffff})
	b.single("rldicr shift left 4", f, "rldicr r3,r4,4,59",
		harness.Setup{GPR: map[int]uint64{4: 0x0123456789abcdef}},
		harness.IntCheck{Reg: 3, Value: 0x123456789abcdef0})
	b.single("rldimi inserts the low word", f, "rldimi r3,r4,32,0",
		harness.Setup{GPR: map[int]uint64{3: 0x00000000ffffffff, 4: 0x11223344}},
		harness.IntCheck{Reg: 3, Value: 0x11223344ffffffff})
}
