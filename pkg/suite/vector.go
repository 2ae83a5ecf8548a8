package suite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
)

var vecOperands = []oracle.Vec{
	{0, 0, 0, 0},
	{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff},
	{0x01010101, 0x01010101, 0x01010101, 0x01010101},
	{0x80000000, 0x7fffffff, 0x00008000, 0x7fff7fff},
	{0x7f807f80, 0x80818283, 0xfffe0001, 0x00010000},
	{0x12345678, 0x9abcdef0, 0x0f0f0f0f, 0xf0f0f0f0},
	// Singles: 1.0, -2.0, +inf, QNaN.
	{0x3f800000, 0xc0000000, 0x7f800000, 0x7fc00001},
	// Singles: denormal, -0, 3.0, max.
	{0x00000001, 0x80000000, 0x40400000, 0x7f7fffff},
}

func vscrState(bits uint32) flags.MachineState {
	return flags.MachineState{VSCR: flags.VSCR(bits)}
}

var vscrPriors = []flags.MachineState{
	{},
	vscrState(flags.SAT),
	vscrState(flags.NJ),
	vscrState(flags.SAT | flags.NJ),
}

// Control vectors for vperm and vsel: identity, reversed, the
// second source only, and bytes with the unused high bits set.
var vecControls = []oracle.Vec{
	{0x00010203, 0x04050607, 0x08090a0b, 0x0c0d0e0f},
	{0x1f1e1d1c, 0x1b1a1918, 0x17161514, 0x13121110},
	{0x10101010, 0x11111111, 0x12121212, 0x13131313},
	{0xe0ff40c3, 0x21a2638f, 0x00ff00ff, 0xf0f00f0f},
}

// Addends for vmaddfp and vnmsubfp: zeros, ones, -0 and a QNaN lane.
var vecAddends = []oracle.Vec{
	{},
	{0x3f800000, 0x3f800000, 0x3f800000, 0x3f800000},
	{0x80000000, 0x7fc00002, 0x00000001, 0xff800000},
}

// A prior CR with every field populated, so a compare that writes the
// wrong field or a non-record form that writes CR6 both show.
const busyCR flags.CR = 0x5a5a5a5a

func vectorCases(b *builder) {
	f := harness.FamilyVector
	vr := func(x, y oracle.Vec) map[int]oracle.Vec {
		return map[int]oracle.Vec{2: x, 3: y}
	}

	for _, prior := range vscrPriors {
		for _, name := range sortedKeys(oracle.VecOps) {
			op := oracle.VecOps[name]
			for i, x := range vecOperands {
				for j, y := range vecOperands {
					v, st := op(x, y, prior)
					b.single(fmt.Sprintf("%s v%d,v%d %s", name, i, j, prior), f,
						name+" v1,v2,v3",
						harness.Setup{VR: vr(x, y), State: prior},
						harness.ExpectVec(1, v, st))
				}
			}
		}
	}

	for _, prior := range []flags.MachineState{{}, {CR: busyCR}, vscrState(flags.NJ)} {
		for _, base := range sortedKeys(oracle.VecCompares) {
			for _, rc := range []bool{false, true} {
				op := oracle.VecCompares[base]
				op.Rc = rc
				name := base
				if rc {
					name += "."
				}
				for i, x := range vecOperands {
					for j, y := range vecOperands {
						v, st := oracle.VecCompare(op, x, y, prior)
						b.single(fmt.Sprintf("%s v%d,v%d %s", name, i, j, prior), f,
							name+" v1,v2,v3",
							harness.Setup{VR: vr(x, y), State: prior},
							harness.ExpectVec(1, v, st))
					}
				}
			}
		}
	}

	for _, prior := range vscrPriors {
		for _, uimm := range []uint{0, 1, 31} {
			for i, x := range vecOperands {
				for _, signed := range []bool{false, true} {
					name := "vctuxs"
					if signed {
						name = "vctsxs"
					}
					v, st := oracle.VecConvert(signed, uimm, x, prior)
					b.single(fmt.Sprintf("%s v%d,%d %s", name, i, uimm, prior), f,
						fmt.Sprintf("%s v1,v3,%d", name, uimm),
						harness.Setup{VR: map[int]oracle.Vec{3: x}, State: prior},
						harness.ExpectVec(1, v, st))
				}
			}
		}
	}

	vectorTernaryCases(b)
	vectorSplatCases(b)

	for _, prior := range vscrPriors {
		b.single("mfvscr "+prior.String(), f, "mfvscr v1",
			harness.Setup{State: prior},
			harness.ExpectVec(1, oracle.Vec{0, 0, 0, uint32(prior.VSCR)}, prior))
	}
	// Bits other than SAT and NJ are dropped on the way in.
	for _, w := range []uint32{0, flags.SAT, flags.NJ, flags.SAT | flags.NJ, 0xffffffff, 0xfffefffe} {
		src := oracle.Vec{0xffffffff, 0xffffffff, 0xffffffff, w}
		b.single(fmt.Sprintf("mtvscr %08x", w), f, "mtvscr v3",
			harness.Setup{VR: map[int]oracle.Vec{3: src}, State: vscrState(flags.SAT)},
			harness.FlagsCheck{Want: vscrState(w & (flags.SAT | flags.NJ))})
	}

	vectorSpots(b)
}

// vperm, vsel, vmaddfp and vnmsubfp. Operand order in the assembly is
// vD,vA,vB,vC for the first two and vD,vA,vC,vB for the others.
func vectorTernaryCases(b *builder) {
	f := harness.FamilyVector
	for i, x := range vecOperands {
		for j, y := range vecOperands {
			for k, c := range vecControls {
				setup := harness.Setup{VR: map[int]oracle.Vec{2: x, 3: y, 4: c}}
				b.single(fmt.Sprintf("vperm v%d,v%d,c%d", i, j, k), f, "vperm v1,v2,v3,v4",
					setup, harness.ExpectVec(1, oracle.VecPerm(x, y, c), flags.MachineState{}))
				b.single(fmt.Sprintf("vsel v%d,v%d,c%d", i, j, k), f, "vsel v1,v2,v3,v4",
					setup, harness.ExpectVec(1, oracle.VecSelect(x, y, c), flags.MachineState{}))
			}
		}
	}

	for _, prior := range []flags.MachineState{{}, vscrState(flags.NJ)} {
		for _, negSub := range []bool{false, true} {
			name := "vmaddfp"
			if negSub {
				name = "vnmsubfp"
			}
			for i, x := range vecOperands {
				for j, y := range vecOperands {
					for k, add := range vecAddends {
						v, st := oracle.VecMultiplyAdd(negSub, x, add, y, prior)
						b.single(fmt.Sprintf("%s v%d*v%d+a%d %s", name, i, j, k, prior), f,
							name+" v1,v2,v3,v4",
							harness.Setup{VR: map[int]oracle.Vec{2: x, 3: y, 4: add}, State: prior},
							harness.ExpectVec(1, v, st))
					}
				}
			}
		}
	}
}

func vectorSplatCases(b *builder) {
	f := harness.FamilyVector
	for _, name := range sortedKeys(oracle.VecSplats) {
		lane := oracle.VecSplats[name]
		if strings.HasPrefix(name, "vspltis") {
			for _, simm := range []int64{-16, -1, 0, 1, 15} {
				b.single(fmt.Sprintf("%s %d", name, simm), f,
					fmt.Sprintf("%s v1,%d", name, simm),
					harness.Setup{},
					harness.ExpectVec(1, oracle.VecSplatImm(lane, simm), flags.MachineState{}))
			}
			continue
		}
		for _, uimm := range []uint{0, 1, 3, 15, 31} {
			for i, x := range vecOperands {
				b.single(fmt.Sprintf("%s v%d,%d", name, i, uimm), f,
					fmt.Sprintf("%s v1,v3,%d", name, uimm),
					harness.Setup{VR: map[int]oracle.Vec{3: x}},
					harness.ExpectVec(1, oracle.VecSplat(lane, uimm, x), flags.MachineState{}))
			}
		}
	}
}

// Hand-computed vector results.
func vectorSpots(b *builder) {
	f := harness.FamilyVector
	ones := oracle.Vec{0x01010101, 0x01010101, 0x01010101, 0x01010101}
	full := oracle.Vec{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff}
	sat := flags.MachineState{VSCR: flags.VSCR(flags.SAT)}
	vr := func(x, y oracle.Vec) harness.Setup {
		return harness.Setup{VR: map[int]oracle.Vec{2: x, 3: y}}
	}

	b.single("vaddubs saturates", f, "vaddubs v1,v2,v3", vr(full, ones),
		harness.ExpectVec(1, full, sat))
	b.single("vaddubm wraps", f, "vaddubm v1,v2,v3", vr(full, ones),
		harness.ExpectVec(1, oracle.Vec{}, flags.MachineState{}))
	b.single("vsubsws saturates low", f, "vsubsws v1,v2,v3",
		vr(oracle.Vec{0x80000000, 0, 0, 0}, oracle.Vec{1, 0, 0, 0}),
		harness.ExpectVec(1, oracle.Vec{0x80000000, 0, 0, 0}, sat))
	b.single("vpkuwus saturates", f, "vpkuwus v1,v2,v3",
		vr(oracle.Vec{0x10000, 1, 2, 3}, oracle.Vec{}),
		harness.ExpectVec(1, oracle.Vec{0xffff0001, 0x00020003, 0, 0}, sat))
	b.single("vpkuwum truncates", f, "vpkuwum v1,v2,v3",
		vr(oracle.Vec{0x10000, 1, 2, 3}, oracle.Vec{}),
		harness.ExpectVec(1, oracle.Vec{0x00000001, 0x00020003, 0, 0}, flags.MachineState{}))

	// CR6: LT when every lane is true, EQ when none is.
	b.single("vcmpequw. all equal", f, "vcmpequw. v1,v2,v3", vr(ones, ones),
		harness.ExpectVec(1, full, flags.MachineState{CR: 0x80}))
	b.single("vcmpequw. none equal", f, "vcmpequw. v1,v2,v3", vr(ones, full),
		harness.ExpectVec(1, oracle.Vec{}, flags.MachineState{CR: 0x20}))
	b.single("vcmpequw leaves CR", f, "vcmpequw v1,v2,v3",
		harness.Setup{VR: map[int]oracle.Vec{2: ones, 3: ones}, State: flags.MachineState{CR: busyCR}},
		harness.ExpectVec(1, full, flags.MachineState{CR: busyCR}))

	two := oracle.Vec{0x40000000, 0x40000000, 0x40000000, 0x40000000}
	b.single("vcmpbfp. in bounds", f, "vcmpbfp. v1,v2,v3",
		vr(oracle.Vec{0x3f800000, 0x3f800000, 0x3f800000, 0x3f800000}, two),
		harness.ExpectVec(1, oracle.Vec{}, flags.MachineState{CR: 0x20}))
	b.single("vcmpbfp. above", f, "vcmpbfp. v1,v2,v3",
		vr(oracle.Vec{0x40400000, 0x40400000, 0x40400000, 0x40400000}, two),
		harness.ExpectVec(1, oracle.Vec{0x80000000, 0x80000000, 0x80000000, 0x80000000}, flags.MachineState{}))

	b.single("vctuxs negative", f, "vctuxs v1,v3,0",
		harness.Setup{VR: map[int]oracle.Vec{3: {0xbf800000, 0, 0, 0}}},
		harness.ExpectVec(1, oracle.Vec{}, sat))
	b.single("vctsxs 2^31", f, "vctsxs v1,v3,0",
		harness.Setup{VR: map[int]oracle.Vec{3: {0x4f000000, 0, 0, 0}}},
		harness.ExpectVec(1, oracle.Vec{0x7fffffff, 0, 0, 0}, sat))
	b.single("vaddfp 1+1", f, "vaddfp v1,v2,v3",
		vr(oracle.Vec{0x3f800000, 0, 0, 0}, oracle.Vec{0x3f800000, 0, 0, 0}),
		harness.ExpectVec(1, oracle.Vec{0x40000000, 0, 0, 0}, flags.MachineState{}))

	bytes := oracle.Vec{0x00010203, 0x04050607, 0x08090a0b, 0x0c0d0e0f}
	hi := oracle.Vec{0x10111213, 0x14151617, 0x18191a1b, 0x1c1d1e1f}
	pv := func(c oracle.Vec) harness.Setup {
		return harness.Setup{VR: map[int]oracle.Vec{2: bytes, 3: hi, 4: c}}
	}
	b.single("vperm identity", f, "vperm v1,v2,v3,v4", pv(bytes),
		harness.ExpectVec(1, bytes, flags.MachineState{}))
	b.single("vperm reversed", f, "vperm v1,v2,v3,v4",
		pv(oracle.Vec{0x1f1e1d1c, 0x1b1a1918, 0x17161514, 0x13121110}),
		harness.ExpectVec(1, oracle.Vec{0x1f1e1d1c, 0x1b1a1918, 0x17161514, 0x13121110}, flags.MachineState{}))
	b.single("vperm ignores high bits", f, "vperm v1,v2,v3,v4",
		pv(oracle.Vec{0xe0e1e2e3, 0, 0, 0}),
		harness.ExpectVec(1, oracle.Vec{0x00010203, 0, 0, 0}, flags.MachineState{}))
	b.single("vsel", f, "vsel v1,v2,v3,v4",
		harness.Setup{VR: map[int]oracle.Vec{2: {}, 3: full, 4: {0xff00ff00, 0, 0xffffffff, 1}}},
		harness.ExpectVec(1, oracle.Vec{0xff00ff00, 0, 0xffffffff, 1}, flags.MachineState{}))

	onef := oracle.Vec{0x3f800000, 0x3f800000, 0x3f800000, 0x3f800000}
	fma := func(a, c, add oracle.Vec) harness.Setup {
		return harness.Setup{VR: map[int]oracle.Vec{2: a, 3: c, 4: add}}
	}
	b.single("vmaddfp 1*2+1", f, "vmaddfp v1,v2,v3,v4", fma(onef, two, onef),
		harness.ExpectVec(1, oracle.Vec{0x40400000, 0x40400000, 0x40400000, 0x40400000}, flags.MachineState{}))
	b.single("vnmsubfp -(1*2-1)", f, "vnmsubfp v1,v2,v3,v4", fma(onef, two, onef),
		harness.ExpectVec(1, oracle.Vec{0xbf800000, 0xbf800000, 0xbf800000, 0xbf800000}, flags.MachineState{}))
	b.single("vmaddfp NaN in a wins", f, "vmaddfp v1,v2,v3,v4",
		fma(oracle.Vec{0x7f800001, 0, 0, 0}, oracle.Vec{0x7fc00003, 0, 0, 0}, oracle.Vec{0x7fc00002, 0, 0, 0}),
		harness.ExpectVec(1, oracle.Vec{0x7fc00001, 0, 0, 0}, flags.MachineState{}))

	b.single("vspltisb -1", f, "vspltisb v1,-1", harness.Setup{},
		harness.ExpectVec(1, full, flags.MachineState{}))
	b.single("vspltish -16", f, "vspltish v1,-16", harness.Setup{},
		harness.ExpectVec(1, oracle.Vec{0xfff0fff0, 0xfff0fff0, 0xfff0fff0, 0xfff0fff0}, flags.MachineState{}))
	b.single("vspltw 2", f, "vspltw v1,v3,2",
		harness.Setup{VR: map[int]oracle.Vec{3: {1, 2, 3, 4}}},
		harness.ExpectVec(1, oracle.Vec{3, 3, 3, 3}, flags.MachineState{}))
	b.single("vspltb 5", f, "vspltb v1,v3,5",
		harness.Setup{VR: map[int]oracle.Vec{3: bytes}},
		harness.ExpectVec(1, oracle.Vec{0x05050505, 0x05050505, 0x05050505, 0x05050505}, flags.MachineState{}))

	both := flags.MachineState{VSCR: flags.VSCR(flags.SAT | flags.NJ)}
	b.single("mfvscr SAT NJ", f, "mfvscr v1", harness.Setup{State: both},
		harness.ExpectVec(1, oracle.Vec{0, 0, 0, 0x10001}, both))
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
