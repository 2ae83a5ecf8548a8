package suite

import (
	"fmt"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// BO encodings worth covering: the CR-only forms, the CTR-only forms,
// the combined forms and branch always.
var branchBO = []int{0, 2, 4, 8, 10, 12, 16, 18, 20}

var branchBI = []int{0, 1, 2, 3, 30}

var branchCR = []flags.CR{0, 0x20000000, 0x80000002, 0xffffffff}

// Outcome of bc under the architected BO rules: whether it branches
// and the CTR it leaves behind.
func bcTaken(bo, bi int, cr flags.CR, ctr uint64) (bool, uint64) {
	if bo&0x04 == 0 {
		ctr--
	}
	ctrOK := bo&0x04 != 0 || (ctr != 0) != (bo&0x02 != 0)
	condOK := bo&0x10 != 0 || cr.Bit(bi) == (bo&0x08 != 0)
	return ctrOK && condOK, ctr
}

func branchCases(b *builder) {
	f := harness.FamilyBranch
	const off = 12
	for _, bo := range branchBO {
		for _, bi := range branchBI {
			for _, cr := range branchCR {
				for _, ctr := range []uint64{1, 2} {
					taken, after := bcTaken(bo, bi, cr, ctr)
					target := int32(4)
					if taken {
						target = off
					}
					s := harness.Setup{SPR: map[int]uint64{cpu.SPRCTR: ctr}, State: flags.MachineState{CR: cr}}
					b.single(fmt.Sprintf("bc %d,%d cr=%08x ctr=%d", bo, bi, uint32(cr), ctr), f,
						fmt.Sprintf("bc %d,%d,%d", bo, bi, off), s,
						harness.BranchCheck{Target: target, CTR: after})
					b.single(fmt.Sprintf("bcl %d,%d cr=%08x ctr=%d", bo, bi, uint32(cr), ctr), f,
						fmt.Sprintf("bcl %d,%d,%d", bo, bi, off), s,
						harness.BranchCheck{Target: target, CTR: after, CheckLR: true, LROffset: 4})
				}
			}
		}
	}

	for _, off := range []int32{8, 64, -8, 0x1000} {
		b.single(fmt.Sprintf("b %d", off), f, fmt.Sprintf("b %d", off), harness.Setup{},
			harness.BranchCheck{Target: off})
		b.single(fmt.Sprintf("bl %d", off), f, fmt.Sprintf("bl %d", off), harness.Setup{},
			harness.BranchCheck{Target: off, CheckLR: true, LROffset: 4})
	}

	eq := harness.Setup{State: flags.MachineState{CR: 0x20000000}}
	b.single("beq taken", f, "beq 16", eq, harness.BranchCheck{Target: 16})
	b.single("bne not taken", f, "bne 16", eq, harness.BranchCheck{Target: 4})
	b.single("beq cr7 not taken", f, "beq cr7,16", eq, harness.BranchCheck{Target: 4})
	b.single("bso taken", f, "bso 16",
		harness.Setup{State: flags.MachineState{CR: 0x10000000}}, harness.BranchCheck{Target: 16})

	// LR holds the return address written by the bl before it.
	b.sequence("blr", f, []string{"bl 4", "blr"}, harness.Setup{},
		harness.BranchCheck{Target: 0, CheckLR: true, LROffset: 0})
	b.sequence("bclrl", f, []string{"bl 4", "bclrl 20,0"}, harness.Setup{},
		harness.BranchCheck{Target: 0, CheckLR: true, LROffset: 4})
	b.sequence("bdnz loop", f, []string{"li r4,3", "mtctr r4", "bdnz 8"}, harness.Setup{},
		harness.BranchCheck{Target: 8, CTR: 2})
	b.sequence("bdnz falls out", f, []string{"li r4,1", "mtctr r4", "bdnz 8"}, harness.Setup{},
		harness.BranchCheck{Target: 4, CTR: 0})
	b.single("bdnz wraps zero", f, "bdnz 8",
		harness.Setup{SPR: map[int]uint64{cpu.SPRCTR: 0}},
		harness.BranchCheck{Target: 8, CTR: 0xffffffffffffffff})
}

func loadStoreCases(b *builder) {
	f := harness.FamilyLoadStore
	mem := func(words map[uint32]uint32, gpr map[int]uint64) harness.Setup {
		return harness.Setup{Memory: words, GPR: gpr, ScratchReg: 5}
	}

	b.single("lwz", f, "lwz r3,8(r5)",
		mem(map[uint32]uint32{8: 0xdeadbeef}, nil),
		harness.IntCheck{Reg: 3, Value: 0xdeadbeef})
	// The whole of r3 is replaced, high word included.
	b.sequence("lwz negative offset", f, []string{"addi r6,r5,16", "lwz r3,-4(r6)"},
		mem(map[uint32]uint32{12: 0x80000000}, map[int]uint64{3: 0xffffffffffffffff}),
		harness.IntCheck{Reg: 3, Value: 0x80000000})
	b.single("ld", f, "ld r3,16(r5)",
		mem(map[uint32]uint32{16: 0x01234567, 20: 0x89abcdef}, nil),
		harness.IntCheck{Reg: 3, Value: 0x0123456789abcdef})
	b.single("stw", f, "stw r4,4(r5)",
		mem(nil, map[int]uint64{4: 0x1122334455667788}),
		harness.MemCheck{Offset: 4, Want: []uint32{0x55667788}})
	b.single("std", f, "std r4,8(r5)",
		mem(nil, map[int]uint64{4: 0x1122334455667788}),
		harness.MemCheck{Offset: 8, Want: []uint32{0x11223344, 0x55667788}})

	byteAndHalfCases(b, mem)

	// lfs widens the stored single exactly. An SNaN comes back quiet.
	lfs := []struct {
		name   string
		stored uint32
		want   uint64
	}{
		{"1.0", 0x3f800000, 0x3ff0000000000000},
		{"-0", 0x80000000, 0x8000000000000000},
		{"+inf", 0x7f800000, oracle.PosInf},
		{"snan", 0x7f800001, 0x7ff8000020000000},
		{"negative snan", 0xffbfffff, 0xffffffffe0000000},
		{"qnan", 0x7fc00000, 0x7ff8000000000000},
		{"denormal", 0x00000001, 0x36a0000000000000},
	}
	for _, tc := range lfs {
		b.single("lfs "+tc.name, f, "lfs f1,0(r5)",
			mem(map[uint32]uint32{0: tc.stored}, nil),
			harness.FloatCheck{Reg: 1, Value: tc.want})
	}
	b.single("lfd", f, "lfd f1,8(r5)",
		mem(map[uint32]uint32{8: 0x7ff00000, 12: 0x00000001}, nil),
		harness.FloatCheck{Reg: 1, Value: 0x7ff0000000000001})

	// stfs truncates in the normal range and leaves the FPSCR alone.
	// Below it the value is denormalized, or lost to a signed zero,
	// and dropping bits raises UX.
	stfs := []struct {
		name  string
		reg   uint64
		prior uint32
		want  uint32
		fpscr uint32
	}{
		{"1.0", 0x3ff0000000000000, 0, 0x3f800000, 0},
		{"0.1 truncated", 0x3fb999999999999a, 0, 0x3dcccccc, 0},
		{"snan", 0x7ff0000020000000, 0, 0x7f800001, 0},
		{"-inf", oracle.NegInf, 0, 0xff800000, 0},
		{"smallest denormal", 0x36a0000000000000, 0, 0x00000001, 0},
		{"denormal loses bits", 0x36a8000000000000, 0, 0x00000001, flags.FX | flags.UX},
		{"below denormal", 0x3690000000000000, 0, 0, flags.FX | flags.UX},
		{"negative below denormal", 0xb690000000000000, 0, 0x80000000, flags.FX | flags.UX},
		{"smallest double", 1, 0, 0, flags.FX | flags.UX},
		{"underflow enabled", 0x3690000000000000, flags.UE, 0, flags.FX | flags.FEX | flags.UX | flags.UE},
		{"UX already set", 0x3690000000000000, flags.UX, 0, flags.UX},
	}
	for _, tc := range stfs {
		prior := flags.MachineState{FPSCR: flags.FPSCR(tc.prior)}
		want := flags.MachineState{FPSCR: flags.FPSCR(tc.fpscr)}
		b.single("stfs "+tc.name, f, "stfs f1,0(r5)",
			harness.Setup{FPR: map[int]uint64{1: tc.reg}, State: prior, ScratchReg: 5},
			harness.All(harness.MemCheck{Want: []uint32{tc.want}}, harness.FlagsCheck{Want: want}))
	}
	b.single("stfd", f, "stfd f1,16(r5)",
		harness.Setup{FPR: map[int]uint64{1: 0x400921fb54442d18}, ScratchReg: 5},
		harness.MemCheck{Offset: 16, Want: []uint32{0x400921fb, 0x54442d18}})

	// lvx and stvx ignore the low four address bits.
	b.single("lvx aligns down", f, "lvx v1,r5,r6",
		harness.Setup{
			Memory:     map[uint32]uint32{16: 1, 20: 2, 24: 3, 28: 4},
			GPR:        map[int]uint64{6: 0x13},
			ScratchReg: 5,
		},
		harness.VecCheck{Reg: 1, Value: oracle.Vec{1, 2, 3, 4}})
	b.single("stvx aligns down", f, "stvx v1,r5,r6",
		harness.Setup{
			VR:         map[int]oracle.Vec{1: {5, 6, 7, 8}},
			GPR:        map[int]uint64{6: 0x2f},
			ScratchReg: 5,
		},
		harness.MemCheck{Offset: 32, Want: []uint32{5, 6, 7, 8}})
}

var partWords = []uint32{0, 0x80ff7f01, 0x12345678, 0xffffffff}

// lbz, lhz, lha, stb and sth at every aligned offset within a word.
func byteAndHalfCases(b *builder, mem func(map[uint32]uint32, map[int]uint64) harness.Setup) {
	f := harness.FamilyLoadStore
	const junk = 0xa5a5a5a5a5a5a5a5
	for _, w := range partWords {
		words := map[uint32]uint32{4: w}
		for off := uint32(0); off < 4; off++ {
			v := uint64(w >> (24 - 8*off) & 0xff)
			b.single(fmt.Sprintf("lbz %08x+%d", w, off), f, fmt.Sprintf("lbz r3,%d(r5)", 4+off),
				mem(words, map[int]uint64{3: junk}),
				harness.IntCheck{Reg: 3, Value: v})

			shift := 24 - 8*off
			stored := w&^(0xff<<shift) | 0x88<<shift
			b.single(fmt.Sprintf("stb %08x+%d", w, off), f, fmt.Sprintf("stb r4,%d(r5)", 4+off),
				mem(words, map[int]uint64{4: 0x1122334455667788}),
				harness.MemCheck{Offset: 4, Want: []uint32{stored}})
		}
		for off := uint32(0); off < 4; off += 2 {
			h := uint16(w >> (16 - 8*off))
			b.single(fmt.Sprintf("lhz %08x+%d", w, off), f, fmt.Sprintf("lhz r3,%d(r5)", 4+off),
				mem(words, map[int]uint64{3: junk}),
				harness.IntCheck{Reg: 3, Value: uint64(h)})
			b.single(fmt.Sprintf("lha %08x+%d", w, off), f, fmt.Sprintf("lha r3,%d(r5)", 4+off),
				mem(words, map[int]uint64{3: junk}),
				harness.IntCheck{Reg: 3, Value: uint64(int64(int16(h)))})

			shift := 16 - 8*off
			stored := w&^(0xffff<<shift) | 0x7788<<shift
			b.single(fmt.Sprintf("sth %08x+%d", w, off), f, fmt.Sprintf("sth r4,%d(r5)", 4+off),
				mem(words, map[int]uint64{4: 0x1122334455667788}),
				harness.MemCheck{Offset: 4, Want: []uint32{stored}})
		}
	}

	b.single("lha sign extends", f, "lha r3,2(r5)",
		mem(map[uint32]uint32{0: 0x00018001}, nil),
		harness.IntCheck{Reg: 3, Value: 0xffffffffffff8001})
	b.single("lhz zero extends", f, "lhz r3,2(r5)",
		mem(map[uint32]uint32{0: 0x00018001}, map[int]uint64{3: 0xffffffffffffffff}),
		harness.IntCheck{Reg: 3, Value: 0x8001})
	b.single("stb keeps neighbours", f, "stb r4,9(r5)",
		mem(map[uint32]uint32{8: 0x11223344}, map[int]uint64{4: 0xff}),
		harness.MemCheck{Offset: 8, Want: []uint32{0x11ff3344}})
	b.single("sth low half", f, "sth r4,10(r5)",
		mem(map[uint32]uint32{8: 0x11223344}, map[int]uint64{4: 0xbeef}),
		harness.MemCheck{Offset: 8, Want: []uint32{0x1122beef}})
}
