package cpu

import (
	"errors"
	"testing"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

func TestDirectMemory(t *testing.T) {
	var dm MemoryBackend
	c := NewCPU()

	cases := []struct {
		address  uint32
		expected uint32
	}{{0x100, 0x12345678}, {0x102, 0x56780000}, {0x104, 0}}
	dm = NewDirectMemory(16)
	mr := MemoryRange{Low: 0x100, High: 0x10f}
	c.RegisterMemory(mr, dm)
	copy(dm.(*DirectMemory).memory, []byte{0x12, 0x34, 0x56, 0x78})

	{
		tmp, offset := c.findMemory(0x103, 1)
		if tmp != dm {
			t.Errorf("Unexpected memory backend found.")
		}
		if offset != 3 {
			t.Errorf("Unexpected offset, saw %d, expected 3", offset)
		}
	}

	for ix, tc := range cases {
		seen := c.FetchWord(tc.address)
		if seen != tc.expected {
			t.Errorf("Case #%d, unexpected value from address 0x%x, saw 0x%08x, expected 0x%08x", ix, tc.address, seen, tc.expected)
		}
	}
}

func TestAccessAtEndOfRange(t *testing.T) {
	c := NewCPU()
	dm := NewDirectMemory(16)
	c.RegisterMemory(MemoryRange{Low: 0x100, High: 0x10f}, dm)
	c.StoreWord(0x10c, 0xcafef00d)

	cases := []struct {
		address  uint32
		expected uint32
	}{{0x10c, 0xcafef00d}, {0x10d, 0}, {0x10f, 0}, {0x110, 0}}
	for ix, tc := range cases {
		seen := c.FetchWord(tc.address)
		if seen != tc.expected {
			t.Errorf("Case #%d, unexpected value from address 0x%x, saw 0x%08x, expected 0x%08x", ix, tc.address, seen, tc.expected)
		}
	}

	c.StoreWord(0x10e, 0xffffffff)
	if got := c.FetchWord(0x10c); got != 0xcafef00d {
		t.Errorf("straddling store changed memory, saw 0x%08x", got)
	}
	if _, err := c.Fetch(0x10d); !errors.Is(err, ErrNoMemory) {
		t.Errorf("straddling fetch not reported, saw %v", err)
	}
}

func TestSubWordAccess(t *testing.T) {
	c := NewCPU()
	c.RegisterMemory(MemoryRange{Low: 0, High: 0xf}, NewDirectMemory(16))
	c.StoreWord(4, 0x11223344)

	cases := []struct {
		address, size uint32
		expected      uint32
	}{{4, 1, 0x11}, {5, 1, 0x22}, {7, 1, 0x44}, {4, 2, 0x1122}, {6, 2, 0x3344}}
	for ix, tc := range cases {
		if seen := c.fetchPart(tc.address, tc.size); seen != tc.expected {
			t.Errorf("Case #%d, saw 0x%x, expected 0x%x", ix, seen, tc.expected)
		}
	}

	c.storePart(6, 1, 0xabcd)
	c.storePart(4, 2, 0xbeef)
	if got := c.FetchWord(4); got != 0xbeefcd44 {
		t.Errorf("sub-word stores gave 0x%08x, expected 0xbeefcd44", got)
	}
}

func TestRegisterMemoryOverlap(t *testing.T) {
	c := NewCPU()
	if err := c.RegisterMemory(MemoryRange{0, 0xff}, NewDirectMemory(0x100)); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := c.RegisterMemory(MemoryRange{0x80, 0x17f}, NewDirectMemory(0x100)); err == nil {
		t.Errorf("overlapping registration accepted")
	}
	if err := c.Attach(0x100, NewDirectMemory(0x100), 0x100); err != nil {
		t.Errorf("adjacent registration rejected: %v", err)
	}
}

func TestWrapMemory(t *testing.T) {
	buf := make([]byte, 8)
	m := WrapMemory(buf)
	m.WriteWord(4, 0xdeadbeef)
	if buf[4] != 0xde || buf[7] != 0xef {
		t.Errorf("write did not land in caller slice: % x", buf)
	}
}

// Load a program at address 0 and step through it.
func load(t *testing.T, lines ...string) *CPU {
	t.Helper()
	c := NewCPU()
	dm := NewDirectMemory(0x1000)
	c.RegisterMemory(MemoryRange{0, 0xfff}, dm)
	for ix, l := range lines {
		w, err := asm.Assemble(l)
		if err != nil {
			t.Fatalf("assembling %q: %v", l, err)
		}
		dm.WriteWord(uint32(4*ix), w)
	}
	return c
}

func step(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d at 0x%x: %v", i, c.PC, err)
		}
	}
}

func TestBasicInstructions(t *testing.T) {
	c := load(t, "li r1,0x1234", "addis r2,r1,1", "mr r3,r2")
	step(t, c, 3)

	if c.GPR[1] != 0x1234 {
		t.Errorf("c.GPR[1] is 0x%016x, expected 0x1234", c.GPR[1])
	}
	if c.GPR[3] != 0x11234 {
		t.Errorf("c.GPR[3] is 0x%016x, expected 0x11234", c.GPR[3])
	}
	if c.PC != 12 {
		t.Errorf("c.PC is %d, expected 12", c.PC)
	}
}

func TestCarryPair(t *testing.T) {
	c := load(t, "li r3,-1", "addic r4,r3,3", "addic r5,r4,0")
	step(t, c, 2)
	if c.GPR[4] != 2 || !c.State.XER.CA() {
		t.Errorf("addic -1+3: got %d CA=%v, expected 2 CA=true", c.GPR[4], c.State.XER.CA())
	}
	step(t, c, 1)
	if c.GPR[5] != 2 || c.State.XER.CA() {
		t.Errorf("addic 2+0: got %d CA=%v, expected 2 CA=false", c.GPR[5], c.State.XER.CA())
	}
}

func TestRecordForms(t *testing.T) {
	cases := []struct {
		prog []string
		cr0  uint8
		xer  uint32
	}{
		{[]string{"li r3,1", "li r4,-1", "add. r5,r3,r4"}, flags.EQ, 0},
		{[]string{"li r3,5", "li r4,7", "subf. r5,r3,r4"}, flags.GT, 0},
		{[]string{"li r3,1", "li r4,0", "divwo. r5,r3,r4"}, flags.EQ, flags.XERSO | flags.XEROV},
	}
	for ix, tc := range cases {
		c := load(t, tc.prog...)
		step(t, c, len(tc.prog))
		if got := c.State.CR.Field(0); got != tc.cr0 {
			t.Errorf("Case #%d, CR0 is %x, expected %x", ix, got, tc.cr0)
		}
		if uint32(c.State.XER) != tc.xer {
			t.Errorf("Case #%d, XER is %08x, expected %08x", ix, uint32(c.State.XER), tc.xer)
		}
	}
}

func TestBranchAndLink(t *testing.T) {
	c := load(t, "bl 8", "li r3,1", "mflr r4", "cmpdi r4,4", "beq 8", "li r5,1", "li r6,1")
	step(t, c, 4)
	if c.GPR[3] != 0 {
		t.Errorf("bl did not skip the next instruction")
	}
	if c.GPR[4] != 4 {
		t.Errorf("LR is %d, expected 4", c.GPR[4])
	}
	if c.PC != 24 {
		t.Errorf("beq fell through to 0x%x", c.PC)
	}
}

func TestCountLoop(t *testing.T) {
	c := load(t, "li r3,3", "mtctr r3", "li r4,0", "addi r4,r4,1", "bdnz -4")
	for c.PC != 20 {
		step(t, c, 1)
	}
	if c.GPR[4] != 3 || c.CTR != 0 {
		t.Errorf("loop ran %d times, CTR %d", c.GPR[4], c.CTR)
	}
}

func TestLoadStore(t *testing.T) {
	c := load(t, "li r3,0x800", "lfs f1,0(r3)", "stfd f1,8(r3)", "ld r4,8(r3)", "stfs f1,16(r3)", "lwz r5,16(r3)")
	c.StoreWord(0x800, 0x3f800000)
	step(t, c, 6)
	if c.FPR[1] != 0x3ff0000000000000 {
		t.Errorf("lfs 1.0 gave 0x%016x", c.FPR[1])
	}
	if c.GPR[4] != 0x3ff0000000000000 {
		t.Errorf("ld after stfd gave 0x%016x", c.GPR[4])
	}
	if c.GPR[5] != 0x3f800000 {
		t.Errorf("stfs round trip gave 0x%08x", c.GPR[5])
	}
}

func TestVectorLoadStore(t *testing.T) {
	c := load(t, "li r3,0x800", "li r4,0x10", "lvx v1,r3,r4", "vaddubs v2,v1,v1", "stvx v2,0,r3")
	for i := uint32(0); i < 4; i++ {
		c.StoreWord(0x810+4*i, 0x80808080)
	}
	step(t, c, 5)
	want := oracle.Vec{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff}
	if c.VR[2] != want {
		t.Errorf("vaddubs gave %08x", c.VR[2])
	}
	if !c.State.VSCR.SAT() {
		t.Errorf("SAT not set after saturating add")
	}
	if c.FetchWord(0x80c) != 0xffffffff {
		t.Errorf("stvx did not store the last word")
	}
}

func TestFloatEnabledInvalid(t *testing.T) {
	c := load(t, "fsub f3,f1,f2")
	c.FPR[1] = oracle.PosInf
	c.FPR[2] = oracle.PosInf
	c.FPR[3] = 0x1234
	c.State.FPSCR = flags.FPSCR(flags.VE)
	step(t, c, 1)
	if c.FPR[3] != 0x1234 {
		t.Errorf("enabled VXISI wrote the target: 0x%016x", c.FPR[3])
	}
	if !c.State.FPSCR.Has(flags.VXISI | flags.VX | flags.FX | flags.FEX) {
		t.Errorf("FPSCR is %08x", uint32(c.State.FPSCR))
	}
}

func TestBreak(t *testing.T) {
	c := load(t, "li r3,7")
	if err := c.Break("addi"); err != nil {
		t.Fatalf("Break: %v", err)
	}
	step(t, c, 1)
	if c.GPR[3] != 0 || c.PC != 4 {
		t.Errorf("broken addi executed: r3=%d pc=%d", c.GPR[3], c.PC)
	}
	if err := c.Break("frobnicate"); !errors.Is(err, asm.ErrUnknownMnemonic) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestIllegalInstruction(t *testing.T) {
	c := NewCPU()
	if _, err := c.Exec(0, 0); !errors.Is(err, ErrIllegalInstruction) {
		t.Errorf("word 0 decoded: %v", err)
	}
	if err := c.Step(); !errors.Is(err, ErrNoMemory) {
		t.Errorf("step without memory: %v", err)
	}
}

func TestMoveToVSCRKeepsDefinedBits(t *testing.T) {
	cases := []struct {
		word uint32
		want flags.VSCR
	}{
		{0, 0},
		{0xffffffff, flags.VSCR(flags.SAT | flags.NJ)},
		{0xfffefffe, 0},
		{flags.NJ | 0x100, flags.VSCR(flags.NJ)},
	}
	for ix, tc := range cases {
		c := load(t, "mtvscr v3")
		c.VR[3] = oracle.Vec{0, 0, 0, tc.word}
		step(t, c, 1)
		if c.State.VSCR != tc.want {
			t.Errorf("Case #%d, expected VSCR %08x, saw %08x", ix, uint32(tc.want), uint32(c.State.VSCR))
		}
	}
}

func TestStoreSingleUnderflow(t *testing.T) {
	cases := []struct {
		value uint64
		word  uint32
		fpscr uint32
	}{
		{0x36a0000000000000, 1, 0},
		{0x36a8000000000000, 1, flags.FX | flags.UX},
		{0x3690000000000000, 0, flags.FX | flags.UX},
		{0xb690000000000000, 0x80000000, flags.FX | flags.UX},
	}
	for ix, tc := range cases {
		c := load(t, "li r3,0x800", "stfs f1,0(r3)")
		c.StoreWord(0x800, 0x5555)
		c.FPR[1] = tc.value
		step(t, c, 2)
		if got := c.FetchWord(0x800); got != tc.word {
			t.Errorf("Case #%d, expected 0x%08x stored, saw 0x%08x", ix, tc.word, got)
		}
		if uint32(c.State.FPSCR) != tc.fpscr {
			t.Errorf("Case #%d, expected FPSCR %08x, saw %08x", ix, tc.fpscr, uint32(c.State.FPSCR))
		}
	}
}

func TestLoadSingleQuietsSignaling(t *testing.T) {
	c := load(t, "li r3,0x800", "lfs f1,0(r3)")
	c.StoreWord(0x800, 0x7f800001)
	step(t, c, 2)
	if c.FPR[1] != 0x7ff8000020000000 {
		t.Errorf("lfs of a signaling NaN gave 0x%016x", c.FPR[1])
	}
	if c.State.FPSCR != 0 {
		t.Errorf("lfs touched the FPSCR: %08x", uint32(c.State.FPSCR))
	}
}

func TestByteAndHalfLoadStore(t *testing.T) {
	c := load(t, "li r3,0x800", "lbz r4,1(r3)", "lha r5,2(r3)", "lhz r6,2(r3)", "stb r4,7(r3)", "sth r5,4(r3)")
	c.StoreWord(0x800, 0x11228001)
	c.StoreWord(0x804, 0xaabbccdd)
	step(t, c, 6)
	if c.GPR[4] != 0x22 {
		t.Errorf("lbz gave 0x%x", c.GPR[4])
	}
	if c.GPR[5] != 0xffffffffffff8001 {
		t.Errorf("lha gave 0x%x", c.GPR[5])
	}
	if c.GPR[6] != 0x8001 {
		t.Errorf("lhz gave 0x%x", c.GPR[6])
	}
	if got := c.FetchWord(0x804); got != 0x8001cc22 {
		t.Errorf("stb and sth left 0x%08x", got)
	}
}

func TestRotateInstructions(t *testing.T) {
	c := load(t, "li r4,-1", "rlwinm r3,r4,0,31,0", "rldicl r5,r4,0,32", "rlwnm. r6,r7,r8,0,31", "rldimi r9,r10,32,0")
	c.GPR[7] = 1
	c.GPR[8] = 0x21
	c.GPR[9] = 0xffffffffffffffff
	c.GPR[10] = 0x11223344
	step(t, c, 5)
	cases := []struct {
		reg  int
		want uint64
	}{{3, 0xffffffff80000001}, {5, 0xffffffff}, {6, 2}, {9, 0x11223344ffffffff}}
	for ix, tc := range cases {
		if c.GPR[tc.reg] != tc.want {
			t.Errorf("Case #%d, expected r%d = 0x%x, saw 0x%x", ix, tc.reg, tc.want, c.GPR[tc.reg])
		}
	}
	if c.State.CR.Field(0) != flags.GT {
		t.Errorf("rlwnm. set CR0 to %x", c.State.CR.Field(0))
	}
}

func TestFloatSelectAndEstimate(t *testing.T) {
	c := load(t, "fsel f1,f2,f3,f4", "fres f5,f6", "frsqrte f7,f8")
	c.FPR[2] = oracle.SignBit
	c.FPR[3] = 0x3ff0000000000000
	c.FPR[4] = 0x4000000000000000
	c.FPR[6] = 0x4000000000000000
	c.FPR[8] = 0x4010000000000000
	step(t, c, 3)
	if c.FPR[1] != 0x3ff0000000000000 {
		t.Errorf("fsel on -0 gave 0x%016x", c.FPR[1])
	}
	if c.FPR[5] != 0x3fe0000000000000 {
		t.Errorf("fres 2 gave 0x%016x", c.FPR[5])
	}
	if c.FPR[7] != 0x3fe0000000000000 {
		t.Errorf("frsqrte 4 gave 0x%016x", c.FPR[7])
	}
}

func TestVectorFourOperand(t *testing.T) {
	c := load(t, "vmaddfp v1,v2,v3,v4", "vspltisw v5,-1", "vsel v6,v2,v3,v5", "vperm v7,v2,v3,v8", "vspltw v9,v10,3")
	one := oracle.Vec{0x3f800000, 0x3f800000, 0x3f800000, 0x3f800000}
	two := oracle.Vec{0x40000000, 0x40000000, 0x40000000, 0x40000000}
	c.VR[2] = one
	c.VR[3] = two
	c.VR[4] = one
	c.VR[8] = oracle.Vec{0x10111213, 0x00010203, 0x10111213, 0x00010203}
	c.VR[10] = oracle.Vec{1, 2, 3, 4}
	step(t, c, 5)
	if want := (oracle.Vec{0x40400000, 0x40400000, 0x40400000, 0x40400000}); c.VR[1] != want {
		t.Errorf("vmaddfp gave %08x", c.VR[1])
	}
	if want := (oracle.Vec{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff}); c.VR[5] != want {
		t.Errorf("vspltisw gave %08x", c.VR[5])
	}
	if c.VR[6] != two {
		t.Errorf("vsel gave %08x", c.VR[6])
	}
	if want := (oracle.Vec{0x40000000, 0x3f800000, 0x40000000, 0x3f800000}); c.VR[7] != want {
		t.Errorf("vperm gave %08x", c.VR[7])
	}
	if want := (oracle.Vec{4, 4, 4, 4}); c.VR[9] != want {
		t.Errorf("vspltw gave %08x", c.VR[9])
	}
}
