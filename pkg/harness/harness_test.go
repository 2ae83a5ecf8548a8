package harness

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
	"github.com/vatine/ppuconform/pkg/record"
)

func buffers() ([]byte, []byte) {
	return make([]byte, MinScratch), make([]byte, MinFailures)
}

func mustSingle(t *testing.T, name string, f Family, line string, s Setup, chk Checker) Case {
	t.Helper()
	c, err := Single(name, f, line, s, chk)
	require.NoError(t, err)
	return c
}

// A small table with one deliberately wrong expectation per family.
func table(t *testing.T) []Case {
	return []Case{
		mustSingle(t, "addi", FamilyInteger, "addi r3,r4,1",
			Setup{GPR: map[int]uint64{4: 41}}, IntCheck{Reg: 3, Value: 42}),
		mustSingle(t, "addi wrong", FamilyInteger, "addi r3,r4,1",
			Setup{GPR: map[int]uint64{4: 41}}, IntCheck{Reg: 3, Value: 43}),
		mustSingle(t, "cmpdi", FamilyCompare, "cmpdi r4,5",
			Setup{GPR: map[int]uint64{4: 5}}, FlagsCheck{Want: flags.MachineState{CR: flags.CR(flags.EQ) << 28}}),
		mustSingle(t, "cmpdi wrong", FamilyCompare, "cmpdi r4,5",
			Setup{GPR: map[int]uint64{4: 5}}, FlagsCheck{Want: flags.MachineState{CR: flags.CR(flags.LT) << 28}}),
		mustSingle(t, "stw", FamilyLoadStore, "stw r4,8(r5)",
			Setup{GPR: map[int]uint64{4: 0xcafe}, ScratchReg: 5}, MemCheck{Offset: 8, Want: []uint32{0xcafe}}),
		mustSingle(t, "stw wrong", FamilyLoadStore, "stw r4,8(r5)",
			Setup{GPR: map[int]uint64{4: 0xcafe}, ScratchReg: 5}, MemCheck{Offset: 8, Want: []uint32{0xbeef}}),
	}
}

func TestRunPasses(t *testing.T) {
	scratch, failures := buffers()
	c := mustSingle(t, "addi", FamilyInteger, "addi r3,r4,1", Setup{GPR: map[int]uint64{4: 41}}, IntCheck{Reg: 3, Value: 42})
	n, err := Run(cpu.NewCPU(), Options{}, []Case{c}, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunRecordsFailure(t *testing.T) {
	scratch, failures := buffers()
	cases := table(t)
	n, err := Run(cpu.NewCPU(), Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	recs, err := record.Decode(failures, n, binary.BigEndian)
	require.NoError(t, err)

	base := uint32(0x10000 + casesOffset)
	assert.Equal(t, asm.MustAssemble("addi r3,r4,1"), recs[0].Insn)
	assert.Equal(t, base+4, recs[0].Addr)
	assert.Equal(t, [6]uint32{0, 42, 0, 0, 0, 0}, recs[0].Aux)

	assert.Equal(t, base+12, recs[1].Addr)
	assert.Equal(t, uint32(flags.EQ)<<28, recs[1].Aux[0])

	assert.Equal(t, asm.MustAssemble("stw r4,8(r5)"), recs[2].Insn)
	assert.Equal(t, base+20, recs[2].Addr)
	assert.Equal(t, uint32(0xcafe), recs[2].Aux[0])
}

func TestRunLittleEndianRecords(t *testing.T) {
	scratch, failures := buffers()
	n, err := Run(cpu.NewCPU(), Options{Order: binary.LittleEndian}, table(t), 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, uint32(0x10000+casesOffset+4), binary.LittleEndian.Uint32(failures[4:]))
}

func TestRunBufferSizes(t *testing.T) {
	cases := []struct {
		scratch, failures int
	}{
		{MinScratch - 1, MinFailures},
		{MinScratch, MinFailures - 1},
		{0, 0},
	}
	for ix, tc := range cases {
		n, err := Run(cpu.NewCPU(), Options{}, nil, 0, make([]byte, tc.scratch), make([]byte, tc.failures), 1.0)
		if !errors.Is(err, ErrBufferTooSmall) {
			t.Errorf("Case #%d, expected ErrBufferTooSmall, saw %v", ix, err)
		}
		if n != 0 {
			t.Errorf("Case #%d, expected 0, saw %d", ix, n)
		}
	}
}

func TestBootstrapDetectsBrokenInstructions(t *testing.T) {
	for _, name := range []string{"lwz", "stw", "addi", "or", "cmpi", "bc", "b"} {
		c := cpu.NewCPU()
		require.NoError(t, c.Break(name))
		scratch, failures := buffers()
		n, err := Run(c, Options{}, table(t), 0, scratch, failures, 1.0)
		assert.ErrorIs(t, err, ErrBootstrap, name)
		assert.Equal(t, CodeBootstrap, n, name)
	}
}

func TestBootstrapArguments(t *testing.T) {
	scratch, failures := buffers()
	n, err := Run(cpu.NewCPU(), Options{}, nil, 1, scratch, failures, 1.0)
	assert.ErrorIs(t, err, ErrBootstrap)
	assert.Equal(t, CodeBootstrap, n)

	n, err = Run(cpu.NewCPU(), Options{}, nil, 0, scratch, failures, 2.0)
	assert.ErrorIs(t, err, ErrBootstrap)
	assert.Equal(t, CodeBootstrap, n)
}

func TestLoadAddress(t *testing.T) {
	cases := []struct {
		opts     Options
		expected int
	}{
		{Options{Origin: 0x10000, CheckLoadAddress: true}, 0},
		{Options{Origin: 0x10000, LoadAddress: 0x20000}, 0},
		{Options{Origin: 0x10000, LoadAddress: 0x20000, CheckLoadAddress: true}, CodeLoadAddress},
	}
	for ix, tc := range cases {
		scratch, failures := buffers()
		n, err := Run(cpu.NewCPU(), tc.opts, nil, 0, scratch, failures, 1.0)
		if n != tc.expected {
			t.Errorf("Case #%d, expected %d, saw %d (%v)", ix, tc.expected, n, err)
		}
		if tc.expected == CodeLoadAddress && !errors.Is(err, ErrLoadAddress) {
			t.Errorf("Case #%d, expected ErrLoadAddress, saw %v", ix, err)
		}
	}
}

func TestNonVolatileRestored(t *testing.T) {
	c := cpu.NewCPU()
	c.SetGPR(14, 0x1414)
	c.SetGPR(31, 0x3131)
	c.SetFPR(20, 0x4034000000000000)
	c.SetVR(25, oracle.Vec{1, 2, 3, 4})
	st := c.Flags()
	st.CR.SetField(3, 0x6)
	c.SetFlags(st)

	clobber, err := Sequence("clobber", FamilyInteger, []string{"li r14,1", "li r31,2"}, Setup{}, IntCheck{Reg: 31, Value: 2})
	require.NoError(t, err)
	scratch, failures := buffers()
	n, err := Run(c, Options{}, []Case{clobber}, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, uint64(0x1414), c.GetGPR(14))
	assert.Equal(t, uint64(0x3131), c.GetGPR(31))
	assert.Equal(t, uint64(0x4034000000000000), c.GetFPR(20))
	assert.Equal(t, oracle.Vec{1, 2, 3, 4}, c.GetVR(25))
	assert.Equal(t, uint8(0x6), c.Flags().CR.Field(3))
}

func TestSequenceNamesLastInstruction(t *testing.T) {
	c, err := Sequence("pair", FamilyInteger, []string{"li r4,7", "addi r3,r4,1"}, Setup{}, IntCheck{Reg: 3, Value: 0})
	require.NoError(t, err)
	scratch, failures := buffers()
	n, err := Run(cpu.NewCPU(), Options{}, []Case{c}, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	recs, err := record.Decode(failures, n, nil)
	require.NoError(t, err)
	assert.Equal(t, asm.MustAssemble("addi r3,r4,1"), recs[0].Insn)
	assert.Equal(t, uint32(0x10000+casesOffset+4), recs[0].Addr)
	assert.Equal(t, uint32(8), recs[0].Aux[1])
}

func TestBranchCheck(t *testing.T) {
	cases := []Case{
		mustSingle(t, "bl", FamilyBranch, "bl 16", Setup{}, BranchCheck{Target: 16, CheckLR: true, LROffset: 4}),
		mustSingle(t, "bdnz", FamilyBranch, "bdnz 8", Setup{SPR: map[int]uint64{cpu.SPRCTR: 2}}, BranchCheck{Target: 8, CTR: 1}),
		mustSingle(t, "bdnz wrong", FamilyBranch, "bdnz 8", Setup{SPR: map[int]uint64{cpu.SPRCTR: 1}}, BranchCheck{Target: 8}),
	}
	scratch, failures := buffers()
	n, err := Run(cpu.NewCPU(), Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	recs, err := record.Decode(failures, n, nil)
	require.NoError(t, err)
	addr := uint32(0x10000 + casesOffset + 8)
	assert.Equal(t, [6]uint32{addr + 4, addr + 8, 0, 0, 0, 0}, recs[0].Aux)
}

func TestRunParallelMatchesRun(t *testing.T) {
	cases := table(t)

	scratch, want := buffers()
	n, err := Run(cpu.NewCPU(), Options{}, cases, 0, scratch, want, 1.0)
	require.NoError(t, err)

	for _, shards := range []int{1, 2, 3, 8} {
		scratch, got := buffers()
		factory := func() Target { return cpu.NewCPU() }
		m, err := RunParallel(context.Background(), shards, factory, Options{}, cases, 0, scratch, got, 1.0)
		require.NoError(t, err)
		assert.Equal(t, n, m, "shards=%d", shards)
		assert.Equal(t, want[:n*record.Size], got[:m*record.Size], "shards=%d", shards)
	}
}

func TestRunParallelBootstrapFailure(t *testing.T) {
	scratch, failures := buffers()
	factory := func() Target {
		c := cpu.NewCPU()
		c.Break("lwz")
		return c
	}
	n, err := RunParallel(context.Background(), 2, factory, Options{}, table(t), 0, scratch, failures, 1.0)
	assert.ErrorIs(t, err, ErrBootstrap)
	assert.Equal(t, CodeBootstrap, n)
}

func TestPartition(t *testing.T) {
	cases := table(t)
	parts := partition(cases, 2, 0x100)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0].cases, 2)
	assert.Len(t, parts[1].cases, 4)
	assert.Equal(t, uint32(0x100), parts[0].start)
	assert.Equal(t, uint32(0x108), parts[1].start)

	parts = partition(nil, 4, 0x100)
	require.Len(t, parts, 1)
	assert.Empty(t, parts[0].cases)

	parts = partition(cases, 10, 0)
	assert.Len(t, parts, 3)
	for _, p := range parts {
		for _, c := range p.cases {
			assert.Equal(t, p.cases[0].Family, c.Family)
		}
	}
}

func TestNear(t *testing.T) {
	half := uint64(0x3fe0000000000000)
	cases := []struct {
		got, want uint64
		tol       float64
		ok        bool
	}{
		{half, half, oracle.ResPrecision, true},
		{0x3fe0100000000000, half, oracle.ResPrecision, true},
		{0x3fe1000000000000, half, oracle.ResPrecision, false},
		{0x3fe0400000000000, half, oracle.RsqrtPrecision, true},
		{0x0000000000000001, 0, oracle.RsqrtPrecision, false},
		{oracle.SignBit, 0, oracle.RsqrtPrecision, false},
		{0x7fefffffffffffff, oracle.PosInf, oracle.RsqrtPrecision, false},
		{oracle.DefaultQNaN, oracle.DefaultQNaN, oracle.RsqrtPrecision, true},
	}
	for ix, tc := range cases {
		if got := near(tc.got, tc.want, tc.tol); got != tc.ok {
			t.Errorf("Case #%d, expected %v, saw %v", ix, tc.ok, got)
		}
	}
}

func TestFloatCheckTolerance(t *testing.T) {
	two := map[int]uint64{3: 0x4000000000000000}
	// The reference target returns exactly 0.5 with FR and FI clear.
	cases := []Case{
		mustSingle(t, "fres close", FamilyFloat, "fres f1,f3", Setup{FPR: two},
			FloatCheck{Reg: 1, Value: 0x3fe0080000000000, FPSCR: 0x4000 | flags.FI, Tolerance: oracle.ResPrecision}),
		mustSingle(t, "fres exact only", FamilyFloat, "fres f1,f3", Setup{FPR: two},
			FloatCheck{Reg: 1, Value: 0x3fe0080000000000, FPSCR: 0x4000}),
		mustSingle(t, "fres far", FamilyFloat, "fres f1,f3", Setup{FPR: two},
			FloatCheck{Reg: 1, Value: 0x3fe8000000000000, FPSCR: 0x4000, Tolerance: oracle.ResPrecision}),
	}
	scratch, failures := buffers()
	n, err := Run(cpu.NewCPU(), Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	recs, err := record.Decode(failures, n, nil)
	require.NoError(t, err)
	base := uint32(0x10000 + casesOffset)
	assert.Equal(t, base+4, recs[0].Addr)
	assert.Equal(t, base+8, recs[1].Addr)
}

func TestRunParallelMergeStopsWhenFull(t *testing.T) {
	var cases []Case
	per := MinFailures / record.Size
	for i := 0; i < per; i++ {
		cases = append(cases, mustSingle(t, "addi wrong", FamilyInteger, "addi r3,r4,1",
			Setup{GPR: map[int]uint64{4: 41}}, IntCheck{Reg: 3, Value: 43}))
	}
	for i := 0; i < per/2; i++ {
		cases = append(cases, mustSingle(t, "cmpdi wrong", FamilyCompare, "cmpdi r4,5",
			Setup{GPR: map[int]uint64{4: 5}}, FlagsCheck{Want: flags.MachineState{CR: flags.CR(flags.LT) << 28}}))
	}

	scratch, failures := buffers()
	factory := func() Target { return cpu.NewCPU() }
	n, err := RunParallel(context.Background(), 2, factory, Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	require.Equal(t, per, n)

	recs, err := record.Decode(failures, n, nil)
	require.NoError(t, err)
	addi := asm.MustAssemble("addi r3,r4,1")
	for ix, r := range recs {
		if r.Insn != addi {
			t.Errorf("Case #%d, expected the first shard's records only, saw %s", ix, asm.Disassemble(r.Insn))
			break
		}
	}
}
