package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
	"github.com/vatine/ppuconform/pkg/record"
)

const sample = `
cases = {
  { name = "addi", asm = "addi r3,r4,1", gpr = { [4] = 41 },
    expect = { kind = "int", reg = 3, value = 42 } },
  { name = "pair", asm = { "li r4,7", "addi r3,r4,1" },
    expect = { kind = "int", reg = 3, value = 8 } },
  { name = "fadd", asm = "fadd f1,f2,f3", fpr = { [2] = f64(1.0), [3] = f64(2.0) },
    expect = { kind = "float", reg = 1, value = f64(3.0), fpscr = 0x4000 } },
  { name = "lwz", asm = "lwz r3,4(r5)", mem = { [4] = "0xdeadbeef" },
    expect = { kind = "int", reg = 3, value = "0xdeadbeef" } },
  { name = "cmpdi", asm = "cmpdi r4,0", gpr = { [4] = "-1" }, xer = "0x80000000",
    expect = { kind = "flags", cr = "0x90000000", xer = "0x80000000" } },
  { name = "bdnz", asm = "bdnz 8", ctr = 2,
    expect = { kind = "branch", target = 8, ctr = 1 } },
  { name = "vor", family = "vector", asm = "vor v1,v2,v3",
    vr = { [2] = { 1, 2, 3, 4 }, [3] = { 16, 32, 48, 64 } },
    expect = { kind = "vec", reg = 1, value = { 17, 34, 51, 68 } } },
  { name = "std", asm = "std r4,8(r5)", gpr = { [4] = "0x1122334455667788" }, scratch_reg = 5,
    expect = { kind = "mem", offset = 8, words = { "0x11223344", "0x55667788" } } },
}
`

func TestLoadString(t *testing.T) {
	cases, err := LoadString(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, cases, 8)

	expected := []struct {
		name   string
		family harness.Family
		insns  int
	}{
		{"addi", harness.FamilyInteger, 1},
		{"pair", harness.FamilyInteger, 2},
		{"fadd", harness.FamilyFloat, 1},
		{"lwz", harness.FamilyLoadStore, 1},
		{"cmpdi", harness.FamilyInteger, 1},
		{"bdnz", harness.FamilyBranch, 1},
		{"vor", harness.FamilyVector, 1},
		{"std", harness.FamilyLoadStore, 1},
	}
	for ix, tc := range expected {
		c := cases[ix]
		if c.Name != tc.name {
			t.Errorf("Case #%d, expected name %q, saw %q", ix, tc.name, c.Name)
		}
		if c.Family != tc.family {
			t.Errorf("Case #%d, expected family %s, saw %s", ix, tc.family, c.Family)
		}
		if len(c.Insns) != tc.insns {
			t.Errorf("Case #%d, expected %d words, saw %d", ix, tc.insns, len(c.Insns))
		}
	}

	assert.Equal(t, uint64(0xffffffffffffffff), cases[4].Setup.GPR[4])
	assert.Equal(t, uint32(0xdeadbeef), cases[3].Setup.Memory[4])
	assert.Equal(t, 5, cases[3].Setup.ScratchReg)
	assert.Equal(t, uint64(2), cases[5].Setup.SPR[cpu.SPRCTR])
	assert.Equal(t, oracle.Vec{1, 2, 3, 4}, cases[6].Setup.VR[2])
	assert.Equal(t, harness.FloatCheck{Reg: 1, Value: 0x4008000000000000, FPSCR: 0x4000}, cases[2].Check)
}

// Every sample case is right, so the reference CPU passes them all.
func TestScriptCasesRun(t *testing.T) {
	cases, err := LoadString(context.Background(), sample)
	require.NoError(t, err)
	scratch := make([]byte, harness.MinScratch)
	failures := make([]byte, harness.MinFailures)
	n, err := harness.Run(cpu.NewCPU(), harness.Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	if n != 0 {
		recs, _ := record.Decode(failures, n, nil)
		t.Errorf("expected no failures, saw %v", recs)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.lua")
	src := `
cases = {}
for i = 0, 3 do
  table.insert(cases, { name = "li " .. i, asm = "li r3," .. i,
    expect = { kind = "int", reg = 3, value = i } })
end
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	cases, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, "li 3", cases[3].Name)
	assert.Equal(t, harness.IntCheck{Reg: 3, Value: 3}, cases[3].Check)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		src      string
		expected error
	}{
		{`x = 1`, ErrNoCases},
		{`cases = { 1 }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1" } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", expect = { kind = "nope" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", gpr = { [40] = 1 }, expect = { kind = "int" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", family = "nope", expect = { kind = "int" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", expect = { kind = "int", reg = 1.5 } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", gpr = { [4] = -1 }, expect = { kind = "int" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", gpr = { [4] = 2^64 }, expect = { kind = "int" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", gpr = { [4] = math.huge }, expect = { kind = "int" } } }`, ErrField},
		{`cases = { { asm = "addi r3,r4,1", expect = { kind = "int", reg = -3 } } }`, ErrField},
		{`cases = { { asm = "frobnicate r1", expect = { kind = "int" } } }`, nil},
	}
	for ix, tc := range cases {
		_, err := LoadString(context.Background(), tc.src)
		if err == nil {
			t.Errorf("Case #%d, expected an error, saw none", ix)
			continue
		}
		if tc.expected != nil && !errors.Is(err, tc.expected) {
			t.Errorf("Case #%d, expected %v, saw %v", ix, tc.expected, err)
		}
	}
}

func TestSignedBranchTarget(t *testing.T) {
	cases, err := LoadString(context.Background(), `
cases = { { name = "back", asm = "b -8", expect = { kind = "branch", target = -8 } } }
`)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, harness.BranchCheck{Target: -8}, cases[0].Check)
}

func TestNoLoaders(t *testing.T) {
	for ix, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		src := `cases = {}
` + name + `("cases.lua")`
		_, err := LoadString(context.Background(), src)
		assert.Error(t, err, "Case #%d, %s is callable", ix, name)
	}

	cases, err := LoadString(context.Background(), `
cases = { { name = "kept", asm = "li r3,1", expect = { kind = "int", reg = 3, value = math.max(1, 0) } } }
assert(string.format("%d", 1) == "1")
`)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadString(ctx, `while true do end`)
	assert.Error(t, err)
}
