package suite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/record"
)

func TestCasesBuild(t *testing.T) {
	cases, err := Cases()
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	// Families come out in one contiguous run each, in table order.
	last := harness.Family(-1)
	seen := map[harness.Family]bool{}
	for _, c := range cases {
		if c.Family != last {
			assert.False(t, seen[c.Family], "family %s split", c.Family)
			assert.True(t, c.Family > last, c.Name)
			seen[c.Family] = true
			last = c.Family
		}
		assert.NotEmpty(t, c.Insns, c.Name)
		assert.NotNil(t, c.Check, c.Name)
	}
	assert.Len(t, seen, len(generators))
}

func TestCasesFilter(t *testing.T) {
	cases, err := Cases(harness.FamilyVector)
	require.NoError(t, err)
	require.NotEmpty(t, cases)
	for _, c := range cases {
		if c.Family != harness.FamilyVector {
			t.Errorf("Case %q, expected vector family, saw %s", c.Name, c.Family)
		}
	}
}

func run(t *testing.T, c *cpu.CPU, cases []harness.Case) []record.Record {
	t.Helper()
	scratch := make([]byte, harness.MinScratch)
	failures := make([]byte, harness.MinFailures)
	n, err := harness.Run(c, harness.Options{}, cases, 0, scratch, failures, 1.0)
	require.NoError(t, err)
	recs, err := record.Decode(failures, n, nil)
	require.NoError(t, err)
	return recs
}

func TestReferenceCPUPasses(t *testing.T) {
	families := []harness.Family{
		harness.FamilyInteger,
		harness.FamilyCompare,
		harness.FamilyLogic,
		harness.FamilyBranch,
		harness.FamilyLoadStore,
		harness.FamilyFloat,
		harness.FamilyVector,
	}
	for _, f := range families {
		cases, err := Cases(f)
		require.NoError(t, err)
		recs := run(t, cpu.NewCPU(), cases)
		for _, r := range recs {
			t.Errorf("%s: unexpected failure %s", f, r)
		}
	}
}

func TestBrokenInstructionIsReported(t *testing.T) {
	cases := []struct {
		family harness.Family
		broken string
	}{
		{harness.FamilyFloat, "fadd"},
		{harness.FamilyInteger, "subfc"},
		{harness.FamilyVector, "vpkswss"},
		{harness.FamilyLogic, "sraw"},
	}
	for ix, tc := range cases {
		table, err := Cases(tc.family)
		require.NoError(t, err)
		c := cpu.NewCPU()
		require.NoError(t, c.Break(tc.broken))
		recs := run(t, c, table)
		if len(recs) == 0 {
			t.Errorf("Case #%d, expected failures with %s broken, saw none", ix, tc.broken)
		}
		for _, r := range recs {
			in, err := asm.Decode(r.Insn)
			require.NoError(t, err)
			if in.Def.Name != tc.broken {
				t.Errorf("Case #%d, expected only %s failures, saw %s", ix, tc.broken, asm.Disassemble(r.Insn))
			}
		}
	}
}
