package asm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	cases := []struct {
		line     string
		expected uint32
	}{
		{"addi r3,r4,1", 0x38640001},
		{"li r3,-1", 0x3860ffff},
		{"add r3,r4,r5", 0x7c642a14},
		{"addo. r3,r4,r5", 0x7c642e15},
		{"mr r3,r4", 0x7c832378},
		{"nop", 0x60000000},
		{"blr", 0x4e800020},
		{"b 8", 0x48000008},
		{"bl -8", 0x4bfffff9},
		{"lwz r3,8(r5)", 0x80650008},
		{"cmpdi r4,5", 0x2c240005},
		{"mflr r3", 0x7c6802a6},
		{"mtctr r4", 0x7c8903a6},
		{"fadd f1,f2,f3", 0xfc22182a},
		{"fmadd f1,f2,f3,f4", 0xfc2220fa},
		{"vaddubm v1,v2,v3", 0x10221800},
		{"vcmpequw. v1,v2,v3", 0x10221c86},
		{"rlwinm r3,r4,2,0,29", 0x5483103a},
		{"rldicl r3,r4,0,32", 0x78830020},
		{"rldicr r3,r4,4,59", 0x788326e4},
		{"rldcl r3,r4,r5,0", 0x78832810},
		{"lbz r3,0(r5)", 0x88650000},
		{"fsel f1,f2,f3,f4", 0xfc2220ee},
		{"fres f1,f2", 0xec201030},
		{"frsqrte f1,f2", 0xfc201034},
		{"vperm v1,v2,v3,v4", 0x1022192b},
		{"vmaddfp v1,v2,v3,v4", 0x102220ee},
		{"vspltw v1,v3,2", 0x1022188c},
		{"vspltisw v1,-1", 0x103f038c},
	}
	for ix, tc := range cases {
		w, err := Assemble(tc.line)
		if err != nil {
			t.Errorf("Case #%d, %q: unexpected error %v", ix, tc.line, err)
			continue
		}
		if w != tc.expected {
			t.Errorf("Case #%d, %q: expected 0x%08x, saw 0x%08x", ix, tc.line, tc.expected, w)
		}
	}
}

func TestAssembleErrors(t *testing.T) {
	cases := []struct {
		line     string
		expected error
	}{
		{"frobnicate r1", ErrUnknownMnemonic},
		{"add r3,r4", ErrOperands},
		{"lwz r3,r5", ErrOperands},
		{"addi r3,r4,lots", ErrOperands},
	}
	for ix, tc := range cases {
		_, err := Assemble(tc.line)
		if !errors.Is(err, tc.expected) {
			t.Errorf("Case #%d, %q: expected %v, saw %v", ix, tc.line, tc.expected, err)
		}
	}
	assert.Panics(t, func() { MustAssemble("frobnicate") })
}

func TestDecode(t *testing.T) {
	in, err := Decode(0x7c642e15)
	require.NoError(t, err)
	assert.Equal(t, "add", in.Def.Name)
	assert.True(t, in.OE)
	assert.True(t, in.Rc)
	assert.Equal(t, uint8(3), in.RT)
	assert.Equal(t, uint8(4), in.RA)
	assert.Equal(t, uint8(5), in.RB)

	in, err = Decode(0x4bfffff9)
	require.NoError(t, err)
	assert.Equal(t, int32(-8), in.Offset)
	assert.True(t, in.LK)

	_, err = Decode(0)
	assert.True(t, errors.Is(err, ErrUnknownInstruction))
}

func TestDecodeRotateFields(t *testing.T) {
	cases := []struct {
		line   string
		name   string
		sh     uint8
		mb, me uint8
	}{
		{"rlwinm r3,r4,2,0,29", "rlwinm", 2, 0, 29},
		{"rlwimi. r3,r4,31,5,5", "rlwimi", 31, 5, 5},
		{"rldicl r3,r4,0,32", "rldicl", 0, 32, 32},
		{"rldicr r3,r4,4,59", "rldicr", 4, 59, 59},
		{"rldic r3,r4,63,1", "rldic", 63, 1, 1},
		{"rldimi r3,r4,32,0", "rldimi", 32, 0, 0},
		{"rldcr r3,r4,r5,63", "rldcr", 0, 63, 63},
	}
	for ix, tc := range cases {
		in, err := Decode(MustAssemble(tc.line))
		if !assert.NoError(t, err, "Case #%d", ix) {
			continue
		}
		assert.Equal(t, tc.name, in.Def.Name, "Case #%d", ix)
		assert.Equal(t, tc.sh, in.SH, "Case #%d", ix)
		assert.Equal(t, tc.mb, in.MB, "Case #%d", ix)
		assert.Equal(t, tc.me, in.ME, "Case #%d", ix)
	}

	in, err := Decode(MustAssemble("vspltisb v2,-16"))
	require.NoError(t, err)
	assert.Equal(t, int64(-16), in.Imm)
	in, err = Decode(MustAssemble("vnmsubfp v1,v2,v3,v4"))
	require.NoError(t, err)
	assert.Equal(t, uint8(3), in.RC)
	assert.Equal(t, uint8(4), in.RB)
}

func TestDisassemble(t *testing.T) {
	cases := []struct {
		line     string
		expected string
	}{
		{"addi r3,r4,1", "addi r3,r4,1"},
		{"addo. r3,r4,r5", "addo. r3,r4,r5"},
		{"b 8", "b +8"},
		{"cmpdi r4,5", "cmpi cr0,1,r4,5"},
		{"fadd f1,f2,f3", "fadd f1,f2,f3"},
		{"fmadd f1,f2,f3,f4", "fmadd f1,f2,f3,f4"},
		{"lfs f1,-4(r5)", "lfs f1,-4(r5)"},
		{"vctuxs v1,v3,31", "vctuxs v1,v3,31"},
		{"rlwnm. r3,r4,r5,0,31", "rlwnm. r3,r4,r5,0,31"},
		{"lha r3,-2(r5)", "lha r3,-2(r5)"},
		{"vmaddfp v1,v2,v3,v4", "vmaddfp v1,v2,v3,v4"},
		{"vspltish v1,-1", "vspltish v1,-1"},
	}
	for ix, tc := range cases {
		got := Disassemble(MustAssemble(tc.line))
		if got != tc.expected {
			t.Errorf("Case #%d, expected %q, saw %q", ix, tc.expected, got)
		}
	}
	assert.Equal(t, ".long 0x00000000", Disassemble(0))
}

// Disassembly is valid input to the assembler.
func TestRoundTrip(t *testing.T) {
	lines := []string{
		"subfco. r3,r4,r5",
		"srawi r3,r4,4",
		"sradi r3,r4,63",
		"bc 12,2,16",
		"bclrl 20,0",
		"mtcrf 0x81,r4",
		"mfcr r3",
		"lfd f1,8(r5)",
		"stvx v1,r5,r6",
		"fcmpu cr6,f2,f3",
		"mtfsf 0xff,f2",
		"mtfsfi. 7,15",
		"mtfsb1 3",
		"mffs f1",
		"vpkswss v1,v2,v3",
		"mfvscr v1",
		"mtvscr v3",
		"rlwinm. r3,r4,2,0,29",
		"rldicl r3,r4,63,1",
		"rldimi. r3,r4,33,40",
		"rldcl r3,r4,r5,62",
		"stb r3,1(r5)",
		"sth r3,2(r5)",
		"lhz r3,6(r5)",
		"fsel. f1,f2,f3,f4",
		"fres f1,f2",
		"frsqrte. f1,f2",
		"vsel v1,v2,v3,v4",
		"vnmsubfp v1,v2,v3,v4",
		"vsplth v1,v3,7",
		"vspltisb v1,15",
	}
	for ix, l := range lines {
		w, err := Assemble(l)
		if err != nil {
			t.Errorf("Case #%d, %q: %v", ix, l, err)
			continue
		}
		back, err := Assemble(Disassemble(w))
		if err != nil {
			t.Errorf("Case #%d, %q: reassembly failed: %v", ix, Disassemble(w), err)
			continue
		}
		if back != w {
			t.Errorf("Case #%d, %q: expected 0x%08x, saw 0x%08x", ix, l, w, back)
		}
	}
}
