package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSticky(t *testing.T) {
	var s Sticky
	assert.True(t, s.Set(0x3))
	assert.False(t, s.Set(0x1))
	assert.True(t, s.Set(0x5))
	assert.True(t, s.Has(0x7))
	assert.False(t, s.Has(0x8))
}

func TestCRFields(t *testing.T) {
	cases := []struct {
		field int
		value uint8
		cr    CR
	}{
		{0, LT, 0x80000000},
		{1, GT | SO, 0x05000000},
		{6, EQ, 0x00000020},
		{7, 0xf, 0x0000000f},
	}
	for ix, tc := range cases {
		var c CR
		c.SetField(tc.field, tc.value)
		if c != tc.cr {
			t.Errorf("Case #%d, expected %08x, saw %08x", ix, uint32(tc.cr), uint32(c))
		}
		if got := c.Field(tc.field); got != tc.value {
			t.Errorf("Case #%d, expected field %x, saw %x", ix, tc.value, got)
		}
	}

	c := CR(0xffffffff)
	c.SetField(3, 0)
	assert.Equal(t, CR(0xfff0ffff), c)
	assert.True(t, CR(0x20000000).Bit(2))
	assert.False(t, CR(0x20000000).Bit(3))
	assert.True(t, CR(1).Bit(31))
}

func TestXER(t *testing.T) {
	var x XER
	x.SetOV(true)
	assert.True(t, x.OV())
	assert.True(t, x.SO())

	// SO stays once set.
	x.SetOV(false)
	assert.False(t, x.OV())
	assert.True(t, x.SO())

	x.SetCA(true)
	assert.Equal(t, XER(XERSO|XERCA), x)
	x.SetCA(false)
	assert.False(t, x.CA())
}

func TestFPSCRRaise(t *testing.T) {
	cases := []struct {
		prior    uint32
		mask     uint32
		expected uint32
		fresh    bool
	}{
		{0, ZX, FX | ZX, true},
		{ZE, ZX, FX | FEX | ZX | ZE, true},
		{0, VXSNAN, FX | VX | VXSNAN, true},
		{VE, VXIMZ, FX | FEX | VX | VXIMZ | VE, true},
		// Already set: no new FX.
		{XX, XX, XX, false},
		{XX, XX | OX, FX | XX | OX, true},
		// FR and FI are status, not exceptions.
		{0, FR | FI, FR | FI, true},
	}
	for ix, tc := range cases {
		f := FPSCR(tc.prior)
		fresh := f.Raise(tc.mask)
		if uint32(f) != tc.expected {
			t.Errorf("Case #%d, expected %08x, saw %08x", ix, tc.expected, uint32(f))
		}
		if fresh != tc.fresh {
			t.Errorf("Case #%d, expected fresh=%v, saw %v", ix, tc.fresh, fresh)
		}
	}
}

func TestFPSCRSummarize(t *testing.T) {
	f := FPSCR(VX | FEX)
	f.Summarize()
	assert.Equal(t, FPSCR(0), f)

	f = FPSCR(UX | UE)
	f.Summarize()
	assert.Equal(t, FPSCR(UX|UE|FEX), f)
}

func TestFPSCRFields(t *testing.T) {
	var f FPSCR
	f.SetRounding(RoundMinusInf)
	assert.Equal(t, RoundMinusInf, f.Rounding())
	assert.Equal(t, "-inf", f.Rounding().String())

	f.SetClass(ClassQNaN)
	assert.Equal(t, ClassQNaN, f.Class())
	assert.Equal(t, FPSCR(0x11003), f)

	f.SetRounded(true, true)
	assert.True(t, f.Has(FR|FI))
	f.SetRounded(false, true)
	assert.False(t, f.Has(FR))
	assert.True(t, f.Has(FI))

	assert.Equal(t, uint8(0xa), FPSCR(FX|VX).CR1())
}

func TestVSCR(t *testing.T) {
	var v VSCR
	assert.True(t, v.SetSAT())
	assert.False(t, v.SetSAT())
	assert.True(t, v.SAT())
	assert.False(t, v.NJ())
	assert.True(t, VSCR(NJ).NJ())
	assert.False(t, VSCR(NJ).SAT())
}

func TestFPSCRHas(t *testing.T) {
	f := FPSCR(FX | VX | VXSNAN)
	assert.True(t, f.Has(FX))
	assert.True(t, f.Has(VX|VXSNAN))
	assert.False(t, f.Has(VX|ZX))
	assert.False(t, f.Has(ZE))
}

func TestMachineStateString(t *testing.T) {
	m := MachineState{CR: 0x20000000, XER: XER(XERCA), FPSCR: FPSCR(ZE), VSCR: VSCR(SAT)}
	assert.Equal(t, "CR=20000000 XER=20000000 FPSCR=00000010 VSCR=00000001", m.String())
}
