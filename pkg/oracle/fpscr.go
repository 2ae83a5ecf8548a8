package oracle

import (
	"github.com/vatine/ppuconform/pkg/flags"
)

// mtfsf: copy the nibbles selected by the 8-bit field mask from v.
// FEX and VX are never written directly and are recomputed.
func MoveToFPSCRFields(prior flags.FPSCR, flm uint8, v uint32) flags.FPSCR {
	var mask uint32
	for i := 0; i < 8; i++ {
		if flm&(0x80>>uint(i)) != 0 {
			mask |= 0xf << (28 - 4*uint(i))
		}
	}
	f := flags.FPSCR((uint32(prior) &^ mask) | (v & mask))
	f.Summarize()
	return f
}

// mtfsfi: write the 4-bit immediate u into field bf.
func MoveToFPSCRImmediate(prior flags.FPSCR, bf int, u uint8) flags.FPSCR {
	return MoveToFPSCRFields(prior, 0x80>>uint(bf), uint32(u&0xf)<<(28-4*uint(bf)))
}

// mtfsb1: set one bit (MSB-0 numbering). Setting an exception bit
// that was clear also sets FX. FEX and VX cannot be set this way.
func SetFPSCRBit(prior flags.FPSCR, bt int) flags.FPSCR {
	f := prior
	if bt == 1 || bt == 2 {
		return f
	}
	f.Raise(1 << (31 - uint(bt)))
	return f
}

// mtfsb0: clear one bit. FEX and VX cannot be cleared this way.
func ClearFPSCRBit(prior flags.FPSCR, bt int) flags.FPSCR {
	if bt == 1 || bt == 2 {
		return prior
	}
	f := flags.FPSCR(uint32(prior) &^ (1 << (31 - uint(bt))))
	f.Summarize()
	return f
}

// A record-form FPSCR move copies the new FPSCR's top nibble into CR1.
func RecordCR1(st flags.MachineState) flags.MachineState {
	st.CR.SetField(1, st.FPSCR.CR1())
	return st
}
