package asm

import (
	"fmt"
)

// Render an instruction word in assembler syntax. Unknown words come
// back as a .long directive.
func Disassemble(word uint32) string {
	in, err := Decode(word)
	if err != nil {
		return fmt.Sprintf(".long 0x%08x", word)
	}
	m := in.Mnemonic()
	r := func(n uint8) string { return fmt.Sprintf("r%d", n) }
	f := func(n uint8) string { return fmt.Sprintf("f%d", n) }
	v := func(n uint8) string { return fmt.Sprintf("v%d", n) }

	switch in.Def.Form {
	case FormD:
		return fmt.Sprintf("%s %s,%s,%d", m, r(in.RT), r(in.RA), in.Imm)
	case FormDU:
		return fmt.Sprintf("%s %s,%s,0x%x", m, r(in.RA), r(in.RT), in.UImm)
	case FormDMem, FormDS:
		t := r(in.RT)
		if in.Def.Class == ClassLoadStore && (in.Def.Primary >= 48 && in.Def.Primary <= 55) {
			t = f(in.RT)
		}
		return fmt.Sprintf("%s %s,%d(%s)", m, t, in.Imm, r(in.RA))
	case FormCmpI:
		return fmt.Sprintf("%s cr%d,%d,%s,%d", m, in.BF, b2i(in.L), r(in.RA), in.Imm)
	case FormCmpLI:
		return fmt.Sprintf("%s cr%d,%d,%s,0x%x", m, in.BF, b2i(in.L), r(in.RA), in.UImm)
	case FormCmp:
		return fmt.Sprintf("%s cr%d,%d,%s,%s", m, in.BF, b2i(in.L), r(in.RA), r(in.RB))
	case FormXO, FormXOMul:
		return fmt.Sprintf("%s %s,%s,%s", m, r(in.RT), r(in.RA), r(in.RB))
	case FormXO2:
		return fmt.Sprintf("%s %s,%s", m, r(in.RT), r(in.RA))
	case FormXLogic:
		return fmt.Sprintf("%s %s,%s,%s", m, r(in.RA), r(in.RT), r(in.RB))
	case FormXUnary:
		return fmt.Sprintf("%s %s,%s", m, r(in.RA), r(in.RT))
	case FormXShImm, FormXS:
		return fmt.Sprintf("%s %s,%s,%d", m, r(in.RA), r(in.RT), in.SH)
	case FormM:
		return fmt.Sprintf("%s %s,%s,%d,%d,%d", m, r(in.RA), r(in.RT), in.SH, in.MB, in.ME)
	case FormMReg:
		return fmt.Sprintf("%s %s,%s,%s,%d,%d", m, r(in.RA), r(in.RT), r(in.RB), in.MB, in.ME)
	case FormMD:
		return fmt.Sprintf("%s %s,%s,%d,%d", m, r(in.RA), r(in.RT), in.SH, in.MB)
	case FormMDS:
		return fmt.Sprintf("%s %s,%s,%s,%d", m, r(in.RA), r(in.RT), r(in.RB), in.MB)
	case FormMfspr:
		return fmt.Sprintf("%s %s,%d", m, r(in.RT), in.SPR)
	case FormMtspr:
		return fmt.Sprintf("%s %d,%s", m, in.SPR, r(in.RT))
	case FormMfcr:
		return fmt.Sprintf("%s %s", m, r(in.RT))
	case FormMtcrf:
		return fmt.Sprintf("%s 0x%02x,%s", m, in.FXM, r(in.RT))
	case FormI:
		return fmt.Sprintf("%s %+d", m, in.Offset)
	case FormB:
		return fmt.Sprintf("%s %d,%d,%+d", m, in.BO, in.BI, in.Offset)
	case FormXL:
		return fmt.Sprintf("%s %d,%d", m, in.BO, in.BI)
	case FormA3:
		return fmt.Sprintf("%s %s,%s,%s", m, f(in.RT), f(in.RA), f(in.RB))
	case FormAMul:
		return fmt.Sprintf("%s %s,%s,%s", m, f(in.RT), f(in.RA), f(in.RC))
	case FormA4:
		return fmt.Sprintf("%s %s,%s,%s,%s", m, f(in.RT), f(in.RA), f(in.RC), f(in.RB))
	case FormA1, FormXF1:
		return fmt.Sprintf("%s %s,%s", m, f(in.RT), f(in.RB))
	case FormFCmp:
		return fmt.Sprintf("%s cr%d,%s,%s", m, in.BF, f(in.RA), f(in.RB))
	case FormMffs:
		return fmt.Sprintf("%s %s", m, f(in.RT))
	case FormMtfsf:
		return fmt.Sprintf("%s 0x%02x,%s", m, in.FLM, f(in.RB))
	case FormMtfsfi:
		return fmt.Sprintf("%s %d,%d", m, in.BF, in.U)
	case FormMtfsb:
		return fmt.Sprintf("%s %d", m, in.BT)
	case FormVX3, FormVC:
		return fmt.Sprintf("%s %s,%s,%s", m, v(in.RT), v(in.RA), v(in.RB))
	case FormVXUimm:
		return fmt.Sprintf("%s %s,%s,%d", m, v(in.RT), v(in.RB), in.UImm)
	case FormVXSimm:
		return fmt.Sprintf("%s %s,%d", m, v(in.RT), in.Imm)
	case FormVA:
		return fmt.Sprintf("%s %s,%s,%s,%s", m, v(in.RT), v(in.RA), v(in.RB), v(in.RC))
	case FormVAFMA:
		return fmt.Sprintf("%s %s,%s,%s,%s", m, v(in.RT), v(in.RA), v(in.RC), v(in.RB))
	case FormMfvscr:
		return fmt.Sprintf("%s %s", m, v(in.RT))
	case FormMtvscr:
		return fmt.Sprintf("%s %s", m, v(in.RB))
	case FormVMem:
		return fmt.Sprintf("%s %s,%s,%s", m, v(in.RT), r(in.RA), r(in.RB))
	}
	return m
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
