package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownMnemonic    = errors.New("unknown mnemonic")
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrOperands           = errors.New("bad operands")
)

// Special purpose register numbers.
const (
	SPRXER = 1
	SPRLR  = 8
	SPRCTR = 9
)

// Branch condition helpers (BO field values).
const (
	BOTrue   = 12
	BOFalse  = 4
	BODnz    = 16
	BOAlways = 20
)

// Split "addo." into base name and variant flags, for the forms that
// have them.
func splitMnemonic(m string) (*OpDef, bool, bool, bool, bool, error) {
	if d, ok := byName[m]; ok {
		return d, false, d.RcFixed, false, false, nil
	}
	base := m
	rc, lk, aa := false, false, false
	if strings.HasSuffix(base, ".") {
		rc = true
		base = strings.TrimSuffix(base, ".")
	}
	if d, ok := byName[base]; ok && d.HasRc && rc {
		return d, false, true, false, false, nil
	}
	if strings.HasSuffix(base, "o") {
		if d, ok := byName[strings.TrimSuffix(base, "o")]; ok && d.HasOE {
			return d, true, rc, false, false, nil
		}
	}
	if !rc {
		b := base
		if strings.HasSuffix(b, "a") {
			aa = true
			b = strings.TrimSuffix(b, "a")
		}
		if strings.HasSuffix(b, "l") {
			lk = true
			b = strings.TrimSuffix(b, "l")
		}
		if d, ok := byName[b]; ok && (d.Form == FormI || d.Form == FormB || (d.Form == FormXL && !aa)) {
			return d, false, false, lk, aa, nil
		}
	}
	return nil, false, false, false, false, fmt.Errorf("%w: %q", ErrUnknownMnemonic, m)
}

// Parse a register or number operand. Register prefixes r, f, v and cr
// are accepted and stripped.
func parseNumber(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, p := range []string{"cr", "r", "f", "v"} {
		if strings.HasPrefix(s, p) {
			if n, err := strconv.ParseInt(s[len(p):], 10, 64); err == nil {
				return n, nil
			}
		}
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, fmt.Errorf("%w: %q", ErrOperands, s)
		}
		return int64(u), nil
	}
	return v, nil
}

// Parse "d(rA)".
func parseMem(s string) (int64, int64, error) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("%w: %q is not d(rA)", ErrOperands, s)
	}
	d := int64(0)
	if open > 0 {
		v, err := parseNumber(s[:open])
		if err != nil {
			return 0, 0, err
		}
		d = v
	}
	ra, err := parseNumber(s[open+1 : len(s)-1])
	if err != nil {
		return 0, 0, err
	}
	return d, ra, nil
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Rewrite simplified mnemonics into their base forms.
func expandSimplified(m string, ops []string) (string, []string) {
	crField := func(ops []string, want int) (string, []string) {
		if len(ops) == want+1 {
			return ops[0], ops[1:]
		}
		return "cr0", ops
	}
	condBranch := func(bo int, bit int, ops []string) []string {
		cr, rest := crField(ops, 1)
		n, err := parseNumber(cr)
		if err != nil {
			n = 0
		}
		return append([]string{strconv.Itoa(bo), strconv.Itoa(int(n)*4 + bit)}, rest...)
	}
	switch m {
	case "nop":
		return "ori", []string{"0", "0", "0"}
	case "li":
		if len(ops) == 2 {
			return "addi", []string{ops[0], "0", ops[1]}
		}
	case "lis":
		if len(ops) == 2 {
			return "addis", []string{ops[0], "0", ops[1]}
		}
	case "mr", "mr.":
		if len(ops) == 2 {
			return strings.Replace(m, "mr", "or", 1), []string{ops[0], ops[1], ops[1]}
		}
	case "not":
		if len(ops) == 2 {
			return "nor", []string{ops[0], ops[1], ops[1]}
		}
	case "sub", "subo", "sub.", "subo.":
		if len(ops) == 3 {
			return strings.Replace(m, "sub", "subf", 1), []string{ops[0], ops[2], ops[1]}
		}
	case "cmpdi", "cmpwi", "cmpldi", "cmplwi", "cmpd", "cmpw", "cmpld", "cmplw":
		cr, rest := crField(ops, 2)
		l := "1"
		if strings.Contains(m, "w") {
			l = "0"
		}
		base := "cmp"
		if strings.HasPrefix(m, "cmpl") {
			base = "cmpl"
		}
		if strings.HasSuffix(m, "i") {
			base += "i"
		}
		return base, append([]string{cr, l}, rest...)
	case "beq":
		return "bc", condBranch(BOTrue, 2, ops)
	case "bne":
		return "bc", condBranch(BOFalse, 2, ops)
	case "blt":
		return "bc", condBranch(BOTrue, 0, ops)
	case "bge":
		return "bc", condBranch(BOFalse, 0, ops)
	case "bgt":
		return "bc", condBranch(BOTrue, 1, ops)
	case "ble":
		return "bc", condBranch(BOFalse, 1, ops)
	case "bso":
		return "bc", condBranch(BOTrue, 3, ops)
	case "bns":
		return "bc", condBranch(BOFalse, 3, ops)
	case "bdnz":
		return "bc", append([]string{strconv.Itoa(BODnz), "0"}, ops...)
	case "blr":
		return "bclr", []string{strconv.Itoa(BOAlways), "0"}
	case "mtxer":
		return "mtspr", append([]string{strconv.Itoa(SPRXER)}, ops...)
	case "mfxer":
		return "mfspr", append(ops, strconv.Itoa(SPRXER))
	case "mtlr":
		return "mtspr", append([]string{strconv.Itoa(SPRLR)}, ops...)
	case "mflr":
		return "mfspr", append(ops, strconv.Itoa(SPRLR))
	case "mtctr":
		return "mtspr", append([]string{strconv.Itoa(SPRCTR)}, ops...)
	case "mfctr":
		return "mfspr", append(ops, strconv.Itoa(SPRCTR))
	case "mtcr":
		return "mtcrf", append([]string{"0xff"}, ops...)
	}
	return m, ops
}

// Assemble one line of PowerPC assembly, e.g. "addo. r3,r4,r5" or
// "lfs f1,8(r5)". Branch targets are byte displacements relative to
// the instruction.
func Assemble(line string) (uint32, error) {
	line = strings.TrimSpace(line)
	m := line
	rest := ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		m = line[:sp]
		rest = line[sp+1:]
	}
	m, ops := expandSimplified(strings.ToLower(m), splitOperands(rest))

	d, oe, rc, lk, aa, err := splitMnemonic(m)
	if err != nil {
		return 0, err
	}
	w, err := encode(d, ops, oe, rc, lk, aa)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", line, err)
	}
	return w, nil
}

// Assemble or panic. Used to build static case tables.
func MustAssemble(line string) uint32 {
	w, err := Assemble(line)
	if err != nil {
		panic(err)
	}
	return w
}

func encode(d *OpDef, ops []string, oe, rc, lk, aa bool) (uint32, error) {
	want := operandCount(d.Form)
	if len(ops) != want {
		return 0, fmt.Errorf("%w: %s takes %d operands, got %d", ErrOperands, d.Name, want, len(ops))
	}
	n := make([]int64, 0, len(ops))
	var disp, base int64
	for i, o := range ops {
		if (d.Form == FormDMem || d.Form == FormDS) && i == 1 {
			dd, ra, err := parseMem(o)
			if err != nil {
				return 0, err
			}
			disp, base = dd, ra
			continue
		}
		v, err := parseNumber(o)
		if err != nil {
			return 0, err
		}
		n = append(n, v)
	}

	w := d.Primary << 26
	reg := func(v int64, at uint) uint32 { return (uint32(v) & 0x1f) << (31 - at) }
	rcBit := uint32(0)
	if rc && d.HasRc {
		rcBit = 1
	}
	oeBit := uint32(0)
	if oe && d.HasOE {
		oeBit = 1 << 10
	}

	switch d.Form {
	case FormD:
		w |= reg(n[0], 10) | reg(n[1], 15) | uint32(n[2])&0xffff
	case FormDU:
		w |= reg(n[1], 10) | reg(n[0], 15) | uint32(n[2])&0xffff
	case FormDMem:
		w |= reg(n[0], 10) | reg(base, 15) | uint32(disp)&0xffff
	case FormDS:
		if disp&3 != 0 {
			return 0, fmt.Errorf("%w: DS displacement %d not a multiple of 4", ErrOperands, disp)
		}
		w |= reg(n[0], 10) | reg(base, 15) | uint32(disp)&0xfffc | d.XO
	case FormCmpI, FormCmpLI:
		w |= (uint32(n[0])&7)<<23 | (uint32(n[1])&1)<<21 | reg(n[2], 15) | uint32(n[3])&0xffff
	case FormCmp:
		w |= (uint32(n[0])&7)<<23 | (uint32(n[1])&1)<<21 | reg(n[2], 15) | reg(n[3], 20) | d.XO<<1
	case FormXO, FormXOMul:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | oeBit | d.XO<<1 | rcBit
	case FormXO2:
		w |= reg(n[0], 10) | reg(n[1], 15) | oeBit | d.XO<<1 | rcBit
	case FormXLogic:
		w |= reg(n[1], 10) | reg(n[0], 15) | reg(n[2], 20) | d.XO<<1 | rcBit
	case FormXUnary:
		w |= reg(n[1], 10) | reg(n[0], 15) | d.XO<<1 | rcBit
	case FormXShImm:
		w |= reg(n[1], 10) | reg(n[0], 15) | reg(n[2], 20) | d.XO<<1 | rcBit
	case FormXS:
		sh := uint32(n[2]) & 0x3f
		w |= reg(n[1], 10) | reg(n[0], 15) | (sh&0x1f)<<11 | d.XO<<2 | (sh>>5)<<1 | rcBit
	case FormM, FormMReg:
		w |= reg(n[1], 10) | reg(n[0], 15) | reg(n[2], 20) | reg(n[3], 25) | reg(n[4], 30) | rcBit
	case FormMD:
		sh := uint32(n[2]) & 0x3f
		w |= reg(n[1], 10) | reg(n[0], 15) | (sh&0x1f)<<11 | maskField(n[3]) | d.XO<<2 | (sh>>5)<<1 | rcBit
	case FormMDS:
		w |= reg(n[1], 10) | reg(n[0], 15) | reg(n[2], 20) | maskField(n[3]) | d.XO<<1 | rcBit
	case FormMfspr:
		w |= reg(n[0], 10) | sprField(n[1]) | d.XO<<1
	case FormMtspr:
		w |= reg(n[1], 10) | sprField(n[0]) | d.XO<<1
	case FormMfcr:
		w |= reg(n[0], 10) | d.XO<<1
	case FormMtcrf:
		w |= reg(n[1], 10) | (uint32(n[0])&0xff)<<12 | d.XO<<1
	case FormI:
		w |= uint32(n[0]) & 0x03fffffc
		if aa {
			w |= 2
		}
		if lk {
			w |= 1
		}
	case FormB:
		w |= reg(n[0], 10) | reg(n[1], 15) | uint32(n[2])&0xfffc
		if aa {
			w |= 2
		}
		if lk {
			w |= 1
		}
	case FormXL:
		w |= reg(n[0], 10) | reg(n[1], 15) | d.XO<<1
		if lk {
			w |= 1
		}
	case FormA3:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | d.XO<<1 | rcBit
	case FormAMul:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 25) | d.XO<<1 | rcBit
	case FormA4:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 25) | reg(n[3], 20) | d.XO<<1 | rcBit
	case FormA1, FormXF1:
		w |= reg(n[0], 10) | reg(n[1], 20) | d.XO<<1 | rcBit
	case FormFCmp:
		w |= (uint32(n[0])&7)<<23 | reg(n[1], 15) | reg(n[2], 20) | d.XO<<1
	case FormMffs:
		w |= reg(n[0], 10) | d.XO<<1 | rcBit
	case FormMtfsf:
		w |= (uint32(n[0])&0xff)<<17 | reg(n[1], 20) | d.XO<<1 | rcBit
	case FormMtfsfi:
		w |= (uint32(n[0])&7)<<23 | (uint32(n[1])&0xf)<<12 | d.XO<<1 | rcBit
	case FormMtfsb:
		w |= reg(n[0], 10) | d.XO<<1 | rcBit
	case FormVX3:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | d.XO
	case FormVXUimm:
		w |= reg(n[0], 10) | reg(n[2], 15) | reg(n[1], 20) | d.XO
	case FormVXSimm:
		w |= reg(n[0], 10) | (uint32(n[1])&0x1f)<<16 | d.XO
	case FormVA:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | reg(n[3], 25) | d.XO
	case FormVAFMA:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[3], 20) | reg(n[2], 25) | d.XO
	case FormVC:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | d.XO
		if rc {
			w |= 1 << 10
		}
	case FormMfvscr:
		w |= reg(n[0], 10) | d.XO
	case FormMtvscr:
		w |= reg(n[0], 20) | d.XO
	case FormVMem:
		w |= reg(n[0], 10) | reg(n[1], 15) | reg(n[2], 20) | d.XO<<1
	default:
		return 0, fmt.Errorf("%w: form %d", ErrUnknownMnemonic, d.Form)
	}
	return w, nil
}

func sprField(spr int64) uint32 {
	s := uint32(spr) & 0x3ff
	return (s&0x1f)<<16 | (s>>5)<<11
}

// The split six-bit mb/me field of the MD and MDS forms.
func maskField(m int64) uint32 {
	v := uint32(m) & 0x3f
	return ((v&0x1f)<<1 | v>>5) << 5
}

func operandCount(f Form) int {
	switch f {
	case FormM, FormMReg:
		return 5
	case FormI, FormMfcr, FormMffs, FormMtfsb, FormMfvscr, FormMtvscr:
		return 1
	case FormDMem, FormDS, FormXO2, FormXUnary, FormMfspr, FormMtspr, FormMtcrf,
		FormXL, FormA1, FormXF1, FormMtfsf, FormMtfsfi, FormVXSimm:
		return 2
	case FormCmpI, FormCmpLI, FormCmp, FormA4, FormMD, FormMDS, FormVA, FormVAFMA:
		return 4
	default:
		return 3
	}
}
