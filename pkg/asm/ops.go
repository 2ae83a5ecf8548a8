// The asm package encodes, decodes and disassembles the PowerPC
// instructions the conformance suite exercises.
//
// Bit positions in comments are MSB-0, as in the architecture books.
package asm

import (
	"fmt"
)

// Instruction layouts.
type Form int

const (
	FormD      Form = iota // rt, ra, simm
	FormDU                 // ra, rs, uimm
	FormDMem               // rt, d(ra)
	FormDS                 // rt, ds(ra)
	FormCmpI               // bf, l, ra, simm
	FormCmpLI              // bf, l, ra, uimm
	FormCmp                // bf, l, ra, rb
	FormXO                 // rt, ra, rb with OE and Rc
	FormXO2                // rt, ra with OE and Rc
	FormXOMul              // rt, ra, rb with Rc only
	FormXLogic             // ra, rs, rb with Rc
	FormXUnary             // ra, rs with Rc
	FormXShImm             // ra, rs, sh
	FormXS                 // ra, rs, sh (six bits)
	FormM                  // ra, rs, sh, mb, me
	FormMReg               // ra, rs, rb, mb, me
	FormMD                 // ra, rs, sh, mb or me (six bits each)
	FormMDS                // ra, rs, rb, mb or me
	FormMfspr              // rt, spr
	FormMtspr              // spr, rs
	FormMfcr               // rt
	FormMtcrf              // fxm, rs
	FormI                  // target offset
	FormB                  // bo, bi, target offset
	FormXL                 // bo, bi
	FormA3                 // frt, fra, frb
	FormAMul               // frt, fra, frc
	FormA4                 // frt, fra, frc, frb
	FormA1                 // frt, frb
	FormXF1                // frt, frb
	FormFCmp               // bf, fra, frb
	FormMffs               // frt
	FormMtfsf              // flm, frb
	FormMtfsfi             // bf, u
	FormMtfsb              // bt
	FormVX3                // vrt, vra, vrb
	FormVXUimm             // vrt, vrb, uimm
	FormVXSimm             // vrt, simm
	FormVA                 // vrt, vra, vrb, vrc
	FormVAFMA              // vrt, vra, vrc, vrb
	FormVC                 // vrt, vra, vrb with Rc
	FormMfvscr             // vrt
	FormMtvscr             // vrb
	FormVMem               // vrt, ra, rb
)

// Broad instruction class, used to pick a checker and for reporting.
type Class int

const (
	ClassInteger Class = iota
	ClassBranch
	ClassLoadStore
	ClassFloat
	ClassVector
	ClassSystem
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassBranch:
		return "branch"
	case ClassLoadStore:
		return "loadstore"
	case ClassFloat:
		return "float"
	case ClassVector:
		return "vector"
	default:
		return "system"
	}
}

// One base mnemonic. The "o" and "." variants of a base are not
// separate entries; they are flags on the decoded Inst.
type OpDef struct {
	Name    string
	Form    Form
	Class   Class
	Primary uint32
	XO      uint32
	HasOE   bool
	HasRc   bool
	// Rc is fixed to one for the instruction (addic., andi.).
	RcFixed bool
}

var defs = []OpDef{
	// Integer immediate
	{Name: "addi", Form: FormD, Primary: 14},
	{Name: "addis", Form: FormD, Primary: 15},
	{Name: "addic", Form: FormD, Primary: 12},
	{Name: "addic.", Form: FormD, Primary: 13, RcFixed: true},
	{Name: "subfic", Form: FormD, Primary: 8},
	{Name: "mulli", Form: FormD, Primary: 7},
	{Name: "ori", Form: FormDU, Primary: 24},
	{Name: "oris", Form: FormDU, Primary: 25},
	{Name: "xori", Form: FormDU, Primary: 26},
	{Name: "andi.", Form: FormDU, Primary: 28, RcFixed: true},
	{Name: "cmpi", Form: FormCmpI, Primary: 11},
	{Name: "cmpli", Form: FormCmpLI, Primary: 10},

	// Integer register
	{Name: "cmp", Form: FormCmp, Primary: 31, XO: 0},
	{Name: "cmpl", Form: FormCmp, Primary: 31, XO: 32},
	{Name: "add", Form: FormXO, Primary: 31, XO: 266, HasOE: true, HasRc: true},
	{Name: "addc", Form: FormXO, Primary: 31, XO: 10, HasOE: true, HasRc: true},
	{Name: "adde", Form: FormXO, Primary: 31, XO: 138, HasOE: true, HasRc: true},
	{Name: "addme", Form: FormXO2, Primary: 31, XO: 234, HasOE: true, HasRc: true},
	{Name: "addze", Form: FormXO2, Primary: 31, XO: 202, HasOE: true, HasRc: true},
	{Name: "subf", Form: FormXO, Primary: 31, XO: 40, HasOE: true, HasRc: true},
	{Name: "subfc", Form: FormXO, Primary: 31, XO: 8, HasOE: true, HasRc: true},
	{Name: "subfe", Form: FormXO, Primary: 31, XO: 136, HasOE: true, HasRc: true},
	{Name: "subfme", Form: FormXO2, Primary: 31, XO: 232, HasOE: true, HasRc: true},
	{Name: "subfze", Form: FormXO2, Primary: 31, XO: 200, HasOE: true, HasRc: true},
	{Name: "neg", Form: FormXO2, Primary: 31, XO: 104, HasOE: true, HasRc: true},
	{Name: "mullw", Form: FormXO, Primary: 31, XO: 235, HasOE: true, HasRc: true},
	{Name: "mulld", Form: FormXO, Primary: 31, XO: 233, HasOE: true, HasRc: true},
	{Name: "mulhw", Form: FormXOMul, Primary: 31, XO: 75, HasRc: true},
	{Name: "mulhwu", Form: FormXOMul, Primary: 31, XO: 11, HasRc: true},
	{Name: "mulhd", Form: FormXOMul, Primary: 31, XO: 73, HasRc: true},
	{Name: "mulhdu", Form: FormXOMul, Primary: 31, XO: 9, HasRc: true},
	{Name: "divw", Form: FormXO, Primary: 31, XO: 491, HasOE: true, HasRc: true},
	{Name: "divwu", Form: FormXO, Primary: 31, XO: 459, HasOE: true, HasRc: true},
	{Name: "divd", Form: FormXO, Primary: 31, XO: 489, HasOE: true, HasRc: true},
	{Name: "divdu", Form: FormXO, Primary: 31, XO: 457, HasOE: true, HasRc: true},
	{Name: "and", Form: FormXLogic, Primary: 31, XO: 28, HasRc: true},
	{Name: "or", Form: FormXLogic, Primary: 31, XO: 444, HasRc: true},
	{Name: "xor", Form: FormXLogic, Primary: 31, XO: 316, HasRc: true},
	{Name: "nand", Form: FormXLogic, Primary: 31, XO: 476, HasRc: true},
	{Name: "nor", Form: FormXLogic, Primary: 31, XO: 124, HasRc: true},
	{Name: "andc", Form: FormXLogic, Primary: 31, XO: 60, HasRc: true},
	{Name: "orc", Form: FormXLogic, Primary: 31, XO: 412, HasRc: true},
	{Name: "eqv", Form: FormXLogic, Primary: 31, XO: 284, HasRc: true},
	{Name: "slw", Form: FormXLogic, Primary: 31, XO: 24, HasRc: true},
	{Name: "srw", Form: FormXLogic, Primary: 31, XO: 536, HasRc: true},
	{Name: "sraw", Form: FormXLogic, Primary: 31, XO: 792, HasRc: true},
	{Name: "sld", Form: FormXLogic, Primary: 31, XO: 27, HasRc: true},
	{Name: "srd", Form: FormXLogic, Primary: 31, XO: 539, HasRc: true},
	{Name: "srad", Form: FormXLogic, Primary: 31, XO: 794, HasRc: true},
	{Name: "extsb", Form: FormXUnary, Primary: 31, XO: 954, HasRc: true},
	{Name: "extsh", Form: FormXUnary, Primary: 31, XO: 922, HasRc: true},
	{Name: "extsw", Form: FormXUnary, Primary: 31, XO: 986, HasRc: true},
	{Name: "cntlzw", Form: FormXUnary, Primary: 31, XO: 26, HasRc: true},
	{Name: "cntlzd", Form: FormXUnary, Primary: 31, XO: 58, HasRc: true},
	{Name: "srawi", Form: FormXShImm, Primary: 31, XO: 824, HasRc: true},
	{Name: "sradi", Form: FormXS, Primary: 31, XO: 413, HasRc: true},
	{Name: "rlwimi", Form: FormM, Primary: 20, HasRc: true},
	{Name: "rlwinm", Form: FormM, Primary: 21, HasRc: true},
	{Name: "rlwnm", Form: FormMReg, Primary: 23, HasRc: true},
	{Name: "rldicl", Form: FormMD, Primary: 30, XO: 0, HasRc: true},
	{Name: "rldicr", Form: FormMD, Primary: 30, XO: 1, HasRc: true},
	{Name: "rldic", Form: FormMD, Primary: 30, XO: 2, HasRc: true},
	{Name: "rldimi", Form: FormMD, Primary: 30, XO: 3, HasRc: true},
	{Name: "rldcl", Form: FormMDS, Primary: 30, XO: 8, HasRc: true},
	{Name: "rldcr", Form: FormMDS, Primary: 30, XO: 9, HasRc: true},
	{Name: "mfspr", Form: FormMfspr, Class: ClassSystem, Primary: 31, XO: 339},
	{Name: "mtspr", Form: FormMtspr, Class: ClassSystem, Primary: 31, XO: 467},
	{Name: "mfcr", Form: FormMfcr, Class: ClassSystem, Primary: 31, XO: 19},
	{Name: "mtcrf", Form: FormMtcrf, Class: ClassSystem, Primary: 31, XO: 144},

	// Load and store
	{Name: "lbz", Form: FormDMem, Class: ClassLoadStore, Primary: 34},
	{Name: "lhz", Form: FormDMem, Class: ClassLoadStore, Primary: 40},
	{Name: "lha", Form: FormDMem, Class: ClassLoadStore, Primary: 42},
	{Name: "stb", Form: FormDMem, Class: ClassLoadStore, Primary: 38},
	{Name: "sth", Form: FormDMem, Class: ClassLoadStore, Primary: 44},
	{Name: "lwz", Form: FormDMem, Class: ClassLoadStore, Primary: 32},
	{Name: "stw", Form: FormDMem, Class: ClassLoadStore, Primary: 36},
	{Name: "lfs", Form: FormDMem, Class: ClassLoadStore, Primary: 48},
	{Name: "lfd", Form: FormDMem, Class: ClassLoadStore, Primary: 50},
	{Name: "stfs", Form: FormDMem, Class: ClassLoadStore, Primary: 52},
	{Name: "stfd", Form: FormDMem, Class: ClassLoadStore, Primary: 54},
	{Name: "ld", Form: FormDS, Class: ClassLoadStore, Primary: 58, XO: 0},
	{Name: "std", Form: FormDS, Class: ClassLoadStore, Primary: 62, XO: 0},
	{Name: "lvx", Form: FormVMem, Class: ClassLoadStore, Primary: 31, XO: 103},
	{Name: "stvx", Form: FormVMem, Class: ClassLoadStore, Primary: 31, XO: 231},

	// Branch
	{Name: "b", Form: FormI, Class: ClassBranch, Primary: 18},
	{Name: "bc", Form: FormB, Class: ClassBranch, Primary: 16},
	{Name: "bclr", Form: FormXL, Class: ClassBranch, Primary: 19, XO: 16},

	// Floating point, double
	{Name: "fdiv", Form: FormA3, Class: ClassFloat, Primary: 63, XO: 18, HasRc: true},
	{Name: "fsub", Form: FormA3, Class: ClassFloat, Primary: 63, XO: 20, HasRc: true},
	{Name: "fadd", Form: FormA3, Class: ClassFloat, Primary: 63, XO: 21, HasRc: true},
	{Name: "fsqrt", Form: FormA1, Class: ClassFloat, Primary: 63, XO: 22, HasRc: true},
	{Name: "fsel", Form: FormA4, Class: ClassFloat, Primary: 63, XO: 23, HasRc: true},
	{Name: "fmul", Form: FormAMul, Class: ClassFloat, Primary: 63, XO: 25, HasRc: true},
	{Name: "frsqrte", Form: FormA1, Class: ClassFloat, Primary: 63, XO: 26, HasRc: true},
	{Name: "fmsub", Form: FormA4, Class: ClassFloat, Primary: 63, XO: 28, HasRc: true},
	{Name: "fmadd", Form: FormA4, Class: ClassFloat, Primary: 63, XO: 29, HasRc: true},
	{Name: "fnmsub", Form: FormA4, Class: ClassFloat, Primary: 63, XO: 30, HasRc: true},
	{Name: "fnmadd", Form: FormA4, Class: ClassFloat, Primary: 63, XO: 31, HasRc: true},

	// Floating point, single
	{Name: "fdivs", Form: FormA3, Class: ClassFloat, Primary: 59, XO: 18, HasRc: true},
	{Name: "fsubs", Form: FormA3, Class: ClassFloat, Primary: 59, XO: 20, HasRc: true},
	{Name: "fadds", Form: FormA3, Class: ClassFloat, Primary: 59, XO: 21, HasRc: true},
	{Name: "fsqrts", Form: FormA1, Class: ClassFloat, Primary: 59, XO: 22, HasRc: true},
	{Name: "fres", Form: FormA1, Class: ClassFloat, Primary: 59, XO: 24, HasRc: true},
	{Name: "fmuls", Form: FormAMul, Class: ClassFloat, Primary: 59, XO: 25, HasRc: true},
	{Name: "fmsubs", Form: FormA4, Class: ClassFloat, Primary: 59, XO: 28, HasRc: true},
	{Name: "fmadds", Form: FormA4, Class: ClassFloat, Primary: 59, XO: 29, HasRc: true},
	{Name: "fnmsubs", Form: FormA4, Class: ClassFloat, Primary: 59, XO: 30, HasRc: true},
	{Name: "fnmadds", Form: FormA4, Class: ClassFloat, Primary: 59, XO: 31, HasRc: true},

	// Floating point, X-form
	{Name: "fcmpu", Form: FormFCmp, Class: ClassFloat, Primary: 63, XO: 0},
	{Name: "fcmpo", Form: FormFCmp, Class: ClassFloat, Primary: 63, XO: 32},
	{Name: "frsp", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 12, HasRc: true},
	{Name: "fctiw", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 14, HasRc: true},
	{Name: "fctiwz", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 15, HasRc: true},
	{Name: "fctid", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 814, HasRc: true},
	{Name: "fctidz", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 815, HasRc: true},
	{Name: "fcfid", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 846, HasRc: true},
	{Name: "fmr", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 72, HasRc: true},
	{Name: "fneg", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 40, HasRc: true},
	{Name: "fabs", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 264, HasRc: true},
	{Name: "fnabs", Form: FormXF1, Class: ClassFloat, Primary: 63, XO: 136, HasRc: true},
	{Name: "mffs", Form: FormMffs, Class: ClassFloat, Primary: 63, XO: 583, HasRc: true},
	{Name: "mtfsf", Form: FormMtfsf, Class: ClassFloat, Primary: 63, XO: 711, HasRc: true},
	{Name: "mtfsfi", Form: FormMtfsfi, Class: ClassFloat, Primary: 63, XO: 134, HasRc: true},
	{Name: "mtfsb0", Form: FormMtfsb, Class: ClassFloat, Primary: 63, XO: 70, HasRc: true},
	{Name: "mtfsb1", Form: FormMtfsb, Class: ClassFloat, Primary: 63, XO: 38, HasRc: true},

	// Vector
	{Name: "vaddubm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 0},
	{Name: "vadduhm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 64},
	{Name: "vadduwm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 128},
	{Name: "vaddubs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 512},
	{Name: "vadduhs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 576},
	{Name: "vadduws", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 640},
	{Name: "vaddsbs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 768},
	{Name: "vaddshs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 832},
	{Name: "vaddsws", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 896},
	{Name: "vsububm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1024},
	{Name: "vsubuhm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1088},
	{Name: "vsubuwm", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1152},
	{Name: "vsububs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1536},
	{Name: "vsubuhs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1600},
	{Name: "vsubuws", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1664},
	{Name: "vsubsbs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1792},
	{Name: "vsubshs", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1856},
	{Name: "vsubsws", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1920},
	{Name: "vpkuhum", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 14},
	{Name: "vpkuwum", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 78},
	{Name: "vpkuhus", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 142},
	{Name: "vpkuwus", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 206},
	{Name: "vpkshus", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 270},
	{Name: "vpkswus", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 334},
	{Name: "vpkshss", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 398},
	{Name: "vpkswss", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 462},
	{Name: "vaddfp", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 10},
	{Name: "vsubfp", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 74},
	{Name: "vand", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1028},
	{Name: "vor", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1156},
	{Name: "vxor", Form: FormVX3, Class: ClassVector, Primary: 4, XO: 1220},
	{Name: "vctuxs", Form: FormVXUimm, Class: ClassVector, Primary: 4, XO: 906},
	{Name: "vctsxs", Form: FormVXUimm, Class: ClassVector, Primary: 4, XO: 970},
	{Name: "vspltb", Form: FormVXUimm, Class: ClassVector, Primary: 4, XO: 524},
	{Name: "vsplth", Form: FormVXUimm, Class: ClassVector, Primary: 4, XO: 588},
	{Name: "vspltw", Form: FormVXUimm, Class: ClassVector, Primary: 4, XO: 652},
	{Name: "vspltisb", Form: FormVXSimm, Class: ClassVector, Primary: 4, XO: 780},
	{Name: "vspltish", Form: FormVXSimm, Class: ClassVector, Primary: 4, XO: 844},
	{Name: "vspltisw", Form: FormVXSimm, Class: ClassVector, Primary: 4, XO: 908},
	{Name: "vsel", Form: FormVA, Class: ClassVector, Primary: 4, XO: 42},
	{Name: "vperm", Form: FormVA, Class: ClassVector, Primary: 4, XO: 43},
	{Name: "vmaddfp", Form: FormVAFMA, Class: ClassVector, Primary: 4, XO: 46},
	{Name: "vnmsubfp", Form: FormVAFMA, Class: ClassVector, Primary: 4, XO: 47},
	{Name: "mfvscr", Form: FormMfvscr, Class: ClassVector, Primary: 4, XO: 1540},
	{Name: "mtvscr", Form: FormMtvscr, Class: ClassVector, Primary: 4, XO: 1604},
	{Name: "vcmpequb", Form: FormVC, Class: ClassVector, Primary: 4, XO: 6, HasRc: true},
	{Name: "vcmpequh", Form: FormVC, Class: ClassVector, Primary: 4, XO: 70, HasRc: true},
	{Name: "vcmpequw", Form: FormVC, Class: ClassVector, Primary: 4, XO: 134, HasRc: true},
	{Name: "vcmpeqfp", Form: FormVC, Class: ClassVector, Primary: 4, XO: 198, HasRc: true},
	{Name: "vcmpgefp", Form: FormVC, Class: ClassVector, Primary: 4, XO: 454, HasRc: true},
	{Name: "vcmpgtub", Form: FormVC, Class: ClassVector, Primary: 4, XO: 518, HasRc: true},
	{Name: "vcmpgtuh", Form: FormVC, Class: ClassVector, Primary: 4, XO: 582, HasRc: true},
	{Name: "vcmpgtuw", Form: FormVC, Class: ClassVector, Primary: 4, XO: 646, HasRc: true},
	{Name: "vcmpgtfp", Form: FormVC, Class: ClassVector, Primary: 4, XO: 710, HasRc: true},
	{Name: "vcmpgtsb", Form: FormVC, Class: ClassVector, Primary: 4, XO: 774, HasRc: true},
	{Name: "vcmpgtsh", Form: FormVC, Class: ClassVector, Primary: 4, XO: 838, HasRc: true},
	{Name: "vcmpgtsw", Form: FormVC, Class: ClassVector, Primary: 4, XO: 902, HasRc: true},
	{Name: "vcmpbfp", Form: FormVC, Class: ClassVector, Primary: 4, XO: 966, HasRc: true},
}

var byName map[string]*OpDef

func init() {
	byName = make(map[string]*OpDef, len(defs))
	for i := range defs {
		byName[defs[i].Name] = &defs[i]
	}
}

// Look up a base mnemonic.
func Lookup(name string) (*OpDef, bool) {
	d, ok := byName[name]
	return d, ok
}

// A decoded instruction. Which fields are meaningful depends on Def.Form.
type Inst struct {
	Def  *OpDef
	Word uint32

	RT, RA, RB, RC uint8
	BF, BI, BO, BT uint8
	L              bool
	Imm            int64 // sign-extended D, SI or DS field
	UImm           uint32
	SH             uint8
	MB, ME         uint8
	SPR            uint16
	FXM, FLM       uint8
	U              uint8
	Offset         int32 // branch displacement in bytes
	OE, Rc         bool
	AA, LK         bool
}

// Full mnemonic including "o" and "." suffixes, the way it would be written.
func (i Inst) Mnemonic() string {
	n := i.Def.Name
	if i.Def.RcFixed {
		return n
	}
	switch i.Def.Form {
	case FormI:
		if i.LK {
			n += "l"
		}
		if i.AA {
			n += "a"
		}
		return n
	case FormB:
		if i.LK {
			n += "l"
		}
		if i.AA {
			n += "a"
		}
		return n
	case FormXL:
		if i.LK {
			n += "l"
		}
		return n
	}
	if i.OE {
		n += "o"
	}
	if i.Rc {
		n += "."
	}
	return n
}

func (i Inst) String() string {
	return Disassemble(i.Word)
}

func signExtend(v uint32, bits uint) int64 {
	shift := 64 - bits
	return int64(uint64(v)<<shift) >> shift
}

func field(w uint32, from, to uint) uint32 {
	width := to - from + 1
	return (w >> (31 - to)) & ((1 << width) - 1)
}

// Decode a 32-bit instruction word.
func Decode(word uint32) (Inst, error) {
	primary := word >> 26
	for i := range defs {
		d := &defs[i]
		if d.Primary != primary {
			continue
		}
		if !matchXO(d, word) {
			continue
		}
		return decodeFields(d, word), nil
	}
	return Inst{}, fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, word)
}

func matchXO(d *OpDef, word uint32) bool {
	switch d.Form {
	case FormD, FormDU, FormDMem, FormCmpI, FormCmpLI, FormI, FormB, FormM, FormMReg:
		return true
	case FormMD:
		return field(word, 27, 29) == d.XO
	case FormMDS:
		return field(word, 27, 30) == d.XO
	case FormDS:
		return field(word, 30, 31) == d.XO
	case FormXO, FormXO2, FormXOMul:
		return field(word, 22, 30) == d.XO
	case FormXS:
		return field(word, 21, 29) == d.XO
	case FormA3, FormAMul, FormA4, FormA1:
		return field(word, 26, 30) == d.XO
	case FormVX3, FormVXUimm, FormVXSimm, FormMfvscr, FormMtvscr:
		return field(word, 21, 31) == d.XO
	case FormVA, FormVAFMA:
		return field(word, 26, 31) == d.XO
	case FormVC:
		return field(word, 22, 31) == d.XO
	default:
		return field(word, 21, 30) == d.XO
	}
}

func decodeFields(d *OpDef, w uint32) Inst {
	in := Inst{
		Def:  d,
		Word: w,
		RT:   uint8(field(w, 6, 10)),
		RA:   uint8(field(w, 11, 15)),
		RB:   uint8(field(w, 16, 20)),
		RC:   uint8(field(w, 21, 25)),
	}
	if d.RcFixed {
		in.Rc = true
	} else if d.HasRc && d.Form != FormVC {
		in.Rc = w&1 == 1
	}
	if d.HasOE {
		in.OE = field(w, 21, 21) == 1
	}

	switch d.Form {
	case FormD, FormDMem:
		in.Imm = signExtend(w&0xffff, 16)
	case FormDU:
		in.UImm = w & 0xffff
	case FormDS:
		in.Imm = signExtend(w&0xfffc, 16)
	case FormCmpI, FormCmpLI, FormCmp:
		in.BF = uint8(field(w, 6, 8))
		in.L = field(w, 10, 10) == 1
		in.Imm = signExtend(w&0xffff, 16)
		in.UImm = w & 0xffff
	case FormXShImm:
		in.SH = in.RB
	case FormXS:
		in.SH = uint8(field(w, 16, 20) | field(w, 30, 30)<<5)
	case FormM, FormMReg:
		in.SH = in.RB
		in.MB = uint8(field(w, 21, 25))
		in.ME = uint8(field(w, 26, 30))
	case FormMD, FormMDS:
		if d.Form == FormMD {
			in.SH = uint8(field(w, 16, 20) | field(w, 30, 30)<<5)
		}
		// One six-bit field, low five bits first. It is mb or me
		// depending on the instruction; both carry it.
		raw := field(w, 21, 26)
		in.MB = uint8(raw>>1 | (raw&1)<<5)
		in.ME = in.MB
	case FormMfspr, FormMtspr:
		in.SPR = uint16(field(w, 16, 20)<<5 | field(w, 11, 15))
	case FormMtcrf:
		in.FXM = uint8(field(w, 12, 19))
	case FormI:
		in.Offset = int32(signExtend(w&0x03fffffc, 26))
		in.AA = field(w, 30, 30) == 1
		in.LK = w&1 == 1
	case FormB:
		in.BO = in.RT
		in.BI = in.RA
		in.Offset = int32(signExtend(w&0xfffc, 16))
		in.AA = field(w, 30, 30) == 1
		in.LK = w&1 == 1
	case FormXL:
		in.BO = in.RT
		in.BI = in.RA
		in.LK = w&1 == 1
	case FormFCmp:
		in.BF = uint8(field(w, 6, 8))
	case FormMtfsf:
		in.FLM = uint8(field(w, 7, 14))
	case FormMtfsfi:
		in.BF = uint8(field(w, 6, 8))
		in.U = uint8(field(w, 16, 19))
	case FormMtfsb:
		in.BT = in.RT
	case FormVXUimm:
		in.UImm = uint32(in.RA)
	case FormVXSimm:
		in.Imm = signExtend(uint32(in.RA), 5)
	case FormVC:
		in.Rc = field(w, 21, 21) == 1
	}
	return in
}
