package cpu

import (
	"math/bits"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// Oracle operation behind each XO-form and D-form arithmetic mnemonic.
var arithOps = map[string]oracle.IntOp{
	"addic":  {Kind: oracle.Add, Carry: oracle.CarryOut},
	"addic.": {Kind: oracle.Add, Carry: oracle.CarryOut},
	"subfic": {Kind: oracle.Subf, Carry: oracle.CarryOut},
	"mulli":  {Kind: oracle.Mulli},
	"add":    {Kind: oracle.Add},
	"addc":   {Kind: oracle.Add, Carry: oracle.CarryOut},
	"adde":   {Kind: oracle.Add, Carry: oracle.CarryExtended},
	"addme":  {Kind: oracle.Add, Carry: oracle.CarryMinusOne},
	"addze":  {Kind: oracle.Add, Carry: oracle.CarryZero},
	"subf":   {Kind: oracle.Subf},
	"subfc":  {Kind: oracle.Subf, Carry: oracle.CarryOut},
	"subfe":  {Kind: oracle.Subf, Carry: oracle.CarryExtended},
	"subfme": {Kind: oracle.Subf, Carry: oracle.CarryMinusOne},
	"subfze": {Kind: oracle.Subf, Carry: oracle.CarryZero},
	"neg":    {Kind: oracle.Neg},
	"mullw":  {Kind: oracle.Mullw},
	"mulld":  {Kind: oracle.Mulld},
	"mulhw":  {Kind: oracle.Mulhw},
	"mulhwu": {Kind: oracle.Mulhwu},
	"mulhd":  {Kind: oracle.Mulhd},
	"mulhdu": {Kind: oracle.Mulhdu},
	"divw":   {Kind: oracle.Divw},
	"divwu":  {Kind: oracle.Divwu},
	"divd":   {Kind: oracle.Divd},
	"divdu":  {Kind: oracle.Divdu},
}

func init() {
	registerFunction("addi", BuildAddImmFunc)
	registerFunction("addis", BuildAddImmFunc)
	for name := range arithOps {
		registerFunction(name, BuildArithFunc)
	}
	for _, name := range []string{"ori", "oris", "xori", "andi."} {
		registerFunction(name, BuildLogicImmFunc)
	}
	for _, name := range []string{"cmpi", "cmpli", "cmp", "cmpl"} {
		registerFunction(name, BuildCompareFunc)
	}
	for _, name := range []string{"and", "or", "xor", "nand", "nor", "andc", "orc", "eqv"} {
		registerFunction(name, BuildLogicFunc)
	}
	for _, name := range []string{"slw", "srw", "sraw", "sld", "srd", "srad", "srawi", "sradi"} {
		registerFunction(name, BuildShiftFunc)
	}
	for _, name := range []string{"extsb", "extsh", "extsw", "cntlzw", "cntlzd"} {
		registerFunction(name, BuildUnaryFunc)
	}
	for name := range rotateKinds {
		registerFunction(name, BuildRotateFunc)
	}
}

// addi, addis: no flags, rA=0 reads as zero.
type AddImm struct{ in asm.Inst }

func (i AddImm) Execute(c *CPU) uint32 {
	var a uint64
	if i.in.RA != 0 {
		a = c.GPR[i.in.RA]
	}
	imm := uint64(i.in.Imm)
	if i.in.Def.Name == "addis" {
		imm <<= 16
	}
	c.GPR[i.in.RT] = a + imm

	return c.PC + 4
}
func BuildAddImmFunc(in asm.Inst) Instruction {
	return AddImm{in: in}
}

// Everything the integer oracle computes.
type Arith struct {
	in asm.Inst
	op oracle.IntOp
}

func (i Arith) Execute(c *CPU) uint32 {
	a := c.GPR[i.in.RA]
	var b uint64
	switch i.in.Def.Form {
	case asm.FormD:
		b = uint64(i.in.Imm)
	default:
		b = c.GPR[i.in.RB]
	}
	r := oracle.Int(i.op, a, b, c.State)
	c.GPR[i.in.RT] = r.Value
	c.State = r.State

	return c.PC + 4
}
func BuildArithFunc(in asm.Inst) Instruction {
	op := arithOps[in.Def.Name]
	op.OE = in.OE
	op.Rc = in.Rc
	return Arith{in: in, op: op}
}

// ori, oris, xori, andi.: rA = rS op uimm.
type LogicImm struct{ in asm.Inst }

func (i LogicImm) Execute(c *CPU) uint32 {
	s := c.GPR[i.in.RT]
	u := uint64(i.in.UImm)
	var v uint64
	switch i.in.Def.Name {
	case "ori":
		v = s | u
	case "oris":
		v = s | u<<16
	case "xori":
		v = s ^ u
	case "andi.":
		v = s & u
	}
	c.GPR[i.in.RA] = v
	c.State = oracle.Logical(v, i.in.Rc, c.State)

	return c.PC + 4
}
func BuildLogicImmFunc(in asm.Inst) Instruction {
	return LogicImm{in: in}
}

type Compare struct{ in asm.Inst }

func (i Compare) Execute(c *CPU) uint32 {
	a := c.GPR[i.in.RA]
	var b uint64
	signed := true
	switch i.in.Def.Name {
	case "cmpi":
		b = uint64(i.in.Imm)
	case "cmpli":
		b = uint64(i.in.UImm)
		signed = false
	case "cmp":
		b = c.GPR[i.in.RB]
	case "cmpl":
		b = c.GPR[i.in.RB]
		signed = false
	}
	c.State = oracle.Compare(int(i.in.BF), a, b, signed, i.in.L, c.State)

	return c.PC + 4
}
func BuildCompareFunc(in asm.Inst) Instruction {
	return Compare{in: in}
}

// X-form logical: rA = rS op rB.
type Logic struct{ in asm.Inst }

func (i Logic) Execute(c *CPU) uint32 {
	s, b := c.GPR[i.in.RT], c.GPR[i.in.RB]
	var v uint64
	switch i.in.Def.Name {
	case "and":
		v = s & b
	case "or":
		v = s | b
	case "xor":
		v = s ^ b
	case "nand":
		v = ^(s & b)
	case "nor":
		v = ^(s | b)
	case "andc":
		v = s &^ b
	case "orc":
		v = s | ^b
	case "eqv":
		v = ^(s ^ b)
	}
	c.GPR[i.in.RA] = v
	c.State = oracle.Logical(v, i.in.Rc, c.State)

	return c.PC + 4
}
func BuildLogicFunc(in asm.Inst) Instruction {
	return Logic{in: in}
}

type Shift struct{ in asm.Inst }

func (i Shift) Execute(c *CPU) uint32 {
	s := c.GPR[i.in.RT]
	var v uint64
	st := c.State
	switch i.in.Def.Name {
	case "slw":
		if sh := c.GPR[i.in.RB] & 0x3f; sh < 32 {
			v = uint64(uint32(s) << sh)
		}
	case "srw":
		if sh := c.GPR[i.in.RB] & 0x3f; sh < 32 {
			v = uint64(uint32(s) >> sh)
		}
	case "sld":
		if sh := c.GPR[i.in.RB] & 0x7f; sh < 64 {
			v = s << sh
		}
	case "srd":
		if sh := c.GPR[i.in.RB] & 0x7f; sh < 64 {
			v = s >> sh
		}
	case "sraw":
		v, st = oracle.ShiftRightAlgebraicWord(s, uint(c.GPR[i.in.RB]&0x3f), st)
	case "srad":
		v, st = oracle.ShiftRightAlgebraicDouble(s, uint(c.GPR[i.in.RB]&0x7f), st)
	case "srawi":
		v, st = oracle.ShiftRightAlgebraicWord(s, uint(i.in.SH), st)
	case "sradi":
		v, st = oracle.ShiftRightAlgebraicDouble(s, uint(i.in.SH), st)
	}
	c.GPR[i.in.RA] = v
	c.State = oracle.Logical(v, i.in.Rc, st)

	return c.PC + 4
}
func BuildShiftFunc(in asm.Inst) Instruction {
	return Shift{in: in}
}

var rotateKinds = map[string]oracle.RotKind{
	"rlwinm": oracle.RotWord,
	"rlwnm":  oracle.RotWord,
	"rlwimi": oracle.RotWordInsert,
	"rldicl": oracle.RotDoubleClearLeft,
	"rldcl":  oracle.RotDoubleClearLeft,
	"rldicr": oracle.RotDoubleClearRight,
	"rldcr":  oracle.RotDoubleClearRight,
	"rldic":  oracle.RotDoubleClear,
	"rldimi": oracle.RotDoubleInsert,
}

// Rotate and mask. The register forms take the count from rB.
type Rotate struct {
	in   asm.Inst
	kind oracle.RotKind
}

func (i Rotate) Execute(c *CPU) uint32 {
	in := i.in
	n := uint(in.SH)
	switch in.Def.Name {
	case "rlwnm":
		n = uint(c.GPR[in.RB] & 0x1f)
	case "rldcl", "rldcr":
		n = uint(c.GPR[in.RB] & 0x3f)
	}
	v := oracle.Rotate(i.kind, c.GPR[in.RT], c.GPR[in.RA], n, uint(in.MB), uint(in.ME))
	c.GPR[in.RA] = v
	c.State = oracle.Logical(v, in.Rc, c.State)

	return c.PC + 4
}
func BuildRotateFunc(in asm.Inst) Instruction {
	return Rotate{in: in, kind: rotateKinds[in.Def.Name]}
}

type Unary struct{ in asm.Inst }

func (i Unary) Execute(c *CPU) uint32 {
	s := c.GPR[i.in.RT]
	var v uint64
	switch i.in.Def.Name {
	case "extsb":
		v = uint64(int64(int8(s)))
	case "extsh":
		v = uint64(int64(int16(s)))
	case "extsw":
		v = uint64(int64(int32(s)))
	case "cntlzw":
		v = uint64(bits.LeadingZeros32(uint32(s)))
	case "cntlzd":
		v = uint64(bits.LeadingZeros64(s))
	}
	c.GPR[i.in.RA] = v
	c.State = oracle.Logical(v, i.in.Rc, c.State)

	return c.PC + 4
}
func BuildUnaryFunc(in asm.Inst) Instruction {
	return Unary{in: in}
}

func init() {
	registerFunction("mfspr", BuildMoveSPRFunc)
	registerFunction("mtspr", BuildMoveSPRFunc)
	registerFunction("mfcr", BuildMoveCRFunc)
	registerFunction("mtcrf", BuildMoveCRFunc)
}

// mfspr, mtspr for XER, LR and CTR.
type MoveSPR struct{ in asm.Inst }

func (i MoveSPR) Execute(c *CPU) uint32 {
	if i.in.Def.Name == "mfspr" {
		c.GPR[i.in.RT] = c.GetSPR(int(i.in.SPR))
	} else {
		c.SetSPR(int(i.in.SPR), c.GPR[i.in.RT])
	}
	return c.PC + 4
}
func BuildMoveSPRFunc(in asm.Inst) Instruction {
	return MoveSPR{in: in}
}

type MoveCR struct{ in asm.Inst }

func (i MoveCR) Execute(c *CPU) uint32 {
	if i.in.Def.Name == "mfcr" {
		c.GPR[i.in.RT] = uint64(c.State.CR)
		return c.PC + 4
	}
	src := flags.CR(uint32(c.GPR[i.in.RT]))
	for f := 0; f < 8; f++ {
		if i.in.FXM&(0x80>>uint(f)) != 0 {
			c.State.CR.SetField(f, src.Field(f))
		}
	}
	return c.PC + 4
}
func BuildMoveCRFunc(in asm.Inst) Instruction {
	return MoveCR{in: in}
}
