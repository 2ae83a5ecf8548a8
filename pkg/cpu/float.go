package cpu

import (
	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/oracle"
)

var floatOps = map[string]oracle.FPOp{
	"fadd":    {Kind: oracle.FAdd},
	"fsub":    {Kind: oracle.FSub},
	"fmul":    {Kind: oracle.FMul},
	"fdiv":    {Kind: oracle.FDiv},
	"fsqrt":   {Kind: oracle.FSqrt},
	"fmadd":   {Kind: oracle.FMAdd},
	"fmsub":   {Kind: oracle.FMSub},
	"fnmadd":  {Kind: oracle.FNMAdd},
	"fnmsub":  {Kind: oracle.FNMSub},
	"fadds":   {Kind: oracle.FAdd, Single: true},
	"fsubs":   {Kind: oracle.FSub, Single: true},
	"fmuls":   {Kind: oracle.FMul, Single: true},
	"fdivs":   {Kind: oracle.FDiv, Single: true},
	"fsqrts":  {Kind: oracle.FSqrt, Single: true},
	"fmadds":  {Kind: oracle.FMAdd, Single: true},
	"fmsubs":  {Kind: oracle.FMSub, Single: true},
	"fnmadds": {Kind: oracle.FNMAdd, Single: true},
	"fnmsubs": {Kind: oracle.FNMSub, Single: true},
	"frsp":    {Kind: oracle.FRsp},
	"fctiw":   {Kind: oracle.FCtiw},
	"fctiwz":  {Kind: oracle.FCtiwz},
	"fctid":   {Kind: oracle.FCtid},
	"fctidz":  {Kind: oracle.FCtidz},
	"fcfid":   {Kind: oracle.FCfid},
	"fres":    {Kind: oracle.FRes},
	"frsqrte": {Kind: oracle.FRsqrte},
}

func init() {
	for name := range floatOps {
		registerFunction(name, BuildFloatFunc)
	}
	for _, name := range []string{"fmr", "fneg", "fabs", "fnabs"} {
		registerFunction(name, BuildFloatMoveFunc)
	}
	registerFunction("fsel", BuildFloatSelectFunc)
	registerFunction("fcmpu", BuildFloatCompareFunc)
	registerFunction("fcmpo", BuildFloatCompareFunc)
	for _, name := range []string{"mffs", "mtfsf", "mtfsfi", "mtfsb0", "mtfsb1"} {
		registerFunction(name, BuildFPSCRMoveFunc)
	}
}

// Arithmetic, rounding and conversion. An enabled invalid-operation or
// zero-divide exception leaves frT alone.
type Float struct {
	in asm.Inst
	op oracle.FPOp
}

func (i Float) Execute(c *CPU) uint32 {
	in := i.in
	r := oracle.FP(i.op, c.FPR[in.RA], c.FPR[in.RB], c.FPR[in.RC], c.State)
	if r.Written {
		c.FPR[in.RT] = r.Value
	}
	c.State = r.State

	return c.PC + 4
}
func BuildFloatFunc(in asm.Inst) Instruction {
	op := floatOps[in.Def.Name]
	op.Rc = in.Rc
	return Float{in: in, op: op}
}

// Sign moves. These never touch the FPSCR.
type FloatMove struct{ in asm.Inst }

func (i FloatMove) Execute(c *CPU) uint32 {
	b := c.FPR[i.in.RB]
	switch i.in.Def.Name {
	case "fneg":
		b ^= oracle.SignBit
	case "fabs":
		b &^= oracle.SignBit
	case "fnabs":
		b |= oracle.SignBit
	}
	c.FPR[i.in.RT] = b
	if i.in.Rc {
		c.State = oracle.RecordCR1(c.State)
	}
	return c.PC + 4
}
func BuildFloatMoveFunc(in asm.Inst) Instruction {
	return FloatMove{in: in}
}

type FloatSelect struct{ in asm.Inst }

func (i FloatSelect) Execute(c *CPU) uint32 {
	in := i.in
	c.FPR[in.RT] = oracle.FSelect(c.FPR[in.RA], c.FPR[in.RB], c.FPR[in.RC])
	if in.Rc {
		c.State = oracle.RecordCR1(c.State)
	}
	return c.PC + 4
}
func BuildFloatSelectFunc(in asm.Inst) Instruction {
	return FloatSelect{in: in}
}

type FloatCompare struct{ in asm.Inst }

func (i FloatCompare) Execute(c *CPU) uint32 {
	ordered := i.in.Def.Name == "fcmpo"
	c.State = oracle.FCompare(int(i.in.BF), c.FPR[i.in.RA], c.FPR[i.in.RB], ordered, c.State)
	return c.PC + 4
}
func BuildFloatCompareFunc(in asm.Inst) Instruction {
	return FloatCompare{in: in}
}

type FPSCRMove struct{ in asm.Inst }

func (i FPSCRMove) Execute(c *CPU) uint32 {
	in := i.in
	fp := c.State.FPSCR
	switch in.Def.Name {
	case "mffs":
		c.FPR[in.RT] = uint64(fp)
	case "mtfsf":
		c.State.FPSCR = oracle.MoveToFPSCRFields(fp, in.FLM, uint32(c.FPR[in.RB]))
	case "mtfsfi":
		c.State.FPSCR = oracle.MoveToFPSCRImmediate(fp, int(in.BF), in.U)
	case "mtfsb0":
		c.State.FPSCR = oracle.ClearFPSCRBit(fp, int(in.BT))
	case "mtfsb1":
		c.State.FPSCR = oracle.SetFPSCRBit(fp, int(in.BT))
	}
	if in.Rc {
		c.State = oracle.RecordCR1(c.State)
	}
	return c.PC + 4
}
func BuildFPSCRMoveFunc(in asm.Inst) Instruction {
	return FPSCRMove{in: in}
}
