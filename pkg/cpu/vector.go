package cpu

import (
	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

func init() {
	for name := range oracle.VecOps {
		registerFunction(name, BuildVectorFunc)
	}
	for name := range oracle.VecCompares {
		registerFunction(name, BuildVectorCompareFunc)
	}
	for name := range oracle.VecSplats {
		registerFunction(name, BuildVectorSplatFunc)
	}
	for _, name := range []string{"vperm", "vsel", "vmaddfp", "vnmsubfp"} {
		registerFunction(name, BuildVectorTernaryFunc)
	}
	registerFunction("vctuxs", BuildVectorConvertFunc)
	registerFunction("vctsxs", BuildVectorConvertFunc)
	registerFunction("mfvscr", BuildVSCRMoveFunc)
	registerFunction("mtvscr", BuildVSCRMoveFunc)
}

type Vector struct {
	in asm.Inst
	f  oracle.VecFunc
}

func (i Vector) Execute(c *CPU) uint32 {
	c.VR[i.in.RT], c.State = i.f(c.VR[i.in.RA], c.VR[i.in.RB], c.State)
	return c.PC + 4
}
func BuildVectorFunc(in asm.Inst) Instruction {
	return Vector{in: in, f: oracle.VecOps[in.Def.Name]}
}

type VectorCompare struct {
	in asm.Inst
	op oracle.VecCmpOp
}

func (i VectorCompare) Execute(c *CPU) uint32 {
	c.VR[i.in.RT], c.State = oracle.VecCompare(i.op, c.VR[i.in.RA], c.VR[i.in.RB], c.State)
	return c.PC + 4
}
func BuildVectorCompareFunc(in asm.Inst) Instruction {
	op := oracle.VecCompares[in.Def.Name]
	op.Rc = in.Rc
	return VectorCompare{in: in, op: op}
}

type VectorConvert struct{ in asm.Inst }

func (i VectorConvert) Execute(c *CPU) uint32 {
	signed := i.in.Def.Name == "vctsxs"
	c.VR[i.in.RT], c.State = oracle.VecConvert(signed, uint(i.in.UImm), c.VR[i.in.RB], c.State)
	return c.PC + 4
}
func BuildVectorConvertFunc(in asm.Inst) Instruction {
	return VectorConvert{in: in}
}

// vA, vB and vC in; vmaddfp and vnmsubfp are the only ones that read
// the VSCR.
type VectorTernary struct{ in asm.Inst }

func (i VectorTernary) Execute(c *CPU) uint32 {
	a, b, x := c.VR[i.in.RA], c.VR[i.in.RB], c.VR[i.in.RC]
	var r oracle.Vec
	switch i.in.Def.Name {
	case "vperm":
		r = oracle.VecPerm(a, b, x)
	case "vsel":
		r = oracle.VecSelect(a, b, x)
	case "vmaddfp":
		r, c.State = oracle.VecMultiplyAdd(false, a, b, x, c.State)
	case "vnmsubfp":
		r, c.State = oracle.VecMultiplyAdd(true, a, b, x, c.State)
	}
	c.VR[i.in.RT] = r
	return c.PC + 4
}
func BuildVectorTernaryFunc(in asm.Inst) Instruction {
	return VectorTernary{in: in}
}

type VectorSplat struct {
	in   asm.Inst
	lane oracle.Lane
}

func (i VectorSplat) Execute(c *CPU) uint32 {
	if i.in.Def.Form == asm.FormVXSimm {
		c.VR[i.in.RT] = oracle.VecSplatImm(i.lane, i.in.Imm)
	} else {
		c.VR[i.in.RT] = oracle.VecSplat(i.lane, uint(i.in.UImm), c.VR[i.in.RB])
	}
	return c.PC + 4
}
func BuildVectorSplatFunc(in asm.Inst) Instruction {
	return VectorSplat{in: in, lane: oracle.VecSplats[in.Def.Name]}
}

// mfvscr puts the VSCR in the last word; mtvscr takes it from there.
// Only SAT and NJ exist, other bits read back as zero.
type VSCRMove struct{ in asm.Inst }

func (i VSCRMove) Execute(c *CPU) uint32 {
	if i.in.Def.Name == "mfvscr" {
		c.VR[i.in.RT] = oracle.Vec{0, 0, 0, uint32(c.State.VSCR)}
	} else {
		c.State.VSCR = flags.VSCR(c.VR[i.in.RB][3] & (flags.SAT | flags.NJ))
	}
	return c.PC + 4
}
func BuildVSCRMoveFunc(in asm.Inst) Instruction {
	return VSCRMove{in: in}
}
