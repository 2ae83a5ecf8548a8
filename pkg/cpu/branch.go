package cpu

import (
	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/oracle"
)

func init() {
	registerFunction("b", BuildBranchFunc)
	registerFunction("bc", BuildBranchCondFunc)
	registerFunction("bclr", BuildBranchCondFunc)
	for _, name := range []string{"lbz", "lhz", "lha", "stb", "sth", "lwz", "stw", "ld", "std", "lfs", "lfd", "stfs", "stfd", "lvx", "stvx"} {
		registerFunction(name, BuildLoadStoreFunc)
	}
}

// b, ba, bl, bla
type Branch struct{ in asm.Inst }

func (i Branch) Execute(c *CPU) uint32 {
	target := c.PC + uint32(i.in.Offset)
	if i.in.AA {
		target = uint32(i.in.Offset)
	}
	if i.in.LK {
		c.LR = uint64(c.PC + 4)
	}
	return target
}
func BuildBranchFunc(in asm.Inst) Instruction {
	return Branch{in: in}
}

// bc and bclr with the full BO decoding: optional CTR decrement, CTR
// test and CR bit test.
type BranchCond struct{ in asm.Inst }

func (i BranchCond) Execute(c *CPU) uint32 {
	bo := i.in.BO
	if bo&0x04 == 0 {
		c.CTR--
	}
	ctrOK := bo&0x04 != 0 || ((c.CTR != 0) != (bo&0x02 != 0))
	condOK := bo&0x10 != 0 || c.State.CR.Bit(int(i.in.BI)) == (bo&0x08 != 0)

	next := c.PC + 4
	var target uint32
	if i.in.Def.Name == "bclr" {
		target = uint32(c.LR) &^ 3
	} else {
		target = c.PC + uint32(i.in.Offset)
		if i.in.AA {
			target = uint32(i.in.Offset)
		}
	}
	if i.in.LK {
		c.LR = uint64(next)
	}
	if ctrOK && condOK {
		return target
	}
	return next
}
func BuildBranchCondFunc(in asm.Inst) Instruction {
	return BranchCond{in: in}
}

// Loads and stores. lfs and stfs are the architected bit conversions
// between the single storage format and the double register format;
// stfs is the only one that can touch the FPSCR.
type LoadStore struct{ in asm.Inst }

func (i LoadStore) Execute(c *CPU) uint32 {
	in := i.in
	var ea uint32
	if in.Def.Form == asm.FormVMem {
		ea = c.indexed(in.RA, in.RB) &^ 0xf
	} else {
		ea = c.effective(in.RA, in.Imm)
	}

	switch in.Def.Name {
	case "lbz":
		c.GPR[in.RT] = uint64(c.fetchPart(ea, 1))
	case "lhz":
		c.GPR[in.RT] = uint64(c.fetchPart(ea, 2))
	case "lha":
		c.GPR[in.RT] = uint64(int64(int16(c.fetchPart(ea, 2))))
	case "stb":
		c.storePart(ea, 1, uint32(c.GPR[in.RT]))
	case "sth":
		c.storePart(ea, 2, uint32(c.GPR[in.RT]))
	case "lwz":
		c.GPR[in.RT] = uint64(c.FetchWord(ea))
	case "stw":
		c.StoreWord(ea, uint32(c.GPR[in.RT]))
	case "ld":
		c.GPR[in.RT] = c.FetchDoubleWord(ea)
	case "std":
		c.StoreDoubleWord(ea, c.GPR[in.RT])
	case "lfs":
		c.FPR[in.RT] = oracle.WidenSingle(c.FetchWord(ea))
	case "lfd":
		c.FPR[in.RT] = c.FetchDoubleWord(ea)
	case "stfs":
		w, fp := oracle.NarrowSingle(c.FPR[in.RT], c.State.FPSCR)
		c.State.FPSCR = fp
		c.StoreWord(ea, w)
	case "stfd":
		c.StoreDoubleWord(ea, c.FPR[in.RT])
	case "lvx":
		var v oracle.Vec
		for w := range v {
			v[w] = c.FetchWord(ea + uint32(4*w))
		}
		c.VR[in.RT] = v
	case "stvx":
		for w, x := range c.VR[in.RT] {
			c.StoreWord(ea+uint32(4*w), x)
		}
	}
	return c.PC + 4
}
func BuildLoadStoreFunc(in asm.Inst) Instruction {
	return LoadStore{in: in}
}
