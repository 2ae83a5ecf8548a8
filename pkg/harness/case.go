package harness

import (
	"fmt"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// Broad groups of cases. The parallel driver shards on these.
type Family int

const (
	FamilyInteger Family = iota
	FamilyCompare
	FamilyLogic
	FamilyBranch
	FamilyLoadStore
	FamilyFloat
	FamilyVector
)

var familyNames = map[Family]string{
	FamilyInteger:   "integer",
	FamilyCompare:   "compare",
	FamilyLogic:     "logic",
	FamilyBranch:    "branch",
	FamilyLoadStore: "loadstore",
	FamilyFloat:     "float",
	FamilyVector:    "vector",
}

func (f Family) String() string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Parse a family name as used in configuration files.
func ParseFamily(s string) (Family, error) {
	for f, n := range familyNames {
		if n == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown case family %q", s)
}

// Preconditions of a case. Everything not named starts at zero.
type Setup struct {
	GPR   map[int]uint64
	FPR   map[int]uint64
	VR    map[int]oracle.Vec
	SPR   map[int]uint64
	State flags.MachineState
	// Words written into scratch, keyed by byte offset.
	Memory map[uint32]uint32
	// When nonzero, this GPR is loaded with the scratch base address.
	ScratchReg int
}

// One conformance case: set up, run the instruction words in order,
// then hand the outcome of the last one to the checker.
type Case struct {
	Name   string
	Family Family
	Setup  Setup
	Insns  []uint32
	Check  Checker
}

// The instruction the failure record names.
func (c Case) Subject() uint32 {
	return c.Insns[len(c.Insns)-1]
}

// A one-instruction case from assembly text.
func Single(name string, f Family, line string, s Setup, chk Checker) (Case, error) {
	w, err := asm.Assemble(line)
	if err != nil {
		return Case{}, fmt.Errorf("case %s: %w", name, err)
	}
	return Case{Name: name, Family: f, Setup: s, Insns: []uint32{w}, Check: chk}, nil
}

// A multi-instruction case from assembly text.
func Sequence(name string, f Family, lines []string, s Setup, chk Checker) (Case, error) {
	c := Case{Name: name, Family: f, Setup: s, Check: chk}
	for _, l := range lines {
		w, err := asm.Assemble(l)
		if err != nil {
			return Case{}, fmt.Errorf("case %s: %w", name, err)
		}
		c.Insns = append(c.Insns, w)
	}
	return c, nil
}

// Reset t to the clean baseline: every register and flag zero.
func resetBaseline(t Target) {
	for i := 0; i < 32; i++ {
		t.SetGPR(i, 0)
		t.SetFPR(i, 0)
		t.SetVR(i, oracle.Vec{})
	}
	t.SetSPR(cpu.SPRLR, 0)
	t.SetSPR(cpu.SPRCTR, 0)
	t.SetFlags(flags.MachineState{})
}

func (s Setup) apply(t Target, scratchBase uint32) {
	for r, v := range s.GPR {
		t.SetGPR(r, v)
	}
	for r, v := range s.FPR {
		t.SetFPR(r, v)
	}
	for r, v := range s.VR {
		t.SetVR(r, v)
	}
	for n, v := range s.SPR {
		t.SetSPR(n, v)
	}
	for off, v := range s.Memory {
		t.StoreWord(scratchBase+off, v)
	}
	if s.ScratchReg != 0 {
		t.SetGPR(s.ScratchReg, uint64(scratchBase))
	}
	t.SetFlags(s.State)
}
