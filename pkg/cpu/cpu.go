// The reference PPU interpreter.
//
// The cpu package holds a register file, instruction dispatch and
// memory interfaces for the subset of the Cell PPU instruction set the
// conformance suite runs. Arithmetic and flag behaviour come from the
// oracle package, so the interpreter is the oracle wrapped in a machine.
package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

var (
	ErrIllegalInstruction = errors.New("illegal instruction")
	ErrNoMemory           = errors.New("no memory mapped")
)

// A struct providing upper and lower bounds for a MemoryBackend
type MemoryRange struct {
	Low, High uint32
}

// The general interface for MemoryBackend storage. Addresses are byte
// offsets into the backend, words are big-endian.
type MemoryBackend interface {
	// Retrieve the Word at the specified offset
	FetchWord(uint32) uint32
	// Store a Word at the specified offset, return the Word that
	// was previously stored there.
	WriteWord(uint32, uint32) uint32
}

// Register a given MemoryBackend as the storage backend starting at
// Range.Low, ending at Range.High.
type MemoryPlugin struct {
	Range   MemoryRange
	Backend MemoryBackend
}

// Special purpose registers reachable through mfspr and mtspr.
const (
	SPRXER = 1
	SPRLR  = 8
	SPRCTR = 9
)

// Basic CPU data structure
type CPU struct {
	GPR    [32]uint64
	FPR    [32]uint64
	VR     [32]oracle.Vec
	LR     uint64
	CTR    uint64
	PC     uint32
	State  flags.MachineState
	Memory []MemoryPlugin

	broken map[string]bool
}

// General Instruction abstraction
type Instruction interface {
	Execute(*CPU) uint32 // Return the next PC
}

type InstructionBuilder func(in asm.Inst) Instruction

var instructionTable map[string]InstructionBuilder

// Register a builder against a base mnemonic. Each family registers
// its own instructions from an init function.
func registerFunction(name string, builder InstructionBuilder) {
	if instructionTable == nil {
		instructionTable = map[string]InstructionBuilder{}
	}
	if _, ok := asm.Lookup(name); !ok {
		panic(fmt.Sprintf("cpu: registering unknown mnemonic %q", name))
	}
	instructionTable[name] = builder
}

func NewCPU() *CPU {
	var rv CPU
	rv.Memory = []MemoryPlugin{}
	rv.broken = map[string]bool{}

	return &rv
}

// Make every instance of the base mnemonic name execute as a no-op.
// The PC still advances. This is how failure reporting is exercised
// against an otherwise correct machine.
func (c *CPU) Break(name string) error {
	if _, ok := instructionTable[name]; !ok {
		return fmt.Errorf("%w: %s", asm.ErrUnknownMnemonic, name)
	}
	c.broken[name] = true
	return nil
}

// Effective address of a D-form access: (rA|0) + d.
func (c *CPU) effective(ra uint8, d int64) uint32 {
	var base uint64
	if ra != 0 {
		base = c.GPR[ra]
	}
	return uint32(base + uint64(d))
}

// Effective address of an X-form access: (rA|0) + rB.
func (c *CPU) indexed(ra, rb uint8) uint32 {
	var base uint64
	if ra != 0 {
		base = c.GPR[ra]
	}
	return uint32(base + c.GPR[rb])
}

func decodeWord(word uint32) (Instruction, asm.Inst, error) {
	fields := logrus.Fields{
		"word": fmt.Sprintf("0x%08x", word),
	}
	in, err := asm.Decode(word)
	if err != nil {
		logrus.WithFields(fields).Error("Non-existent instruction")
		return nil, in, fmt.Errorf("%w: %v", ErrIllegalInstruction, err)
	}
	builder, ok := instructionTable[in.Def.Name]
	if !ok {
		logrus.WithFields(fields).Errorf("No implementation for %s", in.Def.Name)
		return nil, in, fmt.Errorf("%w: %s", ErrIllegalInstruction, in.Def.Name)
	}

	return builder(in), in, nil
}

// Execute word as if it were fetched from pc and return the address of
// the next instruction. The machine's PC follows.
func (c *CPU) Exec(pc, word uint32) (uint32, error) {
	fields := logrus.Fields{
		"PC":   fmt.Sprintf("0x%08x", pc),
		"word": fmt.Sprintf("0x%08x", word),
	}
	logrus.WithFields(fields).Debug("CPU Exec")

	insn, in, err := decodeWord(word)
	if err != nil {
		return pc, err
	}
	c.PC = pc
	if c.broken[in.Def.Name] {
		logrus.WithFields(fields).Debugf("%s is broken, skipping", in.Def.Name)
		c.PC = pc + 4
		return c.PC, nil
	}
	c.PC = insn.Execute(c)
	return c.PC, nil
}

// Make the CPU take another "step" (this is a fetch, execute, optionally stop)
func (c *CPU) Step() error {
	word, err := c.Fetch(c.PC)
	if err != nil {
		return err
	}
	_, err = c.Exec(c.PC, word)
	return err
}

// Return the memoryPlugin holding all size bytes starting at address.
// An access straddling the end of a range finds nothing.
func (c *CPU) findMemory(address, size uint32) (MemoryBackend, uint32) {
	for _, mp := range c.Memory {
		if mp.Range.Low <= address && address <= mp.Range.High &&
			address-mp.Range.Low+size-1 <= mp.Range.High-mp.Range.Low {
			return mp.Backend, address - mp.Range.Low
		}
	}
	return nil, 0
}

// Register a memory backend with a specific memory range. Return an
// error if the memory plugin is colliding with an already-registered
// plugin.
func (c *CPU) RegisterMemory(r MemoryRange, m MemoryBackend) error {
	p := MemoryPlugin{Range: r, Backend: m}
	for _, tmp := range c.Memory {
		if (tmp.Range.Low <= r.High) && (r.Low <= tmp.Range.High) {
			return fmt.Errorf("memory backend %v conflicting with already-registered plugin %v", m, tmp.Range)
		}
	}
	c.Memory = append(c.Memory, p)
	return nil
}

// Fetch a 32-bit word, reporting unmapped addresses.
func (c *CPU) Fetch(address uint32) (uint32, error) {
	mp, offset := c.findMemory(address, 4)
	if mp == nil {
		return 0, fmt.Errorf("%w at 0x%08x", ErrNoMemory, address)
	}
	return mp.FetchWord(offset), nil
}

// Fetch a 32-bit word from a specific address. Unmapped memory reads
// as zero.
func (c *CPU) FetchWord(address uint32) uint32 {
	mp, offset := c.findMemory(address, 4)
	if mp == nil {
		logrus.WithFields(logrus.Fields{"address": fmt.Sprintf("0x%08x", address)}).Warn("read from unmapped memory")
		return 0
	}
	return mp.FetchWord(offset)
}

// Store a word, returning the old contents. Stores to unmapped memory
// are dropped.
func (c *CPU) StoreWord(address, word uint32) uint32 {
	mp, offset := c.findMemory(address, 4)
	if mp == nil {
		logrus.WithFields(logrus.Fields{"address": fmt.Sprintf("0x%08x", address)}).Warn("write to unmapped memory")
		return 0
	}
	return mp.WriteWord(offset, word)
}

// Sub-word accesses go through the aligned word that holds them.
// size is 1 or 2 and address is aligned to it.
func (c *CPU) fetchPart(address, size uint32) uint32 {
	shift := 8 * (4 - size - address&3)
	return c.FetchWord(address&^3) >> shift & (1<<(8*size) - 1)
}

func (c *CPU) storePart(address, size, v uint32) {
	shift := 8 * (4 - size - address&3)
	mask := uint32(1<<(8*size)-1) << shift
	w := c.FetchWord(address &^ 3)
	c.StoreWord(address&^3, w&^mask|v<<shift&mask)
}

func (c *CPU) FetchDoubleWord(address uint32) uint64 {
	return uint64(c.FetchWord(address))<<32 | uint64(c.FetchWord(address+4))
}

func (c *CPU) StoreDoubleWord(address uint32, v uint64) {
	c.StoreWord(address, uint32(v>>32))
	c.StoreWord(address+4, uint32(v))
}

// Register accessors, so the CPU can stand in wherever a test target
// is expected.
func (c *CPU) GetGPR(n int) uint64            { return c.GPR[n] }
func (c *CPU) SetGPR(n int, v uint64)         { c.GPR[n] = v }
func (c *CPU) GetFPR(n int) uint64            { return c.FPR[n] }
func (c *CPU) SetFPR(n int, v uint64)         { c.FPR[n] = v }
func (c *CPU) GetVR(n int) oracle.Vec         { return c.VR[n] }
func (c *CPU) SetVR(n int, v oracle.Vec)      { c.VR[n] = v }
func (c *CPU) Flags() flags.MachineState      { return c.State }
func (c *CPU) SetFlags(st flags.MachineState) { c.State = st }

// Map a backend of size bytes at base.
func (c *CPU) Attach(base uint32, m MemoryBackend, size uint32) error {
	return c.RegisterMemory(MemoryRange{Low: base, High: base + size - 1}, m)
}

// Read LR or CTR. Other numbers read as zero.
func (c *CPU) GetSPR(n int) uint64 {
	switch n {
	case SPRXER:
		return uint64(c.State.XER)
	case SPRLR:
		return c.LR
	case SPRCTR:
		return c.CTR
	}
	return 0
}

func (c *CPU) SetSPR(n int, v uint64) {
	switch n {
	case SPRXER:
		c.State.XER = flags.XER(uint32(v))
	case SPRLR:
		c.LR = v
	case SPRCTR:
		c.CTR = v
	}
}

// Various stuff for implementing "local" memory
type DirectMemory struct {
	memory []byte
}

func NewDirectMemory(size uint32) *DirectMemory {
	return &DirectMemory{memory: make([]byte, size)}
}

// Wrap an existing byte slice; writes land in the caller's slice.
func WrapMemory(buf []byte) *DirectMemory {
	return &DirectMemory{memory: buf}
}

func (m *DirectMemory) Size() uint32 {
	return uint32(len(m.memory))
}

func (m *DirectMemory) FetchWord(address uint32) uint32 {
	return binary.BigEndian.Uint32(m.memory[address:])
}

func (m *DirectMemory) WriteWord(address uint32, data uint32) uint32 {
	old := binary.BigEndian.Uint32(m.memory[address:])
	binary.BigEndian.PutUint32(m.memory[address:], data)
	return old
}
