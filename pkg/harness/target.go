// The harness package runs conformance cases against a Target and
// records every mismatch into a failure buffer.
//
// A run has two phases. The bootstrap phase checks that the handful of
// instructions the harness itself relies on work; if they do not,
// nothing else can be trusted and the run stops with a negative code.
// The sequencer phase then runs the case table in order, recording a
// 32-byte failure record for each case whose checker rejects the
// outcome and resetting the flag state between cases.
package harness

import (
	"encoding/binary"
	"errors"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// Negative results of a run.
const (
	CodeBootstrap   = -1
	CodeLoadAddress = -2
)

// Minimum buffer sizes accepted by Run.
const (
	MinScratch  = 32 * 1024
	MinFailures = 64 * 1024
)

var (
	ErrBootstrap      = errors.New("bootstrap self-check failed")
	ErrLoadAddress    = errors.New("harness loaded at the wrong address")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrRunaway        = errors.New("program did not reach its end")
)

// Anything that can execute PPU instructions and expose its register
// model: the reference interpreter, an emulator bridge or silicon.
type Target interface {
	// Execute word as if fetched from pc, returning the next address.
	Exec(pc, word uint32) (uint32, error)

	GetGPR(n int) uint64
	SetGPR(n int, v uint64)
	GetFPR(n int) uint64
	SetFPR(n int, v uint64)
	GetVR(n int) oracle.Vec
	SetVR(n int, v oracle.Vec)
	GetSPR(n int) uint64
	SetSPR(n int, v uint64)
	Flags() flags.MachineState
	SetFlags(flags.MachineState)

	FetchWord(addr uint32) uint32
	StoreWord(addr, v uint32) uint32
	Attach(base uint32, m cpu.MemoryBackend, size uint32) error
}

// Where things live and what to check.
type Options struct {
	// Address the harness expects to run from.
	Origin uint32
	// Address the code image is actually placed at. Zero means Origin.
	LoadAddress uint32
	// Verify LoadAddress == Origin before running cases.
	CheckLoadAddress bool
	// Where the scratch block is mapped.
	ScratchBase uint32
	// Byte order of failure records. Nil means big-endian.
	Order binary.ByteOrder
	// Instruction budget for the bootstrap program.
	MaxSteps int
}

func (o Options) withDefaults() Options {
	if o.Origin == 0 {
		o.Origin = 0x00010000
	}
	if o.LoadAddress == 0 {
		o.LoadAddress = o.Origin
	}
	if o.ScratchBase == 0 {
		o.ScratchBase = 0x10000000
	}
	if o.Order == nil {
		o.Order = binary.BigEndian
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = 1000
	}
	return o
}
