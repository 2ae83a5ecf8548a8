package harness

import (
	"math"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/oracle"
	"github.com/vatine/ppuconform/pkg/record"
)

// What the sequencer knows after running a case.
type Outcome struct {
	// Address of the subject instruction and the address the target
	// said comes after it.
	Addr, Next  uint32
	ScratchBase uint32
}

// Aux words of a failure record.
type Aux [record.AuxWords]uint32

// Decide whether a case passed. On failure the aux words describe what
// the target actually did; their layout is the checker's own.
type Checker interface {
	Check(t Target, o Outcome) (Aux, bool)
}

type CheckerFunc func(t Target, o Outcome) (Aux, bool)

func (f CheckerFunc) Check(t Target, o Outcome) (Aux, bool) {
	return f(t, o)
}

// Integer results. Aux: result high, result low, XER, CR.
type IntCheck struct {
	Reg   int
	Value uint64
	// Any value is accepted in Reg, only the flags are checked.
	Undefined bool
	// Only the low word of Reg is defined.
	LowWord bool
	XER     uint32
	CR      uint32
	// CR bits that are checked. Zero checks all of them.
	CRMask uint32
}

// Expectation for an oracle integer result written to reg.
func ExpectInt(reg int, r oracle.IntResult) IntCheck {
	return IntCheck{
		Reg:       reg,
		Value:     r.Value,
		Undefined: r.Undefined,
		LowWord:   r.LowWordOnly,
		XER:       uint32(r.State.XER),
		CR:        uint32(r.State.CR),
		CRMask:    0x0fffffff | uint32(r.CR0Mask)<<28,
	}
}

// Expectation for a result that only has the CR0 record semantics
// (logical operations, shifts, extends).
func ExpectLogic(reg int, v uint64, st flags.MachineState) IntCheck {
	return IntCheck{Reg: reg, Value: v, XER: uint32(st.XER), CR: uint32(st.CR)}
}

func (c IntCheck) Check(t Target, o Outcome) (Aux, bool) {
	got := t.GetGPR(c.Reg)
	st := t.Flags()
	mask := c.CRMask
	if mask == 0 {
		mask = 0xffffffff
	}
	ok := uint32(st.XER) == c.XER && uint32(st.CR)&mask == c.CR&mask
	switch {
	case c.Undefined:
	case c.LowWord:
		ok = ok && uint32(got) == uint32(c.Value)
	default:
		ok = ok && got == c.Value
	}
	return Aux{uint32(got >> 32), uint32(got), uint32(st.XER), uint32(st.CR)}, ok
}

// Floating point results. Aux: result high, result low, FPSCR, CR.
type FloatCheck struct {
	Reg     int
	Value   uint64
	LowWord bool
	FPSCR   uint32
	CR      uint32
	// Relative error accepted in a finite nonzero Value. FR and FI
	// are not compared when it is set.
	Tolerance float64
}

// Expectation for an oracle FP result. When the oracle says the target
// is not written, reg must still hold prior.
func ExpectFloat(reg int, prior uint64, r oracle.FPResult) FloatCheck {
	v := r.Value
	if !r.Written {
		v = prior
	}
	return FloatCheck{
		Reg:       reg,
		Value:     v,
		LowWord:   r.LowWordOnly && r.Written,
		FPSCR:     uint32(r.State.FPSCR),
		CR:        uint32(r.State.CR),
		Tolerance: r.Estimate,
	}
}

func (c FloatCheck) Check(t Target, o Outcome) (Aux, bool) {
	got := t.GetFPR(c.Reg)
	st := t.Flags()
	var ignore uint32
	if c.Tolerance > 0 {
		ignore = flags.FR | flags.FI
	}
	ok := uint32(st.FPSCR)&^ignore == c.FPSCR&^ignore && uint32(st.CR) == c.CR
	switch {
	case c.LowWord:
		ok = ok && uint32(got) == uint32(c.Value)
	case c.Tolerance > 0:
		ok = ok && near(got, c.Value, c.Tolerance)
	default:
		ok = ok && got == c.Value
	}
	return Aux{uint32(got >> 32), uint32(got), uint32(st.FPSCR), uint32(st.CR)}, ok
}

// Whether got is within a relative tol of want. Zeros, infinities and
// NaNs must match exactly.
func near(got, want uint64, tol float64) bool {
	w := math.Float64frombits(want)
	if w == 0 || math.IsInf(w, 0) || math.IsNaN(w) {
		return got == want
	}
	g := math.Float64frombits(got)
	return math.Abs(g-w) <= tol*math.Abs(w)
}

// Vector results. Aux: the four words of the register, VSCR, CR.
type VecCheck struct {
	Reg   int
	Value oracle.Vec
	VSCR  uint32
	CR    uint32
}

func ExpectVec(reg int, v oracle.Vec, st flags.MachineState) VecCheck {
	return VecCheck{Reg: reg, Value: v, VSCR: uint32(st.VSCR), CR: uint32(st.CR)}
}

func (c VecCheck) Check(t Target, o Outcome) (Aux, bool) {
	got := t.GetVR(c.Reg)
	st := t.Flags()
	ok := got == c.Value && uint32(st.VSCR) == c.VSCR && uint32(st.CR) == c.CR
	return Aux{got[0], got[1], got[2], got[3], uint32(st.VSCR), uint32(st.CR)}, ok
}

// The whole flag state and nothing else, for compares and status
// register moves. Aux: CR, XER, FPSCR, VSCR.
type FlagsCheck struct {
	Want flags.MachineState
}

func (c FlagsCheck) Check(t Target, o Outcome) (Aux, bool) {
	st := t.Flags()
	return Aux{uint32(st.CR), uint32(st.XER), uint32(st.FPSCR), uint32(st.VSCR)}, st == c.Want
}

// Branches. Offsets are relative to the subject instruction. Aux:
// actual next address, expected next address, CTR, LR (low words).
type BranchCheck struct {
	Target int32
	CTR    uint64
	// When set, LR must equal the subject address plus LROffset.
	CheckLR  bool
	LROffset int32
}

func (c BranchCheck) Check(t Target, o Outcome) (Aux, bool) {
	want := o.Addr + uint32(c.Target)
	ctr, lr := t.GetSPR(cpu.SPRCTR), t.GetSPR(cpu.SPRLR)
	ok := o.Next == want && ctr == c.CTR
	if c.CheckLR {
		ok = ok && lr == uint64(o.Addr+uint32(c.LROffset))
	}
	return Aux{o.Next, want, uint32(ctr), uint32(lr)}, ok
}

// Words in scratch at Offset. Aux: the stored words, at most six.
type MemCheck struct {
	Offset uint32
	Want   []uint32
}

func (c MemCheck) Check(t Target, o Outcome) (Aux, bool) {
	var aux Aux
	ok := true
	for i, w := range c.Want {
		got := t.FetchWord(o.ScratchBase + c.Offset + uint32(4*i))
		if i < len(aux) {
			aux[i] = got
		}
		ok = ok && got == w
	}
	return aux, ok
}

// All passes when every checker passes; the first failure supplies
// the aux words.
func All(cs ...Checker) Checker {
	return CheckerFunc(func(t Target, o Outcome) (Aux, bool) {
		for _, c := range cs {
			if aux, ok := c.Check(t, o); !ok {
				return aux, false
			}
		}
		return Aux{}, true
	})
}
