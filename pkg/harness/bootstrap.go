package harness

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/oracle"
)

// Layout of the code image, as offsets from the load address.
const (
	selfCheckOffset = 0x00
	locateOffset    = 0x80
	casesOffset     = 0x100
)

// The self-check uses only the instructions the harness itself needs:
// mr, li, cmpdi, beq, bne, b, lwz and stw, and takes every branch both
// ways. On entry r4 holds the scratch address and r5 the zero
// argument. It leaves 0 in r3 only when everything worked.
var selfCheckSource = []string{
	"li r3,1",
	"cmpdi r5,0",
	"bne 68", // fail
	"li r6,0x55",
	"mr r7,r6",
	"cmpdi r7,0x55",
	"bne 52", // fail
	"stw r7,0(r4)",
	"li r8,0",
	"lwz r8,0(r4)",
	"cmpdi r8,0x55",
	"beq 8",
	"b 28", // fail
	"cmpdi r8,0x56",
	"beq 20", // fail
	"bne 8",
	"b 12", // fail
	"li r3,0",
	"b 8",     // end
	"li r3,1", // fail
}

// Branch-and-link to the next instruction and read back LR: r3 ends up
// holding the address the locator actually runs at, plus four.
var locateSource = []string{
	"bl 4",
	"mflr r3",
}

var selfCheck, locate []uint32

func init() {
	for _, l := range selfCheckSource {
		selfCheck = append(selfCheck, asm.MustAssemble(l))
	}
	for _, l := range locateSource {
		locate = append(locate, asm.MustAssemble(l))
	}
}

// The whole code image: self-check, locator, then every case's words.
func codeImage(cases []Case) []uint32 {
	n := casesOffset / 4
	for _, c := range cases {
		n += len(c.Insns)
	}
	img := make([]uint32, n)
	copy(img[selfCheckOffset/4:], selfCheck)
	copy(img[locateOffset/4:], locate)
	i := casesOffset / 4
	for _, c := range cases {
		copy(img[i:], c.Insns)
		i += len(c.Insns)
	}
	return img
}

// Fetch and execute from start until the PC reaches end.
func runProgram(t Target, start, end uint32, maxSteps int) error {
	pc := start
	for steps := 0; pc != end; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("%w: stopped at 0x%08x after %d steps", ErrRunaway, pc, steps)
		}
		next, err := t.Exec(pc, t.FetchWord(pc))
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

// Run the self-check and, if asked, the load address check. The
// returned error wraps ErrBootstrap or ErrLoadAddress.
func bootstrap(t Target, opts Options, scratchBase uint32, zero uint64, one float64) error {
	fields := logrus.Fields{
		"load":    fmt.Sprintf("0x%08x", opts.LoadAddress),
		"scratch": fmt.Sprintf("0x%08x", scratchBase),
	}
	if one != 1.0 {
		return fmt.Errorf("%w: one argument is %v", ErrBootstrap, one)
	}

	resetBaseline(t)
	t.SetGPR(3, 0xbad)
	t.SetGPR(4, uint64(scratchBase))
	t.SetGPR(5, zero)
	start := opts.LoadAddress + selfCheckOffset
	end := start + uint32(4*len(selfCheck))
	err := runProgram(t, start, end, opts.MaxSteps)
	rc := t.GetGPR(3)
	t.StoreWord(scratchBase, 0)
	resetBaseline(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}
	if rc != 0 {
		return fmt.Errorf("%w: self-check returned %d", ErrBootstrap, rc)
	}
	logrus.WithFields(fields).Debug("self-check passed")

	if !opts.CheckLoadAddress {
		return nil
	}
	start = opts.LoadAddress + locateOffset
	err = runProgram(t, start, start+8, opts.MaxSteps)
	got := uint32(t.GetGPR(3))
	resetBaseline(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}
	if want := opts.Origin + locateOffset + 4; got != want {
		return fmt.Errorf("%w: running at 0x%08x, expected 0x%08x", ErrLoadAddress, got-locateOffset-4, opts.Origin)
	}
	logrus.WithFields(fields).Debug("load address verified")
	return nil
}

// The registers the PPU ABI calls non-volatile. The sequencer
// clobbers all of them; Run puts them back.
type nonVolatile struct {
	gpr [18]uint64
	fpr [18]uint64
	vr  [12]oracle.Vec
	cr  [3]uint8
}

func saveNonVolatile(t Target) nonVolatile {
	var nv nonVolatile
	for i := range nv.gpr {
		nv.gpr[i] = t.GetGPR(14 + i)
		nv.fpr[i] = t.GetFPR(14 + i)
	}
	for i := range nv.vr {
		nv.vr[i] = t.GetVR(20 + i)
	}
	cr := t.Flags().CR
	for i := range nv.cr {
		nv.cr[i] = cr.Field(2 + i)
	}
	return nv
}

func (nv nonVolatile) restore(t Target) {
	for i, v := range nv.gpr {
		t.SetGPR(14+i, v)
	}
	for i, v := range nv.fpr {
		t.SetFPR(14+i, v)
	}
	for i, v := range nv.vr {
		t.SetVR(20+i, v)
	}
	st := t.Flags()
	for i, v := range nv.cr {
		st.CR.SetField(2+i, v)
	}
	t.SetFlags(st)
}
