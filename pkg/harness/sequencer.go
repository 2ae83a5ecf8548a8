package harness

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/record"
)

// Bytes of scratch cleared before every case.
const caseScratch = 256

// Runs cases one after the other against a single target.
type Sequencer struct {
	Target      Target
	Failures    *record.Buffer
	ScratchBase uint32
}

// Run cases with the first instruction at start, each following case
// at the next free word. Returns the number of failure records
// written. A cancelled context stops the run between cases.
func (s *Sequencer) Run(ctx context.Context, cases []Case, start uint32) (int, error) {
	before := s.Failures.Count()
	pc := start
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return s.Failures.Count() - before, err
		}
		s.runCase(c, pc)
		pc += uint32(4 * len(c.Insns))
	}
	return s.Failures.Count() - before, nil
}

func (s *Sequencer) runCase(c Case, start uint32) {
	t := s.Target
	resetBaseline(t)
	for off := uint32(0); off < caseScratch; off += 4 {
		t.StoreWord(s.ScratchBase+off, 0)
	}
	c.Setup.apply(t, s.ScratchBase)

	pc := start
	var next uint32
	var err error
	for _, w := range c.Insns {
		next, err = t.Exec(pc, w)
		if err != nil {
			break
		}
		pc += 4
	}
	subject := start + uint32(4*(len(c.Insns)-1))
	fields := logrus.Fields{
		"case":   c.Name,
		"family": c.Family.String(),
		"addr":   fmt.Sprintf("0x%08x", subject),
		"insn":   asm.Disassemble(c.Subject()),
	}

	var aux Aux
	ok := false
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("target could not execute case")
	} else {
		aux, ok = c.Check.Check(t, Outcome{Addr: subject, Next: next, ScratchBase: s.ScratchBase})
	}
	resetBaseline(t)

	if ok {
		logrus.WithFields(fields).Debug("case passed")
		return
	}
	logrus.WithFields(fields).Info("case failed")
	slot, rerr := s.Failures.Record(c.Subject(), subject)
	if rerr != nil {
		logrus.WithFields(fields).WithError(rerr).Warn("failure record dropped")
		return
	}
	for i, v := range aux {
		slot.SetAux(i, v)
	}
}
