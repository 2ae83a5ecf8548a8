// The suite package holds the authored conformance table. Most cases
// are generated by sweeping operand and flag grids through the oracle;
// a smaller set of spot cases carries literal expected values taken
// from the architecture books, so an oracle bug cannot hide behind a
// matching interpreter bug.
package suite

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
)

type builder struct {
	cases []harness.Case
	errs  []error
}

func (b *builder) single(name string, f harness.Family, line string, s harness.Setup, chk harness.Checker) {
	c, err := harness.Single(name, f, line, s, chk)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.cases = append(b.cases, c)
}

func (b *builder) sequence(name string, f harness.Family, lines []string, s harness.Setup, chk harness.Checker) {
	c, err := harness.Sequence(name, f, lines, s, chk)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.cases = append(b.cases, c)
}

var generators = []struct {
	family harness.Family
	build  func(*builder)
}{
	{harness.FamilyInteger, integerCases},
	{harness.FamilyCompare, compareCases},
	{harness.FamilyLogic, logicCases},
	{harness.FamilyBranch, branchCases},
	{harness.FamilyLoadStore, loadStoreCases},
	{harness.FamilyFloat, floatCases},
	{harness.FamilyVector, vectorCases},
}

// Build the case table for the named families, or for all of them when
// none are named. Cases come out grouped by family in a fixed order.
func Cases(families ...harness.Family) ([]harness.Case, error) {
	want := map[harness.Family]bool{}
	for _, f := range families {
		want[f] = true
	}
	var b builder
	for _, g := range generators {
		if len(want) > 0 && !want[g.family] {
			continue
		}
		before := len(b.cases)
		g.build(&b)
		logrus.WithFields(logrus.Fields{
			"family": g.family.String(),
			"cases":  len(b.cases) - before,
		}).Debug("family built")
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return b.cases, nil
}

func xerName(x flags.XER) string {
	if x == 0 {
		return ""
	}
	return fmt.Sprintf(" xer=%08x", uint32(x))
}
