package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/record"
	"github.com/vatine/ppuconform/pkg/shared"
)

func checkBuffers(scratch, failures []byte) error {
	if len(scratch) < MinScratch {
		return fmt.Errorf("%w: scratch is %d bytes, need %d", ErrBufferTooSmall, len(scratch), MinScratch)
	}
	if len(failures) < MinFailures {
		return fmt.Errorf("%w: failure buffer is %d bytes, need %d", ErrBufferTooSmall, len(failures), MinFailures)
	}
	return nil
}

// Negative run code for a bootstrap error.
func codeFor(err error) int {
	if errors.Is(err, ErrLoadAddress) {
		return CodeLoadAddress
	}
	return CodeBootstrap
}

// Map the code image at the load address.
func attachCode(t Target, opts Options, cases []Case) error {
	img := codeImage(cases)
	size := uint32(4*len(img)+0xfff) &^ 0xfff
	code := cpu.NewDirectMemory(size)
	for i, w := range img {
		code.WriteWord(uint32(4*i), w)
	}
	return t.Attach(opts.LoadAddress, code, size)
}

// Run the conformance table against t.
//
// zero must be zero and one must be 1.0; scratch must hold at least
// MinScratch zeroed bytes and failures at least MinFailures bytes. The
// result is the number of failure records written to failures, or a
// negative code together with an error wrapping ErrBootstrap or
// ErrLoadAddress when the harness cannot trust the target. Argument
// errors return zero and an error.
func Run(t Target, opts Options, cases []Case, zero uint64, scratch, failures []byte, one float64) (int, error) {
	if err := checkBuffers(scratch, failures); err != nil {
		return 0, err
	}
	opts = opts.withDefaults()
	if err := t.Attach(opts.ScratchBase, cpu.WrapMemory(scratch), uint32(len(scratch))); err != nil {
		return 0, err
	}
	if err := attachCode(t, opts, cases); err != nil {
		return 0, err
	}
	buf := record.NewBuffer(failures, opts.Order)
	return runShard(context.Background(), t, opts, cases, opts.LoadAddress+casesOffset, opts.ScratchBase, zero, one, buf)
}

// Bootstrap a prepared target and run cases on it, keeping the
// non-volatile registers intact.
func runShard(ctx context.Context, t Target, opts Options, cases []Case, start, scratchBase uint32, zero uint64, one float64, buf *record.Buffer) (int, error) {
	nv := saveNonVolatile(t)
	defer nv.restore(t)

	fields := logrus.Fields{
		"cases": len(cases),
		"start": fmt.Sprintf("0x%08x", start),
	}
	if err := bootstrap(t, opts, scratchBase, zero, one); err != nil {
		logrus.WithFields(fields).WithError(err).Error("bootstrap failed")
		return codeFor(err), err
	}
	logrus.WithFields(fields).Info("running cases")
	seq := Sequencer{Target: t, Failures: buf, ScratchBase: scratchBase}
	n, err := seq.Run(ctx, cases, start)
	if err != nil {
		return n, err
	}
	logrus.WithFields(fields).WithField("failures", n).Info("cases done")
	return n, nil
}

// A contiguous slice of the case table and the address of its first
// instruction word.
type part struct {
	cases []Case
	start uint32
}

// Split cases into at most n contiguous parts, cutting only between
// families so each family runs on one target.
func partition(cases []Case, n int, origin uint32) []part {
	var groups [][]Case
	for i := 0; i < len(cases); {
		j := i + 1
		for j < len(cases) && cases[j].Family == cases[i].Family {
			j++
		}
		groups = append(groups, cases[i:j])
		i = j
	}
	if n > len(groups) {
		n = len(groups)
	}
	if n < 1 {
		n = 1
	}
	per := (len(cases) + n - 1) / n

	var parts []part
	pc := origin
	cur := part{start: pc}
	for _, g := range groups {
		if len(cur.cases) > 0 && len(cur.cases)+len(g) > per && len(parts) < n-1 {
			parts = append(parts, cur)
			cur = part{start: pc}
		}
		cur.cases = append(cur.cases, g...)
		for _, c := range g {
			pc += uint32(4 * len(c.Insns))
		}
	}
	return append(parts, cur)
}

// Run the table on up to shards targets at once. Each target gets a
// contiguous run of case families and its own window of the scratch
// block, which is served to all of them through one shared memory
// owner. Records are merged back in table order, so the output is the
// same as Run's for a deterministic target.
func RunParallel(ctx context.Context, shards int, factory func() Target, opts Options, cases []Case, zero uint64, scratch, failures []byte, one float64) (int, error) {
	if err := checkBuffers(scratch, failures); err != nil {
		return 0, err
	}
	opts = opts.withDefaults()
	parts := partition(cases, shards, opts.LoadAddress+casesOffset)
	window := uint32(len(scratch)/len(parts)) &^ 0xf
	if window < caseScratch {
		return 0, fmt.Errorf("%w: %d bytes of scratch cannot be split %d ways", ErrBufferTooSmall, len(scratch), len(parts))
	}

	mem := shared.NewSharedMemory(scratch)
	defer mem.Close()

	windows := make([]shared.Window, len(parts))
	bufs := make([]*record.Buffer, len(parts))
	for i := range parts {
		w, err := mem.Window(uint32(i)*window, window)
		if err != nil {
			return 0, err
		}
		windows[i] = w
		bufs[i] = record.NewBuffer(make([]byte, len(failures)), opts.Order)
	}

	codes := make([]int, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for i := range parts {
		i, w := i, windows[i]
		g.Go(func() error {
			w.Fill(0, window, 0)
			t := factory()
			if err := t.Attach(opts.ScratchBase, w, window); err != nil {
				return err
			}
			if err := attachCode(t, opts, cases); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"shard": i, "cases": len(parts[i].cases)}).Debug("shard starting")
			n, err := runShard(ctx, t, opts, parts[i].cases, parts[i].start, opts.ScratchBase, zero, one, bufs[i])
			if n < 0 {
				codes[i] = n
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range codes {
			if c < 0 {
				return c, err
			}
		}
		return 0, err
	}

	out := record.NewBuffer(failures, opts.Order)
merge:
	for i, b := range bufs {
		recs, err := record.Decode(b.Bytes(), b.Count(), opts.Order)
		if err != nil {
			return 0, err
		}
		for _, r := range recs {
			if err := out.Append(r); err != nil {
				logrus.WithFields(logrus.Fields{"shard": i, "kept": out.Count()}).WithError(err).Warn("failure records dropped in merge")
				break merge
			}
		}
	}
	return out.Count(), nil
}
