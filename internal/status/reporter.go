package status

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/sjawhar/audiocat/internal/pipeline"
)

// DefaultInterval is how often the reporter samples when no interval is given.
const DefaultInterval = time.Second

type Sampler interface {
	Snapshot() pipeline.Counters
}

// Reporter periodically samples a pipeline and prints the status line. On a
// terminal the line is redrawn in place.
type Reporter struct {
	src       Sampler
	out       io.Writer
	interval  time.Duration
	overwrite bool
	now       func() time.Time

	mu     sync.Mutex
	start  time.Time
	latest Status
	hooks  []func(Status)
}

func NewReporter(src Sampler, out io.Writer, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reporter{
		src:       src,
		out:       out,
		interval:  interval,
		overwrite: isTerminal(out),
		now:       time.Now,
		start:     time.Now(),
	}
}

// OnSample registers fn to receive every sample. Hooks run on the reporter's
// goroutine and should not block.
func (r *Reporter) OnSample(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Latest returns the most recent sample.
func (r *Reporter) Latest() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Sample reads the counters once, records the result and runs the hooks.
func (r *Reporter) Sample() Status {
	c := r.src.Snapshot()

	r.mu.Lock()
	s := Compute(c, r.now().Sub(r.start))
	r.latest = s
	hooks := append([]func(Status){}, r.hooks...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
	return s
}

// Run prints a sample every interval until ctx ends, then prints a final one.
func (r *Reporter) Run(ctx context.Context) {
	r.mu.Lock()
	r.start = r.now()
	r.mu.Unlock()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.print(r.Sample())
	for {
		select {
		case <-ctx.Done():
			r.print(r.Sample())
			if r.overwrite {
				fmt.Fprintln(r.out)
			}
			return
		case <-ticker.C:
			r.print(r.Sample())
		}
	}
}

func (r *Reporter) print(s Status) {
	if r.overwrite {
		fmt.Fprintf(r.out, "\r%s", FormatLine(s))
		return
	}
	fmt.Fprintln(r.out, FormatLine(s))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
