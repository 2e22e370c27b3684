package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrNoStreams is returned by Run when there is nothing to capture.
var ErrNoStreams = errors.New("no streams to capture")

type Options struct {
	BlockSize     int
	QueueCapacity int
	Backpressure  Backpressure
	FailurePolicy FailurePolicy

	// Logf receives warnings about isolated stream failures.
	Logf func(format string, args ...any)
}

// Pipeline runs one capture per stream and a single drain loop over a shared
// queue. A Pipeline runs once.
type Pipeline struct {
	opts  Options
	queue *Queue
}

func New(opts Options) *Pipeline {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	return &Pipeline{
		opts:  opts,
		queue: NewQueue(opts.QueueCapacity, opts.Backpressure),
	}
}

func (p *Pipeline) BlockSize() int { return p.opts.BlockSize }

// Snapshot samples the queue counters.
func (p *Pipeline) Snapshot() Counters { return p.queue.Snapshot() }

// Run captures every stream and drains the queue on the calling goroutine.
//
// Cancelling ctx stops the captures; jobs already queued are still written and
// Run returns nil. Under FailFast a failed read closes the queue, the blocks
// read before it are written, and the read error is returned. A failed write
// aborts the queue at once, dropping whatever is still queued. Neither waits
// for captures blocked in a read.
func (p *Pipeline) Run(ctx context.Context, streams []*Stream) error {
	if len(streams) == 0 {
		return ErrNoStreams
	}

	writeFailed, abortWrites := context.WithCancelCause(context.Background())
	defer abortWrites(nil)
	readFailed, failReads := context.WithCancelCause(context.Background())
	defer failReads(nil)

	captureCtx, stopCaptures := context.WithCancel(ctx)
	defer stopCaptures()
	stopOnWrite := context.AfterFunc(writeFailed, stopCaptures)
	defer stopOnWrite()

	isolated := make(chan error, len(streams))

	var g errgroup.Group
	for _, s := range streams {
		g.Go(func() error {
			err := Capture(captureCtx, p.queue, s, p.opts.BlockSize)
			if err == nil {
				return nil
			}
			if p.opts.FailurePolicy == Isolate {
				p.opts.Logf("warning: stream %d (%s) stopped: %v", s.Index, s.Input, err)
				isolated <- err
				return nil
			}
			failReads(err)
			stopCaptures()
			p.queue.Close()
			return err
		})
	}

	capturesDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		p.queue.Close()
		close(capturesDone)
	}()

	if err := Drain(writeFailed, p.queue); err != nil {
		abortWrites(err)
		p.queue.Abort(err)
		return context.Cause(writeFailed)
	}
	if readFailed.Err() != nil {
		return context.Cause(readFailed)
	}
	<-capturesDone

	close(isolated)
	if len(isolated) == len(streams) {
		errs := make([]error, 0, len(streams))
		for err := range isolated {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return nil
}
