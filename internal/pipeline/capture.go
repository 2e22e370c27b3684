package pipeline

import (
	"context"
	"errors"
	"io"
	"time"
)

// Capture reads fixed-size blocks from s.Reader and enqueues each one for
// s.Writer until ctx ends or a read comes back short. A short block is never
// enqueued.
func Capture(ctx context.Context, q *Queue, s *Stream, blockSize int) error {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	stop := context.AfterFunc(ctx, func() { interruptRead(s.Reader) })
	defer stop()

	buf := make([]byte, blockSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := s.Reader.Read(buf)
		if n != blockSize {
			if ctx.Err() != nil {
				return nil
			}
			return shortReadError(s, n, blockSize, err)
		}

		if err := q.Enqueue(ctx, s, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
	}
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// interruptRead unblocks a pending Read on pipes, sockets and other pollable
// files. Regular files do not support deadlines and return promptly anyway.
func interruptRead(r io.Reader) {
	if d, ok := r.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now())
	}
}
