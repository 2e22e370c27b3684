package pipeline

import (
	"context"
	"errors"
)

// Drain writes queued jobs in order until the queue is closed and empty. The
// write happens outside the queue lock so captures keep enqueuing meanwhile.
func Drain(ctx context.Context, q *Queue) error {
	for {
		job, err := q.Dequeue(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := write(job); err != nil {
			return err
		}
	}
}

func write(job *WriteJob) error {
	n, err := job.Target.Writer.Write(job.Payload)
	if err != nil || n != len(job.Payload) {
		return shortWriteError(job.Target, n, len(job.Payload), err)
	}
	return nil
}
