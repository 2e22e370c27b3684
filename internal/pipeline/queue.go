package pipeline

import (
	"bytes"
	"context"
	"maps"
	"sync"
)

// Queue is a FIFO of write jobs shared by every capture and the single drain
// loop. The jobs, the byte counters and the closed state are all guarded by mu,
// so a snapshot never sees a job as both pending and written.
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	jobs     []*WriteJob
	capacity int
	policy   Backpressure
	closed   bool
	abortErr error

	pending       uint64
	total         uint64
	droppedBytes  uint64
	droppedBlocks uint64
	perStream     map[int]uint64
}

// NewQueue returns an empty queue. A capacity of zero or the Unbounded policy
// gives a queue whose Enqueue never waits.
func NewQueue(capacity int, policy Backpressure) *Queue {
	if capacity <= 0 || policy == Unbounded {
		capacity = 0
		policy = Unbounded
	}

	q := &Queue{
		capacity:  capacity,
		policy:    policy,
		perStream: make(map[int]uint64),
	}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// Enqueue copies payload into a new job and appends it to the tail.
func (q *Queue) Enqueue(ctx context.Context, target *Stream, payload []byte) error {
	job := &WriteJob{Target: target, Payload: bytes.Clone(payload)}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if q.full() {
		switch q.policy {
		case Drop:
			q.droppedBytes += uint64(len(job.Payload))
			q.droppedBlocks++
			return nil
		case Block:
			stop := q.wakeOnDone(ctx, &q.notFull)
			defer stop()
			for q.full() && !q.closed && ctx.Err() == nil {
				q.notFull.Wait()
			}
			if q.closed {
				return ErrQueueClosed
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	q.jobs = append(q.jobs, job)
	q.pending += uint64(len(job.Payload))
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the head job, waiting while the queue is empty. The job's
// length moves from the pending count to the written totals before the lock
// is released.
func (q *Queue) Dequeue(ctx context.Context) (*WriteJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stop func() bool
	for {
		if q.abortErr != nil {
			return nil, q.abortErr
		}
		if len(q.jobs) > 0 {
			break
		}
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stop == nil {
			stop = q.wakeOnDone(ctx, &q.notEmpty)
			defer stop()
		}
		q.notEmpty.Wait()
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]

	n := uint64(len(job.Payload))
	q.pending -= n
	q.total += n
	q.perStream[job.Target.Index] += n

	if q.capacity > 0 {
		q.notFull.Signal()
	}
	return job, nil
}

// Close stops further enqueues. Jobs already queued can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Abort stops the queue in both directions. Waiting and later Dequeue calls
// return err.
func (q *Queue) Abort(err error) {
	if err == nil {
		err = ErrQueueClosed
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.abortErr == nil {
		q.abortErr = err
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) Snapshot() Counters {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Counters{
		PendingBytes:  q.pending,
		PendingJobs:   len(q.jobs),
		TotalBytes:    q.total,
		DroppedBytes:  q.droppedBytes,
		DroppedBlocks: q.droppedBlocks,
		PerStream:     maps.Clone(q.perStream),
	}
}

func (q *Queue) full() bool {
	return q.capacity > 0 && len(q.jobs) >= q.capacity
}

// wakeOnDone broadcasts cond when ctx ends so a waiter can observe the
// cancellation. Callers hold q.mu.
func (q *Queue) wakeOnDone(ctx context.Context, cond *sync.Cond) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		cond.Broadcast()
		q.mu.Unlock()
	})
}
