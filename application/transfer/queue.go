package transfer

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Queue serializes batches for one account session so that only one file
// is being transformed at any moment
type Queue struct {
	sem *semaphore.Weighted
}

// NewQueue creates an idle queue
func NewQueue() *Queue {
	return &Queue{sem: semaphore.NewWeighted(1)}
}

// Do waits for the queue, runs fn, and frees the queue. Waiting ends early
// if ctx is cancelled.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer q.sem.Release(1)
	return fn(ctx)
}

// Busy reports whether a batch currently holds the queue
func (q *Queue) Busy() bool {
	if q.sem.TryAcquire(1) {
		q.sem.Release(1)
		return false
	}
	return true
}
