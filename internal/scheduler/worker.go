package scheduler

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when the worker queue is full.
var ErrBusy = errors.New("worker queue full")

// ErrStopped is returned for work submitted after shutdown.
var ErrStopped = errors.New("scheduler stopped")

const defaultQueueSize = 8

// Job is one unit of privileged work.
type Job func(ctx context.Context)

// Worker runs jobs one at a time in submission order.
type Worker struct {
	jobs chan Job

	mu      sync.Mutex
	stopped bool
}

// NewWorker creates a worker with room for queueSize pending jobs.
func NewWorker(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Worker{jobs: make(chan Job, queueSize)}
}

// Submit enqueues job without blocking.
func (w *Worker) Submit(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrBusy
	}
}

// Run executes jobs until ctx is done. Jobs still queued at that point are
// dropped.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			if ctx.Err() != nil {
				return
			}
			job(ctx)
		}
	}
}
