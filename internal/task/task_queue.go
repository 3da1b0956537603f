package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the JobQueue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Job is a unit of background work. ctx is cancelled when the pool stops;
// jobs still queued at that point run with the cancelled context so they
// can release whatever they hold.
type Job func(ctx context.Context)

// JobQueue is a bounded, closable queue of jobs. It tracks how many
// submitted jobs have not finished yet so callers can wait for them.
type JobQueue struct {
	mu      sync.Mutex
	jobs    chan Job
	closed  bool
	pending sync.WaitGroup
	logger  *slog.Logger
}

// NewJobQueue creates a queue that buffers up to size jobs.
func NewJobQueue(size int, logger *slog.Logger) *JobQueue {
	if size <= 0 {
		size = 1
	}
	return &JobQueue{
		jobs:   make(chan Job, size),
		logger: logger,
	}
}

// Enqueue adds a job without blocking.
// Returns an error if the queue is full or closed.
func (q *JobQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.pending.Add(1)
	select {
	case q.jobs <- job:
		q.logger.Debug("job enqueued",
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		q.pending.Done()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close prevents further submissions. Jobs already queued are still
// delivered to consumers.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Debug("job queue closed")
	}
}

// Wait blocks until every enqueued job has finished.
func (q *JobQueue) Wait() {
	q.pending.Wait()
}

func (q *JobQueue) channel() <-chan Job {
	return q.jobs
}

func (q *JobQueue) done() {
	q.pending.Done()
}
