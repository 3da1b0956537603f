package task

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerPool manages a pool of worker goroutines that run jobs from a
// JobQueue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// queue provides the jobs to be processed
	queue *JobQueue

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is passed to every job and cancelled on Stop
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once

	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(queue *JobQueue, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug("starting worker pool", "worker_count", p.workerCount)
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop cancels the pool context, closes the queue and waits for the
// workers to drain it.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Debug("stopping worker pool")
		p.cancel()
		p.queue.Close()
		p.wg.Wait()
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for job := range p.queue.channel() {
		p.run(id, job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *WorkerPool) run(id int, job Job) {
	defer p.queue.done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "worker_id", id, "panic", r)
		}
	}()

	job(p.ctx)
}
