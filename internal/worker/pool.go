// Package worker schedules pipeline runs on a bounded pool so submissions
// never block on recognition latency and the concurrent-pipeline count stays
// capped (recognition is CPU-heavy).
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
)

var (
	// ErrQueueFull is returned when the submission queue is at capacity. The
	// policy is reject, not block: the client gets an immediate error and may
	// resubmit later.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned for submissions after Stop.
	ErrStopped = errors.New("worker pool is stopped")
)

// Runner executes one job's pipeline to completion.
type Runner func(ctx context.Context, jobID string)

// Pool is a fixed-size worker pool fed by a bounded queue of job ids.
type Pool struct {
	workers int
	queue   chan string
	run     Runner

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool builds a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, run Runner) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan string, queueSize),
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Safe to call once; later calls are no-ops.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work()
		}
		log.Printf("worker pool started: %d workers, queue capacity %d", p.workers, cap(p.queue))
	})
}

// Submit schedules a job and returns immediately. Each job id must be
// submitted at most once; the pool guarantees at most one run per
// submission. Safe to call concurrently with Stop.
func (p *Pool) Submit(jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	select {
	case p.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels in-flight contexts and waits for workers to exit. Queued jobs
// that never started are abandoned; job state is ephemeral by contract.
// Later Submit calls fail with ErrStopped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		// Taking the write lock waits out any Submit mid-send, so the
		// queue is never closed under a sender.
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cancel()
		close(p.queue)
		p.wg.Wait()
	})
}

// QueueDepth reports how many submissions are waiting.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) work() {
	defer p.wg.Done()
	for jobID := range p.queue {
		if p.ctx.Err() != nil {
			return
		}
		p.run(p.ctx, jobID)
	}
}
