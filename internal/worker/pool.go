// Package worker runs capability calls in the background so page requests
// return immediately while a generation or track search is in flight.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/aura/internal/core/ports"
)

// Job is a unit of background work.
type Job func(ctx context.Context)

// Pool manages background workers for async jobs.
type Pool struct {
	jobs   chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var _ ports.Dispatcher = (*Pool)(nil)

// NewPool creates a worker pool with the given queue size.
func NewPool(queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{jobs: make(chan Job, queueSize)}
}

// Start launches the worker goroutines. Jobs run with ctx's values; a job
// that panics is logged and does not take its worker down.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(ctx, id, job)
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Int("worker", worker).Interface("panic", r).Msg("worker: job panicked")
		}
	}()
	job(ctx)
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking. It returns ports.ErrQueueFull when
// the queue is full or the pool has been stopped.
func (p *Pool) Submit(job func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ports.ErrQueueFull
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		log.Warn().Int("queue_size", cap(p.jobs)).Msg("worker: dropping job, queue full")
		return ports.ErrQueueFull
	}
}
