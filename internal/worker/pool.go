// Package worker runs webhook jobs on a small fixed pool so the HTTP
// handler can acknowledge deliveries immediately.
package worker

import (
	"context"
	"log"
	"sync"
)

// Job is one unit of background work. The pool recovers panics so a single
// bad event cannot take a worker down.
type Job func(ctx context.Context)

// Pool is a bounded-queue worker pool. Submit never blocks the caller: when
// the queue is full the job is dropped and logged, which matches the
// webhook contract of at-least-once upstream redelivery.
type Pool struct {
	jobs   chan Job
	wg     sync.WaitGroup
	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines draining a queue of queueSize jobs.
func NewPool(workers, queueSize int, logger *log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		jobs:   make(chan Job, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.invoke(job)
	}
}

func (p *Pool) invoke(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logf("job panic: %v", r)
		}
	}()
	job(context.Background())
}

// Submit enqueues a job. It reports false when the queue is full or the
// pool is shut down.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.logf("queue full, dropping job")
		return false
	}
}

// Shutdown stops intake and waits for in-flight jobs to finish.
func (p *Pool) Shutdown() {
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

func (p *Pool) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
