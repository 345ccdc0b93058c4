// Package worker runs cloud jobs on a fixed set of goroutines so callers
// holding the store lock never block on the network.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned for jobs submitted after Close
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work; ctx is cancelled when the pool closes
type Job func(ctx context.Context) error

type task struct {
	job    Job
	result chan error
}

// Pool executes jobs with a bounded number of workers
type Pool struct {
	input    chan task
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// New starts a pool with the given worker count and queue size
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		input:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.process()
	}
	return p
}

// Submit queues job and returns a channel that receives its result exactly once.
// Submit blocks while the queue is full.
func (p *Pool) Submit(job Job) <-chan error {
	result := make(chan error, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		result <- ErrPoolClosed
		return result
	}

	select {
	case p.input <- task{job: job, result: result}:
	case <-p.ctx.Done():
		result <- ErrPoolClosed
	}
	return result
}

func (p *Pool) process() {
	defer p.wg.Done()

	for t := range p.input {
		t.result <- p.run(t.job)
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in worker: %v", r)
		}
	}()
	return job(p.ctx)
}

// Close stops accepting jobs, lets queued jobs finish and waits for the workers
func (p *Pool) Close() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.input)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Abort cancels the context handed to running jobs, then closes the pool
func (p *Pool) Abort() {
	p.cancel()
	p.Close()
}
