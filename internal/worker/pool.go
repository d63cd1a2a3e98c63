package worker

import (
	"sync"

	"github.com/Nexus-Agni/ShadowSpeak/internal/metrics"
)

type task func()

type Pool struct {
	wg     sync.WaitGroup
	jobs   chan task
	mu     sync.RWMutex
	closed bool
}

const defaultQueue = 1024

func NewPool(n int) *Pool {
	return NewPoolWithQueue(n, defaultQueue)
}

// NewPoolWithQueue starts n workers behind a queue of the given capacity.
func NewPoolWithQueue(n, queue int) *Pool {
	if n < 1 {
		n = 1
	}
	if queue < 1 {
		queue = 1
	}
	p := &Pool{jobs: make(chan task, queue)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				job()
			}
		}()
	}
	return p
}

// Submit queues f without blocking. It reports false when the queue is full
// or the pool is stopped; the job is then dropped.
func (p *Pool) Submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Inc()
		return true
	default:
		metrics.WorkerDropped.Inc()
		return false
	}
}

// Stop drains queued jobs and waits for the workers.
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
