package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Job is a unit of background work. It reports its own outcome through the store.
type Job func(ctx context.Context)

var (
	// ErrPoolClosed is returned by TrySubmit after Shutdown.
	ErrPoolClosed = errors.New("enrichment: pool closed")
	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("enrichment: queue full")
)

// Pool runs jobs on a fixed set of goroutines. Jobs run on the pool's own
// context, which is cancelled only when Shutdown runs out of time.
type Pool struct {
	log     *slog.Logger
	workers int
	jobs    chan Job

	ctx    context.Context
	cancel context.CancelFunc

	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of goroutines.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait for a worker.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.jobs = make(chan Job, n)
		}
	}
}

// NewPool creates a stopped pool. Call Start before submitting.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:     logger.With("service", "enrichment.pool"),
		workers: 4,
		jobs:    make(chan Job, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work(i + 1)
		}
		p.log.Info("pool started", slog.Int("workers", p.workers), slog.Int("queue", cap(p.jobs)))
	})
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", slog.Int("worker_id", id), slog.Any("panic", r))
		}
	}()
	job(p.ctx)
}

// TrySubmit queues job without blocking.
func (p *Pool) TrySubmit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// ends first, running jobs see their context cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-done:
		p.cancel()
		p.log.Info("pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.log.Warn("pool shutdown interrupted", slog.String("error", ctx.Err().Error()))
		return ctx.Err()
	}
}
