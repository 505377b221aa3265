package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of deferred work. Jobs must be safe to retry.
type Job func(ctx context.Context) error

type jobWrapper struct {
	id string
	fn Job
}

// DeadJob records a job that exhausted its retry budget.
type DeadJob struct {
	ID  string
	Err error
}

// ErrQueueFull is returned by Submit when the job buffer is saturated.
var ErrQueueFull = errors.New("worker queue full")

// Pool runs submitted jobs on a fixed set of goroutines with bounded retries.
// Jobs that still fail after the last attempt land on the dead-letter list.
type Pool struct {
	jobs        chan jobWrapper
	wg          sync.WaitGroup
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	dead []DeadJob

	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(workers, bufferSize, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:        make(chan jobWrapper, bufferSize),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job jobWrapper) {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = job.fn(p.ctx)
		if err == nil {
			return
		}
		p.logger.Warn("job attempt failed",
			"job", job.id, "attempt", attempt, "error", err)
		if attempt < p.maxAttempts {
			select {
			case <-time.After(p.retryDelay):
			case <-p.ctx.Done():
				attempt = p.maxAttempts
			}
		}
	}
	p.logger.Error("job moved to dead letter", "job", job.id, "error", err)
	p.mu.Lock()
	p.dead = append(p.dead, DeadJob{ID: job.id, Err: err})
	p.mu.Unlock()
}

// Submit enqueues a job without blocking the caller.
func (p *Pool) Submit(id string, fn Job) error {
	select {
	case p.jobs <- jobWrapper{id: id, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// DeadLetters returns a copy of the dead-letter list.
func (p *Pool) DeadLetters() []DeadJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DeadJob, len(p.dead))
	copy(out, p.dead)
	return out
}

// Close stops accepting jobs and waits for in-flight work to finish.
// Jobs still waiting in the buffer are drained and executed first; their
// retry waits are cut short.
func (p *Pool) Close() {
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
}
