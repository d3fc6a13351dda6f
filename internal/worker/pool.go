package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/event-recorder/internal/domain"
	"github.com/Priya8975/event-recorder/internal/engine"
)

type job struct {
	ctx   context.Context
	reply chan engine.TimeResult
}

// Pool runs time queries on a fixed number of goroutines. CurrentTime hands
// the caller a one-shot channel and returns without waiting for the query.
type Pool struct {
	numWorkers int
	jobs       chan job
	quit       chan struct{}
	stopOnce   sync.Once
	fetcher    *fetcher
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a pool with the given number of workers over source.
func NewPool(numWorkers int, source Source, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan job, numWorkers*2),
		quit:       make(chan struct{}),
		fetcher:    &fetcher{source: source, logger: logger},
		logger:     logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("fetch pool started", "num_workers", p.numWorkers)
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.numWorkers
}

// Pending returns the number of queued queries not yet picked up by a worker.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// CurrentTime queues a time query. The returned channel is buffered and
// receives exactly one result: the query outcome, ctx's error if ctx ends
// before the query is queued, or ErrPoolStopped.
func (p *Pool) CurrentTime(ctx context.Context) <-chan engine.TimeResult {
	reply := make(chan engine.TimeResult, 1)

	select {
	case <-p.quit:
		reply <- engine.TimeResult{Err: domain.ErrPoolStopped}
		return reply
	default:
	}

	select {
	case p.jobs <- job{ctx: ctx, reply: reply}:
	case <-ctx.Done():
		reply <- engine.TimeResult{Err: ctx.Err()}
	case <-p.quit:
		reply <- engine.TimeResult{Err: domain.ErrPoolStopped}
	}
	return reply
}

// Stop signals the workers, waits for in-flight queries to finish and fails
// anything still queued with ErrPoolStopped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()

		for {
			select {
			case j := <-p.jobs:
				j.reply <- engine.TimeResult{Err: domain.ErrPoolStopped}
			default:
				p.logger.Info("fetch pool stopped")
				return
			}
		}
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			if err := j.ctx.Err(); err != nil {
				j.reply <- engine.TimeResult{Err: err}
				continue
			}
			j.reply <- p.fetcher.fetch(j.ctx)
		}
	}
}
