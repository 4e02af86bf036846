// Package worker turns queued refresh requests into graph rebuilds.
//
// A single worker consumes the queue so rebuilds never overlap. Requests
// that pile up while a rebuild runs are folded into the next one.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/winchain/internal/adapters/mq/queue"
	"github.com/okian/winchain/pkg/logger"
	"github.com/okian/winchain/pkg/metrics"
)

// Reasons passed to the Rebuilder.
const (
	ReasonRefresh  = "refresh"
	ReasonSchedule = "schedule"
)

// Rebuilder rebuilds and swaps the live graphs.
type Rebuilder interface {
	Rebuild(ctx context.Context, reason string) error
}

// Queue defines how the worker receives requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
	Drain(ctx context.Context) []queue.Request
}

// Worker processes refresh requests until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the current rebuild, if any.
	Shutdown(ctx context.Context) error
}

// RefreshWorker implements Worker.
type RefreshWorker struct {
	queue     Queue
	rebuilder Rebuilder
	name      string
	interval  time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewRefreshWorker creates a worker with configuration options.
func NewRefreshWorker(q Queue, r Rebuilder, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:     q,
		rebuilder: r,
		name:      "refresh-worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("refresh-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop. With an interval configured it also rebuilds
// on a fixed schedule.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.logger.Info(ctx, "refresh worker started",
		logger.String("worker", w.name),
		logger.Duration("interval", w.interval),
	)
	defer w.logger.Info(ctx, "refresh worker stopped", logger.String("worker", w.name))

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			w.process(ctx, r)
		case <-tick:
			w.rebuild(ctx, ReasonSchedule, nil)
		}
	}
}

// process handles first and every request queued behind it with one rebuild.
func (w *RefreshWorker) process(ctx context.Context, first queue.Request) {
	batch := append([]queue.Request{first}, w.queue.Drain(ctx)...)
	if n := len(batch) - 1; n > 0 {
		metrics.AddRefreshCoalesced(n)
	}
	w.rebuild(ctx, ReasonRefresh, batch)
}

func (w *RefreshWorker) rebuild(ctx context.Context, reason string, batch []queue.Request) {
	jobs := make([]string, 0, len(batch))
	for _, r := range batch {
		jobs = append(jobs, r.JobID)
	}
	w.logger.Info(ctx, "rebuild requested",
		logger.String("worker", w.name),
		logger.String("reason", reason),
		logger.Int("requests", len(batch)),
		logger.Any("job_ids", jobs),
	)

	if err := w.rebuilder.Rebuild(ctx, reason); err != nil {
		metrics.RecordErrorByComponent("worker", "rebuild_failed")
		w.logger.Error(ctx, "rebuild failed",
			logger.String("worker", w.name),
			logger.String("reason", reason),
			logger.Any("job_ids", jobs),
			logger.Error(err),
		)
	}
}

// Shutdown stops the worker. It waits for an in-flight rebuild to finish
// or for ctx to expire.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *RefreshWorker) Done() <-chan struct{} { return w.done }
