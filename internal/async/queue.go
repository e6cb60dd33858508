package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/financials-mapper/internal/core"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Handler processes one job; *core.Processor satisfies it.
type Handler interface {
	ProcessFile(ctx context.Context, job core.Job) (*core.Outcome, error)
}

// ResultFunc observes every finished job.
type ResultFunc func(job core.Job, out *core.Outcome, err error)

type Queue interface {
	Enqueue(ctx context.Context, job core.Job) error
	Shutdown(ctx context.Context)
}

// ProcessorQueue fans jobs out to a fixed pool of workers.
type ProcessorQueue struct {
	handler  Handler
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultFunc

	ch   chan core.Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan core.Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithResultFunc(fn ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func NewProcessorQueue(h Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: h,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan core.Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Info("worker started", "worker_id", workerID)

	for job := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		out, err := q.handler.ProcessFile(ctx, job)
		cancel()

		if err != nil {
			q.logger.Error("processing failed", "worker_id", workerID, "tenant_id", job.TenantID, "path", job.Path, "error", err)
		} else {
			q.logger.Info("processed file successfully", "worker_id", workerID, "tenant_id", job.TenantID, "path", job.Path,
				"strategy", out.Result.Strategy, "grade", out.Result.Confidence)
		}
		if q.onResult != nil {
			q.onResult(job, out, err)
		}
	}

	q.logger.Info("worker stopped", "worker_id", workerID)
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job core.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued file for processing", "tenant_id", job.TenantID, "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
