package audit

import (
	"context"
	"log/slog"
	"time"
)

// Worker drains the logger's persistence queue into a storage backend. Each
// store call is bounded by a timeout so a slow backend cannot stall the
// queue; failures are logged and the event stays in-memory only.
type Worker struct {
	store   Store
	inbox   <-chan Event
	timeout time.Duration
	logger  *slog.Logger
	metrics interface{ IncrementPersistFailures() }
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithStoreTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithWorkerMetrics(m interface{ IncrementPersistFailures() }) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(backend Store, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:   backend,
		inbox:   inbox,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until the context is cancelled, persisting queued events.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			w.persist(ctx, event)
		}
	}
}

func (w *Worker) persist(ctx context.Context, event Event) {
	storeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.store.Store(storeCtx, event); err != nil {
		if w.metrics != nil {
			w.metrics.IncrementPersistFailures()
		}
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "audit backend unavailable, event kept in-memory only",
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}
