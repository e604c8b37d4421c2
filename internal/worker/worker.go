// Package worker writes the attempt audit log in the background so trial
// and checkout requests never wait on the database.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/DukeRupert/storefront/internal/metrics"
)

var (
	// ErrQueueFull is returned by Record when the attempt was dropped.
	ErrQueueFull = errors.New("attempt queue is full")

	// ErrStopped is returned by Record after Stop.
	ErrStopped = errors.New("attempt writer is stopped")
)

// Sink persists one attempt. *store.AttemptLog satisfies it.
type Sink interface {
	Record(ctx context.Context, a domain.Attempt) error
}

// AttemptWriter queues attempts and writes them to a Sink with a fixed
// number of goroutines.
type AttemptWriter struct {
	sink   Sink
	config Config
	logger *slog.Logger

	queue   chan domain.Attempt
	stopped atomic.Bool

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new AttemptWriter with the given configuration.
// The writer must be started with Start() and stopped with Stop().
func New(sink Sink, config Config, logger *slog.Logger) (*AttemptWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &AttemptWriter{
		sink:   sink,
		config: config,
		logger: logger,
		queue:  make(chan domain.Attempt, config.QueueSize),
		stopCh: make(chan struct{}),
	}, nil
}

// Record queues the attempt without blocking.
// Returns ErrQueueFull if the queue is full and ErrStopped after Stop.
func (w *AttemptWriter) Record(_ context.Context, a domain.Attempt) error {
	if w.stopped.Load() {
		return ErrStopped
	}

	select {
	case w.queue <- a:
		metrics.AttemptLogQueueDepth.Set(float64(len(w.queue)))
		return nil
	default:
		metrics.AttemptLogWrite("dropped")
		return ErrQueueFull
	}
}

// Start launches the writer goroutines.
func (w *AttemptWriter) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}

	w.logger.Info("Attempt writer started", "concurrency", w.config.Concurrency)
}

// Stop refuses new attempts, drains the queue and waits for the
// goroutines, up to ShutdownTimeout.
func (w *AttemptWriter) Stop() {
	if !w.stopped.CompareAndSwap(false, true) {
		return
	}
	w.logger.Info("Stopping attempt writer...", "queued", len(w.queue))
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Attempt writer stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Attempt writer shutdown timeout exceeded, some attempts were not written",
			"queued", len(w.queue))
	}
}

// run is the main loop for a writer goroutine. After stopCh closes it
// keeps writing until the queue is empty.
func (w *AttemptWriter) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)

	for {
		select {
		case a := <-w.queue:
			w.write(ctx, a, logger)
		case <-w.stopCh:
			for {
				select {
				case a := <-w.queue:
					w.write(ctx, a, logger)
				default:
					return
				}
			}
		}
	}
}

// write stores one attempt with the configured timeout. Writes are not
// retried.
func (w *AttemptWriter) write(ctx context.Context, a domain.Attempt, logger *slog.Logger) {
	metrics.AttemptLogQueueDepth.Set(float64(len(w.queue)))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.WriteTimeout)
	defer cancel()

	if err := w.sink.Record(writeCtx, a); err != nil {
		metrics.AttemptLogWrite("failed")
		logger.Error("Failed to write attempt",
			"attempt_id", a.ID,
			"action", a.Action,
			"user_id", a.UserID,
			"error", err,
		)
		return
	}
	metrics.AttemptLogWrite("written")
}
