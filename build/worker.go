package build

// This file contains the worker loop which drains the build queue.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hwci/hwci/hook"
	"github.com/hwci/hwci/lock"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/queue"
	"github.com/rs/zerolog"
)

// ErrInterrupted is the cancellation cause of a build stopped by Interrupt.
var ErrInterrupted = errors.New("build interrupted by operator")

// Builder runs one build.
type Builder interface {
	Build(ctx context.Context, req model.BuildRequest) (model.BuildReport, error)
}

// Worker takes requests off the queue and builds them one at a time.
type Worker struct {
	logger  zerolog.Logger
	queue   *queue.Queue
	lock    *lock.Lock
	builder Builder
	bus     *hook.Bus
	poll    time.Duration

	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

// NewWorker creates a worker. poll bounds every wait for new requests.
func NewWorker(logger zerolog.Logger, q *queue.Queue, l *lock.Lock, builder Builder, bus *hook.Bus, poll time.Duration) *Worker {
	return &Worker{
		logger:  logger,
		queue:   q,
		lock:    l,
		builder: builder,
		bus:     bus,
		poll:    poll,
	}
}

// Run processes requests until ctx is done. It returns nil on cancellation
// and an error only when the queue or the lock can no longer be trusted.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("queue", w.queue.Path()).Dur("poll", w.poll).Msg("Worker started")
	defer w.logger.Info().Msg("Worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := w.step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// step waits for one request and processes it. Only fatal errors are
// returned.
func (w *Worker) step(ctx context.Context) error {
	if err := w.queue.Wait(ctx, w.poll); err != nil {
		return w.transient(ctx, err, "Failed to wait for build requests")
	}

	req, err := w.queue.Dequeue(ctx)
	if errors.Is(err, queue.ErrEmptyQueue) {
		return nil
	}
	if err != nil {
		return w.transient(ctx, err, "Failed to dequeue build request")
	}
	logger := w.logger.With().Str("request", req.ID.String()).Logger()

	if err := w.lock.Acquire(ctx, req.ID.String()); err != nil {
		// the request is out of the queue; it must go back before anything else
		if rerr := w.queue.Enqueue(context.WithoutCancel(ctx), req); rerr != nil {
			return fmt.Errorf("failed to re-enqueue request %s: %w", req.ID, rerr)
		}
		var locked *lock.AlreadyLockedError
		if !errors.As(err, &locked) {
			return w.transient(ctx, err, "Failed to acquire build lock")
		}
		logger.Info().Str("holder", locked.Holder.String()).Msg("Build lock is held, re-enqueued request")
		w.sleep(ctx)
		return nil
	}

	report, err := w.build(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Build report was not stored")
	}

	if err := w.lock.Release(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to release build lock: %w", err)
	}

	err = recovered(func() error {
		return w.bus.DoAction(context.WithoutCancel(ctx), hook.PostBuild, hook.Args{"request": req, "report": report})
	})
	if err != nil {
		logger.Warn().Err(err).Msg("post_build hook failed")
	}
	return nil
}

// build runs req under a context Interrupt can cancel. A panicking builder
// yields a failure report so the lock is still released.
func (w *Worker) build(ctx context.Context, req model.BuildRequest) (report model.BuildReport, err error) {
	buildCtx, cancel := context.WithCancelCause(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	start := time.Now()
	defer func() {
		w.mu.Lock()
		w.cancel = nil
		w.mu.Unlock()
		cancel(nil)

		if r := recover(); r != nil {
			w.logger.Error().Str("request", req.ID.String()).Interface("panic", r).Msg("Build panicked")
			err = fmt.Errorf("build panicked: %v", r)
			report = model.BuildReport{
				RequestID:      req.ID,
				Status:         model.BuildStatusFailure,
				Error:          err.Error(),
				Start:          start,
				End:            time.Now(),
				Repository:     req.RepositoryURL,
				RepositoryName: RepositoryName(req.RepositoryURL),
				Commit:         req.CommitRef,
				Branch:         req.Branch,
				TestSuite:      req.TestSuite,
			}
		}
	}()

	return w.builder.Build(buildCtx, req)
}

// recovered runs fn and turns a panic into an error.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Interrupt stops the build in progress, if any, and reports whether there
// was one. The worker goes on with the next request.
func (w *Worker) Interrupt() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return false
	}
	w.logger.Warn().Msg("Interrupting current build")
	w.cancel(ErrInterrupted)
	return true
}

// transient decides whether err stops the loop. Persistence faults do; the
// rest is logged and retried after a poll interval.
func (w *Worker) transient(ctx context.Context, err error, msg string) error {
	var perr *queue.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	w.logger.Warn().Err(err).Msg(msg)
	w.sleep(ctx)
	return nil
}

func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
