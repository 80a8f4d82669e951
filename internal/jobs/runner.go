package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrRunnerClosed is returned by Go once Shutdown has started.
var ErrRunnerClosed = errors.New("runner closed")

// Runner executes detached continuations with a bound on how many run at
// once. Callers never block on the bound: each task waits for a slot in its
// own goroutine.
type Runner struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	base   context.Context
	abort  context.CancelFunc
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func NewRunner(limit int, logger zerolog.Logger) *Runner {
	if limit < 1 {
		limit = 1
	}
	base, abort := context.WithCancel(context.Background())
	return &Runner{
		sem:    semaphore.NewWeighted(int64(limit)),
		base:   base,
		abort:  abort,
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

// Go schedules fn. The context passed to fn keeps the values of parent but
// not its cancellation; it is cancelled only when Shutdown gives up waiting.
func (r *Runner) Go(parent context.Context, name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	ctx := context.WithoutCancel(parent)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.base, 1); err != nil {
			r.logger.Warn().Str("task", name).Msg("task dropped before start")
			return
		}
		defer r.sem.Release(1)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.base, cancel)
		defer stop()

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Str("task", name).Interface("panic", rec).Msg("task panicked")
			}
		}()
		fn(ctx)
	}()
	return nil
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight ones. When ctx ends
// first, running tasks are cancelled and ctx's error is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.abort()
		return nil
	case <-ctx.Done():
		r.abort()
		<-done
		return ctx.Err()
	}
}
