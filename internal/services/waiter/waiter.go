package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
)

// DefaultMinInterval is the floor for any poll cadence
const DefaultMinInterval = 100 * time.Millisecond

// Waiter turns one-shot queries into bounded "eventually" semantics.
// It is the only place in the harness that sleeps.
type Waiter struct {
	logger      arbor.ILogger
	timeout     time.Duration
	interval    time.Duration
	minInterval time.Duration
	observer    interfaces.WaitObserver
}

// NewWaiter creates a waiter with default timeout and interval.
// minInterval <= 0 uses DefaultMinInterval.
func NewWaiter(logger arbor.ILogger, timeout, interval, minInterval time.Duration) *Waiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if interval < minInterval {
		interval = minInterval
	}
	return &Waiter{
		logger:      logger,
		timeout:     timeout,
		interval:    interval,
		minInterval: minInterval,
	}
}

// NewWaiterFromConfig creates a waiter from the [wait] config section
func NewWaiterFromConfig(cfg common.WaitConfig, logger arbor.ILogger) *Waiter {
	return NewWaiter(logger, cfg.TimeoutDuration(), cfg.IntervalDuration(), cfg.MinIntervalDuration())
}

// SetObserver registers an observer for wait outcomes (metrics)
func (w *Waiter) SetObserver(observer interfaces.WaitObserver) {
	w.observer = observer
}

// Spec returns a WaitSpec with the default timeout and interval
func (w *Waiter) Spec(description string) models.WaitSpec {
	return models.WaitSpec{
		Description: description,
		Timeout:     w.timeout,
		Interval:    w.interval,
	}
}

// DefaultTimeout returns the configured default wait budget
func (w *Waiter) DefaultTimeout() time.Duration {
	return w.timeout
}

// Wait polls predicate until it returns true, the wait times out, or ctx ends
func (w *Waiter) Wait(ctx context.Context, spec models.WaitSpec, predicate func(ctx context.Context) (bool, error)) error {
	_, err := Until(ctx, w, spec, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := predicate(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Until polls query until it reports done. The first evaluation is immediate;
// later ones follow every interval, and the last one happens at the deadline.
//
// Query errors are treated as "not yet" and kept for the TimeoutError, except
// errors wrapped with Permanent and *models.LifecycleError, which abort the wait.
// A ctx deadline reached before spec.Timeout also yields a TimeoutError.
func Until[T any](ctx context.Context, w *Waiter, spec models.WaitSpec, query func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	spec = w.normalize(spec)

	start := time.Now()
	deadline := start.Add(spec.Timeout)

	timer := time.NewTimer(spec.Interval)
	timer.Stop()
	defer timer.Stop()

	attempts := 0
	var lastErr error

	for {
		if ctx.Err() != nil {
			return zero, w.finish(spec, attempts, start, stopped(ctx, spec, attempts, start, lastErr))
		}

		attempts++
		value, done, err := attempt(ctx, w, deadline, query)
		if err == nil && done {
			w.finish(spec, attempts, start, nil)
			return value, nil
		}

		if err != nil {
			var permErr *permanentError
			var lifecycleErr *models.LifecycleError
			switch {
			case errors.As(err, &permErr):
				return zero, w.finish(spec, attempts, start, permErr.err)
			case errors.As(err, &lifecycleErr):
				return zero, w.finish(spec, attempts, start, err)
			case ctx.Err() != nil:
				// err is derived from ctx; keep the last real poll error for diagnosis
				if lastErr == nil {
					lastErr = err
				}
				return zero, w.finish(spec, attempts, start, stopped(ctx, spec, attempts, start, lastErr))
			}
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, w.finish(spec, attempts, start, &models.TimeoutError{
				Description: spec.Description,
				Timeout:     spec.Timeout,
				Elapsed:     time.Since(start),
				Attempts:    attempts,
				LastErr:     lastErr,
			})
		}

		sleep := spec.Interval
		if remaining < sleep {
			sleep = remaining
		}
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			return zero, w.finish(spec, attempts, start, stopped(ctx, spec, attempts, start, lastErr))
		case <-timer.C:
		}
	}
}

// attempt runs one query bounded by the remaining budget. The bound is never
// shorter than the minimum interval so the evaluation at the deadline still
// gets a usable context.
func attempt[T any](ctx context.Context, w *Waiter, deadline time.Time, query func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	bound := time.Until(deadline)
	if bound < w.minInterval {
		bound = w.minInterval
	}
	attemptCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()
	return query(attemptCtx)
}

// stopped is the error for a wait whose ctx ended. A caller deadline that
// runs out first is still a timeout; explicit cancellation is not.
func stopped(ctx context.Context, spec models.WaitSpec, attempts int, start time.Time, lastErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.TimeoutError{
			Description: spec.Description,
			Timeout:     spec.Timeout,
			Elapsed:     time.Since(start),
			Attempts:    attempts,
			LastErr:     lastErr,
		}
	}
	return fmt.Errorf("wait for %s cancelled: %w", spec.Description, ctx.Err())
}

func (w *Waiter) normalize(spec models.WaitSpec) models.WaitSpec {
	if spec.Timeout <= 0 {
		spec.Timeout = w.timeout
	}
	if spec.Interval <= 0 {
		spec.Interval = w.interval
	}
	if spec.Interval < w.minInterval {
		spec.Interval = w.minInterval
	}
	if spec.Description == "" {
		spec.Description = "condition"
	}
	return spec
}

// finish logs and reports the outcome, returning err unchanged
func (w *Waiter) finish(spec models.WaitSpec, attempts int, start time.Time, err error) error {
	elapsed := time.Since(start)

	if w.observer != nil {
		w.observer.WaitCompleted(spec.Description, attempts, elapsed, err)
	}

	if w.logger != nil {
		var timeoutErr *models.TimeoutError
		switch {
		case err == nil:
			w.logger.Trace().
				Str("wait", spec.Description).
				Int("attempts", attempts).
				Dur("elapsed", elapsed).
				Msg("Wait satisfied")
		case errors.As(err, &timeoutErr):
			w.logger.Debug().
				Str("wait", spec.Description).
				Int("attempts", attempts).
				Dur("elapsed", elapsed).
				Err(timeoutErr.LastErr).
				Msg("Wait timed out")
		default:
			w.logger.Debug().
				Str("wait", spec.Description).
				Int("attempts", attempts).
				Err(err).
				Msg("Wait aborted")
		}
	}

	return err
}

// Permanent marks a query error as fatal to the wait instead of "not yet"
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }
