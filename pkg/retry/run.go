package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
)

// ErrTimeout tags final errors caused by attempts exceeding the configured
// timeout, so callers can tell "gave up from timeouts" apart from "gave up
// from repeated operation failures" with errors.Is.
var ErrTimeout = errors.New("operation timed out")

// TimeoutError is the final error returned when the attempt budget is
// exhausted and the last attempt timed out.
type TimeoutError struct {
	Operation string
	Attempts  uint64
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (%d attempts)", e.Operation, e.Timeout, e.Attempts)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Runner is the final stage: a fully configured, immutable retry policy.
// It is safe to share and to call Run on concurrently; each invocation
// keeps its own attempt counter and backoff sequence.
type Runner[T any] struct {
	p       *policy[T]
	backoff Backoff
	clock   quartz.Clock
}

func newRunner[T any](p *policy[T]) *Runner[T] {
	return &Runner[T]{
		p:       p,
		backoff: DefaultBackoff(),
		clock:   quartz.NewReal(),
	}
}

// WithBackoff overrides the default backoff schedule.
func (r *Runner[T]) WithBackoff(b Backoff) *Runner[T] {
	r.backoff = b
	return r
}

// WithClock overrides the clock used for timeouts and backoff delays.
func (r *Runner[T]) WithClock(c quartz.Clock) *Runner[T] {
	r.clock = c
	return r
}

// Run invokes factory for each attempt until one succeeds, the predicate
// declares a failure terminal, the attempt limit is exhausted, or ctx is
// canceled. factory must produce a fresh pending operation on every call;
// side effects of abandoned attempts are the caller's responsibility.
func (r *Runner[T]) Run(ctx context.Context, factory func(context.Context) (T, error)) (T, error) {
	p := r.p
	limit, limited := p.limit.require(p.operationName, "limit")
	timeout, hasTimeout := p.timeout.require(p.operationName, "timeout")
	logAfter := p.logThreshold()

	p.log.Debugw("running with retry", "operation", p.operationName)

	var zero T
	var attempt uint64
	for {
		attempt++

		value, err, timedOut := r.attempt(ctx, factory, timeout, hasTimeout)

		if timedOut {
			// Cancellation is terminal on this path too; without this check a
			// zero-delay backoff would hand the factory a dead context.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if attempt >= logAfter {
				p.log.Debugw("trying again after operation timed out",
					"operation", p.operationName,
					"attempt", attempt,
					"timeout", timeout,
				)
			}
		} else {
			// Success, or an error the predicate deems terminal, is final.
			if !p.pred(value, err) {
				return value, err
			}
			// The run's context going away is always terminal; the factory
			// typically reports it as an error the predicate would retry.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if attempt >= logAfter {
				p.log.Debugw("trying again after operation failed",
					"operation", p.operationName,
					"attempt", attempt,
					"error", err,
				)
			}
		}

		if limited && attempt >= limit {
			if timedOut {
				return zero, &TimeoutError{Operation: p.operationName, Attempts: attempt, Timeout: timeout}
			}
			return value, err
		}

		// Delays sit strictly between attempts: the delay before retry n+1
		// is backoff index n-1.
		if delay := r.backoff.Delay(attempt - 1); delay > 0 {
			timer := r.newTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// attempt runs one invocation of the factory, racing it against the
// per-attempt deadline when one is configured.
func (r *Runner[T]) attempt(
	ctx context.Context,
	factory func(context.Context) (T, error),
	timeout time.Duration,
	hasTimeout bool,
) (T, error, bool) {
	if !hasTimeout {
		v, err := factory(ctx)
		return v, err, false
	}

	type outcome struct {
		value T
		err   error
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := factory(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := r.newTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err, false
	case <-timer.C:
		// An outcome that landed together with the deadline still counts:
		// ties resolve in favor of not retrying unnecessarily.
		select {
		case out := <-done:
			return out.value, out.err, false
		default:
		}
		var zero T
		return zero, nil, true
	}
}

// newTimer creates a timer on the runner's clock. A clock handing back a
// broken timer means no time-based reasoning in flight can be trusted
// anymore, so that is treated as unrecoverable.
func (r *Runner[T]) newTimer(d time.Duration) *quartz.Timer {
	t := r.clock.NewTimer(d)
	if t == nil || t.C == nil {
		panic(fmt.Sprintf("retry %q: timer subsystem failure", r.p.operationName))
	}
	return t
}
