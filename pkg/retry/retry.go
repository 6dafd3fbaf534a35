// Package retry runs fallible operations repeatedly under an immutable
// policy composed of a retry predicate, an optional attempt limit, an
// optional per-attempt timeout, and exponential backoff with full jitter.
//
// A policy is assembled through a staged chain so that no required setting
// can be skipped:
//
//  1. Start with Retry (operation name, logger).
//  2. Pick a predicate: OnError or When.
//  3. Optional: LogAfter or NoLogging.
//  4. Pick a limit: Limit or NoLimit.
//  5. Pick a timeout: Timeout or NoTimeout.
//  6. Call Run with an operation factory.
//
// Example:
//
//	header, err := retry.Retry[*types.Header]("fetch header", sugar).
//		OnError().
//		LogAfter(2).
//		Limit(5).
//		Timeout(30 * time.Second).
//		Run(ctx, func(ctx context.Context) (*types.Header, error) {
//			return client.HeaderByNumber(ctx, height)
//		})
//
// Misconfiguring the chain (setting a property twice) is a programming
// defect and panics; it is never surfaced as a retryable error.
package retry

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Predicate classifies one attempt's outcome: true means the attempt should
// be retried, false means the outcome is final (a success or a terminal
// failure). Predicates must be pure, fast, and safe for concurrent use;
// timeouts bypass the predicate and always retry.
type Predicate[T any] func(value T, err error) bool

// Retry begins configuring a retried operation. The operation name is used
// only for logging and error messages.
func Retry[T any](operationName string, log *zap.SugaredLogger) *Config[T] {
	return &Config[T]{p: &policy[T]{
		operationName: operationName,
		log:           log,
	}}
}

// Config is the initial stage: a predicate must be chosen next.
type Config[T any] struct {
	p *policy[T]
}

// OnError retries whenever the attempt returns a non-nil error.
// Use When for finer-grained control.
func (c *Config[T]) OnError() *WithPredicate[T] {
	return c.When(func(_ T, err error) bool { return err != nil })
}

// When sets the predicate deciding whether an outcome warrants a retry.
// Timeouts always trigger a retry regardless of the predicate.
func (c *Config[T]) When(pred Predicate[T]) *WithPredicate[T] {
	c.p.pred = pred
	return &WithPredicate[T]{p: c.p}
}

// WithPredicate is the stage after the predicate is chosen. Logging behavior
// may be tuned here; choosing an attempt limit moves to the next stage.
type WithPredicate[T any] struct {
	p *policy[T]
}

// LogAfter only logs retries once at least minAttempts attempts have failed.
// The default is to log every failed attempt.
func (w *WithPredicate[T]) LogAfter(minAttempts uint64) *WithPredicate[T] {
	w.p.logAfter.set(w.p.operationName, "log-after", minAttempts)
	return w
}

// NoLogging suppresses per-attempt retry logging entirely.
func (w *WithPredicate[T]) NoLogging() *WithPredicate[T] {
	w.p.logAfter.unset(w.p.operationName, "log-after")
	return w
}

// Limit caps the number of attempts; n must be at least 1. A limit of 1
// performs exactly one attempt with no induced delay.
func (w *WithPredicate[T]) Limit(n uint64) *Limited[T] {
	if n < 1 {
		panic(fmt.Sprintf("retry %q: limit must be at least 1, got %d", w.p.operationName, n))
	}
	w.p.limit.set(w.p.operationName, "limit", n)
	return &Limited[T]{p: w.p}
}

// NoLimit allows unlimited attempts; only success or a terminal predicate
// decision ends the run.
func (w *WithPredicate[T]) NoLimit() *Limited[T] {
	w.p.limit.unset(w.p.operationName, "limit")
	return &Limited[T]{p: w.p}
}

// Limited is the stage after the attempt limit is chosen. A per-attempt
// timeout must be chosen next.
type Limited[T any] struct {
	p *policy[T]
}

// Timeout bounds how long a single attempt may take before it is declared
// timed out and retried.
func (l *Limited[T]) Timeout(d time.Duration) *Runner[T] {
	l.p.timeout.set(l.p.operationName, "timeout", d)
	return newRunner(l.p)
}

// NoTimeout lets attempts take as long as they need (or hang forever).
func (l *Limited[T]) NoTimeout() *Runner[T] {
	l.p.timeout.unset(l.p.operationName, "timeout")
	return newRunner(l.p)
}

// policy holds the settings accumulated by the stage chain. It is immutable
// once a Runner has been built and is reusable across Run invocations.
type policy[T any] struct {
	operationName string
	log           *zap.SugaredLogger
	pred          Predicate[T]
	logAfter      property[uint64]
	limit         property[uint64]
	timeout       property[time.Duration]
}

// logThreshold resolves the log-after property: default 1 (log every failed
// attempt), NoLogging maps to an unreachable threshold.
func (p *policy[T]) logThreshold() uint64 {
	v, ok, known := p.logAfter.value()
	switch {
	case !known:
		return 1
	case !ok:
		return math.MaxUint64
	default:
		return v
	}
}

// property tracks a single policy setting that must be configured exactly
// once: explicitly set, explicitly unset, or still unknown. Configuring it
// twice, or reading it while unknown, is a programming defect.
type property[V any] struct {
	state propertyState
	v     V
}

type propertyState uint8

const (
	propertyUnknown propertyState = iota
	propertySet
	propertyUnset
)

func (p *property[V]) set(operationName, name string, v V) {
	if p.state != propertyUnknown {
		panic(fmt.Sprintf("retry %q: %s configured more than once", operationName, name))
	}
	p.state = propertySet
	p.v = v
}

func (p *property[V]) unset(operationName, name string) {
	if p.state != propertyUnknown {
		panic(fmt.Sprintf("retry %q: %s configured more than once", operationName, name))
	}
	p.state = propertyUnset
}

// value returns the setting, whether it was set, and whether it was
// configured at all.
func (p *property[V]) value() (v V, set bool, known bool) {
	return p.v, p.state == propertySet, p.state != propertyUnknown
}

// require is like value but panics if the property was never configured.
func (p *property[V]) require(operationName, name string) (V, bool) {
	v, set, known := p.value()
	if !known {
		panic(fmt.Sprintf("retry %q: %s must be configured", operationName, name))
	}
	return v, set
}
