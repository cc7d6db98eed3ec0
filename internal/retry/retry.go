package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/clinicops/receivables/internal/observability/metrics"
)

// Options defines retry behavior for a single call.
type Options struct {
	MaxAttempts       int           // total attempts, not extra retries
	BaseDelay         time.Duration // delay before the 2nd attempt
	MaxDelay          time.Duration // ceiling for backoff growth
	PerAttemptTimeout time.Duration // 0 = no per-attempt deadline
	OnRetry           func(attempt int, err error)
}

// DefaultOptions provides sensible defaults.
var DefaultOptions = Options{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    8 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultOptions.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultOptions.MaxDelay
	}
	return o
}

// Do executes op, retrying transient failures with exponential backoff.
// Non-transient errors propagate immediately: retrying a logic error
// wastes time and risks duplicate side effects. The context cancels both
// the in-flight attempt and the inter-attempt wait.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result, err := runAttempt(ctx, op, opts.PerAttemptTimeout)
		if err == nil {
			return result, nil
		}

		lastErr = err

		action := Classify(err)
		if action != ActionRetry {
			return zero, err
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}

		metrics.RetryAttempts.Inc()
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff(attempt, opts)):
		}
	}

	metrics.RetryExhausted.Inc()
	return zero, fmt.Errorf("failed after %d attempts: %w", opts.MaxAttempts, lastErr)
}

// Result is the tuple form of a retried call, for call sites that use
// a data/error pair rather than a returned error.
type Result[T any] struct {
	Data *T
	Err  error
}

// DoResult wraps Do for tuple-style call sites. It never returns an
// error through a second return value; failures land in Result.Err with
// a nil Data.
func DoResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) Result[T] {
	data, err := Do(ctx, op, opts)
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Data: &data}
}

func runAttempt[T any](ctx context.Context, op func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func backoff(attempt int, opts Options) time.Duration {
	delay := float64(opts.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(opts.MaxDelay) {
		delay = float64(opts.MaxDelay)
	}
	return time.Duration(delay)
}
