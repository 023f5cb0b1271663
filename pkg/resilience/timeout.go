package resilience

import (
	"context"
	"fmt"
	"time"
)

type timeoutResult[T any] struct {
	value T
	err   error
}

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. If fn does not return in time, WithTimeout returns the zero
// T and an error wrapping context.DeadlineExceeded; fn's late result is
// discarded. A non-positive timeout calls fn directly.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan timeoutResult[T], 1)
	go func() {
		value, err := fn(timeoutCtx)
		done <- timeoutResult[T]{value: value, err: err}
	}()
	select {
	case res := <-done:
		return res.value, res.err
	case <-timeoutCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}
