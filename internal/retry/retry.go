package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Action tells Do what to do with a failed attempt.
type Action int

const (
	Stop  Action = iota // permanent error, return immediately
	Retry               // transient error, wait and run again
)

// Policy controls how many times and how slowly an operation is retried.
type Policy struct {
	MaxRetries int
	Step       time.Duration
	Clock      clockwork.Clock
	OnRetry    func(retry int, err error, delay time.Duration)
}

// Delay returns the wait before the given 1-based retry.
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return time.Duration(retry) * p.Step
}

type Classify func(err error) Action
type Operation[T any] func(ctx context.Context) (T, error)

// Do runs op until it succeeds, classify returns Stop, retries are exhausted,
// or ctx is done.
func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		var zero T
		if classify(err) == Stop {
			return zero, &PermanentError{Err: err}
		}
		if attempt >= maxRetries {
			return zero, &ExhaustedError{Retries: maxRetries, Err: err}
		}

		retry := attempt + 1
		delay := p.Delay(retry)
		if p.OnRetry != nil {
			p.OnRetry(retry, err, delay)
		}

		timer := clock.NewTimer(delay)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// PermanentError wraps an error classified as Stop.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError wraps the last error once all retries are used.
type ExhaustedError struct {
	Retries int
	Err     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
