// Package retry provides bounded retries with exponential backoff on top of
// the gax retry loop used by the Google API clients.
package retry

import (
	"context"
	"errors"
	"time"

	gax "github.com/googleapis/gax-go/v2"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Maximum number of attempts, at least 1
	InitialWait time.Duration // Upper bound of the wait before the second attempt
	MaxWait     time.Duration // Upper bound for a single wait
	Multiplier  float64       // Backoff multiplier

	// RetryIf decides whether an error is worth another attempt.
	// Nil means only errors wrapped with Retryable are retried.
	RetryIf func(error) bool
}

// DefaultConfig returns the bounds used for read-only Drive calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 250 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryableError wraps an error that should be retried.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return e.Err.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error was marked retryable.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps an error to mark it as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err}
}

// retryer stops gax's loop after MaxAttempts calls or on an error RetryIf rejects
type retryer struct {
	backoff gax.Backoff
	retryIf func(error) bool
	left    int
}

func newRetryer(cfg Config) *retryer {
	r := &retryer{
		backoff: gax.Backoff{
			Initial:    cfg.InitialWait,
			Max:        cfg.MaxWait,
			Multiplier: cfg.Multiplier,
		},
		retryIf: cfg.RetryIf,
		left:    max(cfg.MaxAttempts, 1),
	}
	if r.retryIf == nil {
		r.retryIf = IsRetryable
	}
	return r
}

// Retry implements gax.Retryer
func (r *retryer) Retry(err error) (time.Duration, bool) {
	if r.left <= 1 || !r.retryIf(err) {
		return 0, false
	}
	r.left--
	return r.backoff.Pause(), true
}

// Do executes fn with retries.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn with retries and returns its result. The error
// returned after the last attempt is the one fn produced, with any
// RetryableError marker removed. Waits are cut short by ctx.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		r, err := fn()
		if err != nil {
			return err
		}
		result = r
		return nil
	}, gax.WithRetry(func() gax.Retryer { return newRetryer(cfg) }))
	if err != nil {
		var zero T
		if retryable, ok := err.(RetryableError); ok {
			return zero, retryable.Err
		}
		return zero, err
	}
	return result, nil
}
