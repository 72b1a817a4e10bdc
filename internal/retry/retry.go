// Package retry provides a generic call-with-backoff executor for remote
// operations. Retries are strictly local to one call: no jitter, no
// circuit breaker, no shared state between calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults applied when an Executor field is zero.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// RemoteCallError wraps the last underlying error after the attempt
// budget is exhausted.
type RemoteCallError struct {
	Attempts int
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// Retryable marks an error as worth retrying. Remote clients wrap
// rate-limit and server-side failures with this.
type Retryable struct {
	Err error
}

func (e *Retryable) Error() string {
	return e.Err.Error()
}

func (e *Retryable) Unwrap() error {
	return e.Err
}

// MarkRetryable wraps err so IsRetryable reports true for it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &Retryable{Err: err}
}

// IsRetryable classifies an error as transient. Rate limiting, server-side
// conditions and connection resets/timeouts qualify; anything else
// surfaces immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var marked *Retryable
	if errors.As(err, &marked) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return false
}

// Executor retries an operation with exponential backoff.
type Executor struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Operation names the wrapped call in logs and metrics.
	Operation string
	// OnRetry, if set, is invoked before each re-attempt.
	OnRetry func(operation string)
}

// Do invokes op up to MaxAttempts times. Non-retryable errors surface
// immediately; exhausting the budget returns the last error wrapped as
// *RemoteCallError. The backoff delay doubles each attempt, starting at
// InitialDelay.
func Do[T any](ctx context.Context, e Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := e.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Str("operation", e.Operation).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Transient remote failure, retrying")

		if e.OnRetry != nil {
			e.OnRetry(e.Operation)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return zero, &RemoteCallError{Attempts: maxAttempts, Err: lastErr}
}
