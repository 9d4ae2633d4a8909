package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations. The typed errors below unwrap
// to these so callers can match with errors.Is without losing the payload.
var (
	// ErrCircuitOpen is returned when the circuit breaker denies execution.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetryExhausted is returned when all retry attempts have failed.
	ErrRetryExhausted = errors.New("resilience: retry attempts exhausted")

	// ErrRetryTimeout is returned when the retry loop exceeds its time budget.
	ErrRetryTimeout = errors.New("resilience: retry timed out")

	// ErrRetryAborted is returned when the retry loop is cancelled externally.
	ErrRetryAborted = errors.New("resilience: retry aborted")

	// ErrRateLimitExceeded is returned when a client exceeds its request window.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead cannot admit more work.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// CircuitOpenError is returned when the circuit breaker rejects a call.
// It carries the state and a metrics snapshot taken at rejection time.
type CircuitOpenError struct {
	State   State
	Metrics CircuitBreakerMetrics
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker is %s (%d/%d requests failed in window)",
		e.State, e.Metrics.Failures, e.Metrics.TotalRequests)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// RetryExhaustedError is returned when every attempt failed. Errs holds the
// underlying errors in attempt order.
type RetryExhaustedError struct {
	Attempts int
	Errs     []error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("resilience: all %d retry attempts failed: %v", e.Attempts, e.lastErr())
}

func (e *RetryExhaustedError) Unwrap() error { return ErrRetryExhausted }

func (e *RetryExhaustedError) lastErr() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

// RetryTimeoutError is returned when the retry loop overran its wall-clock
// budget before succeeding.
type RetryTimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	Errs     []error
}

func (e *RetryTimeoutError) Error() string {
	return fmt.Sprintf("resilience: retry timed out after %v (%d attempts)", e.Elapsed, e.Attempts)
}

func (e *RetryTimeoutError) Unwrap() error { return ErrRetryTimeout }

// RetryAbortedError is returned when cancellation terminated the retry loop,
// either mid-delay or between attempts.
type RetryAbortedError struct {
	Attempts int
	Errs     []error
	Cause    error
}

func (e *RetryAbortedError) Error() string {
	return fmt.Sprintf("resilience: retry aborted after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *RetryAbortedError) Unwrap() error { return ErrRetryAborted }

// RateLimitError is returned when a client exceeds its fixed request window.
// RetryAfter is the time until the oldest counted request leaves the window.
type RateLimitError struct {
	ClientID   string
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resilience: rate limit exceeded for client %q (%d per %v)",
		e.ClientID, e.Limit, e.Window)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// BulkheadFullError is returned when a bulkhead rejects admission.
type BulkheadFullError struct {
	Active        int
	Queued        int
	MaxConcurrent int
}

func (e *BulkheadFullError) Error() string {
	return fmt.Sprintf("resilience: bulkhead at capacity (%d active, %d queued, max %d)",
		e.Active, e.Queued, e.MaxConcurrent)
}

func (e *BulkheadFullError) Unwrap() error { return ErrBulkheadFull }
