// Package resilience provides failure-handling primitives for outbound
// operations.
//
// The primitives are the building blocks of the fault-tolerance pipeline
// assembled by the middleware package, but each can also be used on its own.
//
// # Patterns
//
//   - Circuit Breaker: a sliding-window state machine that stops calling a
//     failing dependency once the recent failure count crosses a threshold,
//     then probes for recovery after a cooldown.
//
//   - Retry: bounded re-execution with fixed, linear, exponential,
//     Fibonacci, or jittered backoff, an optional wall-clock budget, and
//     cancellation that interrupts mid-delay.
//
//   - Rate Limiter: a per-client fixed-window request counter used as a
//     pure admission gate.
//
//   - Bulkhead: a bounded concurrency semaphore with strict FIFO queueing
//     so one overloaded operation cannot starve others.
//
//   - Timeout: races an operation against a deadline.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 3,
//	    VolumeThreshold:  5,
//	    Timeout:          30 * time.Second,
//	})
//
//	result, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
//	    return callExternalService(ctx)
//	})
//
// Rejections carry typed errors (*CircuitOpenError, *RateLimitError,
// *BulkheadFullError, *RetryExhaustedError, ...) that unwrap to package
// sentinels, so both errors.As and errors.Is work:
//
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    // serve a fallback
//	}
package resilience
