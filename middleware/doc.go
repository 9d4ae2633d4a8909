// Package middleware composes the resilience primitives into a per-operation
// fault-tolerance pipeline.
//
// Each named operation gets exactly one circuit breaker, retry handler,
// recovery manager, rate limiter, and bulkhead, built on first use and
// retained for the process lifetime. Every invocation flows through a fixed
// order: rate limit, bulkhead, then the enabled execution strategies
// (circuit breaker wrapping retry wrapping recovery wrapping timeout),
// with disabled layers dropping out of the nest. Enabled layers stack
// rather than select: enabling retry and recovery together makes every
// retry attempt run the full recovery pipeline.
//
//	mw := middleware.New(middleware.Config{
//	    EnableCircuitBreaker: true,
//	    EnableRetry:          true,
//	    EnableRateLimit:      true,
//	    Timeout:              5 * time.Second,
//	}, middleware.WithMonitor(monitorSvc))
//
//	result, err := mw.Execute(ctx, "fetch-profile", clientID, func(ctx context.Context) (any, error) {
//	    return profileClient.Get(ctx, id)
//	})
//
// Failures are classified by their typed errors and recorded into the
// monitoring service; admission rejections are surfaced before any work
// happens and never count as circuit-breaker failures.
package middleware
