package middleware

import (
	"time"

	"github.com/jonwraymond/faultops/recovery"
	"github.com/jonwraymond/faultops/resilience"
)

// Config configures the fault-tolerance pipeline. The enable flags select
// which sub-components guard each operation; the embedded configs are
// templates applied to every per-operation instance.
type Config struct {
	// EnableCircuitBreaker gates executions on recent failure ratio.
	EnableCircuitBreaker bool

	// EnableRetry re-executes failed operations with backoff.
	EnableRetry bool

	// EnableRecovery runs the fallback-strategy orchestrator after a
	// failure.
	EnableRecovery bool

	// EnableRateLimit applies the per-client fixed-window admission gate.
	EnableRateLimit bool

	// EnableBulkhead bounds per-operation concurrency.
	EnableBulkhead bool

	// Timeout bounds each direct execution of the wrapped operation. It is
	// the innermost layer of every strategy.
	// Default: 10 seconds
	Timeout time.Duration

	// RateLimitWindow is the fixed admission window.
	// Default: 1 minute
	RateLimitWindow time.Duration

	// RateLimitMaxRequests is the per-client budget per window.
	// Default: 100
	RateLimitMaxRequests int

	// BulkheadMaxConcurrent bounds concurrent executions per operation.
	// Default: 10
	BulkheadMaxConcurrent int

	// BulkheadMaxWait bounds queue time for a bulkhead slot.
	// Default: 0 (wait until cancelled)
	BulkheadMaxWait time.Duration

	// CircuitBreaker is the per-operation breaker template.
	CircuitBreaker resilience.CircuitBreakerConfig

	// Retry is the per-operation retry template.
	Retry resilience.RetryConfig

	// Recovery is the per-operation recovery template.
	Recovery recovery.Config
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.RateLimitMaxRequests <= 0 {
		c.RateLimitMaxRequests = 100
	}
	if c.BulkheadMaxConcurrent <= 0 {
		c.BulkheadMaxConcurrent = 10
	}
	return c
}
