package middleware

import (
	"sort"

	"github.com/jonwraymond/faultops/recovery"
	"github.com/jonwraymond/faultops/resilience"
)

// OperationMetrics aggregates the per-operation component statistics.
type OperationMetrics struct {
	Operation      string
	CircuitBreaker resilience.CircuitBreakerMetrics
	RateLimiter    []resilience.ClientStats
	Bulkhead       resilience.BulkheadMetrics
	Recovery       []recovery.StrategyMetrics
}

// OperationMetrics returns the aggregated stats for one operation. The
// second return is false when no pipeline was ever built for the name.
func (m *Middleware) OperationMetrics(operation string) (OperationMetrics, bool) {
	m.mu.RLock()
	set, ok := m.ops[operation]
	m.mu.RUnlock()
	if !ok {
		return OperationMetrics{}, false
	}

	return OperationMetrics{
		Operation:      operation,
		CircuitBreaker: set.breaker.Metrics(),
		RateLimiter:    set.limiter.Stats(),
		Bulkhead:       set.bulkhead.Metrics(),
		Recovery:       set.recovery.Metrics(),
	}, true
}

// Metrics returns aggregated stats for every built operation, sorted by
// name.
func (m *Middleware) Metrics() []OperationMetrics {
	names := m.Operations()
	sort.Strings(names)

	out := make([]OperationMetrics, 0, len(names))
	for _, name := range names {
		if om, ok := m.OperationMetrics(name); ok {
			out = append(out, om)
		}
	}
	return out
}
