package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/faultops/resilience"
)

// Strategy identifies one error-recovery approach.
type Strategy int

const (
	// StrategyRetry re-invokes the primary operation a bounded number of
	// times.
	StrategyRetry Strategy = iota
	// StrategyFallback returns a preconfigured static value.
	StrategyFallback
	// StrategyDegrade returns a reduced-fidelity response registered for
	// the operation name, or an empty default.
	StrategyDegrade
	// StrategyCacheFallback returns an unexpired cached value for the
	// configured key.
	StrategyCacheFallback
	// StrategyDefaultValue returns the configured default value.
	StrategyDefaultValue
	// StrategyQueue defers the failed operation onto a named queue and
	// returns a receipt instead of a real result.
	StrategyQueue
	// StrategyAlternative invokes a configured alternate endpoint.
	StrategyAlternative
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyRetry:
		return "retry"
	case StrategyFallback:
		return "fallback"
	case StrategyDegrade:
		return "graceful-degradation"
	case StrategyCacheFallback:
		return "cache-fallback"
	case StrategyDefaultValue:
		return "default-value"
	case StrategyQueue:
		return "queue-for-later"
	case StrategyAlternative:
		return "alternative-service"
	default:
		return "unknown"
	}
}

// Config configures the recovery manager.
type Config struct {
	// Strategies are tried in order within each recovery attempt; the
	// first one that does not fail wins immediately.
	// Default: [StrategyRetry, StrategyFallback]
	Strategies []Strategy

	// MaxRecoveryAttempts is how many passes over the strategy list are
	// made before giving up.
	// Default: 3
	MaxRecoveryAttempts int

	// RecoveryTimeout bounds the primary operation's direct execution.
	// Default: 5 seconds
	RecoveryTimeout time.Duration

	// RetryAttempts is the bound for StrategyRetry's local re-invocations.
	// Default: 2
	RetryAttempts int

	// RetryDelay is the pause between StrategyRetry re-invocations.
	// Default: 100ms
	RetryDelay time.Duration

	// FallbackValue is returned by StrategyFallback.
	FallbackValue any

	// CacheKey selects the entry consulted by StrategyCacheFallback.
	CacheKey string

	// CacheTTL is the lifetime applied by SetCacheValue.
	// Default: 5 minutes
	CacheTTL time.Duration

	// DefaultValue is returned by StrategyDefaultValue. A nil value is a
	// valid default.
	DefaultValue any

	// QueueName names the deferred queue used by StrategyQueue.
	// Default: "default"
	QueueName string

	// Alternative is the alternate endpoint invoked by StrategyAlternative.
	Alternative resilience.Operation

	// OnRecovery is called when a strategy produces a result.
	OnRecovery func(strategy Strategy, attempt int)

	// OnFailure is called when all attempts are exhausted.
	OnFailure func(errs []error)
}

// Attempt is one entry in the recovery log.
type Attempt struct {
	Strategy  Strategy
	Attempt   int
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
	Err       error
}

// Result describes the outcome of a recovery run.
type Result struct {
	Value        any
	Success      bool
	FallbackUsed bool
	Strategy     Strategy
	Attempts     int
	Errs         []error
}

// Manager orchestrates ordered fallback strategies after a primary failure.
// It owns an expiring value cache and named deferred queues shared across
// runs.
type Manager struct {
	config Config

	mu       sync.Mutex
	log      []Attempt
	degraded map[string]any

	cache  *valueCache
	queues *queueSet
}

// NewManager creates a new recovery manager.
func NewManager(config Config) *Manager {
	// Apply defaults
	if len(config.Strategies) == 0 {
		config.Strategies = []Strategy{StrategyRetry, StrategyFallback}
	}
	if config.MaxRecoveryAttempts <= 0 {
		config.MaxRecoveryAttempts = 3
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 5 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 2
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 100 * time.Millisecond
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.QueueName == "" {
		config.QueueName = "default"
	}

	return &Manager{
		config:   config,
		degraded: make(map[string]any),
		cache:    newValueCache(),
		queues:   newQueueSet(),
	}
}

// Execute runs the primary operation under the recovery timeout and, on
// failure, works through the configured strategies in order. The first
// strategy that does not fail wins immediately. When everything is
// exhausted it returns a failed Result together with an *ExhaustedError.
func (m *Manager) Execute(ctx context.Context, operation string, op resilience.Operation) (*Result, error) {
	value, err := resilience.ExecuteWithTimeout(ctx, m.config.RecoveryTimeout, op)
	if err == nil {
		return &Result{Value: value, Success: true}, nil
	}

	errs := []error{err}

	for attempt := 1; attempt <= m.config.MaxRecoveryAttempts; attempt++ {
		for _, strategy := range m.config.Strategies {
			start := time.Now()
			value, strategyErr := m.runStrategy(ctx, strategy, operation, op)
			m.record(Attempt{
				Strategy:  strategy,
				Attempt:   attempt,
				Timestamp: start,
				Duration:  time.Since(start),
				Success:   strategyErr == nil,
				Err:       strategyErr,
			})

			if strategyErr == nil {
				if m.config.OnRecovery != nil {
					m.config.OnRecovery(strategy, attempt)
				}
				return &Result{
					Value:        value,
					Success:      true,
					FallbackUsed: true,
					Strategy:     strategy,
					Attempts:     attempt,
					Errs:         errs,
				}, nil
			}
			errs = append(errs, strategyErr)
		}
	}

	if m.config.OnFailure != nil {
		m.config.OnFailure(errs)
	}

	result := &Result{
		Success:  false,
		Attempts: m.config.MaxRecoveryAttempts,
		Errs:     errs,
	}
	return result, &ExhaustedError{
		Operation: operation,
		Attempts:  m.config.MaxRecoveryAttempts,
		Errs:      errs,
	}
}

func (m *Manager) runStrategy(ctx context.Context, strategy Strategy, operation string, op resilience.Operation) (any, error) {
	switch strategy {
	case StrategyRetry:
		return m.localRetry(ctx, op)

	case StrategyFallback:
		if m.config.FallbackValue == nil {
			return nil, ErrNoFallbackValue
		}
		return m.config.FallbackValue, nil

	case StrategyDegrade:
		return m.degradedResponse(operation), nil

	case StrategyCacheFallback:
		if m.config.CacheKey == "" {
			return nil, ErrCacheMiss
		}
		value, ok := m.cache.get(m.config.CacheKey)
		if !ok {
			return nil, ErrCacheMiss
		}
		return value, nil

	case StrategyDefaultValue:
		return m.config.DefaultValue, nil

	case StrategyQueue:
		return m.queues.enqueue(m.config.QueueName, operation, op), nil

	case StrategyAlternative:
		if m.config.Alternative == nil {
			return nil, ErrAlternativeNotConfigured
		}
		return m.config.Alternative(ctx)

	default:
		return nil, ErrRecoveryExhausted
	}
}

// localRetry re-invokes the primary operation up to RetryAttempts times with
// a fixed pause. It is deliberately simpler than resilience.Retry: recovery
// retries are a last resort, not a backoff schedule.
func (m *Manager) localRetry(ctx context.Context, op resilience.Operation) (any, error) {
	var lastErr error
	for i := 0; i < m.config.RetryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// RegisterDegraded installs the degraded response returned by
// StrategyDegrade for the given operation name.
func (m *Manager) RegisterDegraded(operation string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded[operation] = value
}

func (m *Manager) degradedResponse(operation string) any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value, ok := m.degraded[operation]; ok {
		return value
	}
	// Nothing registered: an empty collection is the generic degraded shape.
	return map[string]any{}
}

// SetCacheValue stores a value for StrategyCacheFallback under the
// manager-wide TTL.
func (m *Manager) SetCacheValue(key string, value any) {
	m.cache.set(key, value, m.config.CacheTTL)
}

// SetCacheValueTTL stores a value with an explicit TTL.
func (m *Manager) SetCacheValueTTL(key string, value any, ttl time.Duration) {
	m.cache.set(key, value, ttl)
}

func (m *Manager) record(a Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, a)
}

// Log returns a copy of the recovery attempt log.
func (m *Manager) Log() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Attempt, len(m.log))
	copy(out, m.log)
	return out
}

// StrategyMetrics summarizes attempts of one strategy.
type StrategyMetrics struct {
	Strategy        Strategy
	Attempts        int
	Successes       int
	SuccessRate     float64
	AverageDuration time.Duration
}

// Metrics returns per-strategy success rates and durations derived from the
// attempt log, in the configured strategy order.
func (m *Manager) Metrics() []StrategyMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStrategy := make(map[Strategy]*StrategyMetrics)
	totals := make(map[Strategy]time.Duration)
	for _, a := range m.log {
		sm, ok := byStrategy[a.Strategy]
		if !ok {
			sm = &StrategyMetrics{Strategy: a.Strategy}
			byStrategy[a.Strategy] = sm
		}
		sm.Attempts++
		if a.Success {
			sm.Successes++
		}
		totals[a.Strategy] += a.Duration
	}

	out := make([]StrategyMetrics, 0, len(byStrategy))
	for _, strategy := range m.config.Strategies {
		sm, ok := byStrategy[strategy]
		if !ok {
			continue
		}
		sm.SuccessRate = float64(sm.Successes) / float64(sm.Attempts)
		sm.AverageDuration = totals[strategy] / time.Duration(sm.Attempts)
		out = append(out, *sm)
	}
	return out
}
