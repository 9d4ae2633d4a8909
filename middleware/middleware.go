package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/faultops/monitor"
	"github.com/jonwraymond/faultops/observe"
	"github.com/jonwraymond/faultops/recovery"
	"github.com/jonwraymond/faultops/resilience"
)

// Middleware is the composition root of the resilience pipeline. For each
// operation name it lazily builds exactly one circuit breaker, retry
// handler, recovery manager, rate limiter, and bulkhead, retained for the
// process lifetime.
//
// It is an explicitly constructed container: build one at application
// startup and pass it to call sites. There is no package-level instance.
type Middleware struct {
	config  Config
	monitor *monitor.Service
	inst    *observe.Instrumentation
	logger  observe.Logger

	mu    sync.RWMutex
	ops   map[string]*operationSet
	group singleflight.Group
}

// operationSet holds the per-operation component instances.
type operationSet struct {
	name     string
	breaker  *resilience.CircuitBreaker
	retry    *resilience.Retry
	recovery *recovery.Manager
	limiter  *resilience.RateLimiter
	bulkhead *resilience.Bulkhead
	timeout  *resilience.Timeout
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithMonitor wires the failure monitoring service. Without it failures
// are not aggregated.
func WithMonitor(svc *monitor.Service) Option {
	return func(m *Middleware) {
		m.monitor = svc
	}
}

// WithInstrumentation wires tracing, metrics, and logging around each
// execution.
func WithInstrumentation(inst *observe.Instrumentation) Option {
	return func(m *Middleware) {
		m.inst = inst
	}
}

// WithLogger overrides the logger used for pipeline events.
func WithLogger(logger observe.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// New creates a middleware container.
func New(config Config, opts ...Option) *Middleware {
	m := &Middleware{
		config: config.withDefaults(),
		ops:    make(map[string]*operationSet),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.inst == nil {
		m.inst = observe.NopInstrumentation()
	}
	if m.logger == nil {
		m.logger = m.inst.Logger()
	}
	return m
}

// forOperation returns the memoized component set for an operation,
// building it on first use. Construction is singleflight-guarded so
// concurrent first calls share one instance.
func (m *Middleware) forOperation(name string) *operationSet {
	m.mu.RLock()
	set, ok := m.ops[name]
	m.mu.RUnlock()
	if ok {
		return set
	}

	v, _, _ := m.group.Do(name, func() (any, error) {
		m.mu.RLock()
		set, ok := m.ops[name]
		m.mu.RUnlock()
		if ok {
			return set, nil
		}

		set = m.buildOperation(name)
		m.mu.Lock()
		m.ops[name] = set
		m.mu.Unlock()
		return set, nil
	})
	return v.(*operationSet)
}

func (m *Middleware) buildOperation(name string) *operationSet {
	meta := observe.OpMeta{Name: name, Component: "circuit-breaker"}

	breakerCfg := m.config.CircuitBreaker
	userCallback := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(state resilience.State, metrics resilience.CircuitBreakerMetrics) {
		m.inst.Metrics().RecordStateChange(context.Background(), meta, state.String())
		m.logger.WithOperation(meta).Info(context.Background(), "circuit breaker state changed",
			observe.Field{Key: "state", Value: state.String()},
			observe.Field{Key: "failures", Value: metrics.Failures},
			observe.Field{Key: "requests", Value: metrics.TotalRequests},
		)
		if userCallback != nil {
			userCallback(state, metrics)
		}
	}

	return &operationSet{
		name:     name,
		breaker:  resilience.NewCircuitBreaker(breakerCfg),
		retry:    resilience.NewRetry(m.config.Retry),
		recovery: recovery.NewManager(m.config.Recovery),
		limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			MaxRequests: m.config.RateLimitMaxRequests,
			Window:      m.config.RateLimitWindow,
		}),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: m.config.BulkheadMaxConcurrent,
			MaxWait:       m.config.BulkheadMaxWait,
		}),
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: m.config.Timeout}),
	}
}

// Execute runs the operation through the pipeline: rate limit, bulkhead,
// then the enabled execution strategy (circuit breaker wrapping retry
// wrapping recovery wrapping timeout; disabled layers drop out). It returns
// the operation's result or one of the typed resilience errors.
func (m *Middleware) Execute(ctx context.Context, operation, clientID string, op resilience.Operation) (any, error) {
	set := m.forOperation(operation)
	meta := observe.OpMeta{Name: operation, ClientID: clientID}

	// Admission gates reject before any work happens; their violations
	// never count as circuit-breaker failures.
	if m.config.EnableRateLimit {
		if err := set.limiter.Admit(clientID); err != nil {
			m.inst.Metrics().RecordRejection(ctx, meta, "rate-limit")
			m.recordFailure(operation, err, 0, pipelineOutcome{})
			return nil, err
		}
	}

	if m.config.EnableBulkhead {
		if err := set.bulkhead.Acquire(ctx); err != nil {
			m.inst.Metrics().RecordRejection(ctx, meta, "bulkhead")
			m.recordFailure(operation, err, 0, pipelineOutcome{})
			return nil, err
		}
		defer set.bulkhead.Release()
	}

	var outcome pipelineOutcome
	execute := m.buildChain(set, operation, op, &outcome)

	start := time.Now()
	result, err := m.inst.Wrap(meta, observe.ExecuteFunc(execute))(ctx)
	if err != nil {
		if m.config.EnableCircuitBreaker {
			outcome.breakerState = set.breaker.State().String()
		}
		m.recordFailure(operation, err, time.Since(start), outcome)
		return nil, err
	}
	return result, nil
}

// pipelineOutcome collects per-invocation details for failure records.
type pipelineOutcome struct {
	retryAttempts    int
	recoveryStrategy string
	breakerState     string
}

// buildChain nests the enabled strategies around the operation, innermost
// first: timeout, recovery, retry, circuit breaker.
func (m *Middleware) buildChain(set *operationSet, operation string, op resilience.Operation, outcome *pipelineOutcome) resilience.Operation {
	execute := func(ctx context.Context) (any, error) {
		return set.timeout.Execute(ctx, op)
	}

	if m.config.EnableRecovery {
		inner := execute
		execute = func(ctx context.Context) (any, error) {
			res, err := set.recovery.Execute(ctx, operation, inner)
			if err != nil {
				return nil, err
			}
			if res.FallbackUsed {
				outcome.recoveryStrategy = res.Strategy.String()
			}
			return res.Value, nil
		}
	}

	if m.config.EnableRetry {
		inner := execute
		execute = func(ctx context.Context) (any, error) {
			res, err := set.retry.Execute(ctx, inner)
			if err != nil {
				outcome.retryAttempts = retryAttemptsFromError(err)
				return nil, err
			}
			outcome.retryAttempts = res.Attempts
			return res.Value, nil
		}
	}

	if m.config.EnableCircuitBreaker {
		inner := execute
		execute = func(ctx context.Context) (any, error) {
			return set.breaker.Execute(ctx, inner)
		}
	}

	return execute
}

func retryAttemptsFromError(err error) int {
	var exhausted *resilience.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	var timedOut *resilience.RetryTimeoutError
	if errors.As(err, &timedOut) {
		return timedOut.Attempts
	}
	var aborted *resilience.RetryAbortedError
	if errors.As(err, &aborted) {
		return aborted.Attempts
	}
	return 1
}

func (m *Middleware) recordFailure(operation string, err error, duration time.Duration, outcome pipelineOutcome) {
	if m.monitor == nil {
		return
	}

	m.monitor.RecordFailure(monitor.FailureRecord{
		Operation:        operation,
		FailureType:      monitor.ClassifyError(err),
		ErrorMessage:     err.Error(),
		Duration:         duration,
		RetryAttempts:    outcome.retryAttempts,
		RecoveryStrategy: outcome.recoveryStrategy,
		BreakerState:     outcome.breakerState,
	})
}

// Recovery returns the operation's recovery manager so callers can seed
// the fallback cache, register degraded responses, or drain deferred
// queues.
func (m *Middleware) Recovery(operation string) *recovery.Manager {
	return m.forOperation(operation).recovery
}

// Breaker returns the operation's circuit breaker.
func (m *Middleware) Breaker(operation string) *resilience.CircuitBreaker {
	return m.forOperation(operation).breaker
}

// Operations lists the operation names with built component sets.
func (m *Middleware) Operations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.ops))
	for name := range m.ops {
		names = append(names, name)
	}
	return names
}
