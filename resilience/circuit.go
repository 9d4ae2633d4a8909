package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Operation is a unit of work guarded by the resilience primitives.
type Operation func(ctx context.Context) (any, error)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateListener is notified synchronously on every state transition with the
// new state and a metrics snapshot taken at transition time.
type StateListener func(state State, metrics CircuitBreakerMetrics)

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures within the monitoring
	// window required to open the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit. It also caps how many trial requests
	// the half-open state admits.
	// Default: 2
	SuccessThreshold int

	// Timeout is how long an open circuit blocks before admitting a probe.
	// Default: 60 seconds
	Timeout time.Duration

	// MonitoringPeriod is the sliding window over which request outcomes
	// are retained and thresholds evaluated.
	// Default: 10 seconds
	MonitoringPeriod time.Duration

	// VolumeThreshold is the minimum number of requests in the window
	// before failure counting can open the circuit.
	// Default: 10
	VolumeThreshold int

	// ErrorFilter determines whether an error counts toward the failure
	// tally. Errors it rejects still propagate to the caller but do not
	// affect circuit health.
	// Default: all non-nil errors count.
	ErrorFilter func(err error) bool

	// OnStateChange is called on every state transition.
	OnStateChange StateListener
}

// requestRecord is one execution outcome inside the sliding window.
type requestRecord struct {
	timestamp time.Time
	success   bool
	duration  time.Duration
	err       error
}

// CircuitBreaker implements a sliding-window circuit breaker. All mutation
// of the window and all transition checks happen under one mutex, so state
// changes are immediately visible to the next call on the same instance.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             State
	window            []requestRecord
	openedAt          time.Time
	halfOpenAdmitted  int
	halfOpenSuccesses int
	listeners         []StateListener
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = 10 * time.Second
	}
	if config.VolumeThreshold <= 0 {
		config.VolumeThreshold = 10
	}
	if config.ErrorFilter == nil {
		config.ErrorFilter = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker. It returns the
// operation's result, a *CircuitOpenError if the breaker denied the call,
// or the operation's own error if it ran and failed.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := cb.beforeRequest(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := op(ctx)
	cb.afterRequest(err, time.Since(start))
	return result, err
}

// ExecuteWithFallback runs the operation and routes circuit-open rejections
// into the supplied fallback. The operation's own errors still propagate.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op, fallback Operation) (any, error) {
	result, err := cb.Execute(ctx, op)
	if err != nil {
		var openErr *CircuitOpenError
		if errors.As(err, &openErr) {
			return fallback(ctx)
		}
	}
	return result, err
}

// AddListener registers a listener invoked on every state transition, after
// the configured OnStateChange callback.
func (cb *CircuitBreaker) AddListener(l StateListener) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, l)
}

// State returns the current circuit state, applying the open-timeout
// transition if it is due.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.Timeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

// Reset returns the circuit breaker to closed state and clears the window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.window = nil
	cb.halfOpenAdmitted = 0
	cb.halfOpenSuccesses = 0
	if cb.state != StateClosed {
		cb.transitionLocked(StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked(time.Now())

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.Timeout {
			return &CircuitOpenError{State: cb.state, Metrics: cb.metricsLocked()}
		}
		// Timeout elapsed: the next call probes the dependency.
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenAdmitted++

	case StateHalfOpen:
		if cb.halfOpenAdmitted >= cb.config.SuccessThreshold {
			return &CircuitOpenError{State: cb.state, Metrics: cb.metricsLocked()}
		}
		cb.halfOpenAdmitted++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	failure := err != nil && cb.config.ErrorFilter(err)

	rec := requestRecord{
		timestamp: now,
		success:   !failure,
		duration:  duration,
	}
	if failure {
		rec.err = err
	}
	cb.window = append(cb.window, rec)
	cb.pruneLocked(now)

	switch cb.state {
	case StateClosed:
		total, failures := cb.countLocked()
		if total >= cb.config.VolumeThreshold && failures >= cb.config.FailureThreshold {
			cb.openedAt = now
			cb.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		if failure {
			// Probe failed: re-open and restart the cooldown clock.
			cb.openedAt = now
			cb.transitionLocked(StateOpen)
			return
		}
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
			cb.window = nil
			cb.transitionLocked(StateClosed)
		}
	}
}

// transitionLocked changes state and notifies callbacks. Callers must hold
// cb.mu; listeners therefore must not call back into this breaker.
func (cb *CircuitBreaker) transitionLocked(state State) {
	cb.state = state
	if state == StateHalfOpen {
		cb.halfOpenAdmitted = 0
		cb.halfOpenSuccesses = 0
	}

	snapshot := cb.metricsLocked()
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(state, snapshot)
	}
	for _, l := range cb.listeners {
		l(state, snapshot)
	}
}

func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.config.MonitoringPeriod)
	i := 0
	for i < len(cb.window) && cb.window[i].timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.window = append(cb.window[:0], cb.window[i:]...)
	}
}

func (cb *CircuitBreaker) countLocked() (total, failures int) {
	for _, rec := range cb.window {
		total++
		if !rec.success {
			failures++
		}
	}
	return total, failures
}

func (cb *CircuitBreaker) metricsLocked() CircuitBreakerMetrics {
	total, failures := cb.countLocked()

	var failureRate float64
	var totalDuration time.Duration
	if total > 0 {
		failureRate = float64(failures) / float64(total)
		for _, rec := range cb.window {
			totalDuration += rec.duration
		}
	}

	m := CircuitBreakerMetrics{
		State:         cb.state,
		TotalRequests: total,
		Failures:      failures,
		Successes:     total - failures,
		FailureRate:   failureRate,
		OpenedAt:      cb.openedAt,
	}
	if total > 0 {
		m.AverageDuration = totalDuration / time.Duration(total)
	}
	return m
}

// Metrics returns metrics recomputed from the current window. It is never
// served from a stale cache.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked(time.Now())
	return cb.metricsLocked()
}

// CircuitBreakerMetrics contains circuit breaker statistics derived from
// the sliding window.
type CircuitBreakerMetrics struct {
	State           State
	TotalRequests   int
	Failures        int
	Successes       int
	FailureRate     float64
	AverageDuration time.Duration
	OpenedAt        time.Time
}
