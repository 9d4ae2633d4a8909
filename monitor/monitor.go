package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/faultops/observe"
	"github.com/jonwraymond/faultops/resilience"
)

// FailureType classifies a recorded failure.
type FailureType string

const (
	FailureOperation      FailureType = "operation-error"
	FailureTimeout        FailureType = "timeout"
	FailureCircuitOpen    FailureType = "circuit-open"
	FailureRateLimit      FailureType = "rate-limit"
	FailureBulkhead       FailureType = "bulkhead-full"
	FailureRetryExhausted FailureType = "retry-exhausted"
	FailureRetryTimeout   FailureType = "retry-timeout"
	FailureRetryAborted   FailureType = "retry-aborted"
	FailureRecovery       FailureType = "recovery-exhausted"
)

// ClassifyError maps a pipeline error onto a FailureType using the typed
// error contract rather than message sniffing.
func ClassifyError(err error) FailureType {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return FailureCircuitOpen
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return FailureRateLimit
	case errors.Is(err, resilience.ErrBulkheadFull):
		return FailureBulkhead
	case errors.Is(err, resilience.ErrRetryExhausted):
		return FailureRetryExhausted
	case errors.Is(err, resilience.ErrRetryTimeout):
		return FailureRetryTimeout
	case errors.Is(err, resilience.ErrRetryAborted):
		return FailureRetryAborted
	case errors.Is(err, resilience.ErrTimeout):
		return FailureTimeout
	default:
		return FailureOperation
	}
}

// FailureRecord is one durable-within-process failure event.
type FailureRecord struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	Operation        string        `json:"operation"`
	FailureType      FailureType   `json:"failure_type"`
	ErrorMessage     string        `json:"error_message"`
	Duration         time.Duration `json:"duration"`
	RetryAttempts    int           `json:"retry_attempts"`
	RecoveryStrategy string        `json:"recovery_strategy,omitempty"`
	BreakerState     string        `json:"breaker_state,omitempty"`
}

// Config configures the monitoring service.
type Config struct {
	// MaxHistory bounds the failure ring; the oldest records are trimmed
	// past it.
	// Default: 1000
	MaxHistory int

	// Window is the default metrics and alert-evaluation window.
	// Default: 1 minute
	Window time.Duration

	// DisableAlerts turns off alert evaluation on RecordFailure.
	DisableAlerts bool

	// HousekeepingInterval is how often the background loop logs health
	// and trims stale history and alerts.
	// Default: 1 minute
	HousekeepingInterval time.Duration

	// Logger receives housekeeping and alert logs.
	// Default: a no-op logger.
	Logger observe.Logger
}

// Service is the process-wide failure aggregator. It records failure events
// from any component, computes windowed metrics, and evaluates alert
// conditions with per-condition cooldowns.
type Service struct {
	config Config

	mu          sync.Mutex
	history     []FailureRecord
	conditions  []*AlertCondition
	alerts      []Alert
	subscribers []func(Alert)

	runMu sync.Mutex
	done  chan struct{}
}

// NewService creates a monitoring service with the five default alert
// conditions pre-registered.
func NewService(config Config) *Service {
	// Apply defaults
	if config.MaxHistory <= 0 {
		config.MaxHistory = 1000
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.HousekeepingInterval <= 0 {
		config.HousekeepingInterval = time.Minute
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	s := &Service{config: config}
	for _, cond := range defaultConditions() {
		s.conditions = append(s.conditions, cond)
	}
	return s
}

// RecordFailure appends a failure to the bounded history and, unless
// alerting is disabled, evaluates the alert conditions. Missing ID and
// Timestamp fields are filled in.
func (s *Service) RecordFailure(rec FailureRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.history = append(s.history, rec)
	if excess := len(s.history) - s.config.MaxHistory; excess > 0 {
		s.history = append(s.history[:0], s.history[excess:]...)
	}

	var fired []Alert
	if !s.config.DisableAlerts {
		fired = s.evaluateLocked(time.Now())
	}
	s.mu.Unlock()

	s.notify(fired)
}

// RecentFailures returns up to count most recent failures, newest first.
func (s *Service) RecentFailures(count int) []FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 || count > len(s.history) {
		count = len(s.history)
	}

	out := make([]FailureRecord, 0, count)
	for i := len(s.history) - 1; i >= len(s.history)-count; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// FailuresByOperation returns all retained failures for one operation.
func (s *Service) FailuresByOperation(operation string) []FailureRecord {
	return s.filter(func(rec FailureRecord) bool { return rec.Operation == operation })
}

// FailuresByType returns all retained failures of one type.
func (s *Service) FailuresByType(t FailureType) []FailureRecord {
	return s.filter(func(rec FailureRecord) bool { return rec.FailureType == t })
}

func (s *Service) filter(keep func(FailureRecord) bool) []FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FailureRecord
	for _, rec := range s.history {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Start launches the background housekeeping loop. It returns immediately;
// the loop runs until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.done != nil {
		return // already running
	}
	s.done = make(chan struct{})

	go s.housekeeping(ctx, s.done)
}

// Stop terminates the housekeeping loop. Idempotent.
func (s *Service) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *Service) housekeeping(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.housekeep(ctx)
		}
	}
}

// housekeep logs a health summary and trims history and resolved alerts
// older than 24 monitoring windows.
func (s *Service) housekeep(ctx context.Context) {
	cutoff := time.Now().Add(-24 * s.config.Window)

	s.mu.Lock()
	i := 0
	for i < len(s.history) && s.history[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.history = append(s.history[:0], s.history[i:]...)
	}

	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if a.Resolved && a.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	s.alerts = kept

	historyLen := len(s.history)
	activeAlerts := 0
	for _, a := range s.alerts {
		if !a.Resolved {
			activeAlerts++
		}
	}
	m := s.metricsLocked(s.config.Window, time.Now())
	s.mu.Unlock()

	s.config.Logger.Info(ctx, "monitoring health",
		observe.Field{Key: "failures_retained", Value: historyLen},
		observe.Field{Key: "failures_in_window", Value: m.TotalFailures},
		observe.Field{Key: "failure_rate_per_min", Value: m.FailureRate},
		observe.Field{Key: "active_alerts", Value: activeAlerts},
	)
}
