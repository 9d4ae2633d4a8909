package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/faultops/observe"
)

// Severity is the severity of an alert condition.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertCondition is an evaluated predicate over the current metrics window
// and the last hour of failures. A condition fires at most once per its
// cooldown regardless of how many qualifying failures accumulate within it.
type AlertCondition struct {
	// ID identifies the condition; firing alerts reference it.
	ID string

	// Description is used as the alert message.
	Description string

	// Severity of alerts produced by this condition.
	Severity Severity

	// Cooldown is the minimum interval between two firings.
	// Default: 10 minutes
	Cooldown time.Duration

	// Predicate decides whether the condition currently holds. metrics is
	// computed over the service's default window; recent holds the last
	// hour of failures.
	Predicate func(metrics Metrics, recent []FailureRecord) bool

	lastTriggered time.Time
}

// Alert is one firing instance of a condition. Acknowledge and resolve are
// idempotent; resolved is terminal.
type Alert struct {
	ID           string    `json:"id"`
	ConditionID  string    `json:"condition_id"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
	Resolved     bool      `json:"resolved"`
}

// defaultConditions returns the five pre-registered alert conditions.
func defaultConditions() []*AlertCondition {
	return []*AlertCondition{
		{
			ID:          "high-failure-rate",
			Description: "failure rate exceeded 10 failures per minute",
			Severity:    SeverityWarning,
			Cooldown:    10 * time.Minute,
			Predicate: func(m Metrics, _ []FailureRecord) bool {
				return m.FailureRate > 10
			},
		},
		{
			ID:          "breaker-trips",
			Description: "more than 3 circuit breaker trips in 10 minutes",
			Severity:    SeverityCritical,
			Cooldown:    10 * time.Minute,
			Predicate: func(_ Metrics, recent []FailureRecord) bool {
				cutoff := time.Now().Add(-10 * time.Minute)
				trips := 0
				for _, rec := range recent {
					if rec.BreakerState == "open" && !rec.Timestamp.Before(cutoff) {
						trips++
					}
				}
				return trips > 3
			},
		},
		{
			ID:          "low-recovery-rate",
			Description: "recovery success rate dropped below 80%",
			Severity:    SeverityWarning,
			Cooldown:    15 * time.Minute,
			Predicate: func(m Metrics, _ []FailureRecord) bool {
				// A window without recovery-tagged records carries no
				// signal; a measured 0% rate does.
				return m.RecoverySamples > 0 && m.RecoverySuccessRate < 0.8
			},
		},
		{
			ID:          "operation-failure-spike",
			Description: "a single operation exceeded 50 failures",
			Severity:    SeverityCritical,
			Cooldown:    10 * time.Minute,
			Predicate: func(_ Metrics, recent []FailureRecord) bool {
				perOp := make(map[string]int)
				for _, rec := range recent {
					perOp[rec.Operation]++
					if perOp[rec.Operation] > 50 {
						return true
					}
				}
				return false
			},
		},
		{
			ID:          "hourly-failure-volume",
			Description: "more than 100 failures in the last hour",
			Severity:    SeverityCritical,
			Cooldown:    30 * time.Minute,
			Predicate: func(_ Metrics, recent []FailureRecord) bool {
				return len(recent) > 100
			},
		},
	}
}

// RegisterCondition adds a custom alert condition.
func (s *Service) RegisterCondition(cond AlertCondition) {
	if cond.Cooldown <= 0 {
		cond.Cooldown = 10 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditions = append(s.conditions, &cond)
}

// Subscribe registers a callback invoked for every fired alert.
func (s *Service) Subscribe(fn func(Alert)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Alerts returns a copy of the alert list, optionally including resolved
// ones.
func (s *Service) Alerts(includeResolved bool) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if !includeResolved && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Acknowledge marks an alert as acknowledged. Idempotent; returns false
// when the alert is unknown.
func (s *Service) Acknowledge(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// Resolve marks an alert as resolved. Idempotent and terminal; returns
// false when the alert is unknown.
func (s *Service) Resolve(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Resolved = true
			return true
		}
	}
	return false
}

// evaluateLocked checks every condition against the current window and
// fires those whose cooldown has lapsed. Callers must hold s.mu; the fired
// alerts are returned for notification outside the lock.
func (s *Service) evaluateLocked(now time.Time) []Alert {
	m := s.metricsLocked(s.config.Window, now)

	hourCutoff := now.Add(-time.Hour)
	var recent []FailureRecord
	for _, rec := range s.history {
		if !rec.Timestamp.Before(hourCutoff) {
			recent = append(recent, rec)
		}
	}

	var fired []Alert
	for _, cond := range s.conditions {
		if !cond.lastTriggered.IsZero() && now.Sub(cond.lastTriggered) < cond.Cooldown {
			continue
		}
		if !cond.Predicate(m, recent) {
			continue
		}

		cond.lastTriggered = now
		alert := Alert{
			ID:          uuid.NewString(),
			ConditionID: cond.ID,
			Severity:    cond.Severity,
			Message:     cond.Description,
			Timestamp:   now,
		}
		s.alerts = append(s.alerts, alert)
		fired = append(fired, alert)
	}
	return fired
}

// notify delivers fired alerts to subscribers without holding s.mu.
func (s *Service) notify(fired []Alert) {
	if len(fired) == 0 {
		return
	}

	s.mu.Lock()
	subs := make([]func(Alert), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	ctx := context.Background()
	for _, alert := range fired {
		s.config.Logger.Warn(ctx, "alert fired",
			observe.Field{Key: "alert_id", Value: alert.ID},
			observe.Field{Key: "condition", Value: alert.ConditionID},
			observe.Field{Key: "severity", Value: string(alert.Severity)},
			observe.Field{Key: "message", Value: alert.Message},
		)
		for _, fn := range subs {
			fn(alert)
		}
	}
}

// String implements fmt.Stringer for log readability.
func (a Alert) String() string {
	return fmt.Sprintf("[%s] %s: %s", a.Severity, a.ConditionID, a.Message)
}
