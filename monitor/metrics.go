package monitor

import (
	"sort"
	"time"
)

// recoveryGracePeriod is the heuristic horizon used for recovery and retry
// success rates: a failure counts as recovered when no failure of the same
// operation recurs within it. An approximation, not ground truth.
const recoveryGracePeriod = 60 * time.Second

// TypeShare is one entry of the most-common-failure-types ranking.
type TypeShare struct {
	Type       FailureType `json:"type"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
}

// Percentiles holds time-to-recovery percentiles.
type Percentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// Metrics is the windowed failure summary. It is recomputed from the
// retained history on every call; nothing is cached.
type Metrics struct {
	Window                 time.Duration       `json:"window"`
	TotalFailures          int                 `json:"total_failures"`
	FailureRate            float64             `json:"failure_rate_per_min"`
	AverageFailureDuration time.Duration       `json:"average_failure_duration"`
	ByType                 map[FailureType]int `json:"by_type"`
	ByOperation            map[string]int      `json:"by_operation"`
	RecoverySuccessRate    float64             `json:"recovery_success_rate"`
	RecoverySamples        int                 `json:"recovery_samples"`
	BreakerTrips           int                 `json:"breaker_trips"`
	RetrySuccessRate       float64             `json:"retry_success_rate"`
	RetrySamples           int                 `json:"retry_samples"`
	TopFailureTypes        []TypeShare         `json:"top_failure_types"`
	TimeToRecovery         Percentiles         `json:"time_to_recovery"`
}

// Metrics computes the failure summary over the given window. A
// non-positive window uses the configured default.
func (s *Service) Metrics(window time.Duration) Metrics {
	if window <= 0 {
		window = s.config.Window
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsLocked(window, time.Now())
}

func (s *Service) metricsLocked(window time.Duration, now time.Time) Metrics {
	cutoff := now.Add(-window)

	var windowed []FailureRecord
	for _, rec := range s.history {
		if !rec.Timestamp.Before(cutoff) {
			windowed = append(windowed, rec)
		}
	}

	m := Metrics{
		Window:      window,
		ByType:      make(map[FailureType]int),
		ByOperation: make(map[string]int),
	}
	m.TotalFailures = len(windowed)
	if m.TotalFailures == 0 {
		return m
	}

	m.FailureRate = float64(m.TotalFailures) / window.Minutes()

	var totalDuration time.Duration
	for _, rec := range windowed {
		totalDuration += rec.Duration
		m.ByType[rec.FailureType]++
		m.ByOperation[rec.Operation]++
		if rec.BreakerState == "open" {
			m.BreakerTrips++
		}
	}
	m.AverageFailureDuration = totalDuration / time.Duration(m.TotalFailures)

	m.RecoverySuccessRate, m.RecoverySamples = s.successRateLocked(windowed, func(rec FailureRecord) bool {
		return rec.RecoveryStrategy != ""
	})
	m.RetrySuccessRate, m.RetrySamples = s.successRateLocked(windowed, func(rec FailureRecord) bool {
		return rec.RetryAttempts > 1
	})

	m.TopFailureTypes = topTypes(m.ByType, m.TotalFailures, 10)
	m.TimeToRecovery = recoveryPercentiles(windowed)

	return m
}

// successRateLocked computes the fraction of selected records considered
// recovered: no failure of the same operation recurs within the grace
// period. Records too close to the history tail still count as recovered,
// which keeps the heuristic optimistic by design of the original metric.
// The sample count disambiguates a measured 0% rate from an empty
// population.
func (s *Service) successRateLocked(windowed []FailureRecord, selected func(FailureRecord) bool) (float64, int) {
	var total, recovered int

	for _, rec := range windowed {
		if !selected(rec) {
			continue
		}
		total++

		recurred := false
		horizon := rec.Timestamp.Add(recoveryGracePeriod)
		for _, later := range s.history {
			if later.Operation != rec.Operation || later.ID == rec.ID {
				continue
			}
			if later.Timestamp.After(rec.Timestamp) && !later.Timestamp.After(horizon) {
				recurred = true
				break
			}
		}
		if !recurred {
			recovered++
		}
	}

	if total == 0 {
		return 0, 0
	}
	return float64(recovered) / float64(total), total
}

func topTypes(byType map[FailureType]int, total, limit int) []TypeShare {
	shares := make([]TypeShare, 0, len(byType))
	for t, count := range byType {
		shares = append(shares, TypeShare{
			Type:       t,
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Type < shares[j].Type
	})

	if len(shares) > limit {
		shares = shares[:limit]
	}
	return shares
}

// recoveryPercentiles computes p50/p95/p99 over the durations of
// recovery-tagged records.
func recoveryPercentiles(windowed []FailureRecord) Percentiles {
	var durations []time.Duration
	for _, rec := range windowed {
		if rec.RecoveryStrategy != "" {
			durations = append(durations, rec.Duration)
		}
	}
	if len(durations) == 0 {
		return Percentiles{}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	return Percentiles{
		P50: percentile(durations, 0.50),
		P95: percentile(durations, 0.95),
		P99: percentile(durations, 0.99),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
