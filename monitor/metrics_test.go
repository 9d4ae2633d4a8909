package monitor

import (
	"testing"
	"time"
)

func recordAt(s *Service, age time.Duration, rec FailureRecord) {
	rec.Timestamp = time.Now().Add(-age)
	s.RecordFailure(rec)
}

func TestMetrics_EmptyWindow(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	m := s.Metrics(0)
	if m.TotalFailures != 0 {
		t.Errorf("TotalFailures = %d, want 0", m.TotalFailures)
	}
	if m.FailureRate != 0 {
		t.Errorf("FailureRate = %f, want 0", m.FailureRate)
	}
	if m.Window != time.Minute {
		t.Errorf("Window = %v, want the configured default", m.Window)
	}
}

func TestMetrics_CountsAndRate(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	for i := 0; i < 6; i++ {
		s.RecordFailure(FailureRecord{
			Operation:   "fetch",
			FailureType: FailureTimeout,
			Duration:    100 * time.Millisecond,
		})
	}

	m := s.Metrics(time.Minute)
	if m.TotalFailures != 6 {
		t.Errorf("TotalFailures = %d, want 6", m.TotalFailures)
	}
	if m.FailureRate != 6 {
		t.Errorf("FailureRate = %f, want 6/min", m.FailureRate)
	}
	if m.AverageFailureDuration != 100*time.Millisecond {
		t.Errorf("AverageFailureDuration = %v, want 100ms", m.AverageFailureDuration)
	}
	if m.ByType[FailureTimeout] != 6 {
		t.Errorf("ByType[timeout] = %d, want 6", m.ByType[FailureTimeout])
	}
	if m.ByOperation["fetch"] != 6 {
		t.Errorf("ByOperation[fetch] = %d, want 6", m.ByOperation["fetch"])
	}
}

func TestMetrics_WindowExcludesOldRecords(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	recordAt(s, 2*time.Hour, FailureRecord{Operation: "old", FailureType: FailureOperation})
	recordAt(s, time.Second, FailureRecord{Operation: "new", FailureType: FailureOperation})

	m := s.Metrics(time.Minute)
	if m.TotalFailures != 1 {
		t.Fatalf("TotalFailures = %d, want 1", m.TotalFailures)
	}
	if m.ByOperation["old"] != 0 {
		t.Error("records outside the window must not be counted")
	}
}

func TestMetrics_BreakerTrips(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	s.RecordFailure(FailureRecord{Operation: "a", FailureType: FailureCircuitOpen, BreakerState: "open"})
	s.RecordFailure(FailureRecord{Operation: "a", FailureType: FailureCircuitOpen, BreakerState: "open"})
	s.RecordFailure(FailureRecord{Operation: "a", FailureType: FailureOperation, BreakerState: "closed"})

	if got := s.Metrics(time.Minute).BreakerTrips; got != 2 {
		t.Errorf("BreakerTrips = %d, want 2", got)
	}
}

func TestMetrics_TopFailureTypes(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	for i := 0; i < 3; i++ {
		s.RecordFailure(FailureRecord{Operation: "a", FailureType: FailureTimeout})
	}
	s.RecordFailure(FailureRecord{Operation: "a", FailureType: FailureRateLimit})

	top := s.Metrics(time.Minute).TopFailureTypes
	if len(top) != 2 {
		t.Fatalf("len(TopFailureTypes) = %d, want 2", len(top))
	}
	if top[0].Type != FailureTimeout || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want timeout x3", top[0])
	}
	if top[0].Percentage != 75 {
		t.Errorf("top[0].Percentage = %f, want 75", top[0].Percentage)
	}
	if top[1].Type != FailureRateLimit || top[1].Count != 1 {
		t.Errorf("top[1] = %+v, want rate-limit x1", top[1])
	}
}

func TestMetrics_RecoverySuccessRate(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	// op-a recovered (no recurrence); op-b recurred within the grace period.
	recordAt(s, 30*time.Second, FailureRecord{
		Operation: "op-a", FailureType: FailureOperation, RecoveryStrategy: "fallback",
	})
	recordAt(s, 40*time.Second, FailureRecord{
		Operation: "op-b", FailureType: FailureOperation, RecoveryStrategy: "fallback",
	})
	recordAt(s, 10*time.Second, FailureRecord{
		Operation: "op-b", FailureType: FailureOperation,
	})

	m := s.Metrics(time.Minute)
	if m.RecoverySuccessRate != 0.5 {
		t.Errorf("RecoverySuccessRate = %f, want 0.5", m.RecoverySuccessRate)
	}
	if m.RecoverySamples != 2 {
		t.Errorf("RecoverySamples = %d, want 2", m.RecoverySamples)
	}
}

func TestMetrics_RecoverySamplesDistinguishZeroRate(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	// An untagged failure alone: no samples, rate 0.
	recordAt(s, 20*time.Second, FailureRecord{
		Operation: "op-a", FailureType: FailureOperation,
	})

	m := s.Metrics(time.Minute)
	if m.RecoverySamples != 0 || m.RecoverySuccessRate != 0 {
		t.Errorf("samples = %d, rate = %f, want 0 and 0", m.RecoverySamples, m.RecoverySuccessRate)
	}

	// A tagged failure that recurs: one sample, still rate 0.
	recordAt(s, 40*time.Second, FailureRecord{
		Operation: "op-b", FailureType: FailureOperation, RecoveryStrategy: "retry",
	})
	recordAt(s, 10*time.Second, FailureRecord{
		Operation: "op-b", FailureType: FailureOperation,
	})

	m = s.Metrics(time.Minute)
	if m.RecoverySamples != 1 {
		t.Errorf("RecoverySamples = %d, want 1", m.RecoverySamples)
	}
	if m.RecoverySuccessRate != 0 {
		t.Errorf("RecoverySuccessRate = %f, want 0", m.RecoverySuccessRate)
	}
}

func TestMetrics_RetrySuccessRate(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	// Retried and never recurred.
	recordAt(s, 30*time.Second, FailureRecord{
		Operation: "op-a", FailureType: FailureOperation, RetryAttempts: 3,
	})
	// Single attempt: not part of the retry population.
	recordAt(s, 20*time.Second, FailureRecord{
		Operation: "op-c", FailureType: FailureOperation, RetryAttempts: 1,
	})

	m := s.Metrics(time.Minute)
	if m.RetrySuccessRate != 1.0 {
		t.Errorf("RetrySuccessRate = %f, want 1.0", m.RetrySuccessRate)
	}
	if m.RetrySamples != 1 {
		t.Errorf("RetrySamples = %d, want 1", m.RetrySamples)
	}
}

func TestMetrics_TimeToRecoveryPercentiles(t *testing.T) {
	s := NewService(Config{DisableAlerts: true})

	durations := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
	}
	for i, d := range durations {
		s.RecordFailure(FailureRecord{
			Operation:        "op",
			FailureType:      FailureOperation,
			RecoveryStrategy: "fallback",
			Duration:         d,
			ID:               string(rune('a' + i)),
		})
	}

	p := s.Metrics(time.Minute).TimeToRecovery
	if p.P50 != 20*time.Millisecond {
		t.Errorf("P50 = %v, want 20ms", p.P50)
	}
	if p.P95 != 40*time.Millisecond {
		t.Errorf("P95 = %v, want 40ms", p.P95)
	}
	if p.P99 != 40*time.Millisecond {
		t.Errorf("P99 = %v, want 40ms", p.P99)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0.50, 5},
		{0.95, 10},
		{0.99, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%.2f) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := percentile([]time.Duration{7}, 0.5); got != 7 {
		t.Errorf("percentile single = %v, want 7", got)
	}
}
