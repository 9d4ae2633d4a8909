package monitor

import (
	"encoding/json"
	"fmt"
	"time"
)

// exportPayload is the caller-owned persistence format. The service never
// writes to disk or a database itself.
type exportPayload struct {
	ExportedAt time.Time       `json:"exported_at"`
	History    []FailureRecord `json:"history"`
	Alerts     []Alert         `json:"alerts"`
}

// ExportData serializes the retained failure history and alerts. Feeding
// the bytes to ImportData on a fresh instance reproduces identical
// Metrics() output for the same window.
func (s *Service) ExportData() ([]byte, error) {
	s.mu.Lock()
	payload := exportPayload{
		ExportedAt: time.Now(),
		History:    make([]FailureRecord, len(s.history)),
		Alerts:     make([]Alert, len(s.alerts)),
	}
	copy(payload.History, s.history)
	copy(payload.Alerts, s.alerts)
	s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("monitor: export failed: %w", err)
	}
	return data, nil
}

// ImportData replaces the retained history and alerts with a previously
// exported payload, re-applying the history bound.
func (s *Service) ImportData(data []byte) error {
	var payload exportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("monitor: import failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = payload.History
	if excess := len(s.history) - s.config.MaxHistory; excess > 0 {
		s.history = append(s.history[:0], s.history[excess:]...)
	}
	s.alerts = payload.Alerts
	return nil
}
