package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for guarded operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records an operation execution with duration and
	// error status.
	RecordExecution(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRejection records an admission-control or breaker rejection
	// raised before the operation ran.
	RecordRejection(ctx context.Context, meta OpMeta, reason string)

	// RecordStateChange records a circuit breaker state transition.
	RecordStateChange(ctx context.Context, meta OpMeta, state string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	rejectCount  metric.Int64Counter
	stateCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"op.exec.total",
		metric.WithDescription("Total number of guarded operation executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"op.exec.errors",
		metric.WithDescription("Total number of guarded operation failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	rejectCount, err := meter.Int64Counter(
		"op.exec.rejections",
		metric.WithDescription("Executions rejected before the operation ran"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	stateCount, err := meter.Int64Counter(
		"op.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"op.exec.duration_ms",
		metric.WithDescription("Guarded operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		rejectCount:  rejectCount,
		stateCount:   stateCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) attrs(meta OpMeta, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("op.name", meta.Name),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("op.component", meta.Component))
	}
	attrs = append(attrs, extra...)
	return metric.WithAttributes(attrs...)
}

// RecordExecution records metrics for an operation execution.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := m.attrs(meta)

	// Always increment total counter
	m.totalCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRejection records an admission rejection.
func (m *metricsImpl) RecordRejection(ctx context.Context, meta OpMeta, reason string) {
	m.rejectCount.Add(ctx, 1, m.attrs(meta, attribute.String("reject.reason", reason)))
}

// RecordStateChange records a breaker transition.
func (m *metricsImpl) RecordStateChange(ctx context.Context, meta OpMeta, state string) {
	m.stateCount.Add(ctx, 1, m.attrs(meta, attribute.String("breaker.state", state)))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordRejection(ctx context.Context, meta OpMeta, reason string) {}
func (m *noopMetrics) RecordStateChange(ctx context.Context, meta OpMeta, state string) {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return &noopMetrics{} }
