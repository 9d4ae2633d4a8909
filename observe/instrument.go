package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature for guarded operation closures.
type ExecuteFunc func(ctx context.Context) (any, error)

// Instrumentation wraps operation execution with tracing, metrics, and
// logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: Result values are passed through without modification.
type Instrumentation struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumentation creates a new Instrumentation with the given
// observability components.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	return &Instrumentation{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (in *Instrumentation) Wrap(meta OpMeta, fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context) (any, error) {
		ctx, span := in.tracer.StartSpan(ctx, meta)

		start := time.Now()
		result, err := fn(ctx)
		duration := time.Since(start)

		// End span (records error status if err != nil)
		in.tracer.EndSpan(span, err)

		in.metrics.RecordExecution(ctx, meta, duration, err)

		opLogger := in.logger.WithOperation(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			opLogger.Error(ctx, "operation failed", fields...)
		} else {
			opLogger.Info(ctx, "operation completed", fields...)
		}

		return result, err
	}
}

// Metrics exposes the wrapped Metrics recorder.
func (in *Instrumentation) Metrics() Metrics { return in.metrics }

// Logger exposes the wrapped Logger.
func (in *Instrumentation) Logger() Logger { return in.logger }

// Tracer exposes the wrapped Tracer.
func (in *Instrumentation) Tracer() Tracer { return in.tracer }

// InstrumentationFromObserver creates an Instrumentation from an Observer.
// This is a convenience function for common use cases.
func InstrumentationFromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := NewTracer(obs.Tracer())

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentation(tracer, metrics, obs.Logger()), nil
}

// NopInstrumentation returns an Instrumentation that records nothing.
func NopInstrumentation() *Instrumentation {
	return NewInstrumentation(NewNoopTracer(), NopMetrics(), NopLogger())
}
