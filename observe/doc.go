// Package observe provides the telemetry layer for the resilience pipeline:
// OpenTelemetry tracing and metrics, a structured JSON logger, and an
// Instrumentation wrapper that records each guarded operation execution.
//
// An Observer is built once at application startup and its primitives are
// handed to the middleware and monitor components:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "checkout",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//
// Logging redacts well-known sensitive field keys (see RedactedFields).
package observe
