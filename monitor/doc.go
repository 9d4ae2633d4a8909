// Package monitor aggregates failure events from the resilience pipeline
// into windowed metrics and threshold alerts.
//
// A Service keeps a bounded in-process ring of failure records. Metrics are
// recomputed from the retained history on every read: failure rate, per
// type and per operation groupings, breaker trips, heuristic recovery and
// retry success rates, a top-10 failure type ranking, and time-to-recovery
// percentiles.
//
// Five alert conditions ship pre-registered (failure rate, breaker trips,
// recovery rate, per-operation spikes, hourly volume); each fires at most
// once per its cooldown window and notifies subscribers. ExportData and
// ImportData round-trip the retained state for caller-owned persistence.
//
// The recovery and retry success rates are deliberate approximations: a
// failure counts as recovered when no same-operation failure recurs within
// 60 seconds.
package monitor
