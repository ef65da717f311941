// Package otel exports goVolunteer session and navigation metrics through
// OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per hydration-latency bucket. A single callback reads
// [goVolunteer.Store.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate session state.
package otel
