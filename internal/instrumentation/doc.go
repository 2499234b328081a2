// Package instrumentation wires OpenTelemetry metrics and tracing for
// meetsched. Metrics default to a Prometheus exporter scraped from a
// dedicated port; tracing is off unless an exporter is configured. When
// instrumentation is disabled the recorder degrades to no-ops so call
// sites never need nil checks.
package instrumentation
