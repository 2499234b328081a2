package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrCode      = "code"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder; every method tolerates nil
// instruments so disabled instrumentation needs no call-site guards.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Calendar API metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	// Token lifecycle metrics
	tokenRefreshTotal metric.Int64Counter
	signInTotal       metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments registered.
// The detailedLabels parameter controls whether high-cardinality labels
// are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of active user sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_operations_total",
		metric.WithDescription("Total number of Google Calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_operation_duration_seconds",
		metric.WithDescription("Google Calendar API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.signInTotal, err = meter.Int64Counter(
		"oauth_sign_in_total",
		metric.WithDescription("Total number of OAuth sign-in completions"),
		metric.WithUnit("{sign_in}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_sign_in_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records a completed HTTP request. The path label is
// unbounded (any request URL lands here), so it rides on detailedLabels.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, strconv.Itoa(status)),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && path != "" {
		attrs = append(attrs, attribute.String(attrPath, path))
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSessionStart increments the active session gauge.
func (m *Metrics) RecordSessionStart(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// RecordSessionEnd decrements the active session gauge.
func (m *Metrics) RecordSessionEnd(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

// RecordCalendarOperation records a Calendar API call. The code attribute
// carries the endpoint-visible error code, or "none" on success.
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation string, errCode string, duration time.Duration) {
	if m.calendarOperationsTotal == nil {
		return
	}

	status := StatusSuccess
	if errCode == "" {
		errCode = "none"
	} else {
		status = StatusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
		attribute.String(attrCode, errCode),
	)

	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenRefresh records a token refresh attempt.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, success bool) {
	if m.tokenRefreshTotal == nil {
		return
	}

	result := StatusSuccess
	if !success {
		result = StatusError
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordSignIn records a completed OAuth sign-in.
func (m *Metrics) RecordSignIn(ctx context.Context, success bool) {
	if m.signInTotal == nil {
		return
	}

	result := StatusSuccess
	if !success {
		result = StatusError
	}
	m.signInTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
