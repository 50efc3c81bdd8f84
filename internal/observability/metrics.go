package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records HTTP and dispatch counters. A nil *Metrics is a no-op.
type Metrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
	dispatchCount   metric.Int64Counter
	claimCount      metric.Int64Counter
	expiryCount     metric.Int64Counter
	stuckCount      metric.Int64Counter
	sweepDuration   metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.requestCount, err = meter.Int64Counter("lead_dispatch_http_requests_total",
		metric.WithDescription("HTTP requests by route, method and status")); err != nil {
		return nil, err
	}
	if m.requestDuration, err = meter.Float64Histogram("lead_dispatch_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency")); err != nil {
		return nil, err
	}
	if m.errorCount, err = meter.Int64Counter("lead_dispatch_http_errors_total",
		metric.WithDescription("HTTP errors by error code")); err != nil {
		return nil, err
	}
	if m.dispatchCount, err = meter.Int64Counter("lead_dispatch_assignments_created_total",
		metric.WithDescription("Assignments created by tier")); err != nil {
		return nil, err
	}
	if m.claimCount, err = meter.Int64Counter("lead_dispatch_claims_total",
		metric.WithDescription("Accept attempts by result")); err != nil {
		return nil, err
	}
	if m.expiryCount, err = meter.Int64Counter("lead_dispatch_expiries_total",
		metric.WithDescription("Assignments expired by the sweeper or lazily on accept")); err != nil {
		return nil, err
	}
	if m.stuckCount, err = meter.Int64Counter("lead_dispatch_stuck_prospects_total",
		metric.WithDescription("Prospects no tier could serve")); err != nil {
		return nil, err
	}
	if m.sweepDuration, err = meter.Float64Histogram("lead_dispatch_sweep_duration_seconds",
		metric.WithDescription("Duration of one expiry sweep cycle")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", path),
		attribute.String("http.method", method),
		attribute.String("http.status", strconv.Itoa(status)),
	)
	ctx := context.Background()
	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("http.route", path),
		attribute.String("http.method", method),
		attribute.String("code", code),
	))
}

// RecordAssignment counts a created assignment. tier is empty for owner links.
func (m *Metrics) RecordAssignment(ctx context.Context, tier, status string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "OWNER_LINK"
	}
	m.dispatchCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("status", status),
	))
}

// RecordClaim counts an accept attempt by result.
func (m *Metrics) RecordClaim(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.claimCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordExpiry counts an assignment moved to EXPIRED.
func (m *Metrics) RecordExpiry(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.expiryCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordStuck counts a prospect pushed to the operator queue.
func (m *Metrics) RecordStuck(ctx context.Context) {
	if m == nil {
		return
	}
	m.stuckCount.Add(ctx, 1)
}

// RecordSweep records one sweep cycle.
func (m *Metrics) RecordSweep(ctx context.Context, processed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Int("processed", processed)))
}
