// Package metrics defines the domain instruments for the redirect pipeline.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Suppression reasons recorded on the suppressed-events counter.
const (
	ReasonBot        = "bot"
	ReasonDoNotTrack = "dnt"
	ReasonDuplicate  = "duplicate"
)

// Metrics holds the counters exercised by the redirect and recording path.
type Metrics struct {
	Redirects        metric.Int64Counter
	EventsRecorded   metric.Int64Counter
	EventsSuppressed metric.Int64Counter
	CacheHits        metric.Int64Counter
	CacheMisses      metric.Int64Counter
}

// New registers all instruments on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	redirects, err := meter.Int64Counter("linklytics_redirects_total",
		metric.WithDescription("Redirects served, labeled by outcome"))
	if err != nil {
		return nil, err
	}
	recorded, err := meter.Int64Counter("linklytics_events_recorded_total",
		metric.WithDescription("Link events persisted, labeled by event type"))
	if err != nil {
		return nil, err
	}
	suppressed, err := meter.Int64Counter("linklytics_events_suppressed_total",
		metric.WithDescription("Link events suppressed before persistence, labeled by reason"))
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Counter("linklytics_resolution_cache_hits_total",
		metric.WithDescription("Resolution cache hits"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64Counter("linklytics_resolution_cache_misses_total",
		metric.WithDescription("Resolution cache misses"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Redirects:        redirects,
		EventsRecorded:   recorded,
		EventsSuppressed: suppressed,
		CacheHits:        hits,
		CacheMisses:      misses,
	}, nil
}

// CountRedirect increments the redirect counter with the given outcome
// ("ok", "not_found", "error").
func (m *Metrics) CountRedirect(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Redirects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// CountRecorded increments the recorded-events counter for an event type.
func (m *Metrics) CountRecorded(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.EventsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// CountSuppressed increments the suppressed-events counter for a reason.
func (m *Metrics) CountSuppressed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.EventsSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// CountCacheHit increments the resolution cache hit counter.
func (m *Metrics) CountCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

// CountCacheMiss increments the resolution cache miss counter.
func (m *Metrics) CountCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1)
}
