package model

import (
	"errors"
	"time"
)

// Interval is the requested reporting window for an analytics query.
type Interval string

const (
	IntervalAll   Interval = "all"
	Interval1Y    Interval = "1y"
	Interval3M    Interval = "3m"
	Interval1M    Interval = "1m"
	Interval1W    Interval = "1w"
	Interval1D    Interval = "1d"
	Interval12H   Interval = "12h"
	Interval6H    Interval = "6h"
	Interval1H    Interval = "1h"
	Interval30Min Interval = "30min"
	Interval15Min Interval = "15min"
	Interval5Min  Interval = "5min"
	Interval1Min  Interval = "1min"
)

// ErrInvalidInterval is returned when an analytics query carries an
// unrecognized interval value.
var ErrInvalidInterval = errors.New("invalid analytics interval")

// intervalDurations maps each bounded interval to its lookback window.
var intervalDurations = map[Interval]time.Duration{
	Interval1Y:    365 * 24 * time.Hour,
	Interval3M:    90 * 24 * time.Hour,
	Interval1M:    30 * 24 * time.Hour,
	Interval1W:    7 * 24 * time.Hour,
	Interval1D:    24 * time.Hour,
	Interval12H:   12 * time.Hour,
	Interval6H:    6 * time.Hour,
	Interval1H:    time.Hour,
	Interval30Min: 30 * time.Minute,
	Interval15Min: 15 * time.Minute,
	Interval5Min:  5 * time.Minute,
	Interval1Min:  time.Minute,
}

// Valid reports whether the interval is a recognized value.
func (i Interval) Valid() bool {
	if i == IntervalAll {
		return true
	}
	_, ok := intervalDurations[i]
	return ok
}

// Since returns the window start for the interval relative to now.
// IntervalAll returns the zero time, meaning unbounded.
func (i Interval) Since(now time.Time) time.Time {
	d, ok := intervalDurations[i]
	if !ok {
		return time.Time{}
	}
	return now.Add(-d)
}

// BucketSize returns the time-series bucket granularity derived from the
// interval: minutes for sub-hour windows, hours up to a day, days up to a
// month, months beyond that.
func (i Interval) BucketSize() time.Duration {
	d, ok := intervalDurations[i]
	if !ok {
		// Unbounded queries bucket by month; 30 days is close enough
		// for presentation purposes.
		return 30 * 24 * time.Hour
	}
	switch {
	case d <= time.Hour:
		return time.Minute
	case d <= 24*time.Hour:
		return time.Hour
	case d <= 31*24*time.Hour:
		return 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// AnalyticsFilter narrows the event set an analytics query aggregates over.
// Zero-valued fields are not applied.
type AnalyticsFilter struct {
	EventType   EventType
	Interaction InteractionType
	Device      string
	OS          string
	Browser     string
	Language    string
	Country     string
	City        string
	Continent   string
	Referer     string
	Bot         *bool
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
}

// AnalyticsQuery is the full reporting request for one link.
type AnalyticsQuery struct {
	Interval Interval
	Filter   AnalyticsFilter
	Page     int
	PageSize int
}

// TimeBucket is one point of the reporting time series.
type TimeBucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// BreakdownEntry is one value of a dimension breakdown, weighted against the
// total event count of the filtered set.
type BreakdownEntry struct {
	Value   string  `json:"value"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// HistogramBucket is one bar of the weekday or hour-of-day histogram.
type HistogramBucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// AnalyticsReport is the aggregated reporting response for a filtered,
// time-bounded event set.
type AnalyticsReport struct {
	TotalEvents int64                       `json:"total_events"`
	TimeSeries  []TimeBucket                `json:"time_series"`
	Breakdowns  map[string][]BreakdownEntry `json:"breakdowns"`
	Weekdays    []HistogramBucket           `json:"weekdays"`
	Hours       []HistogramBucket           `json:"hours"`
	Events      []LinkEvent                 `json:"events"`
	Page        int                         `json:"page"`
	PageSize    int                         `json:"page_size"`
	TotalPages  int                         `json:"total_pages"`
}
