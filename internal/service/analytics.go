package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// EventLister fetches the filtered events an analytics query runs over.
type EventLister interface {
	ListByLink(ctx context.Context, linkID uuid.UUID, since time.Time, filter model.AnalyticsFilter) ([]model.LinkEvent, error)
}

// AnalyticsService aggregates recorded events into reports.
type AnalyticsService struct {
	events EventLister
	now    func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(events EventLister) *AnalyticsService {
	return &AnalyticsService{events: events, now: time.Now}
}

// AnalyticsServiceInterface defines the reporting contract.
type AnalyticsServiceInterface interface {
	Report(ctx context.Context, linkID uuid.UUID, q model.AnalyticsQuery) (*model.AnalyticsReport, error)
}

// Report builds the time series, dimension breakdowns, histograms and
// paginated listing for a link's filtered event set.
func (s *AnalyticsService) Report(ctx context.Context, linkID uuid.UUID, q model.AnalyticsQuery) (*model.AnalyticsReport, error) {
	if q.Interval == "" {
		q.Interval = model.IntervalAll
	}
	if !q.Interval.Valid() {
		return nil, model.ErrInvalidInterval
	}

	now := s.now()
	events, err := s.events.ListByLink(ctx, linkID, q.Interval.Since(now), q.Filter)
	if err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(q.Page, q.PageSize)
	report := &model.AnalyticsReport{
		TotalEvents: int64(len(events)),
		TimeSeries:  buildTimeSeries(events, q.Interval, now),
		Breakdowns:  buildBreakdowns(events),
		Weekdays:    buildWeekdays(events),
		Hours:       buildHours(events),
		Page:        page,
		PageSize:    pageSize,
	}
	report.Events, report.TotalPages = paginate(events, page, pageSize)
	return report, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}

func paginate(events []model.LinkEvent, page, pageSize int) ([]model.LinkEvent, int) {
	totalPages := (len(events) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start >= len(events) {
		return []model.LinkEvent{}, totalPages
	}
	end := start + pageSize
	if end > len(events) {
		end = len(events)
	}
	return events[start:end], totalPages
}

// buildTimeSeries buckets events by the granularity the interval implies,
// filling empty buckets between the first and last occupied one.
func buildTimeSeries(events []model.LinkEvent, interval model.Interval, now time.Time) []model.TimeBucket {
	if len(events) == 0 {
		return []model.TimeBucket{}
	}

	size := interval.BucketSize()
	counts := make(map[time.Time]int64)
	first := events[0].OccurredAt.UTC().Truncate(size)
	last := first
	for _, ev := range events {
		bucket := ev.OccurredAt.UTC().Truncate(size)
		counts[bucket]++
		if bucket.Before(first) {
			first = bucket
		}
		if bucket.After(last) {
			last = bucket
		}
	}

	var series []model.TimeBucket
	for t := first; !t.After(last); t = t.Add(size) {
		series = append(series, model.TimeBucket{Start: t, Count: counts[t]})
	}
	return series
}

// buildBreakdowns produces the percentage-weighted per-dimension counts.
// Percentages are relative to the filtered set's total, rounded to two
// decimals, and zero for the empty set.
func buildBreakdowns(events []model.LinkEvent) map[string][]model.BreakdownEntry {
	dims := map[string]func(*model.LinkEvent) string{
		"country":      func(ev *model.LinkEvent) string { return nullable(ev.Country) },
		"city":         func(ev *model.LinkEvent) string { return nullable(ev.City) },
		"continent":    func(ev *model.LinkEvent) string { return nullable(ev.Continent) },
		"device":       func(ev *model.LinkEvent) string { return orUnknown(ev.Device) },
		"os":           func(ev *model.LinkEvent) string { return orUnknown(ev.OS) },
		"browser":      func(ev *model.LinkEvent) string { return orUnknown(ev.Browser) },
		"language":     func(ev *model.LinkEvent) string { return orUnknown(ev.Language) },
		"referer":      func(ev *model.LinkEvent) string { return orDirect(ev.Referer) },
		"interaction":  func(ev *model.LinkEvent) string { return string(ev.InteractionType) },
		"bot":          func(ev *model.LinkEvent) string { return botLabel(ev.IsBot) },
		"utm_source":   func(ev *model.LinkEvent) string { return orUnknown(ev.UTM.Source) },
		"utm_medium":   func(ev *model.LinkEvent) string { return orUnknown(ev.UTM.Medium) },
		"utm_campaign": func(ev *model.LinkEvent) string { return orUnknown(ev.UTM.Campaign) },
		"utm_term":     func(ev *model.LinkEvent) string { return orUnknown(ev.UTM.Term) },
		"utm_content":  func(ev *model.LinkEvent) string { return orUnknown(ev.UTM.Content) },
	}

	out := make(map[string][]model.BreakdownEntry, len(dims))
	total := int64(len(events))
	for name, key := range dims {
		counts := make(map[string]int64)
		for i := range events {
			counts[key(&events[i])]++
		}
		entries := make([]model.BreakdownEntry, 0, len(counts))
		for value, count := range counts {
			entries = append(entries, model.BreakdownEntry{
				Value:   value,
				Count:   count,
				Percent: percent(count, total),
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Count != entries[j].Count {
				return entries[i].Count > entries[j].Count
			}
			return entries[i].Value < entries[j].Value
		})
		out[name] = entries
	}
	return out
}

// weekdayLabels starts Monday per reporting convention.
var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func buildWeekdays(events []model.LinkEvent) []model.HistogramBucket {
	counts := make([]int64, 7)
	for _, ev := range events {
		// time.Weekday starts Sunday; shift so Monday is index 0.
		idx := (int(ev.OccurredAt.UTC().Weekday()) + 6) % 7
		counts[idx]++
	}
	buckets := make([]model.HistogramBucket, 7)
	for i, label := range weekdayLabels {
		buckets[i] = model.HistogramBucket{Label: label, Count: counts[i]}
	}
	return buckets
}

func buildHours(events []model.LinkEvent) []model.HistogramBucket {
	counts := make([]int64, 24)
	for _, ev := range events {
		counts[ev.OccurredAt.UTC().Hour()]++
	}
	buckets := make([]model.HistogramBucket, 24)
	for i := range counts {
		buckets[i] = model.HistogramBucket{
			Label: time.Date(0, 1, 1, i, 0, 0, 0, time.UTC).Format("15:04"),
			Count: counts[i],
		}
	}
	return buckets
}

func percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10000) / 100
}

func nullable(s *string) string {
	if s == nil || *s == "" {
		return unknown
	}
	return *s
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func orDirect(referer string) string {
	if referer == "" {
		return "direct"
	}
	return referer
}

func botLabel(isBot bool) string {
	if isBot {
		return "bot"
	}
	return "human"
}

// Ensure AnalyticsService implements its interface at compile time
var _ AnalyticsServiceInterface = (*AnalyticsService)(nil)
