package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/metrics"
	"github.com/linklytics/gateway/internal/model"
	"github.com/linklytics/gateway/internal/repository"
)

// EventStore persists recorded link events.
type EventStore interface {
	Insert(ctx context.Context, ev *model.LinkEvent) error
}

// ClickCounter increments a link's running click counter.
type ClickCounter interface {
	IncrementClicks(ctx context.Context, id uuid.UUID) error
}

// EventPublisher fans a recorded event out to real-time subscribers.
type EventPublisher interface {
	Publish(env model.EventEnvelope)
}

// WebhookNotifier delivers a workspace event to registered webhooks.
type WebhookNotifier interface {
	Dispatch(ctx context.Context, workspaceID uuid.UUID, eventName string, payload any)
}

// QRStore looks up QR codes by their public code.
type QRStore interface {
	GetQRCode(ctx context.Context, code string) (*model.QRCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
}

// RequestContext carries everything the engine derives an event from.
type RequestContext struct {
	IP          string
	UserAgent   string
	Referer     string
	Language    string
	EventType   model.EventType
	DoNotTrack  bool
	Domain      string // serving hostname, recorded in event metadata
	GeoOverride Location
}

// RecordResult is the outcome of recording one hit. Event is nil when the
// hit was suppressed (do-not-track, bot, duplicate); TargetURL is always
// set so a redirect can be served regardless.
type RecordResult struct {
	TargetURL string
	Event     *model.LinkEvent
}

// RedirectEngine orchestrates target resolution, event recording, counter
// increments and downstream fan-out for inbound hits.
type RedirectEngine struct {
	resolver *LinkResolver
	events   EventStore
	links    ClickCounter
	qr       QRStore
	dedup    Deduplicator
	geo      *GeoResolver
	bus      EventPublisher
	webhooks WebhookNotifier
	metrics  *metrics.Metrics
	ipSecret string
	logger   *slog.Logger
	now      func() time.Time
}

// NewRedirectEngine wires the engine. bus, webhooks and metrics may be nil;
// the corresponding side effects are skipped.
func NewRedirectEngine(
	resolver *LinkResolver,
	events EventStore,
	links ClickCounter,
	qr QRStore,
	dedup Deduplicator,
	geo *GeoResolver,
	bus EventPublisher,
	webhooks WebhookNotifier,
	m *metrics.Metrics,
	ipSecret string,
	logger *slog.Logger,
) *RedirectEngine {
	return &RedirectEngine{
		resolver: resolver,
		events:   events,
		links:    links,
		qr:       qr,
		dedup:    dedup,
		geo:      geo,
		bus:      bus,
		webhooks: webhooks,
		metrics:  m,
		ipSecret: ipSecret,
		logger:   logger,
		now:      time.Now,
	}
}

// RedirectEngineInterface is the contract consumed by the HTTP layer.
type RedirectEngineInterface interface {
	Resolve(ctx context.Context, host, slug string) (*model.Link, *model.Domain, error)
	ResolveQR(ctx context.Context, code string) (*model.Link, error)
	RecordEvent(ctx context.Context, link *model.Link, req RequestContext) (RecordResult, error)
}

// Resolve maps (host, slug) to an active link.
func (e *RedirectEngine) Resolve(ctx context.Context, host, slug string) (*model.Link, *model.Domain, error) {
	return e.resolver.Resolve(ctx, host, slug)
}

// ResolveQR maps a QR code to its attached active link.
func (e *RedirectEngine) ResolveQR(ctx context.Context, code string) (*model.Link, error) {
	qr, err := e.qr.GetQRCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQRNotFound
		}
		return nil, err
	}
	if qr.LinkID == nil {
		return nil, ErrQRUnlinked
	}
	link, err := e.qr.GetByID(ctx, *qr.LinkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.Status != model.LinkStatusActive {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

// ResolveTarget computes the URL a hit redirects to. Expiration and the
// max-click ceiling always win over geo rules; geo rules are evaluated in
// ascending priority order, first match by country then continent; the
// original URL is the fallthrough.
func ResolveTarget(link *model.Link, loc Location, now time.Time) string {
	if link.Expired(now) {
		if link.FallbackURL != "" {
			return link.FallbackURL
		}
		return link.OriginalURL
	}

	if len(link.GeoRules) > 0 {
		rules := make([]model.GeoRule, len(link.GeoRules))
		copy(rules, link.GeoRules)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

		for _, rule := range rules {
			switch rule.Scope {
			case model.GeoRuleScopeCountry:
				if loc.Country != nil && *loc.Country == rule.Target {
					return rule.URL
				}
			case model.GeoRuleScopeContinent:
				if loc.Continent != nil && *loc.Continent == rule.Target {
					return rule.URL
				}
			}
		}
	}
	return link.OriginalURL
}

// RecordEvent derives and persists the event for one hit and triggers the
// downstream fan-out. The target URL is always returned, even when the
// event is suppressed or persistence fails; serving the redirect takes
// priority over recording.
func (e *RedirectEngine) RecordEvent(ctx context.Context, link *model.Link, req RequestContext) (RecordResult, error) {
	now := e.now()

	info := ParseUserAgent(req.UserAgent)
	bot := IsBot(req.UserAgent)
	interaction := ClassifyInteraction(req.EventType, req.Referer, bot, req.UserAgent, nil)

	loc := e.geo.Resolve(ctx, req.IP).Merge(req.GeoOverride)
	target := ResolveTarget(link, loc, now)

	ipHash := HashIP(req.IP, e.ipSecret)
	fingerprint := Fingerprint(link.ID, ipHash, req.EventType, info.Browser, now)
	duplicate := e.dedup.IsDuplicate(ctx, fingerprint)

	// The fingerprint is registered even when this hit is suppressed for
	// bot/do-not-track reasons, so an identical hit inside the window is
	// throttled regardless of how the first one was classified.
	if req.DoNotTrack || bot || duplicate {
		if !duplicate {
			e.dedup.Register(ctx, fingerprint)
		}
		e.metrics.CountSuppressed(ctx, suppressionReason(req.DoNotTrack, bot))
		return RecordResult{TargetURL: target}, nil
	}

	ev := &model.LinkEvent{
		ID:              uuid.New(),
		WorkspaceID:     link.WorkspaceID,
		ProjectID:       link.ProjectID,
		LinkID:          link.ID,
		EventType:       req.EventType,
		InteractionType: interaction,
		Referer:         req.Referer,
		Device:          info.Device,
		OS:              info.OS,
		Browser:         info.Browser,
		Language:        req.Language,
		Country:         loc.Country,
		City:            loc.City,
		Continent:       loc.Continent,
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		IsBot:           bot,
		IPHash:          ipHash,
		UserAgent:       req.UserAgent,
		OccurredAt:      now,
		Metadata: model.EventMetadata{
			RedirectTo:      target,
			Domain:          req.Domain,
			InteractionType: interaction,
		},
		UTM: link.UTM,
	}

	if err := e.events.Insert(ctx, ev); err != nil {
		// Recording is best-effort relative to redirecting; the caller
		// still serves the target URL.
		e.logger.ErrorContext(ctx, "failed to persist link event",
			slog.String("link_id", link.ID.String()),
			slog.String("error", err.Error()))
		return RecordResult{TargetURL: target}, err
	}

	e.dedup.Register(ctx, fingerprint)
	e.metrics.CountRecorded(ctx, string(req.EventType))

	if err := e.links.IncrementClicks(ctx, link.ID); err != nil {
		e.logger.WarnContext(ctx, "failed to increment click counter",
			slog.String("link_id", link.ID.String()),
			slog.String("error", err.Error()))
	}

	e.fanOut(ctx, link, ev)

	return RecordResult{TargetURL: target, Event: ev}, nil
}

// fanOut publishes the event to the bus and dispatches webhooks. Both are
// side channels: neither may delay or fail the redirect response.
func (e *RedirectEngine) fanOut(ctx context.Context, link *model.Link, ev *model.LinkEvent) {
	if e.bus != nil {
		env := model.EventEnvelope{
			LinkID:      link.ID.String(),
			WorkspaceID: link.WorkspaceID.String(),
			EventType:   ev.EventType,
			Event:       ev,
		}
		if link.ProjectID != nil {
			env.ProjectID = link.ProjectID.String()
		}
		e.bus.Publish(env)
	}

	if e.webhooks != nil {
		eventName := model.WebhookEventClickRecorded
		if ev.EventType == model.EventTypeScan {
			eventName = model.WebhookEventScanRecorded
		}
		go e.webhooks.Dispatch(context.WithoutCancel(ctx), link.WorkspaceID, eventName, ev)
	}
}

func suppressionReason(dnt, bot bool) string {
	switch {
	case dnt:
		return metrics.ReasonDoNotTrack
	case bot:
		return metrics.ReasonBot
	default:
		return metrics.ReasonDuplicate
	}
}

// Ensure RedirectEngine implements its interface at compile time
var _ RedirectEngineInterface = (*RedirectEngine)(nil)
