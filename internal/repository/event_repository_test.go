package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linklytics/gateway/internal/model"
)

func seedEvent(t *testing.T, repo *EventRepository, link *model.Link, mutate func(*model.LinkEvent)) *model.LinkEvent {
	t.Helper()
	country := "DE"
	ev := &model.LinkEvent{
		ID:              uuid.New(),
		WorkspaceID:     link.WorkspaceID,
		LinkID:          link.ID,
		EventType:       model.EventTypeClick,
		InteractionType: model.InteractionClick,
		Referer:         "https://news.ycombinator.com",
		Device:          "desktop",
		OS:              "windows",
		Browser:         "chrome",
		Language:        "en-US",
		Country:         &country,
		OccurredAt:      time.Now().UTC(),
		Metadata: model.EventMetadata{
			RedirectTo:      link.OriginalURL,
			Domain:          "short.example",
			InteractionType: model.InteractionClick,
		},
	}
	if mutate != nil {
		mutate(ev)
	}
	require.NoError(t, repo.Insert(context.Background(), ev))
	return ev
}

func TestEventRepository_Insert(t *testing.T) {
	linkRepo := NewLinkRepository(testDB.Pool)
	repo := NewEventRepository(testDB.Pool)
	ctx := context.Background()

	testDB.Cleanup(ctx)
	domain := seedDomain(t, linkRepo, "short.example")
	link := seedLink(t, linkRepo, domain.ID, "launch")

	lat, lon := 52.52, 13.4
	seedEvent(t, repo, link, func(ev *model.LinkEvent) {
		ev.Latitude = &lat
		ev.Longitude = &lon
		ev.UTM = model.UTM{Source: "newsletter"}
	})

	events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, model.EventTypeClick, ev.EventType)
	assert.Equal(t, "chrome", ev.Browser)
	require.NotNil(t, ev.Country)
	assert.Equal(t, "DE", *ev.Country)
	require.NotNil(t, ev.Latitude)
	assert.Equal(t, 52.52, *ev.Latitude)
	assert.Equal(t, "newsletter", ev.UTM.Source)
	assert.Equal(t, "short.example", ev.Metadata.Domain)
}

func TestEventRepository_ListByLink(t *testing.T) {
	linkRepo := NewLinkRepository(testDB.Pool)
	repo := NewEventRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		testDB.Cleanup(ctx)
		domain := seedDomain(t, linkRepo, "short.example")
		link := seedLink(t, linkRepo, domain.ID, "launch")

		old := seedEvent(t, repo, link, func(ev *model.LinkEvent) {
			ev.OccurredAt = time.Now().UTC().Add(-2 * time.Hour)
		})
		recent := seedEvent(t, repo, link, nil)

		events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, recent.ID, events[0].ID)
		assert.Equal(t, old.ID, events[1].ID)
	})

	t.Run("since bounds the window", func(t *testing.T) {
		testDB.Cleanup(ctx)
		domain := seedDomain(t, linkRepo, "short.example")
		link := seedLink(t, linkRepo, domain.ID, "launch")

		seedEvent(t, repo, link, func(ev *model.LinkEvent) {
			ev.OccurredAt = time.Now().UTC().Add(-2 * time.Hour)
		})
		recent := seedEvent(t, repo, link, nil)

		events, err := repo.ListByLink(ctx, link.ID, time.Now().UTC().Add(-time.Hour), model.AnalyticsFilter{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, recent.ID, events[0].ID)
	})

	t.Run("dimension filters", func(t *testing.T) {
		testDB.Cleanup(ctx)
		domain := seedDomain(t, linkRepo, "short.example")
		link := seedLink(t, linkRepo, domain.ID, "launch")

		seedEvent(t, repo, link, nil)
		fr := seedEvent(t, repo, link, func(ev *model.LinkEvent) {
			country := "FR"
			ev.Country = &country
			ev.Browser = "firefox"
		})
		bot := seedEvent(t, repo, link, func(ev *model.LinkEvent) {
			ev.IsBot = true
			ev.InteractionType = model.InteractionBot
		})

		events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{Country: "FR"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, fr.ID, events[0].ID)

		humans := false
		events, err = repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{Bot: &humans})
		require.NoError(t, err)
		assert.Len(t, events, 2)

		events, err = repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{Interaction: model.InteractionBot})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, bot.ID, events[0].ID)
	})

	t.Run("utm filters reach into the snapshot", func(t *testing.T) {
		testDB.Cleanup(ctx)
		domain := seedDomain(t, linkRepo, "short.example")
		link := seedLink(t, linkRepo, domain.ID, "launch")

		tagged := seedEvent(t, repo, link, func(ev *model.LinkEvent) {
			ev.UTM = model.UTM{Source: "newsletter", Campaign: "q1"}
		})
		seedEvent(t, repo, link, nil)

		events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{UTMSource: "newsletter"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, tagged.ID, events[0].ID)
	})

	t.Run("other links are excluded", func(t *testing.T) {
		testDB.Cleanup(ctx)
		domain := seedDomain(t, linkRepo, "short.example")
		link := seedLink(t, linkRepo, domain.ID, "launch")
		other := seedLink(t, linkRepo, domain.ID, "other")

		seedEvent(t, repo, link, nil)
		seedEvent(t, repo, other, nil)

		events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestEventRepository_MarkDeletedByWorkspace(t *testing.T) {
	linkRepo := NewLinkRepository(testDB.Pool)
	repo := NewEventRepository(testDB.Pool)
	ctx := context.Background()

	testDB.Cleanup(ctx)
	domain := seedDomain(t, linkRepo, "short.example")
	link := seedLink(t, linkRepo, domain.ID, "launch")
	seedEvent(t, repo, link, nil)
	seedEvent(t, repo, link, nil)

	n, err := repo.MarkDeletedByWorkspace(ctx, link.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Purged events disappear from reporting but the rows remain.
	events, err := repo.ListByLink(ctx, link.ID, time.Time{}, model.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	var count int
	require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM link_events").Scan(&count))
	assert.Equal(t, 2, count)

	// Second purge is a no-op.
	n, err = repo.MarkDeletedByWorkspace(ctx, link.WorkspaceID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
