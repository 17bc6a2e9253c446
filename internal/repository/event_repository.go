package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linklytics/gateway/internal/model"
)

// EventRepository handles database operations for link events.
// Events are append-only; nothing here mutates a recorded row except the
// soft-delete flag used for workspace purges.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Insert persists a link event.
func (r *EventRepository) Insert(ctx context.Context, ev *model.LinkEvent) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "link_events"),
			attribute.String("event_type", string(ev.EventType)),
		),
	)
	defer span.End()

	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return err
	}
	utm, err := json.Marshal(ev.UTM)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO link_events (id, workspace_id, project_id, link_id, event_type,
			interaction_type, referer, device, os, browser, language,
			country, city, continent, latitude, longitude,
			is_bot, ip_hash, user_agent, occurred_at, metadata, utm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = r.db.Exec(ctx, query,
		ev.ID, ev.WorkspaceID, ev.ProjectID, ev.LinkID, ev.EventType,
		ev.InteractionType, ev.Referer, ev.Device, ev.OS, ev.Browser, ev.Language,
		ev.Country, ev.City, ev.Continent, ev.Latitude, ev.Longitude,
		ev.IsBot, ev.IPHash, ev.UserAgent, ev.OccurredAt, metadata, utm,
	)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ListByLink returns the filtered events for a link since the given time,
// newest first. A zero since means unbounded.
func (r *EventRepository) ListByLink(ctx context.Context, linkID uuid.UUID, since time.Time, filter model.AnalyticsFilter) ([]model.LinkEvent, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "link_events"),
		),
	)
	defer span.End()

	var sb strings.Builder
	sb.WriteString(`SELECT id, workspace_id, project_id, link_id, event_type,
		interaction_type, referer, device, os, browser, language,
		country, city, continent, latitude, longitude,
		is_bot, ip_hash, user_agent, occurred_at, metadata, utm
		FROM link_events
		WHERE link_id = $1 AND NOT deleted`)
	args := []any{linkID}

	if !since.IsZero() {
		args = append(args, since)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	appendFilter(&sb, &args, filter)
	sb.WriteString(" ORDER BY occurred_at DESC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var events []model.LinkEvent
	for rows.Next() {
		var (
			ev       model.LinkEvent
			metadata []byte
			utm      []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.WorkspaceID, &ev.ProjectID, &ev.LinkID, &ev.EventType,
			&ev.InteractionType, &ev.Referer, &ev.Device, &ev.OS, &ev.Browser, &ev.Language,
			&ev.Country, &ev.City, &ev.Continent, &ev.Latitude, &ev.Longitude,
			&ev.IsBot, &ev.IPHash, &ev.UserAgent, &ev.OccurredAt, &metadata, &utm,
		); err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(utm, &ev.UTM); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MarkDeletedByWorkspace soft-deletes all events for a workspace. Used when
// a workspace's data is purged; rows stay in place for billing audits.
func (r *EventRepository) MarkDeletedByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "link_events"),
		),
	)
	defer span.End()

	result, err := r.db.Exec(ctx,
		`UPDATE link_events SET deleted = TRUE WHERE workspace_id = $1 AND NOT deleted`,
		workspaceID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return result.RowsAffected(), nil
}

// appendFilter adds one WHERE clause per non-zero filter dimension.
func appendFilter(sb *strings.Builder, args *[]any, f model.AnalyticsFilter) {
	add := func(column string, value any) {
		*args = append(*args, value)
		fmt.Fprintf(sb, " AND %s = $%d", column, len(*args))
	}

	if f.EventType != "" {
		add("event_type", string(f.EventType))
	}
	if f.Interaction != "" {
		add("interaction_type", string(f.Interaction))
	}
	if f.Device != "" {
		add("device", f.Device)
	}
	if f.OS != "" {
		add("os", f.OS)
	}
	if f.Browser != "" {
		add("browser", f.Browser)
	}
	if f.Language != "" {
		add("language", f.Language)
	}
	if f.Country != "" {
		add("country", f.Country)
	}
	if f.City != "" {
		add("city", f.City)
	}
	if f.Continent != "" {
		add("continent", f.Continent)
	}
	if f.Referer != "" {
		add("referer", f.Referer)
	}
	if f.Bot != nil {
		add("is_bot", *f.Bot)
	}
	if f.UTMSource != "" {
		add("utm->>'utm_source'", f.UTMSource)
	}
	if f.UTMMedium != "" {
		add("utm->>'utm_medium'", f.UTMMedium)
	}
	if f.UTMCampaign != "" {
		add("utm->>'utm_campaign'", f.UTMCampaign)
	}
	if f.UTMTerm != "" {
		add("utm->>'utm_term'", f.UTMTerm)
	}
	if f.UTMContent != "" {
		add("utm->>'utm_content'", f.UTMContent)
	}
}
