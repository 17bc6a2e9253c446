package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linklytics/gateway/internal/model"
)

// WebhookRepository handles database operations for webhook registrations.
type WebhookRepository struct {
	db *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// ListActive returns the active webhooks for a workspace subscribed to the
// given event name.
func (r *WebhookRepository) ListActive(ctx context.Context, workspaceID uuid.UUID, eventName string) ([]model.Webhook, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "webhooks"),
			attribute.String("event", eventName),
		),
	)
	defer span.End()

	rows, err := r.db.Query(ctx,
		`SELECT id, workspace_id, url, secret, events, active, created_at
		FROM webhooks
		WHERE workspace_id = $1 AND active AND $2 = ANY(events)`,
		workspaceID, eventName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var hooks []model.Webhook
	for rows.Next() {
		var w model.Webhook
		if err := rows.Scan(&w.ID, &w.WorkspaceID, &w.URL, &w.Secret, &w.Events, &w.Active, &w.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

// Create inserts a webhook registration.
func (r *WebhookRepository) Create(ctx context.Context, w *model.Webhook) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "webhooks"),
		),
	)
	defer span.End()

	err := r.db.QueryRow(ctx,
		`INSERT INTO webhooks (id, workspace_id, url, secret, events, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		w.ID, w.WorkspaceID, w.URL, w.Secret, w.Events, w.Active,
	).Scan(&w.CreatedAt)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
