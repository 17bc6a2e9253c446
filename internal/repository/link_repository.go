package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linklytics/gateway/internal/model"
)

var tracer = otel.Tracer("github.com/linklytics/gateway/internal/repository")

var (
	ErrNotFound     = errors.New("not found")
	ErrSlugConflict = errors.New("slug already exists on this domain")
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// LinkRepository handles database operations for links, domains and QR codes.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

const linkColumns = `id, workspace_id, project_id, domain_id, slug, original_url, status,
		geo_rules, expires_at, max_clicks, fallback_url, click_count,
		public_stats, stats_token, metadata, utm, created_at, updated_at`

// Create inserts a new link record. A unique-constraint violation on
// (domain_id, slug) is mapped to ErrSlugConflict so callers can handle
// slug collisions.
func (r *LinkRepository) Create(ctx context.Context, link *model.Link) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
			attribute.String("slug", link.Slug),
		),
	)
	defer span.End()

	geoRules, err := json.Marshal(link.GeoRules)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(link.Metadata)
	if err != nil {
		return err
	}
	utm, err := json.Marshal(link.UTM)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO links (id, workspace_id, project_id, domain_id, slug, original_url,
			status, geo_rules, expires_at, max_clicks, fallback_url,
			public_stats, stats_token, metadata, utm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		link.ID, link.WorkspaceID, link.ProjectID, link.DomainID, link.Slug,
		link.OriginalURL, link.Status, geoRules, link.ExpiresAt, link.MaxClicks,
		link.FallbackURL, link.PublicStats, link.StatsToken, metadata, utm,
	).Scan(&link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSlugConflict
		}
		return err
	}

	return nil
}

// GetActiveBySlug retrieves the active link for a (domain, slug) pair.
func (r *LinkRepository) GetActiveBySlug(ctx context.Context, domainID uuid.UUID, slug string) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
			attribute.String("slug", slug),
		),
	)
	defer span.End()

	query := `SELECT ` + linkColumns + `
		FROM links
		WHERE domain_id = $1 AND slug = $2 AND status = 'active'`
	return r.scanLink(ctx, span, query, domainID, slug)
}

// GetByID retrieves a link regardless of status.
func (r *LinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
		),
	)
	defer span.End()

	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return r.scanLink(ctx, span, query, id)
}

func (r *LinkRepository) scanLink(ctx context.Context, span trace.Span, query string, args ...any) (*model.Link, error) {
	var (
		link     model.Link
		geoRules []byte
		metadata []byte
		utm      []byte
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&link.ID, &link.WorkspaceID, &link.ProjectID, &link.DomainID, &link.Slug,
		&link.OriginalURL, &link.Status, &geoRules, &link.ExpiresAt, &link.MaxClicks,
		&link.FallbackURL, &link.ClickCount, &link.PublicStats, &link.StatsToken,
		&metadata, &utm, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	if err := json.Unmarshal(geoRules, &link.GeoRules); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &link.Metadata); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(utm, &link.UTM); err != nil {
		return nil, err
	}
	return &link, nil
}

// Update rewrites the mutable fields of a link.
func (r *LinkRepository) Update(ctx context.Context, link *model.Link) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
			attribute.String("slug", link.Slug),
		),
	)
	defer span.End()

	geoRules, err := json.Marshal(link.GeoRules)
	if err != nil {
		return err
	}

	query := `
		UPDATE links
		SET slug = $2, original_url = $3, geo_rules = $4, expires_at = $5,
			max_clicks = $6, fallback_url = $7, public_stats = $8,
			updated_at = now()
		WHERE id = $1`
	result, err := r.db.Exec(ctx, query,
		link.ID, link.Slug, link.OriginalURL, geoRules, link.ExpiresAt,
		link.MaxClicks, link.FallbackURL, link.PublicStats,
	)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSlugConflict
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus transitions a link's lifecycle status. Links are never
// physically removed; deletion is a status transition.
func (r *LinkRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LinkStatus) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
			attribute.String("status", string(status)),
		),
	)
	defer span.End()

	result, err := r.db.Exec(ctx,
		`UPDATE links SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementClicks bumps the link's running click counter. Lost increments
// under concurrency are acceptable; the counter is approximate.
func (r *LinkRepository) IncrementClicks(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "links"),
		),
	)
	defer span.End()

	_, err := r.db.Exec(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// GetDomainByName retrieves a domain record by hostname.
func (r *LinkRepository) GetDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "domains"),
			attribute.String("domain", name),
		),
	)
	defer span.End()

	var d model.Domain
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, project_id, domain, verified, created_at
		FROM domains WHERE domain = $1`, name,
	).Scan(&d.ID, &d.WorkspaceID, &d.ProjectID, &d.Domain, &d.Verified, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &d, nil
}

// CreateDomain inserts a domain record.
func (r *LinkRepository) CreateDomain(ctx context.Context, d *model.Domain) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "domains"),
			attribute.String("domain", d.Domain),
		),
	)
	defer span.End()

	err := r.db.QueryRow(ctx,
		`INSERT INTO domains (id, workspace_id, project_id, domain, verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		d.ID, d.WorkspaceID, d.ProjectID, d.Domain, d.Verified,
	).Scan(&d.CreatedAt)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// GetQRCode retrieves a QR code by its public code.
func (r *LinkRepository) GetQRCode(ctx context.Context, code string) (*model.QRCode, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "qr_codes"),
			attribute.String("code", code),
		),
	)
	defer span.End()

	var qr model.QRCode
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, code, link_id, created_at
		FROM qr_codes WHERE code = $1`, code,
	).Scan(&qr.ID, &qr.WorkspaceID, &qr.Code, &qr.LinkID, &qr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &qr, nil
}

// CreateQRCode inserts a QR code record.
func (r *LinkRepository) CreateQRCode(ctx context.Context, qr *model.QRCode) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "qr_codes"),
			attribute.String("code", qr.Code),
		),
	)
	defer span.End()

	err := r.db.QueryRow(ctx,
		`INSERT INTO qr_codes (id, workspace_id, code, link_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		qr.ID, qr.WorkspaceID, qr.Code, qr.LinkID,
	).Scan(&qr.CreatedAt)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
