package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/metrics"
	"github.com/linklytics/gateway/internal/model"
	"github.com/linklytics/gateway/internal/service"
)

// Handler holds HTTP handlers and dependencies.
// It follows the dependency injection pattern, receiving
// interfaces rather than concrete implementations for testability.
type Handler struct {
	links     service.LinkServiceInterface
	engine    service.RedirectEngineInterface
	analytics service.AnalyticsServiceInterface
	db        DBInterface
	cache     CacheInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// DBInterface defines the database operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real database connection.
type DBInterface interface {
	Ping(ctx context.Context) error
	Close()
}

// CacheInterface defines the cache operations needed by the handler.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
func NewHandler(
	links service.LinkServiceInterface,
	engine service.RedirectEngineInterface,
	analytics service.AnalyticsServiceInterface,
	db DBInterface,
	cache CacheInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		links:     links,
		engine:    engine,
		analytics: analytics,
		db:        db,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding middleware
// before calling this method, so middleware runs in the correct order.
// Routes are organized into:
//   - Health check endpoint for monitoring
//   - API v1 endpoints for link management (grouped under /api/v1)
//   - Public QR and redirect endpoints for short URL resolution
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Health check endpoint
	r.GET("/health", h.healthCheck)

	// API v1 routes - grouped for versioning
	v1 := r.Group("/api/v1")
	{
		v1.POST("/links", h.createLink)
		v1.GET("/links/:id", h.getLink)
		v1.PATCH("/links/:id", h.updateLink)
		v1.POST("/links/:id/archive", h.archiveLink)
		v1.DELETE("/links/:id", h.deleteLink)
		v1.GET("/links/:id/analytics", h.linkAnalytics)
	}

	// QR scan route (public)
	r.GET("/qr/:code", h.scanQR)

	// Redirect route (public) - must be last to avoid conflicts
	r.GET("/:slug", h.redirect)
}

// healthCheck handles GET /health
// Returns the health status of the service and all dependencies.
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	cacheErr := h.cache.Ping(ctx)
	dbErr := h.db.Ping(ctx)

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "up", "database": "up"}

	if cacheErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["cache"] = "down"
	}
	if dbErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// createLink handles POST /api/v1/links
// Creates a new short link in the caller's workspace.
// Response codes:
//   - 201 Created: Link successfully created
//   - 400 Bad Request: Invalid request body, URL, slug or workspace id
//   - 409 Conflict: Slug already exists on the domain
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) createLink(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, err := workspaceFromHeader(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Missing or invalid workspace id")
		return
	}

	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.links.CreateLink(ctx, workspaceID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrInvalidSlug):
			h.errorResponse(c, http.StatusBadRequest, "Invalid slug")
		case errors.Is(err, service.ErrSlugExists):
			h.errorResponse(c, http.StatusConflict, "Slug already exists")
		case errors.Is(err, service.ErrDomainNotFound):
			h.errorResponse(c, http.StatusBadRequest, "Unknown domain")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating link",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, service.ToLinkResponse(link, h.links.ShortURL(link)))
}

// getLink handles GET /api/v1/links/:id
func (h *Handler) getLink(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	link, err := h.links.GetLink(ctx, id)
	if err != nil {
		h.linkError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, service.ToLinkResponse(link, h.links.ShortURL(link)))
}

// updateLink handles PATCH /api/v1/links/:id
func (h *Handler) updateLink(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	var req model.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.links.UpdateLink(ctx, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrInvalidSlug):
			h.errorResponse(c, http.StatusBadRequest, "Invalid slug")
		case errors.Is(err, service.ErrSlugExists):
			h.errorResponse(c, http.StatusConflict, "Slug already exists")
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error updating link",
				slog.String("error", err.Error()),
				slog.String("link_id", id.String()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	c.JSON(http.StatusOK, service.ToLinkResponse(link, h.links.ShortURL(link)))
}

// archiveLink handles POST /api/v1/links/:id/archive
func (h *Handler) archiveLink(c *gin.Context) {
	h.transition(c, h.links.ArchiveLink)
}

// deleteLink handles DELETE /api/v1/links/:id
// Soft-deletes a link; the record is retained with a deleted status.
func (h *Handler) deleteLink(c *gin.Context) {
	h.transition(c, h.links.DeleteLink)
}

func (h *Handler) transition(c *gin.Context, op func(context.Context, uuid.UUID) error) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}
	if err := op(ctx, id); err != nil {
		h.linkError(c, err, id)
		return
	}
	c.Status(http.StatusNoContent)
}

// linkAnalytics handles GET /api/v1/links/:id/analytics
// Builds the aggregated report for a link over the requested interval.
// Response codes:
//   - 200 OK: Report built
//   - 400 Bad Request: Invalid link id or interval
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) linkAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	query := analyticsQueryFromRequest(c)
	report, err := h.analytics.Report(ctx, id, query)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInterval) {
			h.errorResponse(c, http.StatusBadRequest, "Invalid interval")
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error building analytics report",
			slog.String("error", err.Error()),
			slog.String("link_id", id.String()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, report)
}

// scanQR handles GET /qr/:code
// Resolves the QR's linked short link, records a scan event and redirects.
// Response codes:
//   - 302 Found: Redirects to the resolved target
//   - 400 Bad Request: QR has no linked short link
//   - 404 Not Found: Unknown code or missing link
func (h *Handler) scanQR(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	link, err := h.engine.ResolveQR(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQRUnlinked):
			h.metrics.CountRedirect(ctx, "bad_request")
			h.errorResponse(c, http.StatusBadRequest, "QR code has no linked short link")
		case errors.Is(err, service.ErrQRNotFound), errors.Is(err, service.ErrLinkNotFound):
			h.metrics.CountRedirect(ctx, "not_found")
			h.errorResponse(c, http.StatusNotFound, "QR code not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error resolving QR code",
				slog.String("error", err.Error()),
				slog.String("code", code))
			h.metrics.CountRedirect(ctx, "error")
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.record(c, link, model.EventTypeScan)
}

// redirect handles GET /:slug
// Resolves the short link for the requested host, records a click event
// and redirects. Recording is best-effort: the redirect is served even
// when persistence fails.
// Response codes:
//   - 302 Found: Redirects to the resolved target
//   - 404 Not Found: Unknown domain or slug
//   - 500 Internal Server Error: Unexpected resolution error
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	link, _, err := h.engine.Resolve(ctx, c.Request.Host, slug)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrDomainNotFound):
			h.metrics.CountRedirect(ctx, "not_found")
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error during resolution",
				slog.String("error", err.Error()),
				slog.String("slug", slug))
			h.metrics.CountRedirect(ctx, "error")
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.record(c, link, model.EventTypeClick)
}

// record runs the recording pipeline and serves the redirect. A recording
// failure is logged but never blocks the redirect.
func (h *Handler) record(c *gin.Context, link *model.Link, eventType model.EventType) {
	ctx := c.Request.Context()

	result, err := h.engine.RecordEvent(ctx, link, requestContext(c, eventType))
	if err != nil {
		h.logger.ErrorContext(ctx, "event recording failed",
			slog.String("link_id", link.ID.String()),
			slog.String("error", err.Error()))
	}

	h.metrics.CountRedirect(ctx, "ok")
	c.Redirect(http.StatusFound, result.TargetURL)
}

// requestContext extracts the recording inputs from the HTTP request.
// Edge-network geo headers become an override that wins over IP lookup.
func requestContext(c *gin.Context, eventType model.EventType) service.RequestContext {
	return service.RequestContext{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Referer:     c.Request.Referer(),
		Language:    primaryLanguage(c.GetHeader("Accept-Language")),
		EventType:   eventType,
		DoNotTrack:  c.GetHeader("DNT") == "1" || c.GetHeader("Sec-GPC") == "1",
		Domain:      service.NormalizeHost(c.Request.Host, ""),
		GeoOverride: geoOverride(c),
	}
}

// geoOverride reads edge-provided geography headers (Cloudflare style).
func geoOverride(c *gin.Context) service.Location {
	var loc service.Location
	if v := c.GetHeader("CF-IPCountry"); v != "" && v != "XX" {
		loc.Country = &v
	}
	if v := c.GetHeader("CF-IPCity"); v != "" {
		loc.City = &v
	}
	if v := c.GetHeader("CF-IPContinent"); v != "" {
		loc.Continent = &v
	}
	if v := c.GetHeader("CF-IPLatitude"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			loc.Latitude = &f
		}
	}
	if v := c.GetHeader("CF-IPLongitude"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			loc.Longitude = &f
		}
	}
	return loc
}

// primaryLanguage extracts the first language tag from Accept-Language.
func primaryLanguage(header string) string {
	if header == "" {
		return ""
	}
	first := strings.SplitN(header, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	return strings.TrimSpace(first)
}

// analyticsQueryFromRequest parses the reporting query string.
func analyticsQueryFromRequest(c *gin.Context) model.AnalyticsQuery {
	q := model.AnalyticsQuery{
		Interval: model.Interval(c.DefaultQuery("interval", string(model.IntervalAll))),
		Filter: model.AnalyticsFilter{
			EventType:   model.EventType(c.Query("event_type")),
			Interaction: model.InteractionType(c.Query("interaction")),
			Device:      c.Query("device"),
			OS:          c.Query("os"),
			Browser:     c.Query("browser"),
			Language:    c.Query("language"),
			Country:     c.Query("country"),
			City:        c.Query("city"),
			Continent:   c.Query("continent"),
			Referer:     c.Query("referer"),
			UTMSource:   c.Query("utm_source"),
			UTMMedium:   c.Query("utm_medium"),
			UTMCampaign: c.Query("utm_campaign"),
			UTMTerm:     c.Query("utm_term"),
			UTMContent:  c.Query("utm_content"),
		},
	}
	if v := c.Query("bot"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q.Filter.Bot = &b
		}
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return q
}

func workspaceFromHeader(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.GetHeader("X-Workspace-Id"))
}

// linkError maps shared link lookup errors to HTTP responses.
func (h *Handler) linkError(c *gin.Context, err error, id uuid.UUID) {
	if errors.Is(err, service.ErrLinkNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Link not found")
		return
	}
	h.logger.ErrorContext(c.Request.Context(), "unexpected link error",
		slog.String("error", err.Error()),
		slog.String("link_id", id.String()))
	h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
