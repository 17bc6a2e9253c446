package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/model"
	"github.com/linklytics/gateway/internal/repository"
)

// LinkRepo is the storage surface the link service writes through.
type LinkRepo interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
	Update(ctx context.Context, link *model.Link) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.LinkStatus) error
	GetDomainByName(ctx context.Context, name string) (*model.Domain, error)
}

// CacheInvalidator drops resolution cache entries after link mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, domainID uuid.UUID, slug string)
}

// LinkService handles the CRUD surface around the redirect core.
type LinkService struct {
	repo          LinkRepo
	cache         CacheInvalidator
	slugGen       *SlugGenerator
	baseURL       string
	defaultDomain string
	logger        *slog.Logger
}

// NewLinkService creates a new link service
func NewLinkService(repo LinkRepo, cache CacheInvalidator, slugGen *SlugGenerator, baseURL, defaultDomain string, logger *slog.Logger) *LinkService {
	return &LinkService{
		repo:          repo,
		cache:         cache,
		slugGen:       slugGen,
		baseURL:       baseURL,
		defaultDomain: defaultDomain,
		logger:        logger,
	}
}

// LinkServiceInterface defines the contract for link management.
type LinkServiceInterface interface {
	CreateLink(ctx context.Context, workspaceID uuid.UUID, req *model.CreateLinkRequest) (*model.Link, error)
	GetLink(ctx context.Context, id uuid.UUID) (*model.Link, error)
	UpdateLink(ctx context.Context, id uuid.UUID, req *model.UpdateLinkRequest) (*model.Link, error)
	ArchiveLink(ctx context.Context, id uuid.UUID) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	ShortURL(link *model.Link) string
}

// CreateLink creates a short link under the requested (or default) domain.
// Slug uniqueness is enforced by storage; generated slugs retry on
// collision, custom slugs surface ErrSlugExists.
func (s *LinkService) CreateLink(ctx context.Context, workspaceID uuid.UUID, req *model.CreateLinkRequest) (*model.Link, error) {
	if !validDestination(req.URL) {
		return nil, ErrInvalidURL
	}

	domain, err := s.resolveDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	var projectID *uuid.UUID
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return nil, ErrInvalidURL
		}
		projectID = &id
	}

	link := &model.Link{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		DomainID:    domain.ID,
		OriginalURL: req.URL,
		Status:      model.LinkStatusActive,
		GeoRules:    req.GeoRules,
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
		FallbackURL: req.FallbackURL,
		PublicStats: req.PublicStats,
		UTM:         req.UTM,
	}
	if link.PublicStats {
		link.StatsToken = newStatsToken()
	}

	if req.Slug != "" {
		if !ValidateSlug(req.Slug) {
			return nil, ErrInvalidSlug
		}
		link.Slug = req.Slug
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrSlugConflict) {
				return nil, ErrSlugExists
			}
			return nil, err
		}
		return link, nil
	}

	for attempt := 0; attempt < s.slugGen.maxRetries; attempt++ {
		candidate, genErr := s.slugGen.Generate(req.URL, attempt)
		if genErr != nil {
			return nil, genErr
		}
		link.Slug = candidate
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrSlugConflict) {
				continue
			}
			return nil, err
		}
		return link, nil
	}
	return nil, ErrSlugGeneration
}

// GetLink retrieves a link by id.
func (s *LinkService) GetLink(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// UpdateLink applies the non-nil fields of the request and invalidates the
// resolution cache for both the old and new slug.
func (s *LinkService) UpdateLink(ctx context.Context, id uuid.UUID, req *model.UpdateLinkRequest) (*model.Link, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := link.Slug

	if req.URL != nil {
		if !validDestination(*req.URL) {
			return nil, ErrInvalidURL
		}
		link.OriginalURL = *req.URL
	}
	if req.Slug != nil {
		if !ValidateSlug(*req.Slug) {
			return nil, ErrInvalidSlug
		}
		link.Slug = *req.Slug
	}
	if req.GeoRules != nil {
		link.GeoRules = req.GeoRules
	}
	if req.ExpiresAt != nil {
		link.ExpiresAt = req.ExpiresAt
	}
	if req.MaxClicks != nil {
		link.MaxClicks = req.MaxClicks
	}
	if req.FallbackURL != nil {
		link.FallbackURL = *req.FallbackURL
	}
	if req.PublicStats != nil {
		link.PublicStats = *req.PublicStats
		if link.PublicStats && link.StatsToken == "" {
			link.StatsToken = newStatsToken()
		}
	}

	if err := s.repo.Update(ctx, link); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlugConflict):
			return nil, ErrSlugExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, link.DomainID, oldSlug)
	if link.Slug != oldSlug {
		s.cache.Invalidate(ctx, link.DomainID, link.Slug)
	}
	return link, nil
}

// ArchiveLink transitions a link to archived and drops its cache entry.
func (s *LinkService) ArchiveLink(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.LinkStatusArchived)
}

// DeleteLink soft-deletes a link and drops its cache entry. The row is
// kept; deletion is a status transition.
func (s *LinkService) DeleteLink(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.LinkStatusDeleted)
}

func (s *LinkService) transition(ctx context.Context, id uuid.UUID, status model.LinkStatus) error {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	s.cache.Invalidate(ctx, link.DomainID, link.Slug)
	return nil
}

// ShortURL renders the public short URL for a link.
func (s *LinkService) ShortURL(link *model.Link) string {
	return s.baseURL + "/" + link.Slug
}

func (s *LinkService) resolveDomain(ctx context.Context, requested string) (*model.Domain, error) {
	name := s.defaultDomain
	if requested != "" {
		name = NormalizeHost(requested, s.defaultDomain)
	}
	domain, err := s.repo.GetDomainByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return domain, nil
}

func validDestination(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// newStatsToken mints the opaque token granting unauthenticated read access
// to a link's analytics.
func newStatsToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// ToLinkResponse converts a link to its API representation.
func ToLinkResponse(link *model.Link, shortURL string) *model.LinkResponse {
	resp := &model.LinkResponse{
		ID:          link.ID.String(),
		Slug:        link.Slug,
		ShortURL:    shortURL,
		OriginalURL: link.OriginalURL,
		Status:      link.Status,
		GeoRules:    link.GeoRules,
		MaxClicks:   link.MaxClicks,
		FallbackURL: link.FallbackURL,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt.Format(time.RFC3339),
	}
	if link.ExpiresAt != nil {
		resp.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// Ensure LinkService implements LinkServiceInterface at compile time
var _ LinkServiceInterface = (*LinkService)(nil)
