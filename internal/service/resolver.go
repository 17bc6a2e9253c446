package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/model"
	"github.com/linklytics/gateway/internal/repository"
)

var (
	ErrInvalidURL     = errors.New("invalid URL format")
	ErrLinkNotFound   = errors.New("link not found")
	ErrDomainNotFound = errors.New("domain not found")
	ErrSlugExists     = errors.New("slug already exists on this domain")
	ErrInvalidSlug    = errors.New("invalid slug format")
	ErrSlugGeneration = errors.New("failed to generate slug")
	ErrQRNotFound     = errors.New("qr code not found")
	ErrQRUnlinked     = errors.New("qr code has no linked short link")
)

// DomainStore looks up serving domains.
type DomainStore interface {
	GetDomainByName(ctx context.Context, name string) (*model.Domain, error)
}

// ResolutionStore resolves (domain, slug) pairs to active link snapshots.
type ResolutionStore interface {
	ResolveActive(ctx context.Context, domainID uuid.UUID, slug string) (*model.Link, error)
}

// LinkResolver resolves an inbound (host, slug) request to a link.
type LinkResolver struct {
	domains       DomainStore
	links         ResolutionStore
	defaultDomain string
	logger        *slog.Logger
}

// NewLinkResolver creates a resolver that substitutes defaultDomain for
// empty, localhost or loopback hosts.
func NewLinkResolver(domains DomainStore, links ResolutionStore, defaultDomain string, logger *slog.Logger) *LinkResolver {
	return &LinkResolver{
		domains:       domains,
		links:         links,
		defaultDomain: defaultDomain,
		logger:        logger,
	}
}

// NormalizeHost lowercases the host, strips any port, and substitutes the
// default domain for empty, localhost and loopback hosts.
func NormalizeHost(host, defaultDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if host == "" || host == "localhost" {
		return defaultDomain
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return defaultDomain
	}
	return host
}

// Resolve maps (host, slug) to an active link and its serving domain.
// An unknown host is retried under the default domain before failing.
func (r *LinkResolver) Resolve(ctx context.Context, host, slug string) (*model.Link, *model.Domain, error) {
	name := NormalizeHost(host, r.defaultDomain)

	domain, err := r.domains.GetDomainByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) && name != r.defaultDomain {
		name = r.defaultDomain
		domain, err = r.domains.GetDomainByName(ctx, name)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrDomainNotFound
		}
		return nil, nil, err
	}

	link, err := r.links.ResolveActive(ctx, domain.ID, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrLinkNotFound
		}
		return nil, nil, err
	}
	return link, domain, nil
}
