package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linklytics/gateway/internal/model"
	"github.com/linklytics/gateway/internal/repository"
)

// fakeDomainStore serves domains from an in-memory map keyed by name.
type fakeDomainStore struct {
	domains map[string]*model.Domain
}

func (f *fakeDomainStore) GetDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	if d, ok := f.domains[name]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

// fakeResolutionStore serves links keyed by domain id and slug.
type fakeResolutionStore struct {
	links map[uuid.UUID]map[string]*model.Link
}

func (f *fakeResolutionStore) ResolveActive(ctx context.Context, domainID uuid.UUID, slug string) (*model.Link, error) {
	if byID, ok := f.links[domainID]; ok {
		if l, ok := byID[slug]; ok {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"plain host", "demo.local", "demo.local"},
		{"uppercased", "DEMO.Local", "demo.local"},
		{"strips port", "demo.local:8080", "demo.local"},
		{"localhost maps to default", "localhost", "short.example"},
		{"localhost with port maps to default", "localhost:3000", "short.example"},
		{"ipv4 loopback maps to default", "127.0.0.1", "short.example"},
		{"ipv6 loopback maps to default", "[::1]:8080", "short.example"},
		{"empty maps to default", "", "short.example"},
		{"public ip stays", "203.0.113.9", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHost(tt.host, "short.example"))
		})
	}
}

func TestLinkResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	defaultDomain := &model.Domain{ID: uuid.New(), Domain: "short.example"}
	customDomain := &model.Domain{ID: uuid.New(), Domain: "go.acme.dev"}

	defaultLink := &model.Link{ID: uuid.New(), DomainID: defaultDomain.ID, Slug: "launch", Status: model.LinkStatusActive}
	customLink := &model.Link{ID: uuid.New(), DomainID: customDomain.ID, Slug: "launch", Status: model.LinkStatusActive}

	domains := &fakeDomainStore{domains: map[string]*model.Domain{
		"short.example": defaultDomain,
		"go.acme.dev":   customDomain,
	}}
	links := &fakeResolutionStore{links: map[uuid.UUID]map[string]*model.Link{
		defaultDomain.ID: {"launch": defaultLink},
		customDomain.ID:  {"launch": customLink},
	}}

	r := NewLinkResolver(domains, links, "short.example", logger)

	t.Run("same slug resolves per host", func(t *testing.T) {
		link, domain, err := r.Resolve(ctx, "go.acme.dev", "launch")
		require.NoError(t, err)
		assert.Equal(t, customLink.ID, link.ID)
		assert.Equal(t, customDomain.ID, domain.ID)

		link, domain, err = r.Resolve(ctx, "short.example", "launch")
		require.NoError(t, err)
		assert.Equal(t, defaultLink.ID, link.ID)
		assert.Equal(t, defaultDomain.ID, domain.ID)
	})

	t.Run("unknown host retries under default domain", func(t *testing.T) {
		link, domain, err := r.Resolve(ctx, "unregistered.example", "launch")
		require.NoError(t, err)
		assert.Equal(t, defaultLink.ID, link.ID)
		assert.Equal(t, defaultDomain.ID, domain.ID)
	})

	t.Run("localhost resolves under default domain", func(t *testing.T) {
		link, _, err := r.Resolve(ctx, "localhost:8080", "launch")
		require.NoError(t, err)
		assert.Equal(t, defaultLink.ID, link.ID)
	})

	t.Run("unknown slug", func(t *testing.T) {
		_, _, err := r.Resolve(ctx, "short.example", "nope")
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})

	t.Run("no default domain registered", func(t *testing.T) {
		empty := NewLinkResolver(&fakeDomainStore{domains: map[string]*model.Domain{}}, links, "short.example", logger)
		_, _, err := empty.Resolve(ctx, "short.example", "launch")
		assert.ErrorIs(t, err, ErrDomainNotFound)
	})
}
