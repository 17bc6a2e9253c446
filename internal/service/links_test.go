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

// fakeLinkRepo is an in-memory LinkRepo enforcing slug uniqueness per domain.
type fakeLinkRepo struct {
	domains map[string]*model.Domain
	links   map[uuid.UUID]*model.Link
	taken   map[string]bool
}

func newFakeLinkRepo(defaultDomain string) *fakeLinkRepo {
	return &fakeLinkRepo{
		domains: map[string]*model.Domain{
			defaultDomain: {ID: uuid.New(), Domain: defaultDomain},
		},
		links: make(map[uuid.UUID]*model.Link),
		taken: make(map[string]bool),
	}
}

func (f *fakeLinkRepo) slugKey(domainID uuid.UUID, slug string) string {
	return domainID.String() + "/" + slug
}

func (f *fakeLinkRepo) Create(ctx context.Context, link *model.Link) error {
	key := f.slugKey(link.DomainID, link.Slug)
	if f.taken[key] {
		return repository.ErrSlugConflict
	}
	f.taken[key] = true
	cp := *link
	f.links[link.ID] = &cp
	return nil
}

func (f *fakeLinkRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	if l, ok := f.links[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLinkRepo) Update(ctx context.Context, link *model.Link) error {
	stored, ok := f.links[link.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if link.Slug != stored.Slug {
		key := f.slugKey(link.DomainID, link.Slug)
		if f.taken[key] {
			return repository.ErrSlugConflict
		}
		delete(f.taken, f.slugKey(stored.DomainID, stored.Slug))
		f.taken[key] = true
	}
	cp := *link
	f.links[link.ID] = &cp
	return nil
}

func (f *fakeLinkRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LinkStatus) error {
	l, ok := f.links[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeLinkRepo) GetDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	if d, ok := f.domains[name]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

// recordingInvalidator records which cache keys were dropped.
type recordingInvalidator struct {
	dropped []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, domainID uuid.UUID, slug string) {
	r.dropped = append(r.dropped, slug)
}

func newTestLinkService(repo *fakeLinkRepo, inv *recordingInvalidator) *LinkService {
	return NewLinkService(repo, inv, NewSlugGenerator(7, 3), "https://short.example", "short.example", slog.New(slog.DiscardHandler))
}

func TestLinkService_CreateLink(t *testing.T) {
	ctx := context.Background()
	workspace := uuid.New()

	t.Run("creates a link with a generated slug", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		link, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com/landing"})
		require.NoError(t, err)
		assert.Len(t, link.Slug, 7)
		assert.Equal(t, model.LinkStatusActive, link.Status)
		assert.Equal(t, workspace, link.WorkspaceID)
	})

	t.Run("creates a link with a custom slug", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		link, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Slug: "launch"})
		require.NoError(t, err)
		assert.Equal(t, "launch", link.Slug)
	})

	t.Run("custom slug conflict", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		_, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Slug: "launch"})
		require.NoError(t, err)
		_, err = svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://other.example", Slug: "launch"})
		assert.ErrorIs(t, err, ErrSlugExists)
	})

	t.Run("generated slug retries on collision", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		first, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com/landing"})
		require.NoError(t, err)
		// Same destination hashes to the same first candidate.
		second, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com/landing"})
		require.NoError(t, err)
		assert.NotEqual(t, first.Slug, second.Slug)
	})

	t.Run("invalid destination", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		for _, raw := range []string{"", "not-a-url", "ftp://example.com", "javascript:alert(1)"} {
			_, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: raw})
			assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
		}
	})

	t.Run("invalid custom slug", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		_, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Slug: "a/b"})
		assert.ErrorIs(t, err, ErrInvalidSlug)
	})

	t.Run("unknown domain", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		_, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Domain: "nope.example"})
		assert.ErrorIs(t, err, ErrDomainNotFound)
	})

	t.Run("public stats mints a token", func(t *testing.T) {
		repo := newFakeLinkRepo("short.example")
		svc := newTestLinkService(repo, &recordingInvalidator{})

		link, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", PublicStats: true})
		require.NoError(t, err)
		assert.NotEmpty(t, link.StatsToken)
	})
}

func TestLinkService_UpdateLink(t *testing.T) {
	ctx := context.Background()
	workspace := uuid.New()

	setup := func(t *testing.T) (*LinkService, *fakeLinkRepo, *recordingInvalidator, *model.Link) {
		repo := newFakeLinkRepo("short.example")
		inv := &recordingInvalidator{}
		svc := newTestLinkService(repo, inv)
		link, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Slug: "launch"})
		require.NoError(t, err)
		inv.dropped = nil
		return svc, repo, inv, link
	}

	t.Run("updates destination and invalidates cache", func(t *testing.T) {
		svc, _, inv, link := setup(t)

		newURL := "https://example.com/v2"
		updated, err := svc.UpdateLink(ctx, link.ID, &model.UpdateLinkRequest{URL: &newURL})
		require.NoError(t, err)
		assert.Equal(t, newURL, updated.OriginalURL)
		assert.Equal(t, []string{"launch"}, inv.dropped)
	})

	t.Run("slug change invalidates both slugs", func(t *testing.T) {
		svc, _, inv, link := setup(t)

		newSlug := "relaunch"
		updated, err := svc.UpdateLink(ctx, link.ID, &model.UpdateLinkRequest{Slug: &newSlug})
		require.NoError(t, err)
		assert.Equal(t, "relaunch", updated.Slug)
		assert.ElementsMatch(t, []string{"launch", "relaunch"}, inv.dropped)
	})

	t.Run("unknown link", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		newURL := "https://example.com/v2"
		_, err := svc.UpdateLink(ctx, uuid.New(), &model.UpdateLinkRequest{URL: &newURL})
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestLinkService_Transitions(t *testing.T) {
	ctx := context.Background()
	workspace := uuid.New()

	repo := newFakeLinkRepo("short.example")
	inv := &recordingInvalidator{}
	svc := newTestLinkService(repo, inv)

	link, err := svc.CreateLink(ctx, workspace, &model.CreateLinkRequest{URL: "https://example.com", Slug: "launch"})
	require.NoError(t, err)

	t.Run("archive", func(t *testing.T) {
		require.NoError(t, svc.ArchiveLink(ctx, link.ID))
		stored, err := repo.GetByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LinkStatusArchived, stored.Status)
		assert.Contains(t, inv.dropped, "launch")
	})

	t.Run("delete keeps the row", func(t *testing.T) {
		require.NoError(t, svc.DeleteLink(ctx, link.ID))
		stored, err := repo.GetByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LinkStatusDeleted, stored.Status)
	})

	t.Run("unknown link", func(t *testing.T) {
		assert.ErrorIs(t, svc.ArchiveLink(ctx, uuid.New()), ErrLinkNotFound)
	})
}

func TestLinkService_ShortURL(t *testing.T) {
	svc := newTestLinkService(newFakeLinkRepo("short.example"), &recordingInvalidator{})
	assert.Equal(t, "https://short.example/launch", svc.ShortURL(&model.Link{Slug: "launch"}))
}
