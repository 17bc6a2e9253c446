package model

import (
	"time"

	"github.com/google/uuid"
)

// LinkStatus is the lifecycle state of a short link.
// Links are never physically removed; deletion is a status transition.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusArchived LinkStatus = "archived"
	LinkStatusDeleted  LinkStatus = "deleted"
)

// GeoRuleScope selects which geography field a geo rule matches against.
type GeoRuleScope string

const (
	GeoRuleScopeCountry   GeoRuleScope = "country"
	GeoRuleScopeContinent GeoRuleScope = "continent"
)

// GeoRule is a priority-ordered redirect override. Rules are evaluated in
// ascending priority order; the first match wins.
type GeoRule struct {
	Priority int          `json:"priority"`
	Scope    GeoRuleScope `json:"scope"`
	Target   string       `json:"target"`
	URL      string       `json:"url"`
}

// UTM holds the attribution fields stamped on a link at creation time and
// snapshotted onto every recorded event.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// Link represents a short-link definition owned by a workspace.
// The (domain, slug) pair is unique among non-deleted links.
type Link struct {
	ID          uuid.UUID      `json:"id"`
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	ProjectID   *uuid.UUID     `json:"project_id,omitempty"`
	DomainID    uuid.UUID      `json:"domain_id"`
	Slug        string         `json:"slug"`
	OriginalURL string         `json:"original_url"`
	Status      LinkStatus     `json:"status"`
	GeoRules    []GeoRule      `json:"geo_rules,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	MaxClicks   *int64         `json:"max_clicks,omitempty"`
	FallbackURL string         `json:"fallback_url,omitempty"`
	ClickCount  int64          `json:"click_count"`
	PublicStats bool           `json:"public_stats"`
	StatsToken  string         `json:"stats_token,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UTM         UTM            `json:"utm"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Expired reports whether the link's timestamp expiration or max-click
// ceiling has been reached at the given instant.
func (l *Link) Expired(now time.Time) bool {
	if l.ExpiresAt != nil && l.ExpiresAt.Before(now) {
		return true
	}
	if l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks {
		return true
	}
	return false
}

// CreateLinkRequest is the request body for creating a short link.
type CreateLinkRequest struct {
	URL         string     `json:"url" binding:"required,url"`
	Slug        string     `json:"slug,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	GeoRules    []GeoRule  `json:"geo_rules,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	FallbackURL string     `json:"fallback_url,omitempty"`
	PublicStats bool       `json:"public_stats,omitempty"`
	UTM         UTM        `json:"utm,omitempty"`
}

// UpdateLinkRequest is the request body for updating a short link.
// Nil fields are left unchanged.
type UpdateLinkRequest struct {
	URL         *string    `json:"url,omitempty" binding:"omitempty,url"`
	Slug        *string    `json:"slug,omitempty"`
	GeoRules    []GeoRule  `json:"geo_rules,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	FallbackURL *string    `json:"fallback_url,omitempty"`
	PublicStats *bool      `json:"public_stats,omitempty"`
}

// LinkResponse is the API representation of a link.
type LinkResponse struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Status      LinkStatus `json:"status"`
	GeoRules    []GeoRule  `json:"geo_rules,omitempty"`
	ExpiresAt   string     `json:"expires_at,omitempty"`
	MaxClicks   *int64     `json:"max_clicks,omitempty"`
	FallbackURL string     `json:"fallback_url,omitempty"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   string     `json:"created_at"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
