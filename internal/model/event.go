package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the raw recorded event type, as declared by the inbound
// request (redirect endpoints record "click", QR endpoints record "scan").
type EventType string

const (
	EventTypeClick EventType = "click"
	EventTypeScan  EventType = "scan"
)

// InteractionType is the semantic classification of a hit, derived from the
// event type, referer, bot flag and user agent. Distinct from EventType.
type InteractionType string

const (
	InteractionClick  InteractionType = "click"
	InteractionScan   InteractionType = "scan"
	InteractionDirect InteractionType = "direct"
	InteractionAPI    InteractionType = "api"
	InteractionBot    InteractionType = "bot"
)

// LinkEvent is an immutable record of one interaction with a link.
// Append-only; once created it is only ever touched by the soft-delete flag
// used when a workspace's data is purged. The raw IP is never stored, only
// its hash.
type LinkEvent struct {
	ID              uuid.UUID       `json:"id"`
	WorkspaceID     uuid.UUID       `json:"workspace_id"`
	ProjectID       *uuid.UUID      `json:"project_id,omitempty"`
	LinkID          uuid.UUID       `json:"link_id"`
	EventType       EventType       `json:"event_type"`
	InteractionType InteractionType `json:"interaction_type"`
	Referer         string          `json:"referer,omitempty"`
	Device          string          `json:"device,omitempty"`
	OS              string          `json:"os,omitempty"`
	Browser         string          `json:"browser,omitempty"`
	Language        string          `json:"language,omitempty"`
	Country         *string         `json:"country,omitempty"`
	City            *string         `json:"city,omitempty"`
	Continent       *string         `json:"continent,omitempty"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	IsBot           bool            `json:"is_bot"`
	IPHash          string          `json:"ip_hash,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
	Metadata        EventMetadata   `json:"metadata"`
	UTM             UTM             `json:"utm"`
}

// EventMetadata carries the derived context recorded alongside an event.
type EventMetadata struct {
	RedirectTo      string          `json:"redirect_to,omitempty"`
	Domain          string          `json:"domain,omitempty"`
	InteractionType InteractionType `json:"interaction_type,omitempty"`
}

// EventEnvelope is the payload published to real-time subscribers.
type EventEnvelope struct {
	LinkID      string     `json:"linkId"`
	ProjectID   string     `json:"projectId,omitempty"`
	WorkspaceID string     `json:"workspaceId"`
	EventType   EventType  `json:"eventType"`
	Event       *LinkEvent `json:"event"`
}
