package model

import (
	"time"

	"github.com/google/uuid"
)

// Domain is a hostname that can serve redirects. A domain with a nil
// workspace is a shared/default domain usable by any workspace.
type Domain struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID *uuid.UUID `json:"workspace_id,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	Domain      string     `json:"domain"`
	Verified    bool       `json:"verified"`
	CreatedAt   time.Time  `json:"created_at"`
}

// QRCode links a scannable code to a short link. Scanning resolves the
// attached link and records a scan event.
type QRCode struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	Code        string     `json:"code"`
	LinkID      *uuid.UUID `json:"link_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
