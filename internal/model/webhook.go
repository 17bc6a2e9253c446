package model

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event names dispatched by the redirect pipeline.
const (
	WebhookEventClickRecorded = "click.recorded"
	WebhookEventScanRecorded  = "scan.recorded"
)

// Webhook is a registered outbound endpoint subscribed to workspace events.
// Each webhook has its own signing secret.
type Webhook struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	URL         string    `json:"url"`
	Secret      string    `json:"-"`
	Events      []string  `json:"events"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubscribedTo reports whether the webhook is subscribed to the event name.
func (w *Webhook) SubscribedTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookPayload is the body POSTed to webhook endpoints.
type WebhookPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}
