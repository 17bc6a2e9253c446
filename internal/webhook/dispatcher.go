package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linklytics/gateway/internal/model"
)

// Signature headers attached to every delivery.
const (
	HeaderSignature = "X-Linklytics-Signature"
	HeaderWebhookID = "X-Linklytics-Webhook-Id"
)

// deliveryTimeout bounds each individual webhook request.
const deliveryTimeout = 10 * time.Second

// Registry lists the active webhooks for a workspace event.
type Registry interface {
	ListActive(ctx context.Context, workspaceID uuid.UUID, eventName string) ([]model.Webhook, error)
}

// Dispatcher delivers event payloads to registered webhooks. Deliveries
// run concurrently and failures are isolated per webhook; nothing is
// retried here.
type Dispatcher struct {
	registry Registry
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. client may be nil to use a default
// with the standard delivery timeout.
func NewDispatcher(registry Registry, client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: deliveryTimeout}
	}
	return &Dispatcher{
		registry: registry,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch signs and POSTs the payload to every active webhook of the
// workspace subscribed to eventName. It blocks until all deliveries have
// finished; callers on the redirect path run it in its own goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, workspaceID uuid.UUID, eventName string, payload any) {
	hooks, err := d.registry.ListActive(ctx, workspaceID, eventName)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to list webhooks",
			slog.String("workspace_id", workspaceID.String()),
			slog.String("error", err.Error()))
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(model.WebhookPayload{
		Event:     eventName,
		Timestamp: d.now().UTC().Format(time.RFC3339),
		Data:      payload,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to marshal webhook payload",
			slog.String("error", err.Error()))
		return
	}

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(hook model.Webhook) {
			defer wg.Done()
			d.deliver(ctx, hook, body)
		}(hook)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, hook model.Webhook, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.logger.WarnContext(ctx, "invalid webhook request",
			slog.String("webhook_id", hook.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, NewSigner(hook.Secret).Sign(body))
	req.Header.Set(HeaderWebhookID, hook.ID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WarnContext(ctx, "webhook delivery failed",
			slog.String("webhook_id", hook.ID.String()),
			slog.String("url", hook.URL),
			slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		d.logger.WarnContext(ctx, "webhook delivery rejected",
			slog.String("webhook_id", hook.ID.String()),
			slog.String("url", hook.URL),
			slog.Int("status", resp.StatusCode))
	}
}
