package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/linklytics/gateway/internal/model"
)

// publishTimeout bounds each broker publish so the mirror can never stall
// the caller for long.
const publishTimeout = 2 * time.Second

// BrokerMirror re-publishes bus events to a RabbitMQ topic exchange for
// cross-process subscribers. The first publish failure disables the mirror
// for the rest of the process; in-process delivery continues regardless.
type BrokerMirror struct {
	ch       *amqp.Channel
	exchange string
	disabled atomic.Bool
	logger   *slog.Logger
}

// NewBrokerMirror declares the topic exchange on the given connection.
func NewBrokerMirror(conn *amqp.Connection, exchange string, logger *slog.Logger) (*BrokerMirror, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open broker channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &BrokerMirror{ch: ch, exchange: exchange, logger: logger}, nil
}

// Publish mirrors one event. Errors disable the mirror process-wide and
// are never propagated to the publishing request.
func (m *BrokerMirror) Publish(env model.EventEnvelope) {
	if m.disabled.Load() {
		return
	}

	body, err := json.Marshal(env)
	if err != nil {
		m.logger.Warn("failed to marshal event for broker", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	routingKey := fmt.Sprintf("workspace.%s.link.%s", env.WorkspaceID, env.LinkID)
	err = m.ch.PublishWithContext(ctx, m.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		m.disabled.Store(true)
		m.logger.Error("broker publish failed, disabling mirror",
			slog.String("error", err.Error()))
	}
}

// Close releases the broker channel.
func (m *BrokerMirror) Close() {
	if m.ch != nil {
		m.ch.Close()
	}
}
