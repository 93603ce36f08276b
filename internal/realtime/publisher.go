package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"convivo.im.messaging/pkg/wire"
)

// EventPublisher emits id-only change events on the per-conversation
// subjects. Subscribers re-fetch by id; the payload is never treated as a
// row.
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// MessageInserted announces a new message row.
func (p *EventPublisher) MessageInserted(conversationID, messageID, authorID int64) error {
	return p.publish(&wire.MessageEvent{
		Kind:           wire.EventMessageInserted,
		ConversationID: conversationID,
		MessageID:      messageID,
		AuthorID:       authorID,
	})
}

// MessageDeleted announces a hard delete; holders of stale references must
// tolerate a subsequent fetch returning nothing.
func (p *EventPublisher) MessageDeleted(conversationID, messageID int64) error {
	return p.publish(&wire.MessageEvent{
		Kind:           wire.EventMessageDeleted,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

func (p *EventPublisher) publish(event *wire.MessageEvent) error {
	subject := ConversationSubject(event.ConversationID)
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "error", err)
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return err
	}

	p.logger.Debug("Published event", "subject", subject, "kind", event.Kind, "messageId", event.MessageID)
	return nil
}
