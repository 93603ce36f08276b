// Package handler dispatches NATS mutation intents into the service layer.
package handler

import (
	"context"
	"log/slog"

	"convivo.im.messaging/internal/service"
	"convivo.im.messaging/pkg/wire"
)

// IntentDispatcher routes decoded intents. Intents are fire-and-forget, so
// failures are logged rather than bounced to the producer.
type IntentDispatcher struct {
	conversations *service.ConversationService
	messages      *service.MessageService
	announcer     *service.Announcer
	logger        *slog.Logger
}

func NewIntentDispatcher(conversations *service.ConversationService, messages *service.MessageService, announcer *service.Announcer) *IntentDispatcher {
	return &IntentDispatcher{
		conversations: conversations,
		messages:      messages,
		announcer:     announcer,
		logger:        slog.Default(),
	}
}

func (d *IntentDispatcher) HandleSendMessage(ctx context.Context, intent *wire.SendMessage) {
	msg, err := d.messages.Send(ctx, intent.ConversationID, intent.UserID, intent.Content, intent.Attachments)
	if err != nil {
		d.logger.Error("Failed to send message",
			"conversationID", intent.ConversationID,
			"userID", intent.UserID,
			"error", err,
		)
		return
	}
	d.logger.Debug("Message sent", "messageID", msg.ID, "conversationID", msg.ConversationID)
}

func (d *IntentDispatcher) HandleMarkConversationRead(ctx context.Context, intent *wire.MarkConversationRead) {
	if err := d.conversations.MarkRead(ctx, intent.ConversationID, intent.UserID, intent.MessageID); err != nil {
		d.logger.Error("Failed to mark conversation read",
			"conversationID", intent.ConversationID,
			"userID", intent.UserID,
			"error", err,
		)
	}
}

func (d *IntentDispatcher) HandleMarkMessageRead(ctx context.Context, intent *wire.MarkMessageRead) {
	if err := d.messages.MarkRead(ctx, intent.MessageID, intent.UserID); err != nil {
		d.logger.Error("Failed to mark message read",
			"messageID", intent.MessageID,
			"userID", intent.UserID,
			"error", err,
		)
	}
}

func (d *IntentDispatcher) HandleDeleteMessage(ctx context.Context, intent *wire.DeleteMessage) {
	if err := d.messages.Delete(ctx, intent.MessageID, intent.UserID); err != nil {
		d.logger.Error("Failed to delete message",
			"messageID", intent.MessageID,
			"userID", intent.UserID,
			"error", err,
		)
	}
}

func (d *IntentDispatcher) HandleAnnouncement(ctx context.Context, intent *wire.Announcement) {
	if len(intent.ConversationIDs) == 0 || intent.Content == "" {
		d.logger.Warn("Dropping empty announcement", "authorID", intent.AuthorID)
		return
	}
	ids := d.announcer.Enqueue(intent.ConversationIDs, intent.AuthorID, intent.Content)
	d.logger.Info("Announcement queued",
		"authorID", intent.AuthorID,
		"conversationCount", len(intent.ConversationIDs),
		"messageCount", len(ids),
	)
}
