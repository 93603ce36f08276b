package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"convivo.im.messaging/internal/cache"
	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/model"
	"convivo.im.messaging/internal/repository"
	"convivo.im.messaging/internal/snowflake"
	"convivo.im.messaging/internal/storage"
	"convivo.im.messaging/pkg/wire"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ObjectStore is the slice of the attachment store the service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	PresignURL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// ChangePublisher emits change-feed events after successful mutations.
type ChangePublisher interface {
	MessageInserted(conversationID, messageID, authorID int64) error
	MessageDeleted(conversationID, messageID int64) error
}

// MessageService owns the message lifecycle: paginated fetch, send with
// attachments, read receipts, reactions, author-only delete.
type MessageService struct {
	messages      *repository.MessageRepository
	conversations *repository.ConversationRepository
	receipts      *repository.ReceiptRepository
	store         ObjectStore
	publisher     ChangePublisher
	listCache     *cache.ConversationCache
	idGenerator   *snowflake.Node
	logger        *slog.Logger
}

func NewMessageService(
	messages *repository.MessageRepository,
	conversations *repository.ConversationRepository,
	receipts *repository.ReceiptRepository,
	store ObjectStore,
	publisher ChangePublisher,
	listCache *cache.ConversationCache,
	idGenerator *snowflake.Node,
) *MessageService {
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		receipts:      receipts,
		store:         store,
		publisher:     publisher,
		listCache:     listCache,
		idGenerator:   idGenerator,
		logger:        slog.Default(),
	}
}

// FetchPage returns a window of messages in ascending creation order with
// attachment URLs derived from their storage paths.
func (s *MessageService) FetchPage(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messages.Page(ctx, conversationID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to fetch message page", "conversationId", conversationID, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	for i := range messages {
		s.presignAttachments(ctx, &messages[i])
	}
	return messages, nil
}

// FetchByID returns one message, or (nil, nil) when the row is gone.
// Callers holding a stale id must tolerate that.
func (s *MessageService) FetchByID(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		s.logger.Error("Failed to fetch message", "messageId", messageID, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if msg == nil {
		return nil, nil
	}

	s.presignAttachments(ctx, msg)
	return msg, nil
}

// Send validates, uploads attachment payloads, then commits the message,
// its attachment rows and the sender's receipt in one transaction. Uploads
// that precede a failed commit are compensated by deleting the objects.
func (s *MessageService) Send(ctx context.Context, conversationID, userID int64, content string, uploads []wire.AttachmentUpload) (*model.Message, error) {
	if strings.TrimSpace(content) == "" && len(uploads) == 0 {
		return nil, apperrors.ErrEmptyMessage
	}

	active, err := s.conversations.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if !active {
		return nil, apperrors.ErrNotParticipant
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:             s.idGenerator.Generate().Int64(),
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	attachments, err := s.uploadAll(ctx, msg.ID, uploads)
	if err != nil {
		return nil, err
	}

	if err := s.messages.CreateWithAttachments(ctx, msg, attachments); err != nil {
		s.logger.Error("Failed to insert message", "conversationId", conversationID, "error", err)
		s.removeAll(ctx, attachments)
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	msg.Attachments = attachments
	s.presignAttachments(ctx, msg)

	if err := s.publisher.MessageInserted(conversationID, msg.ID, userID); err != nil {
		// subscribers recover on their next page load
		s.logger.Warn("Failed to publish insert event", "messageId", msg.ID, "error", err)
	}

	s.touchListCache(conversationID, userID, msg)

	s.logger.Debug("Message sent", "messageId", msg.ID, "conversationId", conversationID, "attachments", len(attachments))
	return msg, nil
}

// MarkRead upserts the caller's receipt for one message.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID int64) error {
	if err := s.receipts.Upsert(ctx, messageID, userID); err != nil {
		s.logger.Error("Failed to upsert receipt", "messageId", messageID, "userId", userID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// Delete hard-removes a message. Only the author may delete; storage
// objects of its attachments are left behind.
func (s *MessageService) Delete(ctx context.Context, messageID, userID int64) error {
	authorID, conversationID, err := s.messages.Owner(ctx, messageID)
	if err != nil {
		s.logger.Error("Failed to look up message author", "messageId", messageID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}
	if authorID == 0 {
		return apperrors.ErrMessageNotFound
	}
	if authorID != userID {
		return apperrors.ErrNotAuthor
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		s.logger.Error("Failed to delete message", "messageId", messageID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	if err := s.publisher.MessageDeleted(conversationID, messageID); err != nil {
		s.logger.Warn("Failed to publish delete event", "messageId", messageID, "error", err)
	}

	return nil
}

// AddReaction records an emoji reaction; repeated calls are a no-op.
func (s *MessageService) AddReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	if emoji == "" {
		return apperrors.ErrInvalidParams
	}
	if err := s.messages.AddReaction(ctx, messageID, userID, emoji); err != nil {
		s.logger.Error("Failed to add reaction", "messageId", messageID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	if err := s.messages.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
		s.logger.Error("Failed to remove reaction", "messageId", messageID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// uploadAll pushes every payload into object storage under the message's
// namespace. On a mid-way failure the objects uploaded so far are removed.
func (s *MessageService) uploadAll(ctx context.Context, messageID int64, uploads []wire.AttachmentUpload) ([]model.Attachment, error) {
	attachments := make([]model.Attachment, 0, len(uploads))
	for _, u := range uploads {
		if u.FileName == "" || len(u.Data) == 0 {
			s.removeAll(ctx, attachments)
			return nil, apperrors.ErrInvalidParams
		}

		key := storage.ObjectKey(messageID, u.FileName)
		path, err := s.store.Upload(ctx, key, u.ContentType, u.Data)
		if err != nil {
			s.logger.Error("Attachment upload failed", "messageId", messageID, "file", u.FileName, "error", err)
			s.removeAll(ctx, attachments)
			return nil, apperrors.ErrStorageError.Wrap(err)
		}

		attachments = append(attachments, model.Attachment{
			ID:          s.idGenerator.Generate().Int64(),
			MessageID:   messageID,
			FileName:    u.FileName,
			ContentType: u.ContentType,
			ByteSize:    int64(len(u.Data)),
			StoragePath: path,
		})
	}
	return attachments, nil
}

func (s *MessageService) removeAll(ctx context.Context, attachments []model.Attachment) {
	for _, a := range attachments {
		_ = s.store.Remove(ctx, a.StoragePath)
	}
}

func (s *MessageService) presignAttachments(ctx context.Context, msg *model.Message) {
	for i := range msg.Attachments {
		url, err := s.store.PresignURL(ctx, msg.Attachments[i].StoragePath)
		if err != nil {
			s.logger.Warn("Failed to presign attachment URL", "path", msg.Attachments[i].StoragePath, "error", err)
			continue
		}
		msg.Attachments[i].URL = url
	}
}

// touchListCache refreshes every active participant's list snapshot off
// the critical send path.
func (s *MessageService) touchListCache(conversationID, senderID int64, msg *model.Message) {
	go func() {
		ctx := context.Background()

		memberIDs, err := s.conversations.ActiveParticipantIDs(ctx, conversationID)
		if err != nil {
			s.logger.Warn("Failed to load participants for cache touch", "conversationId", conversationID, "error", err)
			return
		}

		if err := s.listCache.TouchForSender(ctx, senderID, conversationID, msg); err != nil {
			s.logger.Warn("Failed to touch sender cache", "conversationId", conversationID, "error", err)
		}
		if err := s.listCache.TouchForRecipients(ctx, memberIDs, senderID, conversationID, msg); err != nil {
			s.logger.Warn("Failed to touch recipient cache", "conversationId", conversationID, "error", err)
		}
	}()
}
