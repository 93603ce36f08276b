package service

import (
	"context"
	"log/slog"
	"time"

	"convivo.im.messaging/internal/cache"
	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/model"
	"convivo.im.messaging/internal/repository"
	"convivo.im.messaging/internal/snowflake"
)

// ConversationService translates conversation intents into store
// operations: listing, fetching, creating, and read-pointer maintenance.
type ConversationService struct {
	repo        *repository.ConversationRepository
	listCache   *cache.ConversationCache
	idGenerator *snowflake.Node
	logger      *slog.Logger
}

func NewConversationService(repo *repository.ConversationRepository, listCache *cache.ConversationCache, idGenerator *snowflake.Node) *ConversationService {
	return &ConversationService{
		repo:        repo,
		listCache:   listCache,
		idGenerator: idGenerator,
		logger:      slog.Default(),
	}
}

// ListForUser returns the caller's active conversations, newest activity
// first, each annotated with an exact unread count.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	summaries, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list conversations", "userId", userID, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return summaries, nil
}

// FetchOne returns the full detail including participants and their
// profile projections. A missing conversation is (nil, nil), not an error.
func (s *ConversationService) FetchOne(ctx context.Context, conversationID int64) (*model.ConversationDetail, error) {
	detail, err := s.repo.FindDetail(ctx, conversationID)
	if err != nil {
		s.logger.Error("Failed to fetch conversation", "conversationId", conversationID, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return detail, nil
}

// Create inserts the conversation and all memberships atomically.
func (s *ConversationService) Create(ctx context.Context, title string, participantIDs []int64, isGroup bool) (*model.Conversation, error) {
	if len(participantIDs) == 0 {
		return nil, apperrors.ErrInvalidParams
	}

	conv := &model.Conversation{
		ID:        s.idGenerator.Generate().Int64(),
		IsGroup:   isGroup,
		CreatedAt: time.Now().UTC(),
	}
	if title != "" {
		conv.Title = &title
	}
	conv.UpdatedAt = conv.CreatedAt

	if err := s.repo.Create(ctx, conv, dedupeIDs(participantIDs)); err != nil {
		s.logger.Error("Failed to create conversation", "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	s.logger.Info("Conversation created", "conversationId", conv.ID, "participants", len(participantIDs), "isGroup", isGroup)
	return conv, nil
}

// MarkRead advances the caller's read pointer. The pointer only moves
// forward, so stale or repeated calls change nothing.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID, messageID int64) error {
	if err := s.repo.AdvanceReadPointer(ctx, conversationID, userID, messageID); err != nil {
		s.logger.Error("Failed to advance read pointer",
			"conversationId", conversationID, "userId", userID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	// list cache off the critical path
	go func() {
		if err := s.listCache.MarkRead(context.Background(), userID, conversationID, messageID); err != nil {
			s.logger.Warn("Failed to update read cache", "conversationId", conversationID, "error", err)
		}
	}()

	return nil
}

// TotalUnread serves the cross-conversation unread badge from the cache.
func (s *ConversationService) TotalUnread(ctx context.Context, userID int64) (int64, error) {
	total, err := s.listCache.TotalUnread(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to read total unread", "userId", userID, "error", err)
		return 0, apperrors.ErrServerError.Wrap(err)
	}
	return total, nil
}

// IsActiveParticipant reports current membership; used to gate bridge
// opens and sends.
func (s *ConversationService) IsActiveParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	ok, err := s.repo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return ok, nil
}

// Leave marks the caller's membership inactive. The row is kept so read
// history survives; only left_at is set.
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID int64) error {
	if err := s.repo.Leave(ctx, conversationID, userID); err != nil {
		s.logger.Error("Failed to leave conversation",
			"conversationId", conversationID, "userId", userID, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
