package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"convivo.im.messaging/internal/model"
)

// ConversationRepository owns conversation and participant rows.
type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ListForUser returns every conversation the user actively participates in,
// newest activity first, annotated with the last-message snapshot and the
// caller's exact unread count. Own messages never count as unread.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	query := `
		SELECT c.id, c.title, c.is_group, c.metadata, c.created_at, c.updated_at,
		       lm.id, lm.user_id, lm.content, lm.created_at,
		       (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id
		           AND m.user_id <> p.user_id
		           AND (p.last_read_message_id IS NULL OR m.id > p.last_read_message_id))
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		LEFT JOIN LATERAL (
			SELECT id, user_id, content, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		WHERE p.user_id = $1 AND p.left_at IS NULL
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.ConversationSummary, 0)
	for rows.Next() {
		var s model.ConversationSummary
		var lmID, lmAuthor *int64
		var lmContent *string
		var lmSentAt *time.Time

		if err := rows.Scan(
			&s.ID, &s.Title, &s.IsGroup, &s.Metadata, &s.CreatedAt, &s.UpdatedAt,
			&lmID, &lmAuthor, &lmContent, &lmSentAt,
			&s.UnreadCount,
		); err != nil {
			return nil, err
		}

		if lmID != nil {
			s.LastMessage = &model.LastMessage{
				ID:       *lmID,
				AuthorID: *lmAuthor,
				Preview:  *lmContent,
				SentAt:   *lmSentAt,
			}
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// FindDetail returns the conversation with its active participants and
// their profile projections. Zero rows is not an error: (nil, nil).
func (r *ConversationRepository) FindDetail(ctx context.Context, conversationID int64) (*model.ConversationDetail, error) {
	query := `
		SELECT id, title, is_group, metadata, created_at, updated_at
		FROM conversations WHERE id = $1
	`

	var detail model.ConversationDetail
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&detail.ID, &detail.Title, &detail.IsGroup, &detail.Metadata,
		&detail.CreatedAt, &detail.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	participants, err := r.activeParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	detail.Participants = participants

	return &detail, nil
}

func (r *ConversationRepository) activeParticipants(ctx context.Context, conversationID int64) ([]model.ParticipantProfile, error) {
	query := `
		SELECT p.conversation_id, p.user_id, p.role, p.last_read_message_id, p.joined_at, p.left_at,
		       COALESCE(pr.email, ''), COALESCE(pr.display_name, ''), COALESCE(pr.avatar_url, '')
		FROM conversation_participants p
		LEFT JOIN profiles pr ON pr.id = p.user_id
		WHERE p.conversation_id = $1 AND p.left_at IS NULL
		ORDER BY p.joined_at, p.user_id
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]model.ParticipantProfile, 0)
	for rows.Next() {
		var pp model.ParticipantProfile
		if err := rows.Scan(
			&pp.ConversationID, &pp.UserID, &pp.Role, &pp.LastReadMessageID,
			&pp.JoinedAt, &pp.LeftAt,
			&pp.Profile.Email, &pp.Profile.DisplayName, &pp.Profile.AvatarURL,
		); err != nil {
			return nil, err
		}
		pp.Profile.ID = pp.UserID
		participants = append(participants, pp)
	}

	return participants, rows.Err()
}

// Create inserts the conversation plus one membership row per participant in
// a single transaction so a failed participant insert never leaves an
// orphaned conversation behind.
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation, participantIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, title, is_group, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, '{}'::jsonb), $5, $5)
	`, conv.ID, conv.Title, conv.IsGroup, conv.Metadata, conv.CreatedAt)
	if err != nil {
		return err
	}

	for _, userID := range participantIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, userID, model.RoleMember, conv.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// AdvanceReadPointer moves the caller's last_read_message_id forward.
// The guard makes the pointer monotonic: an id older than the one already
// recorded matches zero rows and changes nothing, which also makes repeated
// calls with the same id a no-op.
func (r *ConversationRepository) AdvanceReadPointer(ctx context.Context, conversationID, userID, messageID int64) error {
	query := `
		UPDATE conversation_participants
		SET last_read_message_id = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		  AND (last_read_message_id IS NULL OR last_read_message_id < $3)
	`
	_, err := r.db.Exec(ctx, query, conversationID, userID, messageID)
	return err
}

// IsActiveParticipant reports whether the user belongs to the conversation
// and has not left it.
func (r *ConversationRepository) IsActiveParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		LIMIT 1
	`

	var exists int
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// ActiveParticipantIDs returns the user ids of current members. Departed
// members are excluded so they never receive fan-out.
func (r *ConversationRepository) ActiveParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	query := `SELECT user_id FROM conversation_participants WHERE conversation_id = $1 AND left_at IS NULL`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		ids = append(ids, userID)
	}

	return ids, rows.Err()
}

// Leave marks the membership departed. Rows are never hard-deleted.
func (r *ConversationRepository) Leave(ctx context.Context, conversationID, userID int64) error {
	query := `
		UPDATE conversation_participants
		SET left_at = now()
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, conversationID, userID)
	return err
}
