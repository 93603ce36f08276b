package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"convivo.im.messaging/internal/model"
)

// MessageRepository owns message rows and their attachment, reaction and
// read-receipt collections.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Page returns a window of messages in ascending creation order with nested
// collections loaded. Pure offset/limit; concurrent inserts may shift a
// later page, which is acceptable for a chat view.
func (r *MessageRepository) Page(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error) {
	query := `
		SELECT id, conversation_id, user_id, content, is_system, metadata, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.UserID, &m.Content,
			&m.IsSystem, &m.Metadata, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadCollections(ctx, messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// FindByID returns one message with collections, or (nil, nil) on zero rows.
func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `
		SELECT id, conversation_id, user_id, content, is_system, metadata, created_at, updated_at
		FROM messages WHERE id = $1
	`

	var m model.Message
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ConversationID, &m.UserID, &m.Content,
		&m.IsSystem, &m.Metadata, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msgs := []model.Message{m}
	if err := r.loadCollections(ctx, msgs); err != nil {
		return nil, err
	}

	return &msgs[0], nil
}

// CreateWithAttachments inserts the message, its attachment rows and the
// sender's read receipt in one transaction. Attachment bytes must already
// sit in object storage; a failed commit is compensated by the caller
// deleting the uploaded objects.
func (r *MessageRepository) CreateWithAttachments(ctx context.Context, msg *model.Message, attachments []model.Attachment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, user_id, content, is_system, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'::jsonb), $7, $7)
	`, msg.ID, msg.ConversationID, msg.UserID, msg.Content, msg.IsSystem, msg.Metadata, msg.CreatedAt)
	if err != nil {
		return err
	}

	for _, a := range attachments {
		_, err = tx.Exec(ctx, `
			INSERT INTO attachments (id, message_id, file_name, content_type, byte_size, storage_path)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, a.ID, a.MessageID, a.FileName, a.ContentType, a.ByteSize, a.StoragePath)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO read_receipts (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
	`, msg.ID, msg.UserID, msg.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Owner returns the author and conversation of a message, or zeros when
// the row is gone.
func (r *MessageRepository) Owner(ctx context.Context, id int64) (userID, conversationID int64, err error) {
	err = r.db.QueryRow(ctx, `SELECT user_id, conversation_id FROM messages WHERE id = $1`, id).
		Scan(&userID, &conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return userID, conversationID, nil
}

// Delete hard-removes the row; attachment, reaction and receipt rows cascade.
// Storage objects are not cleaned up here.
func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

// AddReaction is idempotent per (message, user, emoji).
func (r *MessageRepository) AddReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, messageID, userID, emoji)
	return err
}

func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`
	_, err := r.db.Exec(ctx, query, messageID, userID, emoji)
	return err
}

// loadCollections batch-loads attachments, reactions and receipts for the
// given messages and distributes them by message id.
func (r *MessageRepository) loadCollections(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int64, len(messages))
	byID := make(map[int64]*model.Message, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		byID[messages[i].ID] = &messages[i]
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, message_id, file_name, content_type, byte_size, storage_path
		FROM attachments WHERE message_id = ANY($1) ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.ContentType, &a.ByteSize, &a.StoragePath); err != nil {
			rows.Close()
			return err
		}
		if m := byID[a.MessageID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions WHERE message_id = ANY($1) ORDER BY created_at
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var re model.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		if m := byID[re.MessageID]; m != nil {
			m.Reactions = append(m.Reactions, re)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT message_id, user_id, read_at
		FROM read_receipts WHERE message_id = ANY($1) ORDER BY read_at
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var rr model.ReadReceipt
		if err := rows.Scan(&rr.MessageID, &rr.UserID, &rr.ReadAt); err != nil {
			rows.Close()
			return err
		}
		if m := byID[rr.MessageID]; m != nil {
			m.Receipts = append(m.Receipts, rr)
		}
	}
	rows.Close()
	return rows.Err()
}
