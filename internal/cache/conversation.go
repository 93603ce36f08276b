package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"convivo.im.messaging/internal/model"
)

const previewLimit = 140

// ConversationCache mirrors the per-user conversation list state in Redis:
// a recency index plus the denormalized last-message snapshot and unread
// counter per conversation. Postgres stays the source of truth; everything
// here can be rebuilt from the messages table.
type ConversationCache struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewConversationCache(redisClient *redis.Client) *ConversationCache {
	return &ConversationCache{
		redisClient: redisClient,
		logger:      slog.Default(),
	}
}

// TouchForSender refreshes the sender's own snapshot after a send. The
// sender's unread counter is untouched.
func (c *ConversationCache) TouchForSender(ctx context.Context, userID, conversationID int64, msg *model.Message) error {
	now := time.Now().UnixMilli()
	convKey := conversationKey(userID, conversationID)

	pipe := c.redisClient.Pipeline()
	pipe.HSet(ctx, convKey, snapshotFields(msg, now)...)
	pipe.ZAdd(ctx, indexKey(userID), redis.Z{Score: float64(now), Member: strconv.FormatInt(conversationID, 10)})
	_, err := pipe.Exec(ctx)

	return err
}

// TouchForRecipients refreshes every other active participant's snapshot
// and increments their unread counters.
func (c *ConversationCache) TouchForRecipients(ctx context.Context, memberIDs []int64, senderID, conversationID int64, msg *model.Message) error {
	now := time.Now().UnixMilli()
	member := strconv.FormatInt(conversationID, 10)

	pipe := c.redisClient.Pipeline()
	for _, userID := range memberIDs {
		if userID == senderID {
			continue
		}
		convKey := conversationKey(userID, conversationID)
		pipe.HSet(ctx, convKey, snapshotFields(msg, now)...)
		pipe.HIncrBy(ctx, convKey, "unread_count", 1)
		pipe.ZAdd(ctx, indexKey(userID), redis.Z{Score: float64(now), Member: member})
	}
	_, err := pipe.Exec(ctx)

	return err
}

// MarkRead zeroes the unread counter and records the read pointer.
func (c *ConversationCache) MarkRead(ctx context.Context, userID, conversationID, lastReadMessageID int64) error {
	convKey := conversationKey(userID, conversationID)
	return c.redisClient.HSet(ctx, convKey, "unread_count", 0, "last_read_message_id", lastReadMessageID).Err()
}

// Snapshot returns the cached last-message snapshot and unread count, or
// (nil, 0, nil) on a cache miss.
func (c *ConversationCache) Snapshot(ctx context.Context, userID, conversationID int64) (*model.LastMessage, int, error) {
	data, err := c.redisClient.HGetAll(ctx, conversationKey(userID, conversationID)).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, nil
	}

	lm := &model.LastMessage{
		ID:       parseInt64(data["last_msg_id"]),
		AuthorID: parseInt64(data["last_msg_author"]),
		Preview:  data["last_msg_preview"],
		SentAt:   time.UnixMilli(parseInt64(data["last_msg_at"])),
	}
	return lm, int(parseInt64(data["unread_count"])), nil
}

// TotalUnread sums unread counters across the user's conversations; serves
// the badge on the navigation bar.
func (c *ConversationCache) TotalUnread(ctx context.Context, userID int64) (int64, error) {
	members, err := c.redisClient.ZRange(ctx, indexKey(userID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := c.redisClient.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGet(ctx, conversationKey(userID, parseInt64(m)), "unread_count")
	}
	_, _ = pipe.Exec(ctx)

	var total int64
	for _, cmd := range cmds {
		count, err := cmd.Int64()
		if err == nil {
			total += count
		}
	}

	return total, nil
}

// RecentConversationIDs returns conversation ids ordered by last activity,
// newest first.
func (c *ConversationCache) RecentConversationIDs(ctx context.Context, userID int64, offset, limit int64) ([]int64, error) {
	members, err := c.redisClient.ZRevRange(ctx, indexKey(userID), offset, offset+limit-1).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, parseInt64(m))
	}
	return ids, nil
}

func snapshotFields(msg *model.Message, now int64) []any {
	preview := msg.Content
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	return []any{
		"last_msg_id", msg.ID,
		"last_msg_author", msg.UserID,
		"last_msg_preview", preview,
		"last_msg_at", msg.CreatedAt.UnixMilli(),
		"update_at", now,
	}
}

func parseInt64(str string) int64 {
	v, _ := strconv.ParseInt(str, 10, 64)
	return v
}
