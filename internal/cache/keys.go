package cache

import "fmt"

const (
	conversationKeyPrefix = "msg:conv:"
	indexKeyPrefix        = "msg:conv:index:"
)

// conversationKey is the per-user hash holding the last-message snapshot
// and unread counter for one conversation.
func conversationKey(userID, conversationID int64) string {
	return fmt.Sprintf("%s%d:%d", conversationKeyPrefix, userID, conversationID)
}

// indexKey is the per-user recency zset scoring conversations by last
// activity.
func indexKey(userID int64) string {
	return fmt.Sprintf("%s%d", indexKeyPrefix, userID)
}
