package model

import "time"

// Message row with its one-to-many collections. Messages within a
// conversation are totally ordered by (created_at, id); snowflake ids make
// the id tiebreak agree with creation time.
type Message struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversationId"`
	UserID         int64          `json:"userId"`
	Content        string         `json:"content"`
	IsSystem       bool           `json:"isSystem"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`

	Attachments []Attachment  `json:"attachments,omitempty"`
	Reactions   []Reaction    `json:"reactions,omitempty"`
	Receipts    []ReadReceipt `json:"readReceipts,omitempty"`
}

// Before reports whether m sorts ahead of other in conversation order.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Attachment row. StoragePath is the canonical reference into object
// storage; URL is derived from it on read and never persisted.
type Attachment struct {
	ID          int64  `json:"id"`
	MessageID   int64  `json:"messageId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	ByteSize    int64  `json:"byteSize"`
	StoragePath string `json:"storagePath"`
	URL         string `json:"url,omitempty"`
}

// Reaction is a (message, user, emoji) tuple.
type Reaction struct {
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadReceipt is a (message, user) acknowledgment; upserted, so re-reading
// only refreshes ReadAt.
type ReadReceipt struct {
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}
