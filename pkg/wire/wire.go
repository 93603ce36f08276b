// Package wire defines the JSON payloads exchanged over NATS: mutation
// intents consumed by the service and change events it emits.
package wire

// Intent is a tagged union; exactly one field is set.
type Intent struct {
	SendMessage          *SendMessage          `json:"send_message,omitempty"`
	MarkConversationRead *MarkConversationRead `json:"mark_conversation_read,omitempty"`
	MarkMessageRead      *MarkMessageRead      `json:"mark_message_read,omitempty"`
	DeleteMessage        *DeleteMessage        `json:"delete_message,omitempty"`
	Announcement         *Announcement         `json:"announcement,omitempty"`
}

// AttachmentUpload carries one attachment payload; Data travels base64 in
// JSON.
type AttachmentUpload struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type SendMessage struct {
	ConversationID int64              `json:"conversation_id"`
	UserID         int64              `json:"user_id"`
	Content        string             `json:"content"`
	Attachments    []AttachmentUpload `json:"attachments,omitempty"`
}

type MarkConversationRead struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	MessageID      int64 `json:"message_id"`
}

type MarkMessageRead struct {
	MessageID int64 `json:"message_id"`
	UserID    int64 `json:"user_id"`
}

type DeleteMessage struct {
	MessageID int64 `json:"message_id"`
	UserID    int64 `json:"user_id"`
}

// Announcement fans one system message out to many conversations.
type Announcement struct {
	ConversationIDs []int64 `json:"conversation_ids"`
	AuthorID        int64   `json:"author_id"`
	Content         string  `json:"content"`
}

// Event kinds.
const (
	EventMessageInserted = "message_inserted"
	EventMessageDeleted  = "message_deleted"
	EventRead            = "conversation_read"
)

// MessageEvent announces a row change in one conversation. It carries ids
// only: consumers re-fetch the row rather than trusting the push payload.
type MessageEvent struct {
	Kind           string `json:"kind"`
	ConversationID int64  `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
	AuthorID       int64  `json:"author_id"`
}
