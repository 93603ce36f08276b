package model

import "time"

// Role of a participant inside a conversation.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Conversation row. The last-message snapshot is not a table column; it is
// derived from the messages table (source of truth) and cached in Redis.
type Conversation struct {
	ID        int64          `json:"id"`
	Title     *string        `json:"title,omitempty"`
	IsGroup   bool           `json:"isGroup"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// LastMessage is the denormalized newest-message snapshot used by list views.
type LastMessage struct {
	ID       int64     `json:"id"`
	AuthorID int64     `json:"authorId"`
	Preview  string    `json:"preview"`
	SentAt   time.Time `json:"sentAt"`
}

// ConversationSummary is a list-view row annotated for one caller.
type ConversationSummary struct {
	Conversation
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
}

// Participant links a conversation to a user. LastReadMessageID is the
// caller's read pointer; LeftAt != nil means the membership is inactive.
type Participant struct {
	ConversationID    int64      `json:"conversationId"`
	UserID            int64      `json:"userId"`
	Role              Role       `json:"role"`
	LastReadMessageID *int64     `json:"lastReadMessageId,omitempty"`
	JoinedAt          time.Time  `json:"joinedAt"`
	LeftAt            *time.Time `json:"leftAt,omitempty"`
}

// Active reports whether the membership is current.
func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

// Profile is the read-only projection of a user owned by the auth provider.
type Profile struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// ParticipantProfile joins a membership with its profile projection.
type ParticipantProfile struct {
	Participant
	Profile Profile `json:"profile"`
}

// ConversationDetail is the full fetch-one shape.
type ConversationDetail struct {
	Conversation
	Participants []ParticipantProfile `json:"participants"`
}
