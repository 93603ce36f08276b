package realtime

import "fmt"

const (
	// SubjectIntents carries mutation intents into the service; consumed
	// by a queue group so horizontally scaled instances share the load.
	SubjectIntents = "messaging.intents"

	// QueueGroup for intent consumption.
	QueueGroup = "messaging"
)

// ConversationSubject is the per-conversation change-feed subject.
func ConversationSubject(conversationID int64) string {
	return fmt.Sprintf("messaging.conv.%d.events", conversationID)
}
