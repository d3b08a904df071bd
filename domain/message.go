package domain

import "time"

// Message is immutable once created. Ordering within a conversation is by
// CreatedAt ascending.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}
