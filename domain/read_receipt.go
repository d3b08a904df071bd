package domain

import "time"

// ReadReceipt marks how far a participant has read a conversation.
// One receipt per (conversation, user); LastReadAt never exceeds the
// conversation's latest message timestamp.
type ReadReceipt struct {
	ConversationID string
	UserID         string
	LastReadAt     time.Time
}
