package domain

import "time"

// Conversation is a two-party thread about a product listing.
// Participants are stored in canonical order: ParticipantA < ParticipantB.
// The triple (ProductID, ParticipantA, ParticipantB) is unique and is the
// lookup key for get-or-create.
type Conversation struct {
	ID            string
	ProductID     string
	ParticipantA  string
	ParticipantB  string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

func (c Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// CanonicalPair orders two participant ids lexicographically so that the
// same pair always maps to the same storage key, whichever side initiates.
func CanonicalPair(x, y string) (participantA, participantB string) {
	if x < y {
		return x, y
	}
	return y, x
}

// ConversationSummary is the listing projection: a conversation annotated
// with the caller's own read marker and the most recent message, if any.
type ConversationSummary struct {
	Conversation Conversation
	LastReadAt   *time.Time
	LastMessage  *Message
}
