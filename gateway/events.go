package gateway

import (
	"encoding/json"
	"time"

	"market-chat/domain"
)

// Application envelope carried over text frames: {type, payload?}.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"

	EventConnected          = "connected"
	EventConversationJoined = "conversation_joined"
	EventNewMessage         = "new_message"
	EventError              = "error"
)

// Envelope is the inbound shape; the payload stays raw until the type is
// known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the outbound shape.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type joinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type connectedPayload struct {
	UserID string `json:"userId"`
}

type conversationJoinedPayload struct {
	ConversationID string        `json:"conversationId"`
	Messages       []messageView `json:"messages"`
}

type newMessagePayload struct {
	ConversationID string      `json:"conversationId"`
	Message        messageView `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type messageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMessageView(message domain.Message) messageView {
	return messageView{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
	}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Payload: errorPayload{Message: message}}
}
