package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"market-chat/services"
)

// Router consumes a connection's inbound byte stream, decodes frames,
// dispatches application events to the domain service and writes replies.
//
// Domain failures are surfaced as error events and leave the connection
// open. Protocol errors and socket errors tear the connection down; either
// way the connection leaves the registry exactly once.
type Router struct {
	log           *slog.Logger
	registry      *Registry
	fanout        *Fanout
	conversations services.IConversationService
}

func NewRouter(log *slog.Logger, registry *Registry, fanout *Fanout, conversations services.IConversationService) *Router {
	return &Router{log: log, registry: registry, fanout: fanout, conversations: conversations}
}

// Serve owns the connection's read loop until the peer goes away, a close
// frame arrives, or a protocol error occurs. initial carries bytes that were
// already buffered by the HTTP layer at hijack time.
func (r *Router) Serve(ctx context.Context, conn *Conn, initial []byte) {
	defer func() {
		conn.Close()
		r.registry.Remove(conn)
	}()

	if len(initial) > 0 && !r.feed(ctx, conn, initial) {
		return
	}

	chunk := make([]byte, 4096)
	for {
		n, err := conn.sock.Read(chunk)
		if n > 0 {
			if !r.feed(ctx, conn, chunk[:n]) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// feed appends newly arrived bytes and drains every complete frame.
// It reports false when the connection must stop being served.
func (r *Router) feed(ctx context.Context, conn *Conn, data []byte) bool {
	conn.buf.append(data)
	for {
		frame, n, err := DecodeFrame(conn.buf.bytes())
		if err != nil {
			r.log.Warn("Protocol error, dropping connection", "user", conn.UserID(), "error", err)
			return false
		}
		if frame == nil {
			return true
		}
		conn.buf.consume(n)

		switch frame.Opcode {
		case OpcodeClose:
			return false
		case OpcodePing:
			if err := conn.writeFrame(OpcodePong, frame.Payload); err != nil {
				return false
			}
		case OpcodeText:
			r.handleText(ctx, conn, frame.Payload)
		default:
			// Pong and unrecognized opcodes are ignored.
		}
	}
}

// handleText is the event boundary: whatever goes wrong past this point is
// logged and answered with an error event, never allowed to kill the loop.
func (r *Router) handleText(ctx context.Context, conn *Conn, payload []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.Error("Event handler panic", "user", conn.UserID(), "panic", recovered)
			r.reply(conn, errorEvent("Internal error"))
		}
	}()

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		r.reply(conn, errorEvent("Invalid JSON payload"))
		return
	}

	switch envelope.Type {
	case EventJoinConversation:
		r.handleJoin(ctx, conn, envelope.Payload)
	case EventSendMessage:
		r.handleSend(ctx, conn, envelope.Payload)
	default:
		r.reply(conn, errorEvent("Unsupported event type"))
	}
}

func (r *Router) handleJoin(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var payload joinConversationPayload
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	if payload.ConversationID == "" {
		r.reply(conn, errorEvent("conversationId is required"))
		return
	}

	messages, err := r.conversations.ListMessages(ctx, payload.ConversationID, conn.UserID())
	if err != nil {
		r.reply(conn, errorEvent(err.Error()))
		return
	}

	conn.Join(payload.ConversationID)
	views := make([]messageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, toMessageView(message))
	}
	r.reply(conn, Event{
		Type: EventConversationJoined,
		Payload: conversationJoinedPayload{
			ConversationID: payload.ConversationID,
			Messages:       views,
		},
	})
}

func (r *Router) handleSend(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var payload sendMessagePayload
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	if payload.ConversationID == "" || payload.Content == "" {
		r.reply(conn, errorEvent("conversationId and content are required"))
		return
	}

	message, conversation, err := r.conversations.Send(ctx, payload.ConversationID, conn.UserID(), payload.Content)
	if err != nil {
		r.reply(conn, errorEvent(err.Error()))
		return
	}

	r.fanout.Broadcast(conversation.ParticipantA, conversation.ParticipantB, Event{
		Type: EventNewMessage,
		Payload: newMessagePayload{
			ConversationID: conversation.ID,
			Message:        toMessageView(message),
		},
	})
}

func (r *Router) reply(conn *Conn, event Event) {
	if err := conn.WriteEvent(event); err != nil {
		r.log.Debug("Reply write failed", "user", conn.UserID(), "error", err)
	}
}
