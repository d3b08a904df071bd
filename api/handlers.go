package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"market-chat/domain"
	apperrors "market-chat/errors"
	"market-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// ConversationHandler is the REST-style caller of the domain service. The
// WebSocket gateway covers live messaging; these endpoints cover everything
// a client does outside an open socket: starting threads, listing them, and
// marking them read.
type ConversationHandler struct {
	log           *slog.Logger
	conversations services.IConversationService
}

func NewConversationHandler(log *slog.Logger, conversations services.IConversationService) *ConversationHandler {
	return &ConversationHandler{log: log, conversations: conversations}
}

type startConversationRequest struct {
	ProductID string `json:"productId" validate:"required"`
	SellerID  string `json:"sellerId" validate:"required"`
}

type markReadRequest struct {
	SeenAt string `json:"seenAt" validate:"omitempty"`
}

type conversationResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	ParticipantAID string    `json:"participantAId"`
	ParticipantBID string    `json:"participantBId"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

type conversationSummaryResponse struct {
	conversationResponse
	LastReadAt  *time.Time       `json:"lastReadAt,omitempty"`
	LastMessage *messageResponse `json:"lastMessage,omitempty"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "productId and sellerId are required", http.StatusBadRequest)
		return
	}

	conversation, err := h.conversations.GetOrCreate(r.Context(), req.ProductID, UserID(r.Context()), req.SellerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.conversations.ListForUser(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lo.Map(summaries, func(summary domain.ConversationSummary, _ int) conversationSummaryResponse {
		response := conversationSummaryResponse{
			conversationResponse: toConversationResponse(summary.Conversation),
			LastReadAt:           summary.LastReadAt,
		}
		if summary.LastMessage != nil {
			response.LastMessage = lo.ToPtr(toMessageResponse(*summary.LastMessage))
		}
		return response
	}))
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	messages, err := h.conversations.ListMessages(r.Context(), conversationID, UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lo.Map(messages, func(message domain.Message, _ int) messageResponse {
		return toMessageResponse(message)
	}))
}

func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	conversationID := chi.URLParam(r, "id")
	lastReadAt, err := h.conversations.MarkRead(r.Context(), conversationID, UserID(r.Context()), req.SeenAt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"lastReadAt": lastReadAt})
}

// writeError translates domain failure kinds into HTTP statuses; anything
// without a kind is an internal error.
func (h *ConversationHandler) writeError(w http.ResponseWriter, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindBadRequest:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperrors.KindForbidden:
		http.Error(w, err.Error(), http.StatusForbidden)
	case apperrors.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("Request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *ConversationHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

func toConversationResponse(conversation domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:             conversation.ID,
		ProductID:      conversation.ProductID,
		ParticipantAID: conversation.ParticipantA,
		ParticipantBID: conversation.ParticipantB,
		LastMessageAt:  conversation.LastMessageAt,
		CreatedAt:      conversation.CreatedAt,
	}
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
	}
}
