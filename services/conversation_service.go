//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"market-chat/domain"
	apperrors "market-chat/errors"
	"market-chat/repositories"

	"github.com/google/uuid"
)

type IConversationService interface {
	GetOrCreate(ctx context.Context, productID, currentUserID, otherUserID string) (domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID, userID string) ([]domain.Message, error)
	Send(ctx context.Context, conversationID, senderID, content string) (domain.Message, domain.Conversation, error)
	MarkRead(ctx context.Context, conversationID, userID, seenAt string) (time.Time, error)
}

type ConversationService struct {
	log           *slog.Logger
	products      repositories.IProductRepository
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	receipts      repositories.IReadReceiptRepository
}

func NewConversationService(
	log *slog.Logger,
	products repositories.IProductRepository,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	receipts repositories.IReadReceiptRepository,
) *ConversationService {
	return &ConversationService{
		log:           log,
		products:      products,
		conversations: conversations,
		messages:      messages,
		receipts:      receipts,
	}
}

// GetOrCreate returns the unique conversation for (product, pair of users),
// creating it on first contact. The pair is canonicalized so both sides
// resolve to the same thread.
func (s *ConversationService) GetOrCreate(ctx context.Context, productID, currentUserID, otherUserID string) (domain.Conversation, error) {
	if currentUserID == otherUserID {
		return domain.Conversation{}, apperrors.BadRequest("cannot start a conversation with yourself")
	}

	product, err := s.products.GetByID(productID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if product.SellerID != otherUserID {
		return domain.Conversation{}, apperrors.BadRequest("otherUserId must be the product owner")
	}

	participantA, participantB := domain.CanonicalPair(currentUserID, otherUserID)
	existing, err := s.conversations.FindByParticipants(productID, participantA, participantB)
	if err == nil {
		return toConversation(existing), nil
	}
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		return domain.Conversation{}, err
	}

	now := time.Now().UTC()
	created := repositories.DiskConversation{
		ID:            uuid.New().String(),
		ProductID:     productID,
		ParticipantA:  participantA,
		ParticipantB:  participantB,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err = s.conversations.Create(created); err != nil {
		return domain.Conversation{}, err
	}
	s.log.Info("Conversation created", "conversation", created.ID, "product", productID)
	return toConversation(created), nil
}

// ListForUser returns every conversation the user takes part in, newest
// activity first, annotated with the caller's read marker and the latest
// message preview.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	conversations, err := s.conversations.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		summary := domain.ConversationSummary{Conversation: toConversation(conversation)}

		receipt, err := s.receipts.Get(conversation.ID, userID)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			lastReadAt := receipt.LastReadAt
			summary.LastReadAt = &lastReadAt
		}

		latest, err := s.messages.Latest(conversation.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			message := toMessage(*latest)
			summary.LastMessage = &message
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Conversation.LastMessageAt.After(summaries[j].Conversation.LastMessageAt)
	})
	return summaries, nil
}

// ListMessages loads a conversation's history, oldest first. The caller must
// be one of the two participants.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, userID string) ([]domain.Message, error) {
	if _, err := s.authorize(conversationID, userID); err != nil {
		return nil, err
	}
	stored, err := s.messages.ListByConversation(conversationID)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(stored))
	for _, message := range stored {
		messages = append(messages, toMessage(message))
	}
	return messages, nil
}

// Send persists a message, bumps the conversation's LastMessageAt and marks
// the thread read for the sender as of the message timestamp. A sender has
// implicitly seen their own message.
func (s *ConversationService) Send(ctx context.Context, conversationID, senderID, content string) (domain.Message, domain.Conversation, error) {
	conversation, err := s.authorize(conversationID, senderID)
	if err != nil {
		return domain.Message{}, domain.Conversation{}, err
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return domain.Message{}, domain.Conversation{}, apperrors.BadRequest("content must not be empty")
	}

	message := repositories.DiskMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        trimmed,
		CreatedAt:      time.Now().UTC(),
	}
	if err = s.messages.Append(message); err != nil {
		return domain.Message{}, domain.Conversation{}, err
	}
	if err = s.conversations.Touch(conversationID, message.CreatedAt); err != nil {
		return domain.Message{}, domain.Conversation{}, err
	}
	if err = s.receipts.Upsert(repositories.DiskReadReceipt{
		ConversationID: conversationID,
		UserID:         senderID,
		LastReadAt:     message.CreatedAt,
	}); err != nil {
		return domain.Message{}, domain.Conversation{}, err
	}

	conversation.LastMessageAt = message.CreatedAt
	return toMessage(message), toConversation(conversation), nil
}

// MarkRead upserts the caller's read receipt. An empty seenAt means "now";
// a candidate beyond the latest message timestamp is clamped down to it so a
// conversation is never marked read past content that exists.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID, seenAt string) (time.Time, error) {
	conversation, err := s.authorize(conversationID, userID)
	if err != nil {
		return time.Time{}, err
	}

	candidate := time.Now().UTC()
	if seenAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, seenAt)
		if err != nil {
			return time.Time{}, apperrors.BadRequest("seenAt is not a valid timestamp")
		}
		candidate = parsed.UTC()
	}

	bound := conversation.LastMessageAt
	latest, err := s.messages.Latest(conversationID)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		bound = latest.CreatedAt
	}
	if candidate.After(bound) {
		candidate = bound
	}

	if err = s.receipts.Upsert(repositories.DiskReadReceipt{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadAt:     candidate,
	}); err != nil {
		return time.Time{}, err
	}
	return candidate, nil
}

// authorize loads the conversation and asserts membership.
func (s *ConversationService) authorize(conversationID, userID string) (repositories.DiskConversation, error) {
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return repositories.DiskConversation{}, err
	}
	if conversation.ParticipantA != userID && conversation.ParticipantB != userID {
		return repositories.DiskConversation{}, apperrors.Forbidden("user is not a participant of this conversation")
	}
	return conversation, nil
}

func toConversation(disk repositories.DiskConversation) domain.Conversation {
	return domain.Conversation{
		ID:            disk.ID,
		ProductID:     disk.ProductID,
		ParticipantA:  disk.ParticipantA,
		ParticipantB:  disk.ParticipantB,
		LastMessageAt: disk.LastMessageAt,
		CreatedAt:     disk.CreatedAt,
	}
}

func toMessage(disk repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:             disk.ID,
		ConversationID: disk.ConversationID,
		SenderID:       disk.SenderID,
		Content:        disk.Content,
		CreatedAt:      disk.CreatedAt,
	}
}
