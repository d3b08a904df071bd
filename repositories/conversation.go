//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	apperrors "market-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IConversationRepository interface {
	Create(conversation DiskConversation) error
	GetByID(id string) (DiskConversation, error)
	FindByParticipants(productID, participantA, participantB string) (DiskConversation, error)
	ListForUser(userID string) ([]DiskConversation, error)
	Touch(id string, at time.Time) error
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

type DiskConversation struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	ParticipantA  string    `json:"participantAId"`
	ParticipantB  string    `json:"participantBId"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Keyspace:
//
//	conv:{id}                      -> conversation JSON
//	convkey:{product}:{a}:{b}      -> conversation id (composite unique key)
//	convuser:{user}:{conv_id}      -> conversation id (per-participant index)
//
// The composite key assumes the participants are already in canonical order;
// callers canonicalize before hitting the repository.
func conversationKey(id string) []byte {
	return []byte("conv:" + id)
}

func participantsKey(productID, participantA, participantB string) []byte {
	return []byte(fmt.Sprintf("convkey:%s:%s:%s", productID, participantA, participantB))
}

func userIndexKey(userID, conversationID string) []byte {
	return []byte(fmt.Sprintf("convuser:%s:%s", userID, conversationID))
}

// Create persists the conversation and both secondary index entries in a
// single transaction so a lookup never observes a half-written thread.
func (r ConversationRepository) Create(conversation DiskConversation) error {
	data, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), data); err != nil {
			return err
		}
		compositeKey := participantsKey(conversation.ProductID, conversation.ParticipantA, conversation.ParticipantB)
		if err := txn.Set(compositeKey, []byte(conversation.ID)); err != nil {
			return err
		}
		if err := txn.Set(userIndexKey(conversation.ParticipantA, conversation.ID), []byte(conversation.ID)); err != nil {
			return err
		}
		return txn.Set(userIndexKey(conversation.ParticipantB, conversation.ID), []byte(conversation.ID))
	})
}

func (r ConversationRepository) GetByID(id string) (DiskConversation, error) {
	var conversation DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conversation = found
		return nil
	})
	return conversation, err
}

func (r ConversationRepository) FindByParticipants(productID, participantA, participantB string) (DiskConversation, error) {
	var conversation DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantsKey(productID, participantA, participantB))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return apperrors.NotFound("conversation not found")
			}
			return err
		}
		var id string
		if err = item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		found, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conversation = found
		return nil
	})
	return conversation, err
}

// ListForUser scans the per-participant index and resolves every entry to
// its conversation within the same read transaction. No ordering is applied
// here; the service sorts by LastMessageAt.
func (r ConversationRepository) ListForUser(userID string) ([]DiskConversation, error) {
	var conversations []DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("convuser:" + userID + ":")
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			conversation, err := getConversation(txn, id)
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return nil
	})
	return conversations, err
}

// Touch bumps LastMessageAt. Read-modify-write inside one transaction.
func (r ConversationRepository) Touch(id string, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		conversation, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conversation.LastMessageAt = at
		data, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(conversationKey(id), data)
	})
}

func getConversation(txn *badger.Txn, id string) (DiskConversation, error) {
	item, err := txn.Get(conversationKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return DiskConversation{}, apperrors.NotFound("conversation not found")
		}
		return DiskConversation{}, err
	}
	var conversation DiskConversation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conversation)
	})
	return conversation, err
}
