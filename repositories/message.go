//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Append(message DiskMessage) error
	ListByConversation(conversationID string) ([]DiskMessage, error)
	Latest(conversationID string) (*DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type DiskMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (r MessageRepository) Append(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// ListByConversation retrieves every message of a conversation using a prefix
// scan. Thanks to the padded timestamp in the key, messages come out already
// sorted by time, oldest first.
func (r MessageRepository) ListByConversation(conversationID string) ([]DiskMessage, error) {
	var messages []DiskMessage
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + conversationID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var message DiskMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// Latest returns the newest message of a conversation, or nil when the
// conversation has no messages yet. A reverse iterator seeks to the highest
// possible padded timestamp and stops at the first hit.
func (r MessageRepository) Latest(conversationID string) (*DiskMessage, error) {
	var latest *DiskMessage
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := "msg:" + conversationID + ":"
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte(prefixStr), []byte("9999999999999999999:~")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var message DiskMessage
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		}); err != nil {
			return err
		}
		latest = lo.ToPtr(message)
		return nil
	})
	return latest, err
}
