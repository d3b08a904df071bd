//go:generate go run go.uber.org/mock/mockgen -source=read_receipt.go -destination=../mocks/mock_read_receipt_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IReadReceiptRepository interface {
	Upsert(receipt DiskReadReceipt) error
	Get(conversationID, userID string) (*DiskReadReceipt, error)
}

type ReadReceiptRepository struct {
	db *badger.DB
}

func NewReadReceiptRepository(db *badger.DB) ReadReceiptRepository {
	return ReadReceiptRepository{db: db}
}

type DiskReadReceipt struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	LastReadAt     time.Time `json:"lastReadAt"`
}

// One receipt per participant per conversation: "read:{conv_id}:{user_id}".
func receiptKey(conversationID, userID string) []byte {
	return []byte(fmt.Sprintf("read:%s:%s", conversationID, userID))
}

func (r ReadReceiptRepository) Upsert(receipt DiskReadReceipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(receiptKey(receipt.ConversationID, receipt.UserID), data)
	})
}

// Get returns nil when the user has never marked the conversation read.
func (r ReadReceiptRepository) Get(conversationID, userID string) (*DiskReadReceipt, error) {
	var receipt *DiskReadReceipt
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(receiptKey(conversationID, userID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		var found DiskReadReceipt
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &found)
		}); err != nil {
			return err
		}
		receipt = lo.ToPtr(found)
		return nil
	})
	return receipt, err
}
