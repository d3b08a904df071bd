//go:generate go run go.uber.org/mock/mockgen -source=product.go -destination=../mocks/mock_product_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "market-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IProductRepository interface {
	Put(product DiskProduct) error
	GetByID(id string) (DiskProduct, error)
}

type ProductRepository struct {
	db *badger.DB
}

func NewProductRepository(db *badger.DB) ProductRepository {
	return ProductRepository{db: db}
}

type DiskProduct struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"sellerId"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"priceCents"`
	CategoryID string    `json:"categoryId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func productKey(id string) []byte {
	return []byte("product:" + id)
}

func (r ProductRepository) Put(product DiskProduct) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(productKey(product.ID), data)
	})
}

func (r ProductRepository) GetByID(id string) (DiskProduct, error) {
	var product DiskProduct
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(productKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return apperrors.NotFound("product not found")
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &product)
		})
	})
	return product, err
}
