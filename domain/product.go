package domain

import "time"

// Product is the listing a conversation is attached to. The gateway only
// needs the owner to authorize conversation creation; the rest of the
// fields mirror what the listing CRUD stores.
type Product struct {
	ID         string
	SellerID   string
	Title      string
	PriceCents int64
	CategoryID string
	CreatedAt  time.Time
}
