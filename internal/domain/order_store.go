package domain

import (
	"context"
	"time"
)

// OrderFilters narrows FetchMany queries.
type OrderFilters struct {
	Statuses      []OrderStatus
	ExpiresBefore time.Time
	Participant   string
	Limit         int
}

// Patch describes a partial mutation. Nil fields are left untouched.
// The store bumps the order version on every applied patch.
type Patch struct {
	Status           *OrderStatus
	Escrow           *EscrowInfo
	Extension        *ExtensionInfo
	ExpiresAt        *time.Time
	CryptoRate       *float64
	ReclaimAvailable *bool
	AcceptedAt       *time.Time
	EscrowedAt       *time.Time
	PaymentSentAt    *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// OrderStore is the authoritative remote order store. Every snapshot it
// returns carries a version; mutations return the post-mutation snapshot.
type OrderStore interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	Fetch(ctx context.Context, orderID string) (*Order, error)
	FetchMany(ctx context.Context, filters OrderFilters) ([]*Order, error)
	Mutate(ctx context.Context, orderID string, patch Patch, actor string) (*Order, error)
}
