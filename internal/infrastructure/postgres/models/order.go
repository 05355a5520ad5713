package models

import (
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

type OrderModel struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	SequenceID string `gorm:"uniqueIndex"`

	UserID            string `gorm:"index"`
	MerchantID        string `gorm:"index"`
	CounterMerchantID string

	Direction     string
	PaymentMethod string

	AmountCrypto float64
	AmountFiat   float64
	CryptoRate   float64
	Currency     string

	Status domain.OrderStatus `gorm:"index:idx_status_expires"`

	Version int64 `gorm:"not null;default:0"`

	EscrowTxHash             string
	EscrowTradeID            string `gorm:"index"`
	EscrowProgramAddress     string
	EscrowCreatorWallet      string
	EscrowCounterpartyWallet string

	RoleHints string `gorm:"type:jsonb"`

	ExtensionCount         int
	ExtensionMax           int
	ExtensionState         string
	ExtensionRequestedByID string
	ExtensionMinutes       int

	ExpiresAt        time.Time `gorm:"index:idx_status_expires"`
	ReclaimAvailable bool

	AcceptedAt    *time.Time
	EscrowedAt    *time.Time
	PaymentSentAt *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time

	CreatedAt time.Time `gorm:"index:idx_created_at"`
	UpdatedAt time.Time
}
