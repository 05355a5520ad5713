package domain

import "time"

type OrderStatus string

const (
	StatusOpen        OrderStatus = "OPEN"
	StatusAccepted    OrderStatus = "ACCEPTED"
	StatusEscrowed    OrderStatus = "ESCROWED"
	StatusPaymentSent OrderStatus = "PAYMENT_SENT"
	StatusCompleted   OrderStatus = "COMPLETED"
	StatusCancelled   OrderStatus = "CANCELLED"
	StatusDisputed    OrderStatus = "DISPUTED"
	StatusExpired     OrderStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
// DISPUTED is semi-terminal: it is resolved only through the dispute workflow.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// InProgress reports whether the order has a committed counterparty
// and the escrow/payment flow is underway.
func (s OrderStatus) InProgress() bool {
	switch s {
	case StatusAccepted, StatusEscrowed, StatusPaymentSent:
		return true
	}
	return false
}

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCash         PaymentMethod = "CASH"
)

// Origin tags where a locally held snapshot came from. Optimistic
// snapshots carry no version of their own and are replaced by the next
// authoritative one unconditionally.
type Origin string

const (
	OriginAuthoritative Origin = "AUTHORITATIVE"
	OriginOptimistic    Origin = "OPTIMISTIC"
)

type Parties struct {
	UserID            string
	MerchantID        string
	CounterMerchantID string
}

type AmountInfo struct {
	AmountCrypto float64
	AmountFiat   float64
	CryptoRate   float64
	Currency     string
}

// EscrowInfo holds the custody references recorded after a successful lock.
type EscrowInfo struct {
	TxHash             string
	TradeID            string
	ProgramAddress     string
	CreatorWallet      string
	CounterpartyWallet string
}

// Complete reports whether every identifier needed for a release is present.
func (e EscrowInfo) Complete() bool {
	return e.TradeID != "" && e.CreatorWallet != "" && e.CounterpartyWallet != ""
}

type Timestamps struct {
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	EscrowedAt    *time.Time
	PaymentSentAt *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

type ExtensionState string

const (
	ExtensionNone    ExtensionState = "NONE"
	ExtensionPending ExtensionState = "PENDING"
)

// DefaultMaxExtensions caps deadline extensions per order.
const DefaultMaxExtensions = 3

const (
	// DefaultOpenTTL is the deadline for an order nobody accepted yet.
	DefaultOpenTTL = 15 * time.Minute
	// DefaultInProgressTTL is the deadline once a counterparty committed,
	// counted from acceptance and extendable through the extension protocol.
	DefaultInProgressTTL = 120 * time.Minute
)

type ExtensionInfo struct {
	Count         int
	Max           int
	State         ExtensionState
	RequestedByID string
	Minutes       int
}

type Order struct {
	ID         string
	SequenceID string

	Parties       Parties
	Direction     Direction
	PaymentMethod PaymentMethod
	Amount        AmountInfo

	// Status is the canonical status when the store already normalized it.
	// LegacyStatus carries the raw vocabulary of older store versions and
	// is folded through NormalizeStatus when Status is empty.
	Status       OrderStatus
	LegacyStatus string

	// Version is bumped by the order store on every mutation. Snapshots
	// with a lower version than the locally held one are discarded,
	// except when the incoming status is COMPLETED.
	Version int64
	Origin  Origin

	Escrow EscrowInfo

	// RoleHints are roles the store already resolved, keyed by
	// participant id. They win over local inference.
	RoleHints map[string]Role

	Extension ExtensionInfo

	Timestamps Timestamps
	ExpiresAt  time.Time

	// ReclaimAvailable is set by the sweeper when the deadline of an
	// in-progress order passed and the escrow creator can pull funds back.
	ReclaimAvailable bool
}

// M2M reports whether both counterparties are merchants.
func (o *Order) M2M() bool {
	return o.Parties.CounterMerchantID != ""
}

// Clone returns a deep copy. Snapshots held by the reconcile store are
// never mutated in place.
func (o *Order) Clone() *Order {
	cp := *o
	if o.RoleHints != nil {
		cp.RoleHints = make(map[string]Role, len(o.RoleHints))
		for k, v := range o.RoleHints {
			cp.RoleHints[k] = v
		}
	}
	return &cp
}
