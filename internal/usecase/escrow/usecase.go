package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
	publisher "github.com/peerdeal/order-engine/internal/infrastructure/kafka"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
	"github.com/peerdeal/order-engine/internal/reconcile"
)

// EscrowUsecase sequences the off-chain order mutation together with the
// on-chain custody operation so neither side is left orphaned.
type EscrowUsecase interface {
	Lock(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	Join(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	MarkPaymentSent(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	Release(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	Refund(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
}

type OrderEventPublisher interface {
	PublishOrder(event publisher.OrderEvent) error
}

type DefaultEscrowUsecase struct {
	Store     domain.OrderStore
	Custody   domain.CustodyService
	Balance   domain.BalanceCache
	Reconcile *reconcile.Store
	Publisher OrderEventPublisher
	Metrics   *metrics.EngineMetrics

	// InProgressTTL is the working deadline granted at acceptance.
	// Zero means domain.DefaultInProgressTTL.
	InProgressTTL time.Duration

	// Custody operations for one order are never pipelined: fetch,
	// precondition checks and the custody action run under one per-order
	// lock, so a second caller re-reads the post-mutation state.
	orderLocks sync.Map
}

func NewDefaultEscrowUsecase(
	store domain.OrderStore,
	custody domain.CustodyService,
	balance domain.BalanceCache,
	reconcileStore *reconcile.Store,
	pub OrderEventPublisher,
	engineMetrics *metrics.EngineMetrics) *DefaultEscrowUsecase {

	return &DefaultEscrowUsecase{
		Store:     store,
		Custody:   custody,
		Balance:   balance,
		Reconcile: reconcileStore,
		Publisher: pub,
		Metrics:   engineMetrics,
	}
}

func (uc *DefaultEscrowUsecase) inProgressTTL() time.Duration {
	if uc.InProgressTTL > 0 {
		return uc.InProgressTTL
	}
	return domain.DefaultInProgressTTL
}

func (uc *DefaultEscrowUsecase) lockOrder(orderID string) func() {
	v, _ := uc.orderLocks.LoadOrStore(orderID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// fetchNormalized loads the authoritative snapshot with its status folded
// to the canonical vocabulary.
func (uc *DefaultEscrowUsecase) fetchNormalized(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := uc.Store.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	status, err := domain.EffectiveStatus(order)
	if err != nil {
		return nil, err
	}
	order.Status = status
	return order, nil
}

func (uc *DefaultEscrowUsecase) observeCustody(op string, start time.Time, err error) {
	if uc.Metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	uc.Metrics.CustodyCallsTotal.WithLabelValues(op, result).Inc()
	uc.Metrics.CustodyCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (uc *DefaultEscrowUsecase) refreshBalance(ctx context.Context, wallets ...string) {
	for _, wallet := range wallets {
		if wallet == "" {
			continue
		}
		if _, err := uc.Balance.Refresh(ctx, wallet); err != nil {
			slog.Error("balance refresh failed", "wallet", wallet, "error", err.Error())
		}
	}
}

func (uc *DefaultEscrowUsecase) publishOrder(order *domain.Order, actorID, txHash string) {
	if uc.Publisher == nil {
		return
	}
	go func(event publisher.OrderEvent) {
		if err := uc.Publisher.PublishOrder(event); err != nil {
			slog.Error("failed to publish order event", "order_id", event.OrderID, "error", err.Error())
		}
	}(publisher.OrderEvent{
		OrderID:      order.ID,
		SequenceID:   order.SequenceID,
		Status:       string(order.Status),
		AmountCrypto: order.Amount.AmountCrypto,
		AmountFiat:   order.Amount.AmountFiat,
		Currency:     order.Amount.Currency,
		Actor:        actorID,
		TxHash:       txHash,
	})
}
