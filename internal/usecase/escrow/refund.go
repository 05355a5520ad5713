package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Refund returns escrowed funds to the creator and cancels the order.
func (uc *DefaultEscrowUsecase) Refund(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	const op = "escrow.refund"

	unlock := uc.lockOrder(orderID)
	defer unlock()

	order, err := uc.fetchNormalized(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Wallet != order.Escrow.CreatorWallet && !actor.Compliance {
		return nil, domain.Preconditionf(op, "only the escrow creator may refund")
	}
	if order.Status.Terminal() {
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	if order.Escrow.TradeID == "" || order.Escrow.CreatorWallet == "" {
		return nil, domain.Preconditionf(op, "custody identifiers incomplete")
	}

	start := time.Now()
	txHash, err := uc.Custody.Refund(ctx, order.Escrow.TradeID, order.Escrow.CreatorWallet)
	uc.observeCustody("refund", start, err)
	if err != nil {
		return nil, err
	}

	uc.Reconcile.ApplyOptimistic(order.ID, func(o *domain.Order) {
		o.Status = domain.StatusCancelled
	})

	now := time.Now()
	newStatus := domain.StatusCancelled
	patch := domain.Patch{Status: &newStatus, CancelledAt: &now}

	var updated *domain.Order
	err = uc.withBackoff(ctx, bookkeepingAttempts, bookkeepingBaseDelay, func() error {
		var werr error
		updated, werr = uc.Store.Mutate(ctx, order.ID, patch, actor.ID)
		return werr
	})
	if err != nil {
		if uc.Metrics != nil {
			uc.Metrics.BookkeepingFailuresTotal.Inc()
		}
		return nil, &domain.BookkeepingSyncFailed{Op: op, OrderID: order.ID, Err: err}
	}

	uc.Reconcile.Apply(updated)
	uc.refreshBalance(ctx, order.Escrow.CreatorWallet)
	uc.publishOrder(updated, actor.ID, txHash)
	return updated, nil
}
