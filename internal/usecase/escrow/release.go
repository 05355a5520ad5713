package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Release hands the escrowed crypto to the counterparty and completes the
// order. Missing custody identifiers are a hard precondition failure, not
// a retryable error: the custody service is never called in that case.
func (uc *DefaultEscrowUsecase) Release(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	const op = "escrow.release"

	unlock := uc.lockOrder(orderID)
	defer unlock()

	order, err := uc.fetchNormalized(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role := domain.ResolveRole(order, actor.ID)
	if role != domain.RoleSeller && !actor.Compliance {
		return nil, domain.Preconditionf(op, "caller resolves to %s, seller or compliance required", role)
	}
	switch {
	case order.Status == domain.StatusPaymentSent:
	case order.Status == domain.StatusDisputed && actor.Compliance:
		// Forced settlement path out of the dispute workflow.
	default:
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	if !order.Escrow.Complete() {
		return nil, domain.Preconditionf(op, "custody identifiers incomplete")
	}

	start := time.Now()
	txHash, err := uc.Custody.Release(ctx, order.Escrow.TradeID, order.Escrow.CreatorWallet, order.Escrow.CounterpartyWallet)
	uc.observeCustody("release", start, err)
	if err != nil {
		return nil, err
	}

	uc.Reconcile.ApplyOptimistic(order.ID, func(o *domain.Order) {
		o.Status = domain.StatusCompleted
	})

	now := time.Now()
	newStatus := domain.StatusCompleted
	patch := domain.Patch{Status: &newStatus, CompletedAt: &now}

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
	uc.refreshBalance(ctx, order.Escrow.CreatorWallet, order.Escrow.CounterpartyWallet)
	uc.publishOrder(updated, actor.ID, txHash)
	return updated, nil
}
