package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// MarkPaymentSent records that the fiat side went out. Off-chain only:
// no custody call is involved.
func (uc *DefaultEscrowUsecase) MarkPaymentSent(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	const op = "escrow.payment_sent"

	unlock := uc.lockOrder(orderID)
	defer unlock()

	order, err := uc.fetchNormalized(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if role := domain.ResolveRole(order, actor.ID); role != domain.RoleBuyer {
		return nil, domain.Preconditionf(op, "caller resolves to %s, buyer required", role)
	}
	if order.Status != domain.StatusEscrowed {
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	if order.Escrow.CounterpartyWallet == "" {
		return nil, domain.Preconditionf(op, "counterparty not attached to escrow")
	}

	uc.Reconcile.ApplyOptimistic(order.ID, func(o *domain.Order) {
		o.Status = domain.StatusPaymentSent
	})

	now := time.Now()
	newStatus := domain.StatusPaymentSent
	updated, err := uc.Store.Mutate(ctx, order.ID, domain.Patch{Status: &newStatus, PaymentSentAt: &now}, actor.ID)
	if err != nil {
		return nil, err
	}

	uc.Reconcile.Apply(updated)
	uc.publishOrder(updated, actor.ID, "")
	return updated, nil
}
