package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Join attaches the buyer to an already-funded escrow. For an
// open-recipient listing the joining party becomes the counterparty; this
// is the only point where the placeholder recipient is resolved.
func (uc *DefaultEscrowUsecase) Join(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	const op = "escrow.join"

	unlock := uc.lockOrder(orderID)
	defer unlock()

	order, err := uc.fetchNormalized(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != domain.StatusEscrowed {
		return nil, domain.Preconditionf(op, "order status is %s, escrow must be funded", order.Status)
	}
	if order.Escrow.TradeID == "" {
		return nil, domain.Preconditionf(op, "escrow not funded")
	}
	if actor.Wallet == "" {
		return nil, domain.Preconditionf(op, "no wallet connected")
	}
	// Either the resolved buyer joins, or a newcomer takes the open side.
	role := domain.ResolveRole(order, actor.ID)
	if role == domain.RoleSeller {
		return nil, domain.Preconditionf(op, "escrow creator cannot join own trade")
	}
	if role == domain.RoleObserver && order.Escrow.CounterpartyWallet != "" {
		return nil, domain.Preconditionf(op, "trade already has a counterparty")
	}

	start := time.Now()
	txHash, err := uc.Custody.Join(ctx, order.Escrow.TradeID, order.Escrow.CreatorWallet, actor.Wallet)
	uc.observeCustody("join", start, err)
	if err != nil {
		return nil, err
	}

	escrow := order.Escrow
	escrow.CounterpartyWallet = actor.Wallet

	uc.Reconcile.ApplyOptimistic(order.ID, func(o *domain.Order) {
		o.Escrow = escrow
	})

	// Acceptance opens the working window: the deadline restarts here.
	now := time.Now()
	deadline := now.Add(uc.inProgressTTL())
	patch := domain.Patch{Escrow: &escrow, AcceptedAt: &now, ExpiresAt: &deadline}

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
	uc.publishOrder(updated, actor.ID, txHash)
	return updated, nil
}
