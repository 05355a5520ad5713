package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Lock funds escrow from the seller's wallet and records the custody
// references on the order.
//
// Recipient precedence: a confirmed counterparty wallet wins; an
// unaccepted listing is funded in open-recipient mode and the counterparty
// is attached at join time; anything else fails as unresolved.
func (uc *DefaultEscrowUsecase) Lock(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	const op = "escrow.lock"

	// Fetch and checks run under the per-order lock: two racing calls must
	// not both observe an unfunded escrow.
	unlock := uc.lockOrder(orderID)
	defer unlock()

	order, err := uc.fetchNormalized(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if role := domain.ResolveRole(order, actor.ID); role != domain.RoleSeller {
		return nil, domain.Preconditionf(op, "caller resolves to %s, seller required", role)
	}
	if order.Status != domain.StatusOpen && order.Status != domain.StatusAccepted {
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	if order.Escrow.TradeID != "" {
		return nil, domain.Preconditionf(op, "escrow already funded")
	}
	if actor.Wallet == "" {
		return nil, domain.Preconditionf(op, "no wallet connected")
	}

	balance, fresh, err := uc.Balance.Get(ctx, actor.Wallet)
	if err != nil || !fresh {
		balance, err = uc.Balance.Refresh(ctx, actor.Wallet)
		if err != nil {
			return nil, err
		}
	}
	if balance.Crypto < order.Amount.AmountCrypto {
		return nil, domain.ErrInsufficientBalance
	}

	recipient := order.Escrow.CounterpartyWallet
	if recipient == "" && order.Status != domain.StatusOpen {
		// Counterparty committed but never surfaced a wallet.
		return nil, domain.ErrRecipientUnresolved
	}

	start := time.Now()
	result, err := uc.Custody.Lock(ctx, order.Amount.AmountCrypto, actor.Wallet, recipient)
	uc.observeCustody("lock", start, err)
	if err != nil {
		// Order untouched: a failed custody call leaves nothing to unwind.
		return nil, err
	}

	escrow := domain.EscrowInfo{
		TxHash:             result.TxHash,
		TradeID:            result.TradeID,
		ProgramAddress:     result.ProgramAddress,
		CreatorWallet:      actor.Wallet,
		CounterpartyWallet: recipient,
	}

	uc.Reconcile.ApplyOptimistic(order.ID, func(o *domain.Order) {
		o.Status = domain.StatusEscrowed
		o.Escrow = escrow
	})

	now := time.Now()
	newStatus := domain.StatusEscrowed
	patch := domain.Patch{Status: &newStatus, Escrow: &escrow, EscrowedAt: &now}

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
	uc.refreshBalance(ctx, actor.Wallet)
	uc.publishOrder(updated, actor.ID, result.TxHash)
	return updated, nil
}
