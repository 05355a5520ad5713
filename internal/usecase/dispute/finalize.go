package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// ForceFinalize settles a dispute by compliance authority, bypassing
// party confirmation entirely. Custody identifiers are still required for
// the on-chain action; when they are absent the dispute is resolved
// off-chain and flagged for manual processing instead of blocking.
func (disputeUc *DefaultDisputeUsecase) ForceFinalize(ctx context.Context, disputeID string, actor domain.Actor, resolution domain.Resolution, splitUserPct float64, notes string) (*domain.Dispute, error) {
	const op = "dispute.force_finalize"

	if !actor.Compliance {
		return nil, domain.Preconditionf(op, "compliance actor required")
	}
	if resolution == domain.ResolutionSplit && (splitUserPct <= 0 || splitUserPct >= 100) {
		return nil, domain.Preconditionf(op, "split percentage %v out of range", splitUserPct)
	}

	dispute, err := disputeUc.disputeRepo.GetDisputeByID(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == domain.DisputeFinalized {
		return nil, domain.Preconditionf(op, "dispute already finalized")
	}

	order, err := disputeUc.fetchOrder(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}

	dispute.Proposed = resolution
	dispute.SplitUserPct = splitUserPct
	if notes != "" {
		dispute.Notes = notes
	}
	return disputeUc.finalize(ctx, dispute, order, actor, "forced")
}

// finalize performs the custody settlement matching the resolution and
// closes both the dispute and the order. Nothing is persisted until the
// settlement succeeds: a failed custody call leaves the stored dispute in
// its pre-finalize status, so confirmation or the auto-finalize sweep can
// simply run again.
func (disputeUc *DefaultDisputeUsecase) finalize(ctx context.Context, dispute *domain.Dispute, order *domain.Order, actor domain.Actor, mode string) (*domain.Dispute, error) {
	now := time.Now()

	switch dispute.Proposed {
	case domain.ResolutionFavorUser:
		dispute.Status = domain.DisputeResolvedUser
	case domain.ResolutionFavorMerchant:
		dispute.Status = domain.DisputeResolvedMerchant
	case domain.ResolutionSplit:
		dispute.Status = domain.DisputeResolvedSplit
	default:
		return nil, domain.Preconditionf("dispute.finalize", "no resolution proposed")
	}

	orderStatus, err := disputeUc.settle(ctx, dispute, order)
	if err != nil {
		return nil, err
	}

	dispute.Status = domain.DisputeFinalized
	dispute.ResolvedAt = &now
	dispute.UpdatedAt = now
	if err := disputeUc.disputeRepo.UpdateDispute(dispute); err != nil {
		return nil, err
	}

	patch := domain.Patch{Status: &orderStatus}
	if orderStatus == domain.StatusCompleted {
		patch.CompletedAt = &now
	} else {
		patch.CancelledAt = &now
	}
	updated, err := disputeUc.orderStore.Mutate(ctx, order.ID, patch, actor.ID)
	if err != nil {
		return nil, err
	}
	if disputeUc.reconcileStore != nil {
		disputeUc.reconcileStore.Apply(updated)
	}
	if disputeUc.metrics != nil {
		disputeUc.metrics.DisputesFinalizedTotal.WithLabelValues(string(dispute.Proposed), mode).Inc()
	}

	disputeUc.publishDispute(dispute)
	return dispute, nil
}

// settle maps the resolution onto a custody operation. Funds flow toward
// the favored party: a refund when that party created the escrow, a
// release when it sits on the receiving side.
func (disputeUc *DefaultDisputeUsecase) settle(ctx context.Context, dispute *domain.Dispute, order *domain.Order) (domain.OrderStatus, error) {
	userIsCreator := domain.ResolveRole(order, userParty(order)) == domain.RoleSeller

	var favorCreator bool
	switch dispute.Proposed {
	case domain.ResolutionFavorUser:
		favorCreator = userIsCreator
	case domain.ResolutionFavorMerchant:
		favorCreator = !userIsCreator
	case domain.ResolutionSplit:
		return disputeUc.settleSplit(ctx, dispute, order, userIsCreator)
	}

	escrow := order.Escrow
	if favorCreator {
		if escrow.TradeID == "" || escrow.CreatorWallet == "" {
			return disputeUc.flagManual(dispute, order, domain.StatusCancelled)
		}
		if _, err := disputeUc.custody.Refund(ctx, escrow.TradeID, escrow.CreatorWallet); err != nil {
			return "", err
		}
		disputeUc.refreshBalances(ctx, escrow.CreatorWallet)
		return domain.StatusCancelled, nil
	}

	if !escrow.Complete() {
		return disputeUc.flagManual(dispute, order, domain.StatusCompleted)
	}
	if _, err := disputeUc.custody.Release(ctx, escrow.TradeID, escrow.CreatorWallet, escrow.CounterpartyWallet); err != nil {
		return "", err
	}
	disputeUc.refreshBalances(ctx, escrow.CreatorWallet, escrow.CounterpartyWallet)
	return domain.StatusCompleted, nil
}

func (disputeUc *DefaultDisputeUsecase) settleSplit(ctx context.Context, dispute *domain.Dispute, order *domain.Order, userIsCreator bool) (domain.OrderStatus, error) {
	escrow := order.Escrow
	if !escrow.Complete() {
		return disputeUc.flagManual(dispute, order, domain.StatusCompleted)
	}
	creatorPct := dispute.SplitUserPct
	if !userIsCreator {
		creatorPct = 100 - dispute.SplitUserPct
	}
	if _, err := disputeUc.custody.Split(ctx, escrow.TradeID, escrow.CreatorWallet, escrow.CounterpartyWallet, creatorPct); err != nil {
		return "", err
	}
	disputeUc.refreshBalances(ctx, escrow.CreatorWallet, escrow.CounterpartyWallet)
	return domain.StatusCompleted, nil
}

// flagManual records that the on-chain action could not run for lack of
// custody identifiers. The dispute still finalizes off-chain.
func (disputeUc *DefaultDisputeUsecase) flagManual(dispute *domain.Dispute, order *domain.Order, status domain.OrderStatus) (domain.OrderStatus, error) {
	dispute.RequiresManualProcessing = true
	slog.Warn("dispute settlement requires manual processing",
		"dispute_id", dispute.ID, "order_id", order.ID, "resolution", string(dispute.Proposed))
	return status, nil
}

func (disputeUc *DefaultDisputeUsecase) refreshBalances(ctx context.Context, wallets ...string) {
	if disputeUc.balance == nil {
		return
	}
	for _, wallet := range wallets {
		if wallet == "" {
			continue
		}
		if _, err := disputeUc.balance.Refresh(ctx, wallet); err != nil {
			slog.Error("balance refresh failed", "wallet", wallet, "error", err.Error())
		}
	}
}
