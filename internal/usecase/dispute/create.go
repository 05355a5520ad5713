package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/peerdeal/order-engine/internal/domain"
)

// Open creates the authoritative off-chain dispute record and moves the
// order to DISPUTED. When a wallet is connected and custody identifiers
// exist, an on-chain dispute marker is attempted first; that marker is
// best-effort and its failure never blocks the off-chain record.
func (disputeUc *DefaultDisputeUsecase) Open(ctx context.Context, orderID string, actor domain.Actor, reason domain.DisputeReason, description string) (*domain.Dispute, error) {
	order, err := disputeUc.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return disputeUc.OpenForOrder(ctx, order, actor, reason, description)
}

// OpenForOrder is Open for callers that already hold the snapshot
// (extension decline, expiry sweeper).
func (disputeUc *DefaultDisputeUsecase) OpenForOrder(ctx context.Context, order *domain.Order, actor domain.Actor, reason domain.DisputeReason, description string) (*domain.Dispute, error) {
	const op = "dispute.open"

	if order.Status.Terminal() {
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	if order.Status == domain.StatusDisputed {
		existing, err := disputeUc.disputeRepo.GetDisputeByOrderID(order.ID)
		if err == nil && existing != nil {
			return existing, nil
		}
	}

	if actor.Wallet != "" && order.Escrow.TradeID != "" {
		if _, err := disputeUc.custody.OpenDisputeMarker(ctx, order.Escrow.TradeID, order.Escrow.CreatorWallet); err != nil {
			slog.Error("on-chain dispute marker failed, continuing off-chain",
				"order_id", order.ID, "error", err.Error())
		}
	}

	now := time.Now()
	dispute := &domain.Dispute{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		Reason:      reason,
		Description: description,
		OpenedBy:    actor.ID,
		Status:      domain.DisputeOpen,
		ProposalTTL: disputeUc.proposalTTL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := disputeUc.disputeRepo.CreateDispute(dispute); err != nil {
		return nil, err
	}

	newStatus := domain.StatusDisputed
	updated, err := disputeUc.orderStore.Mutate(ctx, order.ID, domain.Patch{Status: &newStatus}, actor.ID)
	if err != nil {
		return nil, err
	}
	if disputeUc.reconcileStore != nil {
		disputeUc.reconcileStore.Apply(updated)
	}
	if disputeUc.metrics != nil {
		disputeUc.metrics.DisputesOpenedTotal.WithLabelValues(string(reason)).Inc()
	}

	disputeUc.publishDispute(dispute)
	return dispute, nil
}
