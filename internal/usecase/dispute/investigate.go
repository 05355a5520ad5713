package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Investigate moves a fresh dispute under compliance review.
func (disputeUc *DefaultDisputeUsecase) Investigate(ctx context.Context, disputeID string, actor domain.Actor) (*domain.Dispute, error) {
	const op = "dispute.investigate"

	if !actor.Compliance {
		return nil, domain.Preconditionf(op, "compliance actor required")
	}
	dispute, err := disputeUc.disputeRepo.GetDisputeByID(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != domain.DisputeOpen {
		return nil, domain.Preconditionf(op, "dispute status is %s", dispute.Status)
	}

	dispute.Status = domain.DisputeInvestigating
	dispute.UpdatedAt = time.Now()
	if err := disputeUc.disputeRepo.UpdateDispute(dispute); err != nil {
		return nil, err
	}

	disputeUc.publishDispute(dispute)
	return dispute, nil
}
