package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Propose records a compliance-mediated resolution. Both parties must
// confirm it independently before it finalizes; an unanswered proposal
// auto-finalizes once its TTL passes.
func (disputeUc *DefaultDisputeUsecase) Propose(ctx context.Context, disputeID string, actor domain.Actor, resolution domain.Resolution, splitUserPct float64, notes string) (*domain.Dispute, error) {
	const op = "dispute.propose"

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
	if dispute.Status != domain.DisputeInvestigating {
		return nil, domain.Preconditionf(op, "dispute status is %s", dispute.Status)
	}

	now := time.Now()
	dispute.Status = domain.DisputeResolutionProposed
	dispute.Proposed = resolution
	dispute.SplitUserPct = splitUserPct
	dispute.Notes = notes
	dispute.UserVote = domain.VoteNone
	dispute.MerchantVote = domain.VoteNone
	dispute.AutoFinalizeAt = now.Add(dispute.ProposalTTL)
	dispute.UpdatedAt = now
	if err := disputeUc.disputeRepo.UpdateDispute(dispute); err != nil {
		return nil, err
	}

	disputeUc.publishDispute(dispute)
	return dispute, nil
}
