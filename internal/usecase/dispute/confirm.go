package usecase

import (
	"context"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Confirm records one party's vote on the proposed resolution. Any
// rejection returns the dispute to investigation; once both parties
// confirm, the resolution settles and finalizes.
func (disputeUc *DefaultDisputeUsecase) Confirm(ctx context.Context, disputeID string, actor domain.Actor, confirmed bool) (*domain.Dispute, error) {
	const op = "dispute.confirm"

	dispute, err := disputeUc.disputeRepo.GetDisputeByID(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != domain.DisputeResolutionProposed {
		return nil, domain.Preconditionf(op, "dispute status is %s", dispute.Status)
	}

	order, err := disputeUc.fetchOrder(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}

	vote := domain.VoteConfirmed
	if !confirmed {
		vote = domain.VoteRejected
	}
	switch actor.ID {
	case userParty(order):
		dispute.UserVote = vote
	case merchantParty(order):
		dispute.MerchantVote = vote
	default:
		return nil, domain.Preconditionf(op, "caller is not a party to the dispute")
	}
	dispute.UpdatedAt = time.Now()

	if !confirmed {
		// Back to investigation; the proposal is void.
		dispute.Status = domain.DisputeInvestigating
		dispute.Proposed = ""
		dispute.SplitUserPct = 0
		dispute.UserVote = domain.VoteNone
		dispute.MerchantVote = domain.VoteNone
		dispute.AutoFinalizeAt = time.Time{}
		if err := disputeUc.disputeRepo.UpdateDispute(dispute); err != nil {
			return nil, err
		}
		disputeUc.publishDispute(dispute)
		return dispute, nil
	}

	if dispute.UserVote != domain.VoteConfirmed || dispute.MerchantVote != domain.VoteConfirmed {
		if err := disputeUc.disputeRepo.UpdateDispute(dispute); err != nil {
			return nil, err
		}
		return dispute, nil
	}

	return disputeUc.finalize(ctx, dispute, order, actor, "confirmed")
}
