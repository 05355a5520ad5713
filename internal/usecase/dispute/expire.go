package usecase

import (
	"context"
	"log"

	"github.com/peerdeal/order-engine/internal/domain"
)

// FinalizeExpiredProposals treats proposals unanswered past their TTL as
// accepted and settles them. Run periodically from the worker loop.
func (disputeUc *DefaultDisputeUsecase) FinalizeExpiredProposals(ctx context.Context) error {
	disputes, err := disputeUc.disputeRepo.FindExpiredProposals()
	if err != nil {
		return err
	}
	for _, dispute := range disputes {
		order, err := disputeUc.fetchOrder(ctx, dispute.OrderID)
		if err != nil {
			log.Printf("failed to load order %s for expired proposal %s: %v\n", dispute.OrderID, dispute.ID, err)
			continue
		}
		if _, err := disputeUc.finalize(ctx, dispute, order, domain.Actor{ID: "system", Compliance: true}, "auto"); err != nil {
			log.Printf("failed to auto-finalize dispute %s: %v\n", dispute.ID, err)
		}
	}
	return nil
}
