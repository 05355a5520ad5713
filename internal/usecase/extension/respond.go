package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
	publisher "github.com/peerdeal/order-engine/internal/infrastructure/kafka"
)

// Respond settles the pending extension request. Accepting extends the
// deadline server-side and returns the protocol to its idle state;
// declining pushes the order toward the failure state appropriate for
// wherever it currently stands.
func (uc *DefaultExtensionUsecase) Respond(ctx context.Context, orderID string, actor domain.Actor, accept bool) (*domain.Order, error) {
	const op = "extension.respond"

	order, err := uc.Store.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	status, err := domain.EffectiveStatus(order)
	if err != nil {
		return nil, err
	}
	order.Status = status

	if order.Extension.State != domain.ExtensionPending {
		return nil, domain.Preconditionf(op, "no pending extension request")
	}
	if actor.ID == order.Extension.RequestedByID {
		return nil, domain.Preconditionf(op, "requester cannot answer own request")
	}
	role := domain.ResolveRole(order, actor.ID)
	if role != domain.RoleBuyer && role != domain.RoleSeller {
		return nil, domain.Preconditionf(op, "caller is not a party to the order")
	}

	if accept {
		ext := order.Extension
		ext.State = domain.ExtensionNone
		ext.Count++
		ext.RequestedByID = ""
		deadline := order.ExpiresAt.Add(time.Duration(order.Extension.Minutes) * time.Minute)
		ext.Minutes = 0

		updated, err := uc.Store.Mutate(ctx, order.ID, domain.Patch{Extension: &ext, ExpiresAt: &deadline}, actor.ID)
		if err != nil {
			return nil, err
		}
		uc.Reconcile.Apply(updated)
		uc.countExtension("accepted")
		uc.publishOrder(updated, actor.ID)
		return updated, nil
	}

	// Decline: clear the request, then route by current state.
	ext := order.Extension
	ext.State = domain.ExtensionNone
	ext.RequestedByID = ""
	ext.Minutes = 0

	next := declineStatus(order.Status)
	if next == domain.StatusDisputed {
		if _, err := uc.Store.Mutate(ctx, order.ID, domain.Patch{Extension: &ext}, actor.ID); err != nil {
			return nil, err
		}
		if _, err := uc.Disputes.OpenForOrder(ctx, order, actor, domain.ReasonExpired, "deadline extension declined with escrow funded"); err != nil {
			return nil, err
		}
		updated, err := uc.Store.Fetch(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		uc.Reconcile.Apply(updated)
		uc.countExtension("declined")
		return updated, nil
	}

	now := time.Now()
	updated, err := uc.Store.Mutate(ctx, order.ID, domain.Patch{Extension: &ext, Status: &next, CancelledAt: &now}, actor.ID)
	if err != nil {
		return nil, err
	}
	uc.Reconcile.Apply(updated)
	uc.countExtension("declined")
	uc.publishOrder(updated, actor.ID)
	return updated, nil
}

func (uc *DefaultExtensionUsecase) publishOrder(order *domain.Order, actorID string) {
	if uc.Publisher == nil {
		return
	}
	go func(event publisher.OrderEvent) {
		if err := uc.Publisher.PublishOrder(event); err != nil {
			slog.Error("failed to publish order event", "order_id", event.OrderID, "error", err.Error())
		}
	}(publisher.OrderEvent{
		OrderID:      order.ID,
		SequenceID:   order.SequenceID,
		Status:       string(order.Status),
		AmountCrypto: order.Amount.AmountCrypto,
		AmountFiat:   order.Amount.AmountFiat,
		Currency:     order.Amount.Currency,
		Actor:        actorID,
	})
}
