package usecase

import (
	"context"

	"github.com/peerdeal/order-engine/internal/domain"
)

// Request records a pending deadline extension from either party. Only
// one outstanding request per order is allowed; the cap on granted
// extensions is enforced here, not silently at accept time.
func (uc *DefaultExtensionUsecase) Request(ctx context.Context, orderID string, actor domain.Actor, minutes int) (*domain.Order, error) {
	const op = "extension.request"

	order, err := uc.Store.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	status, err := domain.EffectiveStatus(order)
	if err != nil {
		return nil, err
	}
	order.Status = status

	if minutes <= 0 {
		return nil, domain.Preconditionf(op, "extension minutes must be positive")
	}
	if order.Status.Terminal() || order.Status == domain.StatusDisputed {
		return nil, domain.Preconditionf(op, "order status is %s", order.Status)
	}
	role := domain.ResolveRole(order, actor.ID)
	if role != domain.RoleBuyer && role != domain.RoleSeller {
		return nil, domain.Preconditionf(op, "caller is not a party to the order")
	}
	if order.Extension.State == domain.ExtensionPending {
		uc.countExtension("rejected_pending")
		return nil, domain.Preconditionf(op, "an extension request is already pending")
	}
	max := order.Extension.Max
	if max == 0 {
		max = domain.DefaultMaxExtensions
	}
	if order.Extension.Count >= max {
		uc.countExtension("rejected_cap")
		return nil, domain.Preconditionf(op, "extension cap of %d reached", max)
	}

	ext := order.Extension
	ext.State = domain.ExtensionPending
	ext.RequestedByID = actor.ID
	ext.Minutes = minutes
	ext.Max = max

	updated, err := uc.Store.Mutate(ctx, order.ID, domain.Patch{Extension: &ext}, actor.ID)
	if err != nil {
		return nil, err
	}
	uc.Reconcile.Apply(updated)
	uc.countExtension("requested")
	uc.publishOrder(updated, actor.ID)
	return updated, nil
}
