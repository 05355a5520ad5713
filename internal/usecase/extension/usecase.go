package usecase

import (
	"context"

	"github.com/peerdeal/order-engine/internal/domain"
	publisher "github.com/peerdeal/order-engine/internal/infrastructure/kafka"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
	"github.com/peerdeal/order-engine/internal/reconcile"
)

// ExtensionUsecase is the two-step proposal protocol that extends an
// order's expiry deadline, bounded by a fixed cap per order.
type ExtensionUsecase interface {
	Request(ctx context.Context, orderID string, actor domain.Actor, minutes int) (*domain.Order, error)
	Respond(ctx context.Context, orderID string, actor domain.Actor, accept bool) (*domain.Order, error)
}

// DisputeOpener lets a declined extension escalate an order with locked
// funds instead of silently cancelling it.
type DisputeOpener interface {
	OpenForOrder(ctx context.Context, order *domain.Order, actor domain.Actor, reason domain.DisputeReason, description string) (*domain.Dispute, error)
}

type OrderEventPublisher interface {
	PublishOrder(event publisher.OrderEvent) error
}

type DefaultExtensionUsecase struct {
	Store     domain.OrderStore
	Reconcile *reconcile.Store
	Disputes  DisputeOpener
	Publisher OrderEventPublisher
	Metrics   *metrics.EngineMetrics
}

func NewDefaultExtensionUsecase(
	store domain.OrderStore,
	reconcileStore *reconcile.Store,
	disputes DisputeOpener,
	pub OrderEventPublisher,
	engineMetrics *metrics.EngineMetrics) *DefaultExtensionUsecase {

	return &DefaultExtensionUsecase{
		Store:     store,
		Reconcile: reconcileStore,
		Disputes:  disputes,
		Publisher: pub,
		Metrics:   engineMetrics,
	}
}

func (uc *DefaultExtensionUsecase) countExtension(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.ExtensionRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// declineStatus enumerates the next status per state at decline time.
// Pre-acceptance orders cancel; once escrow is funded a decline escalates
// to a dispute because locked funds must not be stranded.
func declineStatus(current domain.OrderStatus) domain.OrderStatus {
	switch current {
	case domain.StatusOpen, domain.StatusAccepted:
		return domain.StatusCancelled
	case domain.StatusEscrowed, domain.StatusPaymentSent:
		return domain.StatusDisputed
	}
	return domain.StatusCancelled
}
