package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
	publisher "github.com/peerdeal/order-engine/internal/infrastructure/kafka"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
	"github.com/peerdeal/order-engine/internal/reconcile"
)

// DefaultProposalTTL bounds how long an unanswered resolution proposal
// stays open before it auto-finalizes as accepted.
const DefaultProposalTTL = 24 * time.Hour

type DisputeUsecase interface {
	Open(ctx context.Context, orderID string, actor domain.Actor, reason domain.DisputeReason, description string) (*domain.Dispute, error)
	Investigate(ctx context.Context, disputeID string, actor domain.Actor) (*domain.Dispute, error)
	Propose(ctx context.Context, disputeID string, actor domain.Actor, resolution domain.Resolution, splitUserPct float64, notes string) (*domain.Dispute, error)
	Confirm(ctx context.Context, disputeID string, actor domain.Actor, confirmed bool) (*domain.Dispute, error)
	ForceFinalize(ctx context.Context, disputeID string, actor domain.Actor, resolution domain.Resolution, splitUserPct float64, notes string) (*domain.Dispute, error)
	FinalizeExpiredProposals(ctx context.Context) error
	GetDisputeByID(disputeID string) (*domain.Dispute, error)
	GetDisputeByOrderID(orderID string) (*domain.Dispute, error)
}

type DisputeEventPublisher interface {
	PublishDispute(event publisher.DisputeEvent) error
}

type DefaultDisputeUsecase struct {
	disputeRepo    domain.DisputeRepository
	orderStore     domain.OrderStore
	custody        domain.CustodyService
	balance        domain.BalanceCache
	reconcileStore *reconcile.Store
	kafkaPublisher DisputeEventPublisher
	metrics        *metrics.EngineMetrics
	proposalTTL    time.Duration
}

func NewDefaultDisputeUsecase(
	disputeRepo domain.DisputeRepository,
	orderStore domain.OrderStore,
	custody domain.CustodyService,
	balance domain.BalanceCache,
	reconcileStore *reconcile.Store,
	kafkaPublisher DisputeEventPublisher,
	engineMetrics *metrics.EngineMetrics,
	proposalTTL time.Duration) *DefaultDisputeUsecase {

	if proposalTTL <= 0 {
		proposalTTL = DefaultProposalTTL
	}
	return &DefaultDisputeUsecase{
		disputeRepo:    disputeRepo,
		orderStore:     orderStore,
		custody:        custody,
		balance:        balance,
		reconcileStore: reconcileStore,
		kafkaPublisher: kafkaPublisher,
		metrics:        engineMetrics,
		proposalTTL:    proposalTTL,
	}
}

func (disputeUc *DefaultDisputeUsecase) GetDisputeByID(disputeID string) (*domain.Dispute, error) {
	return disputeUc.disputeRepo.GetDisputeByID(disputeID)
}

func (disputeUc *DefaultDisputeUsecase) GetDisputeByOrderID(orderID string) (*domain.Dispute, error) {
	return disputeUc.disputeRepo.GetDisputeByOrderID(orderID)
}

func (disputeUc *DefaultDisputeUsecase) publishDispute(dispute *domain.Dispute) {
	if disputeUc.kafkaPublisher == nil {
		return
	}
	go func(event publisher.DisputeEvent) {
		if err := disputeUc.kafkaPublisher.PublishDispute(event); err != nil {
			slog.Error("failed to publish dispute event", "dispute_id", event.DisputeID, "error", err.Error())
		}
	}(publisher.DisputeEvent{
		DisputeID:  dispute.ID,
		OrderID:    dispute.OrderID,
		Status:     string(dispute.Status),
		Reason:     string(dispute.Reason),
		Resolution: string(dispute.Proposed),
		OpenedBy:   dispute.OpenedBy,
	})
}

// userParty and merchantParty are the two non-compliance voters. In an
// M2M trade the counter-merchant stands on the requester side.
func userParty(order *domain.Order) string {
	if order.M2M() {
		return order.Parties.CounterMerchantID
	}
	return order.Parties.UserID
}

func merchantParty(order *domain.Order) string {
	return order.Parties.MerchantID
}

func (disputeUc *DefaultDisputeUsecase) fetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := disputeUc.orderStore.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	status, err := domain.EffectiveStatus(order)
	if err != nil {
		return nil, err
	}
	order.Status = status
	return order, nil
}
