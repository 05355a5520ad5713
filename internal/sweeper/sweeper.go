// Package sweeper moves orders past their deadline into terminal failure
// states, decoupled from any user action.
package sweeper

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
	"github.com/peerdeal/order-engine/internal/reconcile"
)

// DefaultCooldown bounds how often a sweep may actually run when many
// ticks fire in quick succession.
const DefaultCooldown = 10 * time.Second

type DisputeOpener interface {
	OpenForOrder(ctx context.Context, order *domain.Order, actor domain.Actor, reason domain.DisputeReason, description string) (*domain.Dispute, error)
}

type Sweeper struct {
	Store     domain.OrderStore
	Reconcile *reconcile.Store
	Disputes  DisputeOpener
	Metrics   *metrics.EngineMetrics
	Cooldown  time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

func NewSweeper(store domain.OrderStore, reconcileStore *reconcile.Store, disputes DisputeOpener, engineMetrics *metrics.EngineMetrics, cooldown time.Duration) *Sweeper {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Sweeper{
		Store:     store,
		Reconcile: reconcileStore,
		Disputes:  disputes,
		Metrics:   engineMetrics,
		Cooldown:  cooldown,
	}
}

// Start schedules the sweep. The returned cron must be stopped by the
// caller on shutdown.
func (s *Sweeper) Start(ctx context.Context, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			log.Printf("expiry sweep error: %v\n", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// Sweep runs one pass. Idempotent: re-running over the same orders is a
// no-op because expired ones already left the swept statuses.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.claimRun() {
		if s.Metrics != nil {
			s.Metrics.SweepSkippedCooldownTotal.Inc()
		}
		return nil
	}
	if s.Metrics != nil {
		s.Metrics.SweepsTotal.Inc()
	}

	if err := s.sweepOpen(ctx); err != nil {
		return err
	}
	return s.sweepInProgress(ctx)
}

func (s *Sweeper) claimRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Sub(s.lastRun) < s.Cooldown {
		return false
	}
	s.lastRun = now
	return true
}

// sweepOpen expires unaccepted orders past their deadline.
func (s *Sweeper) sweepOpen(ctx context.Context) error {
	orders, err := s.Store.FetchMany(ctx, domain.OrderFilters{
		Statuses:      []domain.OrderStatus{domain.StatusOpen},
		ExpiresBefore: time.Now(),
	})
	if err != nil {
		return err
	}
	for _, order := range orders {
		now := time.Now()
		newStatus := domain.StatusExpired
		updated, err := s.Store.Mutate(ctx, order.ID, domain.Patch{Status: &newStatus, CancelledAt: &now}, "sweeper")
		if err != nil {
			log.Printf("failed to expire order %s: %v\n", order.ID, err)
			continue
		}
		if s.Reconcile != nil {
			s.Reconcile.Apply(updated)
		}
		if s.Metrics != nil {
			s.Metrics.OrdersExpiredTotal.Inc()
		}
		slog.Info("order expired by sweeper", "order_id", order.ID)
	}
	return nil
}

// sweepInProgress escalates in-progress orders past their (possibly
// extended) deadline into the dispute workflow and records that the
// escrow creator may reclaim funds.
func (s *Sweeper) sweepInProgress(ctx context.Context) error {
	orders, err := s.Store.FetchMany(ctx, domain.OrderFilters{
		Statuses: []domain.OrderStatus{
			domain.StatusAccepted,
			domain.StatusEscrowed,
			domain.StatusPaymentSent,
		},
		ExpiresBefore: time.Now(),
	})
	if err != nil {
		return err
	}
	for _, order := range orders {
		if order.Escrow.TradeID != "" {
			reclaim := true
			if _, err := s.Store.Mutate(ctx, order.ID, domain.Patch{ReclaimAvailable: &reclaim}, "sweeper"); err != nil {
				log.Printf("failed to flag reclaim on order %s: %v\n", order.ID, err)
			}
			order.ReclaimAvailable = true
		}
		if _, err := s.Disputes.OpenForOrder(ctx, order, domain.Actor{ID: "sweeper"}, domain.ReasonExpired, "order deadline passed"); err != nil {
			log.Printf("failed to escalate expired order %s: %v\n", order.ID, err)
			continue
		}
		if s.Metrics != nil {
			s.Metrics.OrdersExpiredTotal.Inc()
		}
		slog.Info("expired in-progress order escalated to dispute", "order_id", order.ID)
	}
	return nil
}
