package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
)

// ErrSuperseded marks the result of a fetch that a newer fetch for the
// same order replaced. It is filtered before the NetworkError category:
// a superseded fetch is not a failure.
var ErrSuperseded = errors.New("fetch superseded by a newer one")

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Syncer drives authoritative refreshes into the Store. A newer fetch for
// the same order cancels its predecessor, independent of version checks.
type Syncer struct {
	store   *Store
	source  domain.OrderStore
	metrics *metrics.EngineMetrics

	mu       sync.Mutex
	inflight map[string]*inflight
}

func NewSyncer(store *Store, source domain.OrderStore, m *metrics.EngineMetrics) *Syncer {
	return &Syncer{
		store:    store,
		source:   source,
		metrics:  m,
		inflight: make(map[string]*inflight),
	}
}

// Refresh fetches the authoritative snapshot for one order, normalizes its
// status and merges it. Returns ErrSuperseded when a newer Refresh for the
// same order started while this one was in flight.
func (s *Syncer) Refresh(ctx context.Context, orderID string) (*domain.Order, error) {
	fetchCtx, gen := s.begin(ctx, orderID)
	defer s.finish(orderID, gen)

	order, err := s.source.Fetch(fetchCtx, orderID)
	if err != nil {
		if s.superseded(orderID, gen) {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	if s.superseded(orderID, gen) {
		return nil, ErrSuperseded
	}

	status, err := domain.EffectiveStatus(order)
	if err != nil {
		return nil, err
	}
	order.Status = status

	kept, _ := s.store.Apply(order)
	return kept, nil
}

// Poll runs fetchMany on a fixed interval until ctx is done. Each cycle
// merges every returned snapshot; snapshots that fail normalization are
// logged and skipped so one drifted record cannot stall the pipeline.
func (s *Syncer) Poll(ctx context.Context, filters domain.OrderFilters, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollOnce(ctx, filters); err != nil {
				slog.Error("order poll failed", "error", err.Error())
			}
		}
	}
}

func (s *Syncer) pollOnce(ctx context.Context, filters domain.OrderFilters) error {
	orders, err := s.source.FetchMany(ctx, filters)
	if err != nil {
		return err
	}
	for _, order := range orders {
		status, err := domain.EffectiveStatus(order)
		if err != nil {
			slog.Error("skipping snapshot with unrecognized status",
				"order_id", order.ID, "error", err.Error())
			continue
		}
		order.Status = status
		s.store.Apply(order)
	}
	return nil
}

// pushEvent is the payload of the real-time channel. Push is a signal to
// refetch, never the final value: payloads may be partial.
type pushEvent struct {
	OrderID   string `json:"order_id"`
	NewStatus string `json:"new_status"`
}

// Listen consumes push events and re-runs fetch+merge for each.
func (s *Syncer) Listen(ctx context.Context, sub domain.SubscriberPort, topic, groupID string) error {
	msgs, err := sub.Subscribe(ctx, topic, groupID)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event pushEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				slog.Error("malformed push event", "error", err.Error())
				continue
			}
			if event.OrderID == "" {
				continue
			}
			if _, err := s.Refresh(ctx, event.OrderID); err != nil && !errors.Is(err, ErrSuperseded) {
				slog.Error("push-triggered refresh failed",
					"order_id", event.OrderID, "error", err.Error())
			}
		}
	}
}

func (s *Syncer) begin(ctx context.Context, orderID string) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fetchCtx, cancel := context.WithCancel(ctx)
	prev := s.inflight[orderID]
	var gen uint64 = 1
	if prev != nil {
		prev.cancel()
		gen = prev.gen + 1
		if s.metrics != nil {
			s.metrics.SupersededFetchesTotal.Inc()
		}
	}
	s.inflight[orderID] = &inflight{gen: gen, cancel: cancel}
	return fetchCtx, gen
}

func (s *Syncer) superseded(orderID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.inflight[orderID]
	return cur == nil || cur.gen != gen
}

func (s *Syncer) finish(orderID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.inflight[orderID]
	if cur != nil && cur.gen == gen {
		cur.cancel()
		delete(s.inflight, orderID)
	}
}
