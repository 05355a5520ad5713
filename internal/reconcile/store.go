package reconcile

import (
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
)

// Store is the local order collection. All writers go through Apply or
// ApplyOptimistic; merges for the same order id are serialized on a
// sharded mutex, merges for different ids proceed independently.
type Store struct {
	shards  [256]sync.Mutex
	orders  sync.Map // order id -> *domain.Order
	metrics *metrics.EngineMetrics
}

func NewStore(m *metrics.EngineMetrics) *Store {
	return &Store{metrics: m}
}

func (s *Store) shard(orderID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return &s.shards[h.Sum32()%256]
}

// Apply merges an authoritative snapshot into the collection and returns
// the snapshot held afterwards.
func (s *Store) Apply(incoming *domain.Order) (*domain.Order, Outcome) {
	mu := s.shard(incoming.ID)
	mu.Lock()
	defer mu.Unlock()

	var local *domain.Order
	if v, ok := s.orders.Load(incoming.ID); ok {
		local = v.(*domain.Order)
	}

	snap := incoming.Clone()
	snap.Origin = domain.OriginAuthoritative
	kept, outcome := Merge(local, snap)
	s.orders.Store(incoming.ID, kept)

	switch outcome {
	case OutcomeStaleDiscarded:
		// Expected under racing sources; debug only, not an error.
		slog.Debug("stale snapshot discarded",
			"order_id", incoming.ID,
			"local_version", local.Version,
			"incoming_version", incoming.Version)
		if s.metrics != nil {
			s.metrics.StaleDiscardsTotal.Inc()
		}
	case OutcomeCompletionOverride:
		if s.metrics != nil {
			s.metrics.CompletionOverridesTotal.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.MergesTotal.WithLabelValues(outcome.String()).Inc()
	}
	return kept, outcome
}

// ApplyOptimistic patches the local record with a predicted next state
// before the authoritative response returns. The patch carries no version
// and is fully superseded by the next Apply for the same id.
func (s *Store) ApplyOptimistic(orderID string, patch func(*domain.Order)) (*domain.Order, bool) {
	mu := s.shard(orderID)
	mu.Lock()
	defer mu.Unlock()

	v, ok := s.orders.Load(orderID)
	if !ok {
		return nil, false
	}
	predicted := v.(*domain.Order).Clone()
	patch(predicted)
	predicted.Origin = domain.OriginOptimistic
	s.orders.Store(orderID, predicted)
	if s.metrics != nil {
		s.metrics.OptimisticPatchesTotal.Inc()
	}
	return predicted, true
}

// Get returns the locally held snapshot, if any.
func (s *Store) Get(orderID string) (*domain.Order, bool) {
	v, ok := s.orders.Load(orderID)
	if !ok {
		return nil, false
	}
	return v.(*domain.Order), true
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []*domain.Order {
	var out []*domain.Order
	s.orders.Range(func(_, v any) bool {
		out = append(out, v.(*domain.Order))
		return true
	})
	return out
}
