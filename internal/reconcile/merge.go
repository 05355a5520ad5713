// Package reconcile merges racing order snapshots from polls, push
// refetches and mutation responses into one consistent local collection.
package reconcile

import "github.com/peerdeal/order-engine/internal/domain"

type Outcome int

const (
	// OutcomeInserted: no local record existed, incoming adopted.
	OutcomeInserted Outcome = iota
	// OutcomeApplied: incoming was newer or equal, adopted.
	OutcomeApplied
	// OutcomeStaleDiscarded: incoming carried an older version, kept local.
	OutcomeStaleDiscarded
	// OutcomeCompletionOverride: incoming was COMPLETED and adopted
	// regardless of its version.
	OutcomeCompletionOverride
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeApplied:
		return "applied"
	case OutcomeStaleDiscarded:
		return "stale_discarded"
	case OutcomeCompletionOverride:
		return "completion_override"
	}
	return "unknown"
}

// Merge decides between a locally held snapshot and an incoming
// authoritative one. Pure function; serialization per order id is the
// Store's job.
//
// Rules, in order:
//   - no local record: adopt incoming
//   - local is an optimistic patch: adopt incoming unconditionally
//     (optimistic patches carry no version of their own)
//   - incoming is COMPLETED: adopt regardless of version, a completion
//     must never be hidden by a version race
//   - incoming.Version < local.Version: keep local
//   - otherwise adopt (equal versions are idempotent replacements)
func Merge(local, incoming *domain.Order) (*domain.Order, Outcome) {
	if local == nil {
		return incoming, OutcomeInserted
	}
	if local.Origin == domain.OriginOptimistic {
		return incoming, OutcomeApplied
	}
	if incoming.Status == domain.StatusCompleted {
		if incoming.Version < local.Version {
			return incoming, OutcomeCompletionOverride
		}
		return incoming, OutcomeApplied
	}
	if incoming.Version < local.Version {
		return local, OutcomeStaleDiscarded
	}
	return incoming, OutcomeApplied
}
