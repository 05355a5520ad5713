package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics covers the reconciliation pipeline, custody orchestration
// and background sweeps.
type EngineMetrics struct {
	MergesTotal               prometheus.CounterVec
	StaleDiscardsTotal        prometheus.Counter
	CompletionOverridesTotal  prometheus.Counter
	SupersededFetchesTotal    prometheus.Counter
	OptimisticPatchesTotal    prometheus.Counter
	CustodyCallsTotal         prometheus.CounterVec
	CustodyCallDuration       prometheus.HistogramVec
	BookkeepingRetriesTotal   prometheus.Counter
	BookkeepingFailuresTotal  prometheus.Counter
	SweepsTotal               prometheus.Counter
	SweepSkippedCooldownTotal prometheus.Counter
	OrdersExpiredTotal        prometheus.Counter
	DisputesOpenedTotal       prometheus.CounterVec
	DisputesFinalizedTotal    prometheus.CounterVec
	ExtensionRequestsTotal    prometheus.CounterVec
}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		MergesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_merges_total",
				Help: "Merge decisions by outcome",
			},
			[]string{"outcome"},
		),
		StaleDiscardsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_stale_discards_total",
				Help: "Incoming snapshots discarded for carrying an older version",
			},
		),
		CompletionOverridesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_completion_overrides_total",
				Help: "COMPLETED snapshots adopted despite a lower version",
			},
		),
		SupersededFetchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_superseded_fetches_total",
				Help: "In-flight fetches discarded because a newer fetch started",
			},
		),
		OptimisticPatchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_optimistic_patches_total",
				Help: "Optimistic local patches applied ahead of the authoritative response",
			},
		),
		CustodyCallsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_calls_total",
				Help: "Calls to the custody service by operation and result",
			},
			[]string{"op", "result"},
		),
		CustodyCallDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custody_call_duration_seconds",
				Help:    "Custody call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		BookkeepingRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "custody_bookkeeping_retries_total",
				Help: "Retries of the order store write after a successful custody call",
			},
		),
		BookkeepingFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "custody_bookkeeping_failures_total",
				Help: "Bookkeeping writes that exhausted retries",
			},
		),
		SweepsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "expiry_sweeps_total",
				Help: "Expiry sweep runs",
			},
		),
		SweepSkippedCooldownTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "expiry_sweeps_skipped_cooldown_total",
				Help: "Sweep ticks skipped inside the cooldown window",
			},
		),
		OrdersExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_expired_total",
				Help: "Orders moved to a terminal state by the sweeper",
			},
		),
		DisputesOpenedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disputes_opened_total",
				Help: "Disputes opened by reason",
			},
			[]string{"reason"},
		),
		DisputesFinalizedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disputes_finalized_total",
				Help: "Disputes finalized by resolution and mode",
			},
			[]string{"resolution", "mode"},
		),
		ExtensionRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extension_requests_total",
				Help: "Deadline extension requests by outcome",
			},
			[]string{"outcome"},
		),
	}
}
