// Package metrics defines and registers all custom Prometheus metrics for the
// studio API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto; /metrics exposes them alongside the HTTP metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studio"

// ── Generation metrics ────────────────────────────────────────────────────────

// GenerationsSubmittedTotal counts generations that passed the debit step.
// Label:
//   - type: "image" or "video"
var GenerationsSubmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_submitted_total",
		Help:      "Total number of generations debited and recorded, by type.",
	},
	[]string{"type"},
)

// GenerationsRejectedTotal counts submissions refused before any side effect.
// Label:
//   - reason: "invalid_request", "unknown_character", "insufficient_funds", "ledger_frozen", "error"
var GenerationsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_rejected_total",
		Help:      "Total number of generation requests rejected without side effects.",
	},
	[]string{"reason"},
)

// GenerationsFinalizedTotal counts generations reaching a terminal state.
// Labels:
//   - type: "image" or "video"
//   - status: "completed" or "failed"
var GenerationsFinalizedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_finalized_total",
		Help:      "Total number of generations that reached a terminal status.",
	},
	[]string{"type", "status"},
)

// SubmitDuration measures Submit end-to-end, backend call included.
var SubmitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submit_duration_seconds",
		Help:      "Duration of generation submission from validation to response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"type"},
)

// BackendInvokeDuration measures a single media backend invocation.
// Labels:
//   - type: "image" or "video"
//   - outcome: "completed", "processing", "error", "timeout"
var BackendInvokeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_invoke_duration_seconds",
		Help:      "Duration of media backend invocations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"type", "outcome"},
)

// ── Ledger metrics ────────────────────────────────────────────────────────────

// CreditsDebitedTotal sums credits debited for generations.
var CreditsDebitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_debited_total",
		Help:      "Total credits debited for generations.",
	},
)

// CreditsRefundedTotal sums credits returned by compensating refunds.
var CreditsRefundedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_refunded_total",
		Help:      "Total credits refunded for failed generations.",
	},
)

// RefundRetriesTotal counts refund attempts that failed and were retried.
var RefundRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refund_retries_total",
		Help:      "Total number of refund attempts that failed transiently.",
	},
)

// RefundEscalationsTotal counts refunds handed to an operator after retries ran out.
var RefundEscalationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refund_escalations_total",
		Help:      "Total number of refunds escalated after exhausting retries.",
	},
)

// LedgerInconsistenciesTotal counts failed integrity checks.
var LedgerInconsistenciesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_inconsistencies_total",
		Help:      "Total number of ledger integrity checks that found balance != sum of transactions.",
	},
)

// ── Async pipeline metrics ────────────────────────────────────────────────────

// OutcomesQueueDepth tracks the current number of outcomes waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var OutcomesQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outcomes_queue_depth",
		Help:      "Current number of backend outcomes pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// TrackedJobs is the number of processing jobs the poller is watching.
var TrackedJobs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_jobs",
		Help:      "Current number of processing backend jobs being polled.",
	},
)

// IdempotencyTotal counts Idempotency-Key lookups.
// Label:
//   - result: "hit" (replayed), "miss" (new request), "error" (store unavailable)
var IdempotencyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_total",
		Help:      "Total number of idempotency key checks, labelled by result.",
	},
	[]string{"result"},
)
