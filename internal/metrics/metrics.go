// Package metrics holds the Prometheus collectors for webhook ingestion,
// ledger writes and reconciliation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts webhook deliveries by event type and outcome
	// (processed, skipped, duplicate, error, rejected).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "webhook_events_total",
		Help:      "Square webhook deliveries by type and outcome.",
	}, []string{"type", "outcome"})

	LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "ledger_entries_total",
		Help:      "Ledger entries written, by reason.",
	}, []string{"reason"})

	LedgerDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "ledger_duplicates_total",
		Help:      "Ledger inserts skipped because the correlation key already existed.",
	})

	UnmappedLineItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "unmapped_line_items_total",
		Help:      "Order line items whose variation has no recipe mapping.",
	})

	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "reconcile_runs_total",
		Help:      "Reconciliation runs by status.",
	}, []string{"status"})

	ReconcileAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grill",
		Name:      "reconcile_adjustments_total",
		Help:      "RECON ledger entries written by reconciliation.",
	})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grill",
		Name:      "reconcile_duration_seconds",
		Help:      "Wall time of reconciliation runs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
