// Package metrics exposes Prometheus metrics for publication and trash work.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublicationEntitiesTotal counts publish/revert outcomes by entity kind.
	PublicationEntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusmap",
			Subsystem: "publication",
			Name:      "entities_total",
			Help:      "Entities handled by the publish engine by kind and result",
		},
		[]string{"kind", "result"},
	)

	PublishAllDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campusmap",
			Subsystem: "publication",
			Name:      "publish_all_seconds",
			Help:      "Duration of publish-all transactions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// TrashOperationsTotal counts trash transitions by operation and outcome.
	TrashOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusmap",
			Subsystem: "trash",
			Name:      "operations_total",
			Help:      "Trash operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	ImageDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusmap",
			Subsystem: "images",
			Name:      "deletes_total",
			Help:      "Image store deletions by status",
		},
		[]string{"status"},
	)
)

// Result labels.
const (
	ResultUpdated  = "updated"
	ResultDeleted  = "deleted"
	ResultReverted = "reverted"
	StatusOK       = "ok"
	StatusFailed   = "failed"
)
