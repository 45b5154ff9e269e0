package ingest

import (
	"github.com/evergreen-ci/larch/model"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "larch"

var (
	ingestCount      *prometheus.CounterVec
	rejectionCount   *prometheus.CounterVec
	regressionCount  *prometheus.CounterVec
	ingestDuration   prometheus.Histogram
	storedEntryCount *prometheus.GaugeVec
)

func init() {
	ingestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingestions_total",
			Help:      "Total number of benchmark entries ingested",
		},
		[]string{"mode"}, // mode: append, backfill
	)
	prometheus.MustRegister(ingestCount)

	rejectionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejections_total",
			Help:      "Total number of benchmark entries rejected",
		},
		[]string{"reason"},
	)
	prometheus.MustRegister(rejectionCount)

	regressionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regressions_total",
			Help:      "Total number of measurements flagged as regressions",
		},
		[]string{"severity"}, // severity: warning, failing
	)
	prometheus.MustRegister(regressionCount)

	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
	prometheus.MustRegister(ingestDuration)

	storedEntryCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "suite_entries",
			Help:      "Number of entries stored for a suite after the last ingestion",
		},
		[]string{"suite"},
	)
	prometheus.MustRegister(storedEntryCount)
}

// rejectionReason classifies an ingestion error for the rejection counter.
func rejectionReason(err error) string {
	switch {
	case model.IsInvalidEntry(err):
		return "invalid_entry"
	case model.IsOutOfOrder(err):
		return "out_of_order"
	case model.IsConcurrentModification(err):
		return "concurrent_modification"
	case model.IsCorruptStore(err):
		return "corrupt_store"
	default:
		return "other"
	}
}
