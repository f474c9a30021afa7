package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PlacementsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelhub_placements_accepted_total",
		Help: "The total number of pixel placements accepted by the pipeline",
	})
	PlacementsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixelhub_placements_rejected_total",
		Help: "The total number of pixel placements silently dropped, by reason",
	}, []string{"reason"})
	PublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelhub_publish_errors_total",
		Help: "The total number of errors occurred while publishing placed events to Kafka",
	})
	AppendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pixelhub_append_latency_seconds",
		Help:    "Latency of placement log appends",
		Buckets: prometheus.DefBuckets,
	})

	// Board Metrics
	SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pixelhub_snapshot_latency_seconds",
		Help:    "Latency of board snapshot queries",
		Buckets: prometheus.DefBuckets,
	})

	// Broadcaster Metrics
	BroadcastEventsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelhub_broadcast_events_consumed_total",
		Help: "The total number of placed events consumed from Kafka",
	})
	BroadcastBatchesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelhub_broadcast_batches_delivered_total",
		Help: "The total number of placement batches delivered to the hub",
	})
	BroadcastDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelhub_broadcast_dropped_total",
		Help: "The total number of batches dropped because a subscriber queue was full",
	})
)
