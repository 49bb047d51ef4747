package metrics

import (
	"github.com/bookrel/backend/pkg/common"
	"github.com/bookrel/backend/pkg/query"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QueryTotal counts query service calls by operation and error kind
	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrel_query_total",
			Help: "Total number of query service calls",
		},
		[]string{"op", "result"},
	)

	// QueryDuration tracks how long query service calls take
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrel_query_duration_seconds",
			Help:    "Duration of query service calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SnapshotEdges tracks how many edges a returned graph or snapshot holds
	SnapshotEdges = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrel_snapshot_edges",
			Help:    "Number of edges returned per call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(SnapshotEdges)
}

// QueryTracer records query service events as Prometheus metrics.
type QueryTracer struct{}

func (QueryTracer) Record(event query.TraceEvent) {
	result := "ok"
	if event.Err != nil {
		result = common.Kind(event.Err)
	}
	op := string(event.Kind)

	QueryTotal.WithLabelValues(op, result).Inc()
	QueryDuration.WithLabelValues(op).Observe(event.Duration.Seconds())
	if event.Err != nil {
		return
	}

	SnapshotEdges.WithLabelValues(op).Observe(float64(event.Edges))
}
