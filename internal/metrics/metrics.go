// Package metrics provides Prometheus metrics for graphstore
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for graphstore
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Storage metrics, labelled by resource (node, edge, entity)
	DbOperationsTotal   *prometheus.CounterVec
	DbOperationDuration *prometheus.HistogramVec
	DbRecords           *prometheus.GaugeVec
	DbSizeBytes         prometheus.Gauge

	// Index maintenance
	IndexUpdatesTotal    *prometheus.CounterVec
	EntitiesCreatedTotal prometheus.Counter

	// Query metrics
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	QueryResultsTotal  prometheus.Counter
	PathQueryHopsTotal prometheus.Histogram

	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics registers every metric with the default registerer
func NewMetrics() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates and registers all metrics with reg. A nil reg creates
// unregistered collectors, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphstore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphstore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphstore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.DbOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphstore_db_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "resource", "status"},
	)

	m.DbOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphstore_db_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "resource"},
	)

	m.DbRecords = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graphstore_db_records",
			Help: "Number of stored records per partition",
		},
		[]string{"partition"},
	)

	m.DbSizeBytes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphstore_db_size_bytes",
			Help: "Current database file size in bytes",
		},
	)

	m.IndexUpdatesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphstore_index_updates_total",
			Help: "Index bucket changes made by node writes",
		},
		[]string{"change"},
	)

	m.EntitiesCreatedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "graphstore_entities_created_total",
			Help: "Entities registered implicitly by node writes",
		},
	)

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphstore_queries_total",
			Help: "Total number of executed queries",
		},
		[]string{"kind", "status"},
	)

	m.QueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphstore_query_duration_seconds",
			Help:    "Duration of query execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	m.QueryResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "graphstore_query_results_total",
			Help: "Total number of records returned by queries",
		},
	)

	m.PathQueryHopsTotal = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphstore_path_query_hops",
			Help:    "Length in hops of shortest paths found",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphstore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDbOperation records a storage operation
func (m *Metrics) RecordDbOperation(operation, resource string, err error, duration time.Duration) {
	m.DbOperationsTotal.WithLabelValues(operation, resource, status(err)).Inc()
	m.DbOperationDuration.WithLabelValues(operation, resource).Observe(duration.Seconds())
}

// RecordIndexChanges counts bucket additions and removals
func (m *Metrics) RecordIndexChanges(added, removed int) {
	if added > 0 {
		m.IndexUpdatesTotal.WithLabelValues("added").Add(float64(added))
	}
	if removed > 0 {
		m.IndexUpdatesTotal.WithLabelValues("removed").Add(float64(removed))
	}
}

// RecordQuery records an executed query and its result count
func (m *Metrics) RecordQuery(kind string, results int, err error, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(kind, status(err)).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err == nil {
		m.QueryResultsTotal.Add(float64(results))
	}
}

// RecordPath records the hop count of a found path
func (m *Metrics) RecordPath(hops int) {
	m.PathQueryHopsTotal.Observe(float64(hops))
}

// UpdateDbStats updates storage statistics
func (m *Metrics) UpdateDbStats(sizeBytes int64, nodes, edges, entities int) {
	m.DbSizeBytes.Set(float64(sizeBytes))
	m.DbRecords.WithLabelValues("nodes").Set(float64(nodes))
	m.DbRecords.WithLabelValues("edges").Set(float64(edges))
	m.DbRecords.WithLabelValues("entities").Set(float64(entities))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
