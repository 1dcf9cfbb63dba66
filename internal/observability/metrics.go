package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traffictacos/ticketing-core/internal/config"
)

// Metrics holds every Prometheus collector the ticket lifecycle engine
// exports.
type Metrics struct {
	// HTTP adapter metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Order lifecycle metrics
	OrderTransitionsTotal  *prometheus.CounterVec
	InventoryConflictsTotal *prometheus.CounterVec
	SeatAssignmentAttempts *prometheus.HistogramVec

	// Store/queue metrics
	StoreLatency       *prometheus.HistogramVec
	StoreRequestsTotal *prometheus.CounterVec

	// Sweeper metrics
	SweeperExpiredTotal prometheus.Counter
	SweeperDuration     prometheus.Histogram
}

// NewMetrics registers and returns every collector.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_http_requests_total",
				Help: "Total number of HTTP requests served by the thin adapter",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_http_request_duration_seconds",
				Help:    "Duration of HTTP requests served by the thin adapter",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		OrderTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_order_transitions_total",
				Help: "Total number of order lifecycle transitions",
			},
			[]string{"to_status", "result"},
		),
		InventoryConflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_inventory_conflicts_total",
				Help: "Total number of optimistic-lock conflicts on inventory/event counters",
			},
			[]string{"table"},
		),
		SeatAssignmentAttempts: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_seat_assignment_attempts",
				Help:    "Number of transaction attempts the seat-assignment protocol needed per call",
				Buckets: []float64{1, 2, 3, 4},
			},
			[]string{"result"},
		),
		StoreLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketing_store_operation_duration_seconds",
				Help:    "Duration of KVStore operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation", "table"},
		),
		StoreRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketing_store_requests_total",
				Help: "Total number of KVStore operations",
			},
			[]string{"operation", "table", "status"},
		),
		SweeperExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketing_sweeper_expired_total",
				Help: "Total number of reservations expired by the sweeper",
			},
		),
		SweeperDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ticketing_sweeper_pass_duration_seconds",
				Help:    "Duration of a single sweeper pass",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// StartMetricsServer serves the Prometheus scrape endpoint.
func (m *Metrics) StartMetricsServer(cfg *config.Config) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", cfg.Observability.MetricsPort), mux)
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordOrderTransition records one lifecycle transition attempt.
func (m *Metrics) RecordOrderTransition(toStatus, result string) {
	m.OrderTransitionsTotal.WithLabelValues(toStatus, result).Inc()
}

// RecordInventoryConflict records one optimistic-lock conflict.
func (m *Metrics) RecordInventoryConflict(table string) {
	m.InventoryConflictsTotal.WithLabelValues(table).Inc()
}

// RecordSeatAssignmentAttempts records how many transaction attempts
// the seat-assignment protocol needed for one call.
func (m *Metrics) RecordSeatAssignmentAttempts(attempts int, result string) {
	m.SeatAssignmentAttempts.WithLabelValues(result).Observe(float64(attempts))
}

// RecordStoreOperation records one KVStore round trip.
func (m *Metrics) RecordStoreOperation(operation, table, status string, duration time.Duration) {
	m.StoreLatency.WithLabelValues(operation, table).Observe(duration.Seconds())
	m.StoreRequestsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordSweep records one completed sweeper pass.
func (m *Metrics) RecordSweep(expired int, duration time.Duration) {
	m.SweeperExpiredTotal.Add(float64(expired))
	m.SweeperDuration.Observe(duration.Seconds())
}
