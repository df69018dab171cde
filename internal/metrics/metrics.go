package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "itemsim",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsim",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "itemsim",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	gameOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsim",
			Subsystem: "game",
			Name:      "operations_total",
			Help:      "Character operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	moneyMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsim",
			Subsystem: "game",
			Name:      "money_moved_total",
			Help:      "Money credited or debited by character operations.",
		},
		[]string{"operation"},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsim",
			Subsystem: "outbox",
			Name:      "messages_total",
			Help:      "Outbox publish attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		gameOperations,
		moneyMoved,
		outboxPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one finished request; path should be the route
// template so ids do not explode label cardinality.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation counts one character operation; result is "ok" or an error kind.
func RecordOperation(operation, result string) {
	gameOperations.WithLabelValues(operation, result).Inc()
}

// RecordMoney adds the absolute amount moved by an operation.
func RecordMoney(operation string, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	moneyMoved.WithLabelValues(operation).Add(float64(amount))
}

func RecordOutbox(result string) {
	outboxPublished.WithLabelValues(result).Inc()
}
