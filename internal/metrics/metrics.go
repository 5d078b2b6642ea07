package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order status transitions applied, by source",
		},
		[]string{"from", "to", "source"},
	)

	transitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_cas_conflicts_total",
			Help: "Compare-and-swap conflicts retried by the state machine",
		},
		[]string{"source"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Gateway webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	signatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_signature_failures_total",
			Help: "Rejected gateway signatures by path",
		},
		[]string{"path"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition counts an applied status change.
func RecordTransition(from, to, source string) {
	orderTransitions.WithLabelValues(from, to, source).Inc()
}

// RecordConflict counts a retried compare-and-swap.
func RecordConflict(source string) {
	transitionConflicts.WithLabelValues(source).Inc()
}

// RecordWebhook counts a webhook delivery with its outcome.
func RecordWebhook(event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

// RecordSignatureFailure counts a rejected signature on the given path
// ("client" or "webhook").
func RecordSignatureFailure(path string) {
	signatureFailures.WithLabelValues(path).Inc()
}

// Instrument records request count and latency. route should be the
// registered pattern, not the raw path, to keep label cardinality bounded.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.status)
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
