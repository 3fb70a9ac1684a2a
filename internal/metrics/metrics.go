// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aether_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	dbConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	receiptStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_receipt_stream_clients",
			Help: "Number of connected receipt stream clients",
		},
	)

	jobMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aether_job_messages_received_total",
			Help: "Job topic messages delivered to the listener",
		},
	)

	jobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_jobs_queued",
			Help: "Job messages waiting for a worker",
		},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_jobs_processed_total",
			Help: "Jobs processed by final state",
		},
		[]string{"state"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aether_job_duration_seconds",
			Help:    "Time from message receipt to final state",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"state"},
	)

	paymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_payment_verifications_total",
			Help: "Payment verifications by result",
		},
		[]string{"result"},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_dispatch_total",
			Help: "Function executions by target and status",
		},
		[]string{"target", "status"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aether_dispatch_duration_seconds",
			Help:    "Function execution time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"target"},
	)

	receiptsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_receipts_total",
			Help: "Receipt publication attempts by receipt status and outcome",
		},
		[]string{"status", "outcome"},
	)

	resultsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aether_results_stored",
			Help: "Results held by the in-memory result store",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

func UpdateDBStats(open, inUse int) {
	dbConnectionsOpen.Set(float64(open))
	dbConnectionsInUse.Set(float64(inUse))
}

func UpdateReceiptStreamClients(n int) {
	receiptStreamClients.Set(float64(n))
}

func RecordJobMessage() {
	jobMessagesReceived.Inc()
}

func SetJobsQueued(n int) {
	jobsQueued.Set(float64(n))
}

func RecordJob(state string, duration time.Duration) {
	jobsProcessed.WithLabelValues(state).Inc()
	jobDuration.WithLabelValues(state).Observe(duration.Seconds())
}

func RecordPaymentVerification(result string) {
	paymentVerifications.WithLabelValues(result).Inc()
}

func RecordDispatch(target string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	dispatchTotal.WithLabelValues(target, status).Inc()
	dispatchDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func RecordReceipt(status, outcome string) {
	receiptsPublished.WithLabelValues(status, outcome).Inc()
}

func SetResultsStored(n int) {
	resultsStored.Set(float64(n))
}

// NormalizePath collapses ids in request paths so label cardinality stays bounded.
func NormalizePath(path string) string {
	if len(path) > 100 {
		path = path[:100]
	}

	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i < 3 || p == "" {
			continue
		}
		switch parts[i-1] {
		case "results", "functions":
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
