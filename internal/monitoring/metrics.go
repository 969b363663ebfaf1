// Package monitoring exposes Prometheus instrumentation and the health
// report served by /api/health.
package monitoring

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentiment_db_query_duration_seconds",
			Help:    "Duration of database units of work in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_db_query_errors_total",
			Help: "Total number of failed database units of work",
		},
		[]string{"operation"},
	)

	AccessDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_access_denied_total",
			Help: "Total number of by-id lookups refused by the access check",
		},
		[]string{"entity"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentiment_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	WorkflowCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_workflow_calls_total",
			Help: "Calls to the workflow engine by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveQuery records one database unit of work. Context cancellation is
// not counted as an error.
func ObserveQuery(operation string, d time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil && !isCancellation(err) {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

func RecordAccessDenied(entity string) {
	AccessDenied.WithLabelValues(entity).Inc()
}

// RecordAPIRequest records a finished request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordWorkflowCall counts workflow engine calls: "success", "error" or
// "rejected" when the circuit breaker is open.
func RecordWorkflowCall(outcome string) {
	WorkflowCalls.WithLabelValues(outcome).Inc()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
