// Package metrics defines the prometheus collectors shared by the server and monitor.
// Labels are low-cardinality; camera ids are the only per-entity label.
package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/safestack/pkg/middleware"
)

const namespace = "safestack"

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeDropped = "dropped"
)

var (
	// ClassifierCalls counts vision model calls by outcome.
	ClassifierCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_calls_total",
			Help:      "Vision model classification calls by outcome",
		},
		[]string{"outcome"},
	)

	// ClassifierParseFailures counts responses with no recognizable violation array.
	// These are reported to callers as zero violations.
	ClassifierParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_parse_failures_total",
			Help:      "Classifier responses that contained no parseable JSON array",
		},
	)

	// ClassifierLatency tracks model call latency.
	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_latency_seconds",
			Help:      "Vision model call latency in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	// AlertsCreated counts persisted alerts by policy level.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created by policy level",
		},
		[]string{"level"},
	)

	// ViolationsUnresolved counts violations dropped because their policy title was unknown.
	ViolationsUnresolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_unresolved_total",
			Help:      "Violations skipped because the named policy does not exist",
		},
	)

	// Amendments counts policy amendment attempts by outcome.
	Amendments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_amendments_total",
			Help:      "Policy amendments by outcome",
		},
		[]string{"outcome"},
	)

	// RemediationJobs counts amended-image jobs by outcome.
	RemediationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remediation_jobs_total",
			Help:      "Amended image generation jobs by outcome",
		},
		[]string{"outcome"},
	)

	// MonitorUploads counts segment uploads by camera and outcome.
	MonitorUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_uploads_total",
			Help:      "Segment uploads by camera and outcome",
		},
		[]string{"camera", "outcome"},
	)

	// MonitorActiveUploads reports uploads currently in flight.
	MonitorActiveUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_active_uploads",
			Help:      "Segment uploads currently in flight",
		},
	)

	// MonitorQueueDepth reports segments waiting for an upload slot.
	MonitorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_queue_depth",
			Help:      "Captured segments waiting for an upload slot",
		},
	)

	// MonitorCaptureSkips counts capture cycles skipped because a previous cycle was still capturing.
	MonitorCaptureSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_capture_skips_total",
			Help:      "Capture cycles skipped due to an in-progress capture",
		},
		[]string{"camera"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ObserveClassification records one model call.
func ObserveClassification(outcome string, elapsed time.Duration) {
	ClassifierCalls.WithLabelValues(outcome).Inc()
	ClassifierLatency.Observe(elapsed.Seconds())
}

// RecordAlert records a created alert at the given policy level.
func RecordAlert(level int) {
	AlertsCreated.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RegisterDB exports pool statistics for db under the given database name.
// Registering the same name twice is not an error.
func RegisterDB(db *sql.DB, name string) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, name))
	if are := (prometheus.AlreadyRegisteredError{}); errors.As(err, &are) {
		return nil
	}
	return err
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns middleware that counts requests and observes latency.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := middleware.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.Status)).Inc()
			httpLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
