package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for evaluated operations.
const (
	OutcomeFinite     = "finite"
	OutcomeInfinite   = "infinite"
	OutcomeIndefinite = "indefinite"
	OutcomeInvalid    = "invalid"
	OutcomeCompare    = "comparison"
	OutcomeError      = "error"
)

var (
	// Time arithmetic metrics
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_operations_total",
		Help: "Evaluated time operations by operation and result class",
	}, []string{"operation", "outcome"})

	roundedResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_rounded_results_total",
		Help: "Operations whose result lost precision in a rescale",
	}, []string{"operation"})

	overflowResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_overflow_results_total",
		Help: "Operations on finite operands that saturated to an infinity",
	}, []string{"operation"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediatime_operation_duration_seconds",
		Help:    "Time spent evaluating one operation",
		Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10), // 100ns to ~26ms
	}, []string{"operation"})

	// Timeline metrics
	timelineUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_timeline_updates_total",
		Help: "Timeline mutations by kind",
	}, []string{"kind"})

	timelinesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediatime_timelines_active",
		Help: "Timelines held by the store at the last listing",
	})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_timeline_store_errors_total",
		Help: "Timeline store failures by backend and call",
	}, []string{"backend", "call"})

	// RTP/RTCP metrics. Stream ids are not used as labels.
	rtpPacketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatime_rtp_packets_total",
		Help: "RTP packets decoded into timeline positions",
	})

	rtpWrapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatime_rtp_wraparounds_total",
		Help: "32-bit RTP timestamp wraparounds detected",
	})

	rtpReorderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatime_rtp_reordered_total",
		Help: "RTP packets whose timestamp went backwards",
	})

	senderReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatime_rtcp_sender_reports_total",
		Help: "RTCP sender reports applied to timelines",
	})

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediatime_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediatime_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediatime_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

// RecordOperation records one evaluation of operation.
func RecordOperation(operation, outcome string, rounded, overflow bool, seconds float64) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(seconds)
	if rounded {
		roundedResultsTotal.WithLabelValues(operation).Inc()
	}
	if overflow {
		overflowResultsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordTimelineUpdate counts a timeline mutation of the given kind.
func RecordTimelineUpdate(kind string) {
	timelineUpdatesTotal.WithLabelValues(kind).Inc()
}

// SetActiveTimelines sets the active timeline gauge.
func SetActiveTimelines(count int) {
	timelinesActive.Set(float64(count))
}

// IncrementStoreError counts a failed store call.
func IncrementStoreError(backend, call string) {
	storeErrorsTotal.WithLabelValues(backend, call).Inc()
}

// RecordRTPPacket counts a decoded packet and what the unwrapper saw.
func RecordRTPPacket(wrapped, reordered bool) {
	rtpPacketsTotal.Inc()
	if wrapped {
		rtpWrapsTotal.Inc()
	}
	if reordered {
		rtpReorderedTotal.Inc()
	}
}

// RecordSenderReport counts an applied sender report.
func RecordSenderReport() {
	senderReportsTotal.Inc()
}

// RecordHTTPRequest records a served request. route is the mux path template.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// IncrementRateLimited counts a rejected request.
func IncrementRateLimited() {
	rateLimitedTotal.Inc()
}
