package telemetry

import "github.com/prometheus/client_golang/prometheus"

// ReadingsIngestedTotal counts inserted reading rows by tenant.
var ReadingsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "ingest",
		Name:      "readings_total",
		Help:      "Total number of readings inserted.",
	},
	[]string{"tenant"},
)

// ReadingsDroppedTotal counts readings silently filtered for cross-tenant units.
var ReadingsDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "ingest",
		Name:      "readings_dropped_total",
		Help:      "Total number of readings dropped for referencing a unit outside the asserting tenant.",
	},
	[]string{"tenant"},
)

// IngestBatchDuration measures ingestion batch processing latency.
var IngestBatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "frostguard",
		Subsystem: "ingest",
		Name:      "batch_duration_seconds",
		Help:      "Ingestion batch processing duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
)

// EvaluatorTransitionsTotal counts unit FSM transitions by from/to state.
var EvaluatorTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "evaluator",
		Name:      "transitions_total",
		Help:      "Total number of unit status transitions by from/to state.",
	},
	[]string{"from", "to"},
)

// AlertsTriggeredTotal counts newly created alerts by severity.
var AlertsTriggeredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "alerts",
		Name:      "triggered_total",
		Help:      "Total number of alerts created by severity.",
	},
	[]string{"severity"},
)

// AlertsResolvedTotal counts alert resolutions.
var AlertsResolvedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "alerts",
		Name:      "resolved_total",
		Help:      "Total number of alerts resolved.",
	},
)

// EscalationsTotal counts successful escalation-level bumps by new level.
var EscalationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "escalation",
		Name:      "escalated_total",
		Help:      "Total number of alert escalations by resulting level.",
	},
	[]string{"level"},
)

// EscalationsSkippedTotal counts escalation attempts skipped by reason.
var EscalationsSkippedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "escalation",
		Name:      "skipped_total",
		Help:      "Total number of escalation attempts skipped by reason.",
	},
	[]string{"reason"},
)

// SMSQueuedTotal counts SMS jobs enqueued.
var SMSQueuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "notify",
		Name:      "sms_queued_total",
		Help:      "Total number of SMS notification jobs enqueued.",
	},
)

// StreamBufferDepth tracks the number of buffered, unflushed readings.
var StreamBufferDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "frostguard",
		Subsystem: "stream",
		Name:      "buffer_depth",
		Help:      "Current number of readings buffered awaiting the next flush tick.",
	},
)

// MetricBucketUpsertsTotal counts metric-bucket upserts.
var MetricBucketUpsertsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "frostguard",
		Subsystem: "metrics",
		Name:      "bucket_upserts_total",
		Help:      "Total number of hourly metric bucket upserts performed.",
	},
)

// HTTPRequestDuration measures HTTP request latency by method, route, and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "frostguard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// All returns every frostguard-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ReadingsIngestedTotal,
		ReadingsDroppedTotal,
		IngestBatchDuration,
		EvaluatorTransitionsTotal,
		AlertsTriggeredTotal,
		AlertsResolvedTotal,
		EscalationsTotal,
		EscalationsSkippedTotal,
		SMSQueuedTotal,
		StreamBufferDepth,
		MetricBucketUpsertsTotal,
		HTTPRequestDuration,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors
// plus the given collectors registered.
func NewMetricsRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}
