package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry       *prometheus.Registry
	registryOnce   sync.Once
	metricsEnabled = true

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	ActiveAnalyses   prometheus.Gauge
	TurnsSegmented   prometheus.Counter

	// Persistence metrics
	PersistFailures *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  prometheus.Counter
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		AnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callinsight_analyses_total",
				Help: "Total number of transcript analyses by outcome",
			},
			[]string{"status"},
		)

		AnalysisDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callinsight_analysis_duration_seconds",
				Help:    "Time spent running a full transcript analysis",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		)

		ActiveAnalyses = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callinsight_active_analyses",
				Help: "Number of analyses currently in flight",
			},
		)

		TurnsSegmented = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "callinsight_turns_segmented_total",
				Help: "Total number of speaker turns produced by segmentation",
			},
		)

		PersistFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callinsight_persist_failures_total",
				Help: "Total number of failed analysis write-backs by table",
			},
			[]string{"table"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callinsight_amqp_published_total",
				Help: "Total number of AMQP result publications by outcome",
			},
			[]string{"status"},
		)

		AMQPConnectionErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "callinsight_amqp_connection_errors_total",
				Help: "Total number of AMQP connection errors",
			},
		)

		registry.MustRegister(
			AnalysesTotal,
			AnalysisDuration,
			ActiveAnalyses,
			TurnsSegmented,
			PersistFailures,
			AMQPPublishedMessages,
			AMQPConnectionErrors,
		)

		logger.Debug("Prometheus metrics registered")
	})
}

// GetRegistry returns the metrics registry for handler wiring
func GetRegistry() *prometheus.Registry {
	return registry
}

// EnableMetrics toggles metric collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler attaches the Prometheus handler to the given mux
func RegisterHandler(mux *http.ServeMux) {
	if registry == nil {
		return
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
