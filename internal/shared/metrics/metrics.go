package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmdata_analyses_total",
		Help: "Analyses by outcome (started, completed, failed)",
	}, []string{"outcome", "reason"})

	artifactsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmdata_analysis_artifacts_total",
		Help: "Detected artifacts by kind",
	}, []string{"kind"})

	tokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmdata_llm_tokens_total",
		Help: "Provider-reported tokens by model class and kind",
	}, []string{"model_class", "kind"})

	providerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "farmdata_llm_request_duration_seconds",
		Help:    "Provider round trip duration in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"model_class"})

	filesUploadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmdata_files_uploaded_total",
		Help: "Stored uploads by category",
	}, []string{"category"})

	filesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "farmdata_files_skipped_total",
		Help: "File ids skipped during analysis",
	})
)

func init() {
	registry.MustRegister(
		analysesTotal,
		artifactsTotal,
		tokensTotal,
		providerDuration,
		filesUploadedTotal,
		filesSkippedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the registry backing /metrics.
func Registry() *prometheus.Registry {
	return registry
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysesTotal.WithLabelValues("started", "").Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysesTotal.WithLabelValues("completed", "").Inc()
}

// IncAnalysisFailed increments the failed counter for reason.
func IncAnalysisFailed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	analysesTotal.WithLabelValues("failed", reason).Inc()
}

// IncArtifact counts a detected artifact of the given kind.
func IncArtifact(kind string) {
	artifactsTotal.WithLabelValues(kind).Inc()
}

// AddTokens adds provider-reported tokens by kind (input, output, reasoning).
func AddTokens(modelClass string, input, output, reasoning int) {
	if modelClass == "" {
		modelClass = "unknown"
	}
	tokensTotal.WithLabelValues(modelClass, "input").Add(float64(max(input, 0)))
	tokensTotal.WithLabelValues(modelClass, "output").Add(float64(max(output, 0)))
	tokensTotal.WithLabelValues(modelClass, "reasoning").Add(float64(max(reasoning, 0)))
}

// IncFileUploaded counts a stored upload per category.
func IncFileUploaded(category string) {
	if category == "" {
		category = "legacy"
	}
	filesUploadedTotal.WithLabelValues(category).Inc()
}

// IncFileSkipped counts a file id that could not be resolved or read.
func IncFileSkipped() {
	filesSkippedTotal.Inc()
}

// ObserveProviderDuration records a provider round trip.
func ObserveProviderDuration(modelClass string, d time.Duration) {
	if modelClass == "" {
		modelClass = "unknown"
	}
	if d < 0 {
		d = 0
	}
	providerDuration.WithLabelValues(modelClass).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
