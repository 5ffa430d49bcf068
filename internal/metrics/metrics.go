package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "pages_extracted_total",
			Help:      "Total pages extracted by source (digital, ocr)",
		},
		[]string{"source"},
	)

	ocrFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "ocr_fallbacks_total",
			Help:      "OCR fallback decisions by result (applied, unavailable)",
		},
		[]string{"result"},
	)

	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "provider_requests_total",
			Help:      "Total analysis provider requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exampipeline",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of analysis provider requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	analyzerFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "analyzer_field_fallbacks_total",
			Help:      "Enrichment fields substituted with defaults during defensive parsing",
		},
		[]string{"field"},
	)

	enrichOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "enrichments_total",
			Help:      "Enrichment attempts by terminal status (completed, failed)",
		},
		[]string{"status"},
	)

	segmentations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exampipeline",
			Name:      "segmentation_previews_total",
			Help:      "Total segmentation previews served",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesExtracted, ocrFallbacks, providerReqs, providerLatency, analyzerFallbacks, enrichOutcomes, segmentations)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func AddPagesExtracted(source string, n int) {
	pagesExtracted.WithLabelValues(source).Add(float64(n))
}

func IncOCRFallback(result string) { ocrFallbacks.WithLabelValues(result).Inc() }

func ObserveProvider(provider, model, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, model, result).Inc()
	providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncFieldFallback(field string) { analyzerFallbacks.WithLabelValues(field).Inc() }

func IncEnrichment(status string) { enrichOutcomes.WithLabelValues(status).Inc() }

func IncSegmentation() { segmentations.Inc() }
