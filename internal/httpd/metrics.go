package httpd

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"glossa/internal/translator"
)

// metrics holds the Prometheus instruments exposed at /metrics. A private
// registry keeps the endpoint limited to glossa's own series.
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	chunksTotal prometheus.Counter
	chunkFails  prometheus.Counter
	duration    prometheus.Histogram
	costUSD     prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glossa_translate_requests_total",
			Help: "Translation requests by terminal outcome.",
		}, []string{"status"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "glossa_cache_hits_total",
			Help: "Requests served from the translation cache.",
		}),
		chunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "glossa_chunks_processed_total",
			Help: "Chunks resolved across all jobs.",
		}),
		chunkFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "glossa_chunks_failed_total",
			Help: "Chunks that exhausted their translation attempt.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "glossa_job_duration_seconds",
			Help:    "Wall-clock duration of non-cached translation jobs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		costUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "glossa_estimated_cost_usd_total",
			Help: "Accumulated estimated provider cost.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeTranslate(resp *translator.Response, err error) {
	if err != nil {
		m.requests.WithLabelValues("error").Inc()
		return
	}
	if resp == nil {
		return
	}
	if resp.Cached {
		m.requests.WithLabelValues("cached").Inc()
		m.cacheHits.Inc()
		return
	}
	m.requests.WithLabelValues(string(resp.Status)).Inc()
	m.chunksTotal.Add(float64(resp.ChunksCompleted + resp.ChunksFailed))
	m.chunkFails.Add(float64(resp.ChunksFailed))
	m.duration.Observe(time.Duration(resp.ProcessingTimeMS * int64(time.Millisecond)).Seconds())
	m.costUSD.Add(resp.EstimatedCostUSD)
}
