// Package observability provides the ambient metrics/tracing stack:
// Prometheus counters/histograms and an OpenTelemetry tracer provider.
// Grounded on backend's internal/infrastructure/observability/{metrics,
// tracing,middleware}.go, trimmed from that package's generic HTTP/DB/cache
// metric set to this engine's own operations (ingestion, embedding,
// provider calls, grounding cache).
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every Prometheus metric the engine emits.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ConceptsUpserted   prometheus.Counter
	ConceptsMerged      prometheus.Counter
	EdgesCreated        prometheus.Counter
	IngestionJobs       *prometheus.CounterVec
	ProviderCalls       *prometheus.CounterVec
	ProviderDuration    *prometheus.HistogramVec
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	VocabConsolidations prometheus.Counter
	AnnealingCycles     prometheus.Counter
}

// NewCollector builds and registers every metric under namespace. Each
// process owns exactly one Collector backed by its own registry — no
// package-level singleton, since main constructs and threads it once.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ConceptsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "concepts_upserted_total", Help: "Total concept upsert calls.",
		}),
		ConceptsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "concepts_merged_total", Help: "Total upserts resolved as a merge.",
		}),
		EdgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "edges_created_total", Help: "Total relationship edges created.",
		}),
		IngestionJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingestion_jobs_total", Help: "Ingestion jobs by terminal state.",
		}, []string{"state"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_calls_total", Help: "Provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_call_duration_seconds", Help: "Provider call duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Grounding/axis cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Grounding/axis cache misses.",
		}),
		VocabConsolidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vocab_consolidations_total", Help: "Vocabulary consolidation runs.",
		}),
		AnnealingCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "annealing_cycles_total", Help: "Ontology annealing cycles run.",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration, c.ConceptsUpserted, c.ConceptsMerged, c.EdgesCreated,
		c.IngestionJobs, c.ProviderCalls, c.ProviderDuration, c.CacheHits, c.CacheMisses,
		c.VocabConsolidations, c.AnnealingCycles,
	)
	return c
}

// Handler exposes the collector's registry on the metrics scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records per-route request count and latency (teacher's
// MetricsMiddleware, adapted from net/http ResponseWriter wrapping to
// chi's route-pattern lookup).
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
