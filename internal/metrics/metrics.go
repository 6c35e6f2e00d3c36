package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and for the
// posting loop itself.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	postsTotal      *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	cyclesTotal     *prometheus.CounterVec
	fetchOutcomes   *prometheus.CounterVec
	fallbacksTotal  prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hypebot",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	postsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "bot",
		Name:      "posts_total",
		Help:      "Successful posts, labelled by publishing path.",
	}, []string{"path"})

	publishFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "bot",
		Name:      "publish_failures_total",
		Help:      "Failed publish attempts, labelled by publishing path.",
	}, []string{"path"})

	cyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "bot",
		Name:      "cycles_total",
		Help:      "Completed scheduler cycles, labelled by outcome.",
	}, []string{"outcome"})

	fetchOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "bot",
		Name:      "mention_fetches_total",
		Help:      "Mentions API fetches, labelled by outcome (ok, none).",
	}, []string{"outcome"})

	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hypebot",
		Subsystem: "bot",
		Name:      "generic_fallbacks_total",
		Help:      "Cycles that fell back to the generic topic message.",
	})

	collectors := []prometheus.Collector{
		requestDuration,
		requestTotal,
		postsTotal,
		publishFailures,
		cyclesTotal,
		fetchOutcomes,
		fallbacksTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		postsTotal:      postsTotal,
		publishFailures: publishFailures,
		cyclesTotal:     cyclesTotal,
		fetchOutcomes:   fetchOutcomes,
		fallbacksTotal:  fallbacksTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordPost counts a successful post on the given publishing path.
func (c *Collector) RecordPost(path string) {
	c.postsTotal.WithLabelValues(path).Inc()
}

// RecordPublishFailure counts a failed publish attempt on the given path.
func (c *Collector) RecordPublishFailure(path string) {
	c.publishFailures.WithLabelValues(path).Inc()
}

// RecordCycle counts a completed scheduler cycle by outcome
// (posted, duplicate, skipped, error).
func (c *Collector) RecordCycle(outcome string) {
	c.cyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordFetch counts a mentions API fetch by outcome (ok, none).
func (c *Collector) RecordFetch(outcome string) {
	c.fetchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordGenericFallback counts a cycle that used the generic topic message.
func (c *Collector) RecordGenericFallback() {
	c.fallbacksTotal.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
