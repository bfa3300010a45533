package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheErrors     *prometheus.CounterVec
	loaderSnapshots *prometheus.CounterVec
	loaderRetries   *prometheus.CounterVec
	loaderFallbacks *prometheus.CounterVec
	loaderGiveUps   *prometheus.CounterVec
	sessions        prometheus.Gauge
	imageProbes     *prometheus.CounterVec
	analyticsEvents *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	sessionCount   int64
}

// MetricsSnapshot summarises process counters for the readiness endpoint.
type MetricsSnapshot struct {
	CacheHits      uint64    `json:"cache_hits"`
	CacheMisses    uint64    `json:"cache_misses"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	RequestsTotal  uint64    `json:"requests_total"`
	ActiveSessions int64     `json:"active_sessions"`
	Goroutines     int       `json:"goroutines"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_cache_latency_seconds",
		Help:    "Latency for snapshot cache reads",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_cache_write_seconds",
		Help:    "Latency for snapshot cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Fresh snapshot cache entries used for an initial paint",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Snapshot cache lookups that were absent, stale or unreadable",
	})

	cacheErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_cache_errors_total",
		Help: "Snapshot cache failures by operation",
	}, []string{"op"})

	loaderSnapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loader_snapshots_total",
		Help: "Live snapshots applied per resource",
	}, []string{"resource"})

	loaderRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loader_retries_total",
		Help: "Subscription reopen attempts per resource",
	}, []string{"resource"})

	loaderFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loader_fallbacks_total",
		Help: "Unsorted fallback queries issued per resource",
	}, []string{"resource"})

	loaderGiveUps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loader_give_ups_total",
		Help: "Loaders that exhausted retries and settled empty",
	}, []string{"resource"})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stream_sessions_active",
		Help: "Connected live stream sessions",
	})

	imageProbes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_probes_total",
		Help: "Lazy image load outcomes",
	}, []string{"status"})

	analyticsEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_total",
		Help: "Analytics events by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses, cacheErrors,
		loaderSnapshots, loaderRetries, loaderFallbacks, loaderGiveUps, sessions, imageProbes, analyticsEvents, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheErrors:     cacheErrors,
		loaderSnapshots: loaderSnapshots,
		loaderRetries:   loaderRetries,
		loaderFallbacks: loaderFallbacks,
		loaderGiveUps:   loaderGiveUps,
		sessions:        sessions,
		imageProbes:     imageProbes,
		analyticsEvents: analyticsEvents,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a snapshot cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordCacheError counts a swallowed cache failure ("get" or "set").
func (m *MetricsService) RecordCacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

func (m *MetricsService) RecordLoaderSnapshot(resource string) {
	if m == nil {
		return
	}
	m.loaderSnapshots.WithLabelValues(resource).Inc()
}

func (m *MetricsService) RecordLoaderRetry(resource string) {
	if m == nil {
		return
	}
	m.loaderRetries.WithLabelValues(resource).Inc()
}

func (m *MetricsService) RecordLoaderFallback(resource string) {
	if m == nil {
		return
	}
	m.loaderFallbacks.WithLabelValues(resource).Inc()
}

func (m *MetricsService) RecordLoaderGiveUp(resource string) {
	if m == nil {
		return
	}
	m.loaderGiveUps.WithLabelValues(resource).Inc()
}

// SessionOpened and SessionClosed track live stream connections.
func (m *MetricsService) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	atomic.AddInt64(&m.sessionCount, 1)
}

func (m *MetricsService) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
	atomic.AddInt64(&m.sessionCount, -1)
}

// RecordImageProbe counts a lazy image outcome ("loaded" or "unavailable").
func (m *MetricsService) RecordImageProbe(status string) {
	if m == nil {
		return
	}
	m.imageProbes.WithLabelValues(status).Inc()
}

// RecordAnalyticsEvent counts an analytics outcome ("queued", "published", "logged", "dropped").
func (m *MetricsService) RecordAnalyticsEvent(outcome string) {
	if m == nil {
		return
	}
	m.analyticsEvents.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheHitRatio:  ratio,
		RequestsTotal:  atomic.LoadUint64(&m.requestCount),
		ActiveSessions: atomic.LoadInt64(&m.sessionCount),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
}
