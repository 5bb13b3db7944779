package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache, timetable
// and export instrumentation. A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	scheduledCourses prometheus.Gauge
	weeks            prometheus.Gauge
	conflicts        *prometheus.GaugeVec
	catalogCourses   prometheus.Gauge
	catalogImports   prometheus.Counter
	exportJobs       *prometheus.CounterVec
	exportDuration   *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		scheduledCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_timetable_scheduled_courses",
			Help: "Courses currently placed on the timetable",
		}),
		weeks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_timetable_weeks",
			Help: "Number of weeks in the timetable",
		}),
		conflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "exam_timetable_conflicts",
			Help: "Conflict attachments in the current timetable by kind",
		}, []string{"kind"}),
		catalogCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_catalog_courses",
			Help: "Courses in the active catalog",
		}),
		catalogImports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_catalog_imports_total",
			Help: "Successful enrollment imports",
		}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_export_jobs_total",
			Help: "Roster export jobs by format and terminal status",
		}, []string{"format", "status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_export_duration_seconds",
			Help:    "Time spent rendering roster exports",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.scheduledCourses, m.weeks, m.conflicts,
		m.catalogCourses, m.catalogImports,
		m.exportJobs, m.exportDuration,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// SetTimetableState publishes the size of the grid and its conflict counts.
// Kinds missing from conflicts are reset to zero.
func (m *MetricsService) SetTimetableState(scheduled, weeks int, conflicts map[string]int, kinds ...string) {
	if m == nil {
		return
	}
	m.scheduledCourses.Set(float64(scheduled))
	m.weeks.Set(float64(weeks))
	for _, kind := range kinds {
		m.conflicts.WithLabelValues(kind).Set(float64(conflicts[kind]))
	}
	for kind, n := range conflicts {
		m.conflicts.WithLabelValues(kind).Set(float64(n))
	}
}

// RecordCatalogImport counts an import and publishes the catalog size.
func (m *MetricsService) RecordCatalogImport(courses int) {
	if m == nil {
		return
	}
	m.catalogImports.Inc()
	m.catalogCourses.Set(float64(courses))
}

// SetCatalogSize publishes the catalog size without counting an import.
func (m *MetricsService) SetCatalogSize(courses int) {
	if m == nil {
		return
	}
	m.catalogCourses.Set(float64(courses))
}

// RecordExport counts a finished or failed export job.
func (m *MetricsService) RecordExport(format, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(format, status).Inc()
	if duration > 0 {
		m.exportDuration.WithLabelValues(format).Observe(duration.Seconds())
	}
}
