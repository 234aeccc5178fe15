package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and the defense workflow.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	schedulesCreated  *prometheus.CounterVec
	scheduleConflicts prometheus.Counter
	transitions       *prometheus.CounterVec
	autoScheduleRuns  *prometheus.CounterVec
	panelActions      *prometheus.CounterVec
	eventsDelivered   *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	scheduleCount        uint64
	conflictCount        uint64
	transitionCount      uint64
}

// NewMetricsService registers the Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	schedulesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "defense_schedules_created_total",
		Help: "Defense schedules created by stage",
	}, []string{"stage"})

	scheduleConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "defense_schedule_conflicts_total",
		Help: "Schedule requests rejected because a participant was unavailable",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thesis_transitions_total",
		Help: "Applied thesis status transitions",
	}, []string{"from", "to"})

	autoScheduleRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auto_schedule_runs_total",
		Help: "Auto-schedule runs by terminal status",
	}, []string{"status"})

	panelActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panel_actions_total",
		Help: "Panel decisions recorded",
	}, []string{"decision"})

	eventsDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_total",
		Help: "Domain events handed to sinks",
	}, []string{"type", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses,
		schedulesCreated, scheduleConflicts, transitions, autoScheduleRuns, panelActions, eventsDelivered, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		schedulesCreated:  schedulesCreated,
		scheduleConflicts: scheduleConflicts,
		transitions:       transitions,
		autoScheduleRuns:  autoScheduleRuns,
		panelActions:      panelActions,
		eventsDelivered:   eventsDelivered,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ScheduleCreated counts a persisted defense schedule.
func (m *MetricsService) ScheduleCreated(stage models.DefenseStage) {
	if m == nil {
		return
	}
	m.schedulesCreated.WithLabelValues(string(stage)).Inc()
	atomic.AddUint64(&m.scheduleCount, 1)
}

// ScheduleConflict counts a rejected booking.
func (m *MetricsService) ScheduleConflict() {
	if m == nil {
		return
	}
	m.scheduleConflicts.Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// ThesisTransition counts an applied status change.
func (m *MetricsService) ThesisTransition(from, to models.ThesisStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	atomic.AddUint64(&m.transitionCount, 1)
}

// AutoScheduleRun counts a finished auto-schedule run.
func (m *MetricsService) AutoScheduleRun(status models.AutoScheduleStatus) {
	if m == nil {
		return
	}
	m.autoScheduleRuns.WithLabelValues(string(status)).Inc()
}

// PanelAction counts a recorded vote.
func (m *MetricsService) PanelAction(decision models.PanelDecision) {
	if m == nil {
		return
	}
	m.panelActions.WithLabelValues(string(decision)).Inc()
}

// EventDelivered counts a sink delivery attempt.
func (m *MetricsService) EventDelivered(eventType models.EventType, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsDelivered.WithLabelValues(string(eventType), result).Inc()
}

// Snapshot returns aggregated counters for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SchedulesCreated:         atomic.LoadUint64(&m.scheduleCount),
		ScheduleConflicts:        atomic.LoadUint64(&m.conflictCount),
		ThesisTransitions:        atomic.LoadUint64(&m.transitionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
