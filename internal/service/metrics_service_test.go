package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/defenses", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/defenses", http.StatusConflict, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ScheduleCreated(models.StageConcept)
	m.ScheduleConflict()
	m.ThesisTransition(models.ThesisStatusDraft, models.ThesisStatusConceptSubmitted)

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(1), snapshot.SchedulesCreated)
	assert.Equal(t, uint64(1), snapshot.ScheduleConflicts)
	assert.Equal(t, uint64(1), snapshot.ThesisTransitions)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulesCreated.WithLabelValues("concept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("DRAFT", "CONCEPT_SUBMITTED")))
}

func TestMetricsServiceHandlerExposesDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.AutoScheduleRun(models.AutoScheduleFailed)
	m.PanelAction(models.DecisionApproved)
	m.EventDelivered(models.EventScheduleCreated, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `auto_schedule_runs_total{status="failed"} 1`)
	assert.Contains(t, body, `panel_actions_total{decision="approved"} 1`)
	assert.Contains(t, body, `domain_events_total{result="error",type="schedule_created"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ScheduleCreated(models.StageFinal)
	m.EventDelivered(models.EventScheduleCreated, true)
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
