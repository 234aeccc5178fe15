package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

var tokenRoles = map[string]models.JWTClaims{
	"admin":   {UserID: "admin-1", Role: models.RoleAdmin},
	"adviser": {UserID: "adv-1", Role: models.RoleAdviser},
	"panel":   {UserID: "p-1", Role: models.RolePanelMember},
	"student": {UserID: "stu-1", Role: models.RoleStudent},
}

type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := tokenRoles[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &claims, nil
}

type workflowStub struct {
	lastActor    models.Actor
	lastThesisID string
	lastDefense  dto.CreateDefenseRequest
	lastAuto     dto.AutoScheduleRequest
	lastReason   string
	autoRun      *models.AutoScheduleRun
	submission   *models.PanelSubmission
	err          error
}

func (w *workflowStub) CreateThesis(ctx context.Context, actor models.Actor, req dto.CreateThesisRequest) (*models.Thesis, []models.DomainEvent, error) {
	w.lastActor = actor
	if w.err != nil {
		return nil, nil, w.err
	}
	return &models.Thesis{ID: "thesis-1", Title: req.Title, Status: models.ThesisStatusDraft}, nil, nil
}

func (w *workflowStub) GetThesis(ctx context.Context, actor models.Actor, id string) (*models.Thesis, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &models.Thesis{ID: id}, nil
}

func (w *workflowStub) ApplyDocumentEvent(ctx context.Context, actor models.Actor, thesisID string, req dto.DocumentEventRequest) (*models.Thesis, []models.DomainEvent, error) {
	w.lastActor, w.lastThesisID = actor, thesisID
	return &models.Thesis{ID: thesisID, Status: models.ThesisStatusConceptSubmitted}, nil, w.err
}

func (w *workflowStub) ArchiveThesis(ctx context.Context, actor models.Actor, thesisID string) (*models.Thesis, []models.DomainEvent, error) {
	return &models.Thesis{ID: thesisID, Status: models.ThesisStatusArchived}, nil, w.err
}

func (w *workflowStub) ScheduleDefense(ctx context.Context, actor models.Actor, req dto.CreateDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error) {
	w.lastActor, w.lastDefense = actor, req
	if w.err != nil {
		return nil, nil, w.err
	}
	return &models.DefenseSchedule{ID: "sched-1", ThesisID: req.ThesisID}, nil, nil
}

func (w *workflowStub) AutoScheduleDefense(ctx context.Context, actor models.Actor, req dto.AutoScheduleRequest) (*models.AutoScheduleRun, []models.DomainEvent, error) {
	w.lastAuto = req
	return w.autoRun, nil, w.err
}

func (w *workflowStub) RescheduleDefense(ctx context.Context, actor models.Actor, scheduleID string, req dto.RescheduleDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error) {
	return &models.DefenseSchedule{ID: "sched-2", RescheduledFrom: &scheduleID}, nil, w.err
}

func (w *workflowStub) CancelDefense(ctx context.Context, actor models.Actor, scheduleID, reason string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	w.lastReason = reason
	return &models.DefenseSchedule{ID: scheduleID, Status: models.ScheduleStatusCancelled}, nil, w.err
}

func (w *workflowStub) StartDefense(ctx context.Context, actor models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	return &models.DefenseSchedule{ID: scheduleID, Status: models.ScheduleStatusInProgress}, nil, w.err
}

func (w *workflowStub) CompleteDefense(ctx context.Context, actor models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error) {
	return &models.DefenseSchedule{ID: scheduleID, Status: models.ScheduleStatusCompleted}, nil, w.err
}

func (w *workflowStub) SubmitPanelDecision(ctx context.Context, actor models.Actor, scheduleID string, req dto.PanelDecisionRequest) (*models.PanelSubmission, []models.DomainEvent, error) {
	w.lastActor = actor
	return w.submission, nil, w.err
}

type readerStub struct {
	lastFilter models.DefenseScheduleFilter
	outcomeHit bool
	windows    []models.Availability
}

func (r *readerStub) History(ctx context.Context, id string) ([]models.ThesisStatusHistory, error) {
	return []models.ThesisStatusHistory{{ThesisID: id}}, nil
}

func (r *readerStub) ListByThesis(ctx context.Context, thesisID string) ([]models.DefenseSchedule, error) {
	return []models.DefenseSchedule{{ID: "sched-1", ThesisID: thesisID}}, nil
}

func (r *readerStub) Get(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
	}
	return &models.DefenseSchedule{ID: id}, nil
}

func (r *readerStub) List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error) {
	r.lastFilter = filter
	return []models.DefenseSchedule{}, nil
}

func (r *readerStub) FreeSlots(ctx context.Context, req dto.FreeSlotsRequest) ([]models.TimeRange, error) {
	return []models.TimeRange{}, nil
}

func (r *readerStub) ListActions(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	return []models.PanelAction{}, nil
}

func (r *readerStub) ComputeOutcomeCached(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, bool, error) {
	return &models.PanelOutcomeSummary{ScheduleID: scheduleID, Outcome: models.OutcomePending}, r.outcomeHit, nil
}

func (r *readerStub) Replace(ctx context.Context, userID string, req dto.ReplaceAvailabilityRequest) ([]models.Availability, error) {
	r.windows = make([]models.Availability, len(req.Windows))
	for i := range req.Windows {
		r.windows[i] = models.Availability{UserID: userID}
	}
	return r.windows, nil
}

type panelHistoryStub struct{ *readerStub }

func (p panelHistoryStub) History(ctx context.Context, scheduleID string) ([]models.PanelAction, error) {
	return []models.PanelAction{{ScheduleID: scheduleID}}, nil
}

type availabilityListStub struct{ *readerStub }

func (a availabilityListStub) List(ctx context.Context, userID string) ([]models.Availability, error) {
	return []models.Availability{{UserID: userID}}, nil
}

type exporterStub struct {
	lastFormat service.ExportFormat
	lastFrom   *time.Time
	lastTo     *time.Time
}

func (e *exporterStub) Docket(ctx context.Context, filter models.DefenseScheduleFilter, format service.ExportFormat) (*service.ExportResult, error) {
	e.lastFormat = format
	return &service.ExportResult{Filename: "docket." + string(format), ContentType: "text/csv", Payload: []byte("id\n")}, nil
}

func (e *exporterStub) ParticipantCalendar(ctx context.Context, participantID string, from, to *time.Time) (*service.ExportResult, error) {
	e.lastFrom, e.lastTo = from, to
	return &service.ExportResult{Filename: participantID + ".ics", ContentType: "text/calendar", Payload: []byte("BEGIN:VCALENDAR")}, nil
}

type routerFixture struct {
	engine   *gin.Engine
	workflow *workflowStub
	reader   *readerStub
	exports  *exporterStub
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	workflow := &workflowStub{}
	reader := &readerStub{}
	exports := &exporterStub{}

	r := gin.New()
	metrics := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	RegisterProbes(r, metrics)
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Thesis:       NewThesisHandler(workflow, reader, reader),
		Defense:      NewDefenseHandler(workflow, reader),
		Panel:        NewPanelHandler(workflow, panelHistoryStub{reader}),
		Availability: NewAvailabilityHandler(availabilityListStub{reader}),
		Export:       NewExportHandler(exports),
		Metrics:      metrics,
	}, tokenStub{})
	return routerFixture{engine: r, workflow: workflow, reader: reader, exports: exports}
}

func (f routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestThesisRoutes(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/theses", "", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/theses", "student", `{"title":"x"}`).Code)

	rec := f.do(http.MethodPost, "/api/v1/theses", "admin", `{"title":"Graph search","group_id":"g-1","adviser_id":"adv-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", f.workflow.lastActor.UserID)
	assert.Contains(t, string(decode(t, rec).Data), `"Graph search"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/theses", "admin", `{"title":`).Code)

	rec = f.do(http.MethodPost, "/api/v1/theses/thesis-9/documents", "student", `{"document_type":"concept","action":"submitted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thesis-9", f.workflow.lastThesisID)
	assert.Equal(t, models.RoleStudent, f.workflow.lastActor.Role)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/theses/thesis-9/history", "panel", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/theses/thesis-9/defenses", "panel", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/theses/thesis-9/archive", "adviser", "").Code)
}

func TestThesisRouteRendersInvalidTransition(t *testing.T) {
	f := newRouterFixture(t)
	f.workflow.err = appErrors.WithDetails(appErrors.ErrInvalidTransition, "invalid thesis transition",
		&models.InvalidTransitionError{From: models.ThesisStatusDraft, To: models.ThesisStatusArchived, Trigger: "archive"})

	rec := f.do(http.MethodPost, "/api/v1/theses/thesis-1/archive", "admin", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestDefenseCreateStampsOrganizerAndRendersConflicts(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"thesis_id":"thesis-1","stage":"concept","start":"2024-03-04T09:00:00Z","end":"2024-03-04T10:00:00Z","adviser_id":"adv-1","panel_member_ids":["p-1"]}`

	rec := f.do(http.MethodPost, "/api/v1/defenses", "adviser", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "adv-1", f.workflow.lastDefense.OrganizerID)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), f.workflow.lastDefense.Start.UTC())

	f.workflow.err = appErrors.WithDetails(appErrors.ErrConflict, "participants unavailable for the requested window",
		&models.ParticipantConflictError{Participants: []string{"p-1"}})
	rec = f.do(http.MethodPost, "/api/v1/defenses", "adviser", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conflicting_participants":["p-1"]`)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/defenses", "panel", body).Code)
}

func TestDefenseAutoScheduleStatusCodes(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"thesis_id":"thesis-1","stage":"proposal","adviser_id":"adv-1","panel_member_ids":["p-1"]}`

	f.workflow.autoRun = &models.AutoScheduleRun{ID: "run-1", Status: models.AutoScheduleFailed}
	rec := f.do(http.MethodPost, "/api/v1/defenses/auto", "admin", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", f.workflow.lastAuto.OrganizerID)

	f.workflow.autoRun = &models.AutoScheduleRun{ID: "run-2", Status: models.AutoScheduleCompleted}
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/defenses/auto", "admin", body).Code)
}

func TestDefenseReadAndStatusRoutes(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/defenses/sched-1", "student", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/defenses/missing", "student", "").Code)

	rec := f.do(http.MethodGet, "/api/v1/defenses?participant_id=p-1&status=scheduled&from=2024-03-01&to=2024-03-31", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p-1", f.reader.lastFilter.ParticipantID)
	assert.Equal(t, []models.ScheduleStatus{models.ScheduleStatusScheduled}, f.reader.lastFilter.Statuses)
	require.NotNil(t, f.reader.lastFilter.To)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *f.reader.lastFilter.To)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/defenses?status=lost", "admin", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/defenses?from=2024-04-01&to=2024-03-01", "admin", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/defenses/sched-1/cancel", "admin", `{}`).Code, "reason is bound before the service sees it")
	rec = f.do(http.MethodPost, "/api/v1/defenses/sched-1/cancel", "admin", `{"reason":"adviser ill"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "adviser ill", f.workflow.lastReason)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/defenses/sched-1/start", "admin", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/defenses/sched-1/complete", "admin", "").Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/defenses/sched-1/reschedule", "admin", `{"start":"2024-03-05T09:00:00Z","end":"2024-03-05T10:00:00Z"}`).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/defenses/free-slots", "admin", `{"participants":["p-1"],"date":"2024-03-04"}`).Code)
}

func TestPanelRoutes(t *testing.T) {
	f := newRouterFixture(t)
	f.workflow.submission = &models.PanelSubmission{
		Action:  &models.PanelAction{ScheduleID: "sched-1", PanelMemberID: "p-1", Decision: models.DecisionApproved},
		Outcome: &models.PanelOutcomeSummary{Outcome: models.OutcomePending},
	}

	rec := f.do(http.MethodPost, "/api/v1/defenses/sched-1/panel-actions", "panel", `{"decision":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p-1", f.workflow.lastActor.UserID)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/defenses/sched-1/panel-actions", "student", `{"decision":"approved"}`).Code)

	f.workflow.err = appErrors.Clone(appErrors.ErrInternal, "thesis update failed")
	rec = f.do(http.MethodPost, "/api/v1/defenses/sched-1/panel-actions", "panel", `{"decision":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, "a stored vote is reported even when the follow-up fails")
	assert.Contains(t, decode(t, rec).Meta, "warning")

	f.workflow.submission = nil
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodPost, "/api/v1/defenses/sched-1/panel-actions", "panel", `{"decision":"approved"}`).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/defenses/sched-1/panel-actions", "student", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/defenses/sched-1/panel-actions/history", "student", "").Code)

	f.reader.outcomeHit = true
	rec = f.do(http.MethodGet, "/api/v1/defenses/sched-1/outcome", "student", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"pending"`)
}

func TestAvailabilityRoutesAllowSelf(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"windows":[{"day_of_week":1,"start_time":"09:00","end_time":"12:00"}]}`

	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/v1/users/p-1/availability", "panel", body).Code)
	assert.Len(t, f.reader.windows, 1)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/v1/users/p-2/availability", "panel", body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/v1/users/p-2/availability", "adviser", body).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/v1/users/p-2/availability", "admin", body).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/users/p-2/availability", "adviser", "").Code)
}

func TestExportRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/defenses/export", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormatCSV, f.exports.lastFormat)
	assert.Equal(t, `attachment; filename="docket.csv"`, rec.Header().Get("Content-Disposition"))

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/defenses/export?format=XLSX", "admin", "").Code)
	assert.Equal(t, service.ExportFormatXLSX, f.exports.lastFormat)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/defenses/export?format=docx", "admin", "").Code)

	rec = f.do(http.MethodGet, "/api/v1/participants/p-1/calendar.ics?from=2024-03-01", "panel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar", rec.Header().Get("Content-Type"))
	require.NotNil(t, f.exports.lastFrom)
	assert.Nil(t, f.exports.lastTo)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/participants/p-1/calendar.ics?to=March", "panel", "").Code)
}

func TestProbes(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/metrics/summary", "panel", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/metrics/summary", "admin", "").Code)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return appErrors.Clone(appErrors.ErrInternal, "connection refused") },
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
