package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type defenseWorkflow interface {
	ScheduleDefense(ctx context.Context, actor models.Actor, req dto.CreateDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error)
	AutoScheduleDefense(ctx context.Context, actor models.Actor, req dto.AutoScheduleRequest) (*models.AutoScheduleRun, []models.DomainEvent, error)
	RescheduleDefense(ctx context.Context, actor models.Actor, scheduleID string, req dto.RescheduleDefenseRequest) (*models.DefenseSchedule, []models.DomainEvent, error)
	CancelDefense(ctx context.Context, actor models.Actor, scheduleID, reason string) (*models.DefenseSchedule, []models.DomainEvent, error)
	StartDefense(ctx context.Context, actor models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error)
	CompleteDefense(ctx context.Context, actor models.Actor, scheduleID string) (*models.DefenseSchedule, []models.DomainEvent, error)
}

type defenseReader interface {
	Get(ctx context.Context, id string) (*models.DefenseSchedule, error)
	List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseSchedule, error)
	FreeSlots(ctx context.Context, req dto.FreeSlotsRequest) ([]models.TimeRange, error)
}

// DefenseHandler exposes defense scheduling endpoints.
type DefenseHandler struct {
	workflow defenseWorkflow
	reader   defenseReader
}

// NewDefenseHandler constructs the handler.
func NewDefenseHandler(workflow defenseWorkflow, reader defenseReader) *DefenseHandler {
	return &DefenseHandler{workflow: workflow, reader: reader}
}

// Create godoc
// @Summary Book a defense session
// @Description Books an explicit window. Overlapping participant sessions yield 409 with the conflicting participant ids.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param payload body dto.CreateDefenseRequest true "Defense payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /defenses [post]
func (h *DefenseHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateDefenseRequest
	if !bindJSON(c, &req, "invalid defense payload") {
		return
	}
	req.OrganizerID = actor.UserID
	schedule, _, err := h.workflow.ScheduleDefense(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// AutoSchedule godoc
// @Summary Book the earliest free slot
// @Description Searches the preferred date and the following horizon days. A run that finds nothing is returned with status failed.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param payload body dto.AutoScheduleRequest true "Auto schedule payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Router /defenses/auto [post]
func (h *DefenseHandler) AutoSchedule(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.AutoScheduleRequest
	if !bindJSON(c, &req, "invalid auto schedule payload") {
		return
	}
	req.OrganizerID = actor.UserID
	run, _, err := h.workflow.AutoScheduleDefense(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if run.Status == models.AutoScheduleCompleted {
		response.Created(c, run)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Get godoc
// @Summary Get defense schedule
// @Tags Defenses
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /defenses/{id} [get]
func (h *DefenseHandler) Get(c *gin.Context) {
	schedule, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// List godoc
// @Summary List defense schedules
// @Tags Defenses
// @Produce json
// @Param thesis_id query string false "Thesis ID"
// @Param participant_id query string false "Adviser or panel member ID"
// @Param status query string false "Schedule status"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD, inclusive)"
// @Success 200 {object} response.Envelope
// @Router /defenses [get]
func (h *DefenseHandler) List(c *gin.Context) {
	filter, _, err := defenseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	schedules, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Reschedule godoc
// @Summary Move a defense to a new window
// @Description The current schedule becomes rescheduled and a replacement is booked in the same transaction.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.RescheduleDefenseRequest true "New window"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /defenses/{id}/reschedule [post]
func (h *DefenseHandler) Reschedule(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.RescheduleDefenseRequest
	if !bindJSON(c, &req, "invalid reschedule payload") {
		return
	}
	schedule, _, err := h.workflow.RescheduleDefense(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Cancel godoc
// @Summary Cancel a defense
// @Tags Defenses
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.CancelDefenseRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/cancel [post]
func (h *DefenseHandler) Cancel(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CancelDefenseRequest
	if !bindJSON(c, &req, "invalid cancel payload") {
		return
	}
	schedule, _, err := h.workflow.CancelDefense(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Start godoc
// @Summary Mark a defense as in progress
// @Tags Defenses
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/start [post]
func (h *DefenseHandler) Start(c *gin.Context) {
	h.statusChange(c, h.workflow.StartDefense)
}

// Complete godoc
// @Summary Mark a defense as held
// @Tags Defenses
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/complete [post]
func (h *DefenseHandler) Complete(c *gin.Context) {
	h.statusChange(c, h.workflow.CompleteDefense)
}

func (h *DefenseHandler) statusChange(c *gin.Context, apply func(context.Context, models.Actor, string) (*models.DefenseSchedule, []models.DomainEvent, error)) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	schedule, _, err := apply(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// FreeSlots godoc
// @Summary Windows where every participant is free
// @Tags Defenses
// @Accept json
// @Produce json
// @Param payload body dto.FreeSlotsRequest true "Participants and date"
// @Success 200 {object} response.Envelope
// @Router /defenses/free-slots [post]
func (h *DefenseHandler) FreeSlots(c *gin.Context) {
	var req dto.FreeSlotsRequest
	if !bindJSON(c, &req, "invalid free slot query") {
		return
	}
	slots, err := h.reader.FreeSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
