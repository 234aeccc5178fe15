package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/middleware"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type panelWorkflow interface {
	SubmitPanelDecision(ctx context.Context, actor models.Actor, scheduleID string, req dto.PanelDecisionRequest) (*models.PanelSubmission, []models.DomainEvent, error)
}

type panelReader interface {
	ListActions(ctx context.Context, scheduleID string) ([]models.PanelAction, error)
	History(ctx context.Context, scheduleID string) ([]models.PanelAction, error)
	ComputeOutcomeCached(ctx context.Context, scheduleID string) (*models.PanelOutcomeSummary, bool, error)
}

// PanelHandler exposes panel voting endpoints.
type PanelHandler struct {
	workflow panelWorkflow
	reader   panelReader
}

// NewPanelHandler constructs the handler.
func NewPanelHandler(workflow panelWorkflow, reader panelReader) *PanelHandler {
	return &PanelHandler{workflow: workflow, reader: reader}
}

// Submit godoc
// @Summary Record the caller's panel decision
// @Description Only assigned panel members may vote. The latest vote per member counts.
// @Tags Panel
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.PanelDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /defenses/{id}/panel-actions [post]
func (h *PanelHandler) Submit(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.PanelDecisionRequest
	if !bindJSON(c, &req, "invalid panel decision payload") {
		return
	}
	result, _, err := h.workflow.SubmitPanelDecision(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil && result == nil {
		response.Error(c, err)
		return
	}
	if err != nil {
		// The vote is stored; only the follow-up thesis update failed.
		response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"warning": err.Error()})
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary Current panel decisions
// @Tags Panel
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/panel-actions [get]
func (h *PanelHandler) List(c *gin.Context) {
	actions, err := h.reader.ListActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

// History godoc
// @Summary Every decision ever submitted
// @Tags Panel
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/panel-actions/history [get]
func (h *PanelHandler) History(c *gin.Context) {
	actions, err := h.reader.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

// Outcome godoc
// @Summary Aggregated panel outcome
// @Description reject beats revise, approve needs every member, otherwise pending. meta.cache_hit reports cache use.
// @Tags Panel
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/outcome [get]
func (h *PanelHandler) Outcome(c *gin.Context) {
	summary, hit, err := h.reader.ComputeOutcomeCached(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
