package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type thesisWorkflow interface {
	CreateThesis(ctx context.Context, actor models.Actor, req dto.CreateThesisRequest) (*models.Thesis, []models.DomainEvent, error)
	GetThesis(ctx context.Context, actor models.Actor, id string) (*models.Thesis, error)
	ApplyDocumentEvent(ctx context.Context, actor models.Actor, thesisID string, req dto.DocumentEventRequest) (*models.Thesis, []models.DomainEvent, error)
	ArchiveThesis(ctx context.Context, actor models.Actor, thesisID string) (*models.Thesis, []models.DomainEvent, error)
}

type thesisHistoryReader interface {
	History(ctx context.Context, id string) ([]models.ThesisStatusHistory, error)
}

type thesisDefenseLister interface {
	ListByThesis(ctx context.Context, thesisID string) ([]models.DefenseSchedule, error)
}

// ThesisHandler exposes thesis lifecycle endpoints.
type ThesisHandler struct {
	workflow thesisWorkflow
	history  thesisHistoryReader
	defenses thesisDefenseLister
}

// NewThesisHandler constructs the handler.
func NewThesisHandler(workflow thesisWorkflow, history thesisHistoryReader, defenses thesisDefenseLister) *ThesisHandler {
	return &ThesisHandler{workflow: workflow, history: history, defenses: defenses}
}

// Create godoc
// @Summary Register a thesis
// @Tags Theses
// @Accept json
// @Produce json
// @Param payload body dto.CreateThesisRequest true "Thesis payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /theses [post]
func (h *ThesisHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateThesisRequest
	if !bindJSON(c, &req, "invalid thesis payload") {
		return
	}
	thesis, _, err := h.workflow.CreateThesis(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, thesis)
}

// Get godoc
// @Summary Get thesis
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /theses/{id} [get]
func (h *ThesisHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	thesis, err := h.workflow.GetThesis(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis, nil)
}

// DocumentEvent godoc
// @Summary Report a document submission or review
// @Description Drives the thesis lifecycle. Rejections record feedback and fall back to the previous status.
// @Tags Theses
// @Accept json
// @Produce json
// @Param id path string true "Thesis ID"
// @Param payload body dto.DocumentEventRequest true "Document event"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /theses/{id}/documents [post]
func (h *ThesisHandler) DocumentEvent(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.DocumentEventRequest
	if !bindJSON(c, &req, "invalid document event payload") {
		return
	}
	thesis, _, err := h.workflow.ApplyDocumentEvent(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis, nil)
}

// Archive godoc
// @Summary Archive a finally approved thesis
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /theses/{id}/archive [post]
func (h *ThesisHandler) Archive(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	thesis, _, err := h.workflow.ArchiveThesis(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis, nil)
}

// History godoc
// @Summary Thesis status history
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/history [get]
func (h *ThesisHandler) History(c *gin.Context) {
	entries, err := h.history.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Defenses godoc
// @Summary Defense schedules of a thesis
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/defenses [get]
func (h *ThesisHandler) Defenses(c *gin.Context) {
	schedules, err := h.defenses.ListByThesis(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}
