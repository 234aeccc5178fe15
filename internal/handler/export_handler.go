package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type exporter interface {
	Docket(ctx context.Context, filter models.DefenseScheduleFilter, format service.ExportFormat) (*service.ExportResult, error)
	ParticipantCalendar(ctx context.Context, participantID string, from, to *time.Time) (*service.ExportResult, error)
}

// ExportHandler streams docket files and calendar feeds.
type ExportHandler struct {
	exports exporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Docket godoc
// @Summary Export the defense docket
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx (default csv)"
// @Param thesis_id query string false "Thesis ID"
// @Param participant_id query string false "Participant ID"
// @Param status query string false "Schedule status"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD, inclusive)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /defenses/export [get]
func (h *ExportHandler) Docket(c *gin.Context) {
	filter, query, err := defenseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(query.Format)
	if format == "" {
		format = service.ExportFormatCSV
	}
	result, err := h.exports.Docket(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.ContentType, result.Filename, result.Payload)
}

// Calendar godoc
// @Summary iCalendar feed of a participant's defenses
// @Tags Exports
// @Produce text/calendar
// @Param id path string true "Participant ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD, inclusive)"
// @Success 200 {file} file
// @Router /participants/{id}/calendar.ics [get]
func (h *ExportHandler) Calendar(c *gin.Context) {
	from, to, err := parseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.ParticipantCalendar(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.ContentType, result.Filename, result.Payload)
}
