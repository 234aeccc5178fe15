package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/middleware"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

var requestValidator = validator.New()

// actorOrAbort resolves the caller or renders 401.
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes and validates the body, rendering 400 on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	if err := requestValidator.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// parseDateRange reads YYYY-MM-DD bounds; "to" is inclusive of the whole day.
func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		from = &parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		end := parsed.AddDate(0, 0, 1)
		to = &end
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	return from, to, nil
}

func defenseFilter(c *gin.Context) (models.DefenseScheduleFilter, dto.ListDefensesQuery, error) {
	var query dto.ListDefensesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return models.DefenseScheduleFilter{}, query, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query")
	}
	query.Format = strings.ToLower(query.Format)
	if err := requestValidator.Struct(query); err != nil {
		return models.DefenseScheduleFilter{}, query, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query")
	}
	from, to, err := parseDateRange(query.From, query.To)
	if err != nil {
		return models.DefenseScheduleFilter{}, query, err
	}
	filter := models.DefenseScheduleFilter{
		ThesisID:      query.ThesisID,
		ParticipantID: query.ParticipantID,
		From:          from,
		To:            to,
	}
	if query.Status != "" {
		filter.Statuses = []models.ScheduleStatus{models.ScheduleStatus(query.Status)}
	}
	return filter, query, nil
}
