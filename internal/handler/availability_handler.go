package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type availabilityService interface {
	List(ctx context.Context, userID string) ([]models.Availability, error)
	Replace(ctx context.Context, userID string, req dto.ReplaceAvailabilityRequest) ([]models.Availability, error)
}

// AvailabilityHandler manages declared weekly availability.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// List godoc
// @Summary Declared availability of a user
// @Tags Availability
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{userID}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	windows, err := h.service.List(c.Request.Context(), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Replace godoc
// @Summary Replace declared availability
// @Description An empty list clears the declaration, which makes the user available at any time.
// @Tags Availability
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param payload body dto.ReplaceAvailabilityRequest true "Weekly windows"
// @Success 200 {object} response.Envelope
// @Router /users/{userID}/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	var req dto.ReplaceAvailabilityRequest
	if !bindJSON(c, &req, "invalid availability payload") {
		return
	}
	windows, err := h.service.Replace(c.Request.Context(), c.Param("userID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}
