package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type scheduleService interface {
	Set(ctx context.Context, userID string, req service.UpsertScheduleRequest) (*models.ScheduleEntry, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	Week(ctx context.Context, from time.Time) ([]models.ScheduleEntry, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleHandler exposes the telework schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(service scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Set godoc
// @Summary Set own work location for a day
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.UpsertScheduleRequest true "Schedule entry"
// @Success 200 {object} response.Envelope
// @Router /schedule [put]
func (h *ScheduleHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	entry, err := h.service.Set(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Week godoc
// @Summary Team schedule for one week
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param from query string false "Week start (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /schedule/week [get]
func (h *ScheduleHandler) Week(c *gin.Context) {
	from := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD"))
			return
		}
		from = parsed
	}

	entries, err := h.service.Week(c.Request.Context(), from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Mine godoc
// @Summary Own schedule entries
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/me [get]
func (h *ScheduleHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.List(c.Request.Context(), models.ScheduleFilter{UserID: claims.UserID})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete godoc
// @Summary Delete a schedule entry
// @Tags Schedule
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 204
// @Router /schedule/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
