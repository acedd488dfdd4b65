package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type missionService interface {
	List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Mission, error)
	Create(ctx context.Context, req service.CreateMissionRequest) (*models.Mission, error)
	Update(ctx context.Context, id string, req service.UpdateMissionRequest) (*models.Mission, error)
	Delete(ctx context.Context, id string) error
}

// MissionHandler exposes mission endpoints.
type MissionHandler struct {
	service missionService
}

// NewMissionHandler constructs the handler.
func NewMissionHandler(service missionService) *MissionHandler {
	return &MissionHandler{service: service}
}

// List godoc
// @Summary List missions
// @Tags Missions
// @Security BearerAuth
// @Produce json
// @Param sdr_id query string false "SDR filter"
// @Param status query string false "Status filter (active, paused, completed)"
// @Param search query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /missions [get]
func (h *MissionHandler) List(c *gin.Context) {
	filter := models.MissionFilter{
		SDRID:  c.Query("sdr_id"),
		Search: strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.MissionStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	missions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, missions, pagination)
}

// Get godoc
// @Summary Get a mission
// @Tags Missions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Mission ID"
// @Success 200 {object} response.Envelope
// @Router /missions/{id} [get]
func (h *MissionHandler) Get(c *gin.Context) {
	mission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mission, nil)
}

// Create godoc
// @Summary Create a mission
// @Tags Missions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.CreateMissionRequest true "Mission"
// @Success 201 {object} response.Envelope
// @Router /missions [post]
func (h *MissionHandler) Create(c *gin.Context) {
	var req service.CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	mission, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mission)
}

// Update godoc
// @Summary Update a mission
// @Tags Missions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Mission ID"
// @Param payload body service.UpdateMissionRequest true "Mission"
// @Success 200 {object} response.Envelope
// @Router /missions/{id} [put]
func (h *MissionHandler) Update(c *gin.Context) {
	var req service.UpdateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	mission, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mission, nil)
}

// Delete godoc
// @Summary Delete a mission
// @Tags Missions
// @Security BearerAuth
// @Param id path string true "Mission ID"
// @Success 204
// @Router /missions/{id} [delete]
func (h *MissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
