package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type statsService interface {
	CampaignStats(ctx context.Context, campaignUID string, forceRefresh bool) (*models.CampaignStats, error)
}

// StatsHandler exposes campaign statistics endpoints.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Campaign godoc
// @Summary Campaign statistics snapshot
// @Tags Stats
// @Security BearerAuth
// @Produce json
// @Param uid path string true "Campaign UID"
// @Param refresh query bool false "Bypass the stats cache"
// @Success 200 {object} response.Envelope
// @Router /stats/campaigns/{uid} [get]
func (h *StatsHandler) Campaign(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	stats, err := h.service.CampaignStats(c.Request.Context(), c.Param("uid"), refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	if stats == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
