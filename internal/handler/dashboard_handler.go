package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/dto"
	"github.com/seventic/ops-api/internal/middleware"
	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type dashboardService interface {
	Load(ctx context.Context, viewer service.Viewer, view service.View, filter models.RequestFilter, special service.SpecialFilters, refresh bool) (*service.DashboardResult, error)
}

// DashboardHandler wires the request dashboard to HTTP.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Load godoc
// @Summary Role-aware request dashboard
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Param view query string false "View (all, to_assign, my_assignments, pending, inprogress, completed, late)"
// @Param types query string false "Comma-separated request types"
// @Param mission_id query string false "Mission filter"
// @Param created_by query string false "Creator drill-down (admin)"
// @Param assigned_to query string false "Assignee drill-down (admin)"
// @Param unassigned_only query bool false "Only unassigned requests (admin)"
// @Param since query string false "Only requests created after (RFC 3339)"
// @Param refresh query bool false "Bypass cache"
// @Success 200 {object} response.Envelope
// @Router /dashboard/requests [get]
func (h *DashboardHandler) Load(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	filter := models.RequestFilter{MissionID: query.MissionID}
	if query.Types != "" {
		for _, raw := range strings.Split(query.Types, ",") {
			t := models.RequestType(strings.TrimSpace(raw))
			switch t {
			case models.RequestTypeEmail, models.RequestTypeDatabase, models.RequestTypeLinkedin:
				filter.Types = append(filter.Types, t)
			default:
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown request type"))
				return
			}
		}
	}
	if query.Since != "" {
		since, err := time.Parse(time.RFC3339, query.Since)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "since must be RFC 3339"))
			return
		}
		filter.Since = &since
	}

	special := service.SpecialFilters{
		CreatedBy:      query.CreatedBy,
		AssignedTo:     query.AssignedTo,
		UnassignedOnly: query.UnassignedOnly,
	}

	result, err := h.service.Load(c.Request.Context(), viewerFromClaims(claims), service.ParseView(query.View), filter, special, query.Refresh)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, result.CacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
