package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type exportService interface {
	ExportRequests(ctx context.Context, viewer service.Viewer, view service.View, filter models.RequestFilter, format service.ExportFormat) (*service.ExportFile, error)
}

// ExportHandler streams request exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Requests godoc
// @Summary Export the request dashboard
// @Tags Exports
// @Security BearerAuth
// @Produce octet-stream
// @Param view query string false "View to export"
// @Param format query string false "csv or pdf (default csv)"
// @Param mission_id query string false "Mission filter"
// @Success 200 {file} binary
// @Router /exports/requests [get]
func (h *ExportHandler) Requests(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	filter := models.RequestFilter{MissionID: c.Query("mission_id")}

	file, err := h.service.ExportRequests(c.Request.Context(), viewerFromClaims(claims), service.ParseView(c.Query("view")), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
