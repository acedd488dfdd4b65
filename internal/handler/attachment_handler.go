package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, requestID, filename, mimeType string, data []byte, uploaderID string) (*models.Attachment, error)
	List(ctx context.Context, requestID string) ([]models.Attachment, error)
	SignDownload(ctx context.Context, attachmentID string) (*service.SignedDownload, error)
	Open(ctx context.Context, token string) (*os.File, *models.Attachment, error)
	Delete(ctx context.Context, attachmentID string) error
}

// AttachmentHandler exposes request attachment endpoints.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Upload an attachment for a request
// @Tags Attachments
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /requests/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}

	att, err := h.service.Upload(c.Request.Context(), c.Param("id"), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// List godoc
// @Summary List attachments of a request
// @Tags Attachments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/attachments [get]
func (h *AttachmentHandler) List(c *gin.Context) {
	atts, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, atts, nil)
}

// Sign godoc
// @Summary Issue a signed download token
// @Tags Attachments
// @Security BearerAuth
// @Produce json
// @Param attachmentId path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Router /attachments/{attachmentId}/sign [post]
func (h *AttachmentHandler) Sign(c *gin.Context) {
	grant, err := h.service.SignDownload(c.Request.Context(), c.Param("attachmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// Download godoc
// @Summary Download an attachment with a signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, att, err := h.service.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Header("Content-Type", att.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

// Delete godoc
// @Summary Delete an attachment
// @Tags Attachments
// @Security BearerAuth
// @Param attachmentId path string true "Attachment ID"
// @Success 204
// @Router /attachments/{attachmentId} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("attachmentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
