package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/response"
)

type invitationService interface {
	Invite(ctx context.Context, req service.InviteUserRequest, actorID string) (*models.Invitation, error)
	Accept(ctx context.Context, req service.AcceptInvitationRequest) (*models.User, error)
	List(ctx context.Context, status *models.InvitationStatus) ([]models.Invitation, error)
	Revoke(ctx context.Context, token string, actorID string) error
}

// InvitationHandler exposes invitation endpoints.
type InvitationHandler struct {
	service invitationService
}

// NewInvitationHandler constructs the handler.
func NewInvitationHandler(service invitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// Invite godoc
// @Summary Invite a new member
// @Tags Invitations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body service.InviteUserRequest true "Invitation"
// @Success 201 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Invite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.InviteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	inv, err := h.service.Invite(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// Accept godoc
// @Summary Accept an invitation
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body service.AcceptInvitationRequest true "Acceptance"
// @Success 201 {object} response.Envelope
// @Router /invitations/accept [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req service.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	user, err := h.service.Accept(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// List godoc
// @Summary List invitations
// @Tags Invitations
// @Security BearerAuth
// @Produce json
// @Param status query string false "Status filter (pending, accepted, revoked)"
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	var status *models.InvitationStatus
	if raw := c.Query("status"); raw != "" {
		s := models.InvitationStatus(raw)
		status = &s
	}

	invs, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invs, nil)
}

// Revoke godoc
// @Summary Revoke a pending invitation
// @Tags Invitations
// @Security BearerAuth
// @Param token path string true "Invitation token"
// @Success 204
// @Router /invitations/{token} [delete]
func (h *InvitationHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Revoke(c.Request.Context(), c.Param("token"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
