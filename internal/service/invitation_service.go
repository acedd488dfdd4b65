package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/jobs"
)

type invitationRepository interface {
	Create(ctx context.Context, inv *models.Invitation) error
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindPendingByEmail(ctx context.Context, email string) (*models.Invitation, error)
	List(ctx context.Context, status *models.InvitationStatus) ([]models.Invitation, error)
	MarkAccepted(ctx context.Context, id string, ts time.Time) error
	Revoke(ctx context.Context, id string) error
}

type invitationUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type invitationDispatcher interface {
	Enqueue(job jobs.Job) error
}

// InviteUserRequest is the admin payload for inviting a new member.
type InviteUserRequest struct {
	Email string          `json:"email" validate:"required,email"`
	Role  models.UserRole `json:"role" validate:"required,oneof=admin growth sdr"`
}

// AcceptInvitationRequest completes an invitation and creates the account.
type AcceptInvitationRequest struct {
	Token    string `json:"token" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// InvitationEmailPayload is handed to the mail queue worker.
type InvitationEmailPayload struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InvitationService manages admin-issued account invitations.
type InvitationService struct {
	repo       invitationRepository
	users      invitationUserRepository
	dispatcher invitationDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
	ttl        time.Duration
	now        func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(repo invitationRepository, users invitationUserRepository, dispatcher invitationDispatcher, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &InvitationService{
		repo:       repo,
		users:      users,
		dispatcher: dispatcher,
		validator:  validate,
		logger:     logger,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Invite creates a pending invitation and queues the notification email.
func (s *InvitationService) Invite(ctx context.Context, req InviteUserRequest, actorID string) (*models.Invitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	email := strings.ToLower(req.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a user with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	if _, err := s.repo.FindPendingByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending invitation already exists for this email")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending invitations")
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invitation token")
	}

	inv := &models.Invitation{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      req.Role,
		Token:     token,
		Status:    models.InvitationPending,
		InvitedBy: actorID,
		ExpiresAt: s.now().Add(s.ttl),
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	if s.dispatcher != nil {
		payload := InvitationEmailPayload{
			Email:     inv.Email,
			Role:      string(inv.Role),
			Token:     inv.Token,
			ExpiresAt: inv.ExpiresAt,
		}
		if err := s.dispatcher.Enqueue(jobs.Job{ID: inv.ID, Type: "invitation_email", Payload: payload}); err != nil {
			s.logger.Warn("failed to enqueue invitation email", zap.String("invitation_id", inv.ID), zap.Error(err))
		}
	}

	s.audit(ctx, actorID, models.AuditActionInvitationSent, inv.ID, map[string]interface{}{
		"email": inv.Email,
		"role":  inv.Role,
	})

	return inv, nil
}

// Accept redeems an invitation token and creates the user account.
func (s *InvitationService) Accept(ctx context.Context, req AcceptInvitationRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acceptance payload")
	}

	inv, err := s.repo.FindByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	if inv.Status != models.InvitationPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invitation is no longer pending")
	}
	if s.now().After(inv.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrInvitationExpired, "invitation has expired")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        inv.Email,
		FullName:     req.FullName,
		Role:         inv.Role,
		Active:       true,
		PasswordHash: string(passwordHash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user from invitation")
	}

	if err := s.repo.MarkAccepted(ctx, inv.ID, s.now()); err != nil {
		s.logger.Warn("failed to mark invitation accepted", zap.String("invitation_id", inv.ID), zap.Error(err))
	}

	s.audit(ctx, user.ID, models.AuditActionUserCreate, user.ID, map[string]interface{}{
		"source":        "invitation",
		"invitation_id": inv.ID,
	})

	return user, nil
}

// List returns invitations, optionally filtered by status.
func (s *InvitationService) List(ctx context.Context, status *models.InvitationStatus) ([]models.Invitation, error) {
	invs, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invs, nil
}

// Revoke cancels a pending invitation.
func (s *InvitationService) Revoke(ctx context.Context, token string, actorID string) error {
	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	if inv.Status != models.InvitationPending {
		return appErrors.Clone(appErrors.ErrConflict, "only pending invitations can be revoked")
	}

	if err := s.repo.Revoke(ctx, inv.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke invitation")
	}

	s.audit(ctx, actorID, models.AuditActionUserUpdate, inv.ID, map[string]interface{}{
		"status": models.InvitationRevoked,
	})

	return nil
}

func (s *InvitationService) generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *InvitationService) audit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "invitations",
		ResourceID: &resourceID,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record invitation audit log", zap.Error(err))
	}
}
