package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type requestRepository interface {
	FindByID(ctx context.Context, id string) (*models.RequestRecord, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error)
	Create(ctx context.Context, rec *models.RequestRecord) error
	UpdateDetails(ctx context.Context, id string, details []byte, ts time.Time) error
	SetWorkflow(ctx context.Context, id string, status models.WorkflowStatus, assignedTo *string, ts time.Time) error
	UpdateTitleAndDue(ctx context.Context, id, title string, dueDate, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type requestAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type requestCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateRequestInput is the payload for creating a request.
type CreateRequestInput struct {
	Title      string          `json:"title" validate:"required"`
	Type       string          `json:"type" validate:"required,oneof=email database linkedin"`
	TargetRole string          `json:"target_role" validate:"required,oneof=admin growth sdr"`
	MissionID  string          `json:"mission_id"`
	DueDate    time.Time       `json:"due_date" validate:"required"`
	Details    json.RawMessage `json:"details"`
}

// UpdateRequestInput updates the editable header fields.
type UpdateRequestInput struct {
	Title   string          `json:"title" validate:"required"`
	DueDate time.Time       `json:"due_date" validate:"required"`
	Details json.RawMessage `json:"details"`
}

// AssignRequestInput designates an assignee.
type AssignRequestInput struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// RequestService implements the request lifecycle: creation, assignment,
// claiming, completion and cancelation. All transitions keep the legacy
// status column in sync and leave an audit trail.
type RequestService struct {
	repo       requestRepository
	auditor    requestAuditor
	normalizer *Normalizer
	cache      requestCacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestRepository, auditor requestAuditor, normalizer *Normalizer, cache requestCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{
		repo:       repo,
		auditor:    auditor,
		normalizer: normalizer,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a single normalized request, enforcing role visibility.
func (s *RequestService) Get(ctx context.Context, id string, viewer Viewer) (*models.Request, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	req := s.normalizer.Normalize(ctx, *rec)

	switch viewer.Role {
	case models.RoleSDR:
		if req.CreatedBy != viewer.ID && req.AssignedTo != viewer.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request not visible for this user")
		}
	case models.RoleGrowth:
		if req.TargetRole == models.RoleSDR && req.CreatedBy != viewer.ID && req.AssignedTo != viewer.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request not visible for this user")
		}
	}

	if viewer.Role != models.RoleAdmin {
		req.DetailsCorrupted = false
	}

	return &req, nil
}

// Create registers a new request in pending_assignment state. Only SDR users
// open requests; growth and admin act on them downstream.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput, viewer Viewer) (*models.Request, error) {
	if viewer.Role != models.RoleSDR {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only SDR users can create requests")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if len(input.Details) > 0 && !json.Valid(input.Details) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "details must be valid JSON")
	}

	rec := &models.RequestRecord{
		ID:             uuid.NewString(),
		Title:          input.Title,
		Type:           models.RequestType(input.Type),
		Status:         models.StatusPending,
		WorkflowStatus: models.WorkflowPendingAssignment,
		CreatedBy:      viewer.ID,
		TargetRole:     models.UserRole(input.TargetRole),
		DueDate:        input.DueDate,
		Details:        input.Details,
	}
	if input.MissionID != "" {
		rec.MissionID = &input.MissionID
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.audit(ctx, viewer.ID, models.AuditActionRequestCreate, rec.ID, map[string]interface{}{
		"title": rec.Title,
		"type":  rec.Type,
	})
	s.invalidateDashboards(ctx)

	req := s.normalizer.Normalize(ctx, *rec)
	return &req, nil
}

// Update edits title, due date and optionally the details payload. Only the
// creator, current assignee or an admin may edit a request.
func (s *RequestService) Update(ctx context.Context, id string, input UpdateRequestInput, viewer Viewer) (*models.Request, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	rec, err := s.loadEditable(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	if err := s.repo.UpdateTitleAndDue(ctx, id, input.Title, input.DueDate, ts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	rec.Title = input.Title
	rec.DueDate = input.DueDate
	rec.LastUpdated = ts

	if len(input.Details) > 0 {
		if !json.Valid(input.Details) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "details must be valid JSON")
		}
		if err := s.repo.UpdateDetails(ctx, id, input.Details, ts); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request details")
		}
		rec.Details = input.Details
	}

	s.invalidateDashboards(ctx)

	req := s.normalizer.Normalize(ctx, *rec)
	return &req, nil
}

// Claim lets a viewer take an unassigned request for themselves.
func (s *RequestService) Claim(ctx context.Context, id string, viewer Viewer) (*models.Request, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.AssignedTo != nil && *rec.AssignedTo != "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is already assigned")
	}
	if !effectiveRecordWorkflow(rec).IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer active")
	}

	return s.transition(ctx, rec, models.WorkflowInProgress, &viewer.ID, viewer.ID, models.AuditActionRequestAssign, map[string]interface{}{
		"assigned_to": viewer.ID,
		"claimed":     true,
	})
}

// Assign designates an assignee and moves the request to in_progress.
func (s *RequestService) Assign(ctx context.Context, id string, input AssignRequestInput, viewer Viewer) (*models.Request, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
	}

	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !effectiveRecordWorkflow(rec).IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer active")
	}

	return s.transition(ctx, rec, models.WorkflowInProgress, &input.AssigneeID, viewer.ID, models.AuditActionRequestAssign, map[string]interface{}{
		"assigned_to": input.AssigneeID,
	})
}

// Complete marks an in-progress request as completed. Only the assignee or an
// admin may complete.
func (s *RequestService) Complete(ctx context.Context, id string, viewer Viewer) (*models.Request, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if effectiveRecordWorkflow(rec) != models.WorkflowInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only in-progress requests can be completed")
	}
	if viewer.Role != models.RoleAdmin && (rec.AssignedTo == nil || *rec.AssignedTo != viewer.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assignee can complete this request")
	}

	return s.transition(ctx, rec, models.WorkflowCompleted, nil, viewer.ID, models.AuditActionRequestComplete, nil)
}

// Cancel voids an active request. Only the creator or an admin may cancel.
func (s *RequestService) Cancel(ctx context.Context, id string, viewer Viewer) (*models.Request, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !effectiveRecordWorkflow(rec).IsActive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is no longer active")
	}
	if viewer.Role != models.RoleAdmin && rec.CreatedBy != viewer.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator can cancel this request")
	}

	return s.transition(ctx, rec, models.WorkflowCanceled, nil, viewer.ID, models.AuditActionRequestCancel, nil)
}

// Delete removes a request permanently. Admin only; enforced at the route.
func (s *RequestService) Delete(ctx context.Context, id string, viewer Viewer) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	s.audit(ctx, viewer.ID, models.AuditActionRequestDelete, id, nil)
	s.invalidateDashboards(ctx)
	return nil
}

func (s *RequestService) find(ctx context.Context, id string) (*models.RequestRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return rec, nil
}

func (s *RequestService) loadEditable(ctx context.Context, id string, viewer Viewer) (*models.RequestRecord, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.Role == models.RoleAdmin {
		return rec, nil
	}
	if rec.CreatedBy == viewer.ID {
		return rec, nil
	}
	if rec.AssignedTo != nil && *rec.AssignedTo == viewer.ID {
		return rec, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "request not editable for this user")
}

func (s *RequestService) transition(ctx context.Context, rec *models.RequestRecord, target models.WorkflowStatus, assignee *string, actorID, action string, extra map[string]interface{}) (*models.Request, error) {
	ts := s.now()
	if err := s.repo.SetWorkflow(ctx, rec.ID, target, assignee, ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition request")
	}

	rec.WorkflowStatus = target
	rec.Status = target.LegacyStatus()
	rec.LastUpdated = ts
	if assignee != nil {
		rec.AssignedTo = assignee
	}

	values := map[string]interface{}{
		"workflow_status": target,
	}
	for k, v := range extra {
		values[k] = v
	}
	s.audit(ctx, actorID, action, rec.ID, values)
	s.invalidateDashboards(ctx)

	req := s.normalizer.Normalize(ctx, *rec)
	return &req, nil
}

func (s *RequestService) audit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "requests",
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
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record request audit log", zap.Error(err))
	}
}

func (s *RequestService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

// effectiveRecordWorkflow mirrors the normalizer's empty-status defaulting for
// raw rows that have not been normalized yet.
func effectiveRecordWorkflow(rec *models.RequestRecord) models.WorkflowStatus {
	if rec.WorkflowStatus == "" {
		return models.WorkflowPendingAssignment
	}
	return rec.WorkflowStatus
}
