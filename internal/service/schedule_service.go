package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type scheduleRepository interface {
	Upsert(ctx context.Context, entry *models.ScheduleEntry) error
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error)
	Delete(ctx context.Context, id string) error
}

// UpsertScheduleRequest sets a user's work location for one day.
type UpsertScheduleRequest struct {
	Day      time.Time `json:"day" validate:"required"`
	Location string    `json:"location" validate:"required,oneof=office remote off"`
	Note     string    `json:"note"`
}

// ScheduleService manages the telework schedule.
type ScheduleService struct {
	repo      scheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleRepository, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{repo: repo, validator: validate, logger: logger}
}

// Set writes the viewer's location for a day. Days are stored at UTC midnight
// so the (user, day) upsert key stays stable regardless of client timezone.
func (s *ScheduleService) Set(ctx context.Context, userID string, req UpsertScheduleRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	day := req.Day.UTC().Truncate(24 * time.Hour)
	entry := &models.ScheduleEntry{
		UserID:   userID,
		Day:      day,
		Location: models.WorkLocation(req.Location),
		Note:     req.Note,
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule entry")
	}
	return entry, nil
}

// List returns schedule entries. Non-admin viewers only see their own entries
// unless they ask for the whole team week, which is read-only for everyone.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
	}
	return entries, nil
}

// Week returns all entries for the seven days starting at from.
func (s *ScheduleService) Week(ctx context.Context, from time.Time) ([]models.ScheduleEntry, error) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 6)
	return s.List(ctx, models.ScheduleFilter{From: &start, To: &end})
}

// Delete removes one entry. Ownership is enforced at the handler via RBAC.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule entry")
	}
	return nil
}
