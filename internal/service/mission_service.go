package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type missionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Mission, error)
	List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error)
	Create(ctx context.Context, mission *models.Mission) error
	Update(ctx context.Context, mission *models.Mission) error
	Delete(ctx context.Context, id string) error
}

// CreateMissionRequest is the payload for creating a mission.
type CreateMissionRequest struct {
	Name      string     `json:"name" validate:"required"`
	SDRID     string     `json:"sdr_id" validate:"required"`
	Status    string     `json:"status" validate:"omitempty,oneof=active paused completed"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// UpdateMissionRequest is the payload for updating a mission.
type UpdateMissionRequest struct {
	Name      string     `json:"name" validate:"required"`
	SDRID     string     `json:"sdr_id" validate:"required"`
	Status    string     `json:"status" validate:"required,oneof=active paused completed"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// MissionService handles mission management workflows.
type MissionService struct {
	repo      missionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMissionService creates a MissionService instance.
func NewMissionService(repo missionRepository, validate *validator.Validate, logger *zap.Logger) *MissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MissionService{repo: repo, validator: validate, logger: logger}
}

// List returns missions and pagination metadata.
func (s *MissionService) List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, *models.Pagination, error) {
	missions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list missions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return missions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a mission by ID.
func (s *MissionService) Get(ctx context.Context, id string) (*models.Mission, error) {
	mission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mission")
	}
	return mission, nil
}

// Create registers a new mission.
func (s *MissionService) Create(ctx context.Context, req CreateMissionRequest) (*models.Mission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mission payload")
	}

	status := models.MissionStatus(req.Status)
	if status == "" {
		status = models.MissionActive
	}

	mission := &models.Mission{
		ID:        uuid.NewString(),
		Name:      req.Name,
		SDRID:     req.SDRID,
		Status:    status,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	if err := s.repo.Create(ctx, mission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mission")
	}
	return mission, nil
}

// Update mutates an existing mission.
func (s *MissionService) Update(ctx context.Context, id string, req UpdateMissionRequest) (*models.Mission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mission payload")
	}

	mission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mission")
	}

	mission.Name = req.Name
	mission.SDRID = req.SDRID
	mission.Status = models.MissionStatus(req.Status)
	mission.StartDate = req.StartDate
	mission.EndDate = req.EndDate

	if err := s.repo.Update(ctx, mission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mission")
	}
	return mission, nil
}

// Delete removes a mission.
func (s *MissionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mission")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mission")
	}
	return nil
}
