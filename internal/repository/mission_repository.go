package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seventic/ops-api/internal/models"
)

// MissionRepository provides database access for missions.
type MissionRepository struct {
	db *sqlx.DB
}

// NewMissionRepository creates a new instance of MissionRepository.
func NewMissionRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// FindByID returns a mission by identifier.
func (r *MissionRepository) FindByID(ctx context.Context, id string) (*models.Mission, error) {
	const query = `SELECT id, name, sdr_id, status, start_date, end_date, created_at, updated_at FROM missions WHERE id = $1 LIMIT 1`
	var mission models.Mission
	if err := r.db.GetContext(ctx, &mission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mission by id: %w", err)
	}
	return &mission, nil
}

// MissionName returns just the display name for a mission.
func (r *MissionRepository) MissionName(ctx context.Context, id string) (string, error) {
	const query = `SELECT name FROM missions WHERE id = $1 LIMIT 1`
	var name string
	if err := r.db.GetContext(ctx, &name, query, id); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("mission name: %w", err)
	}
	return name, nil
}

// List returns missions based on filters with total count.
func (r *MissionRepository) List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error) {
	baseQuery := `FROM missions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SDRID != "" {
		conditions = append(conditions, fmt.Sprintf("sdr_id = $%d", len(args)+1))
		args = append(args, filter.SDRID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, sdr_id, status, start_date, end_date, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var missions []models.Mission
	if err := r.db.SelectContext(ctx, &missions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list missions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count missions: %w", err)
	}

	return missions, total, nil
}

// Create inserts a new mission.
func (r *MissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	if mission.ID == "" {
		mission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mission.CreatedAt.IsZero() {
		mission.CreatedAt = now
	}
	mission.UpdatedAt = now

	const query = `INSERT INTO missions (id, name, sdr_id, status, start_date, end_date, created_at, updated_at) VALUES (:id, :name, :sdr_id, :status, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mission); err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	return nil
}

// Update updates mutable fields of a mission.
func (r *MissionRepository) Update(ctx context.Context, mission *models.Mission) error {
	mission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE missions SET name = :name, sdr_id = :sdr_id, status = :status, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mission); err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	return nil
}

// Delete removes a mission row.
func (r *MissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM missions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	return nil
}
