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

const requestColumns = "id, title, type, status, workflow_status, created_by, assigned_to, target_role, mission_id, mission_name, due_date, created_at, last_updated, details"

// RequestRepository provides database access for requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID returns a single raw request row.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.RequestRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE id = $1 LIMIT 1", requestColumns)
	var rec models.RequestRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return &rec, nil
}

// List returns raw request rows matching the filter. Role and view scoping
// happen in memory downstream; the filter only bounds the fetched population.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE 1=1", requestColumns)
	var conditions []string
	var args []interface{}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.MissionID != "" {
		args = append(args, filter.MissionID)
		conditions = append(conditions, fmt.Sprintf("mission_id = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var recs []models.RequestRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return recs, nil
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, rec *models.RequestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.LastUpdated = now

	const query = `INSERT INTO requests (id, title, type, status, workflow_status, created_by, assigned_to, target_role, mission_id, mission_name, due_date, created_at, last_updated, details) VALUES (:id, :title, :type, :status, :workflow_status, :created_by, :assigned_to, :target_role, :mission_id, :mission_name, :due_date, :created_at, :last_updated, :details)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// UpdateDetails replaces the details payload and bumps last_updated.
func (r *RequestRepository) UpdateDetails(ctx context.Context, id string, details []byte, ts time.Time) error {
	const query = `UPDATE requests SET details = $2, last_updated = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, details, ts); err != nil {
		return fmt.Errorf("update request details: %w", err)
	}
	return nil
}

// SetWorkflow moves a request to the given workflow status, keeping the
// legacy status column write-synced, and optionally sets the assignee.
func (r *RequestRepository) SetWorkflow(ctx context.Context, id string, status models.WorkflowStatus, assignedTo *string, ts time.Time) error {
	const query = `UPDATE requests SET workflow_status = $2, status = $3, assigned_to = COALESCE($4, assigned_to), last_updated = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, status.LegacyStatus(), assignedTo, ts)
	if err != nil {
		return fmt.Errorf("set request workflow: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTitleAndDue updates editable header fields.
func (r *RequestRepository) UpdateTitleAndDue(ctx context.Context, id, title string, dueDate, ts time.Time) error {
	const query = `UPDATE requests SET title = $2, due_date = $3, last_updated = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, title, dueDate, ts); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

// Delete removes a request row.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM requests WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}
