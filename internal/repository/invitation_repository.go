package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seventic/ops-api/internal/models"
)

// InvitationRepository provides database access for user invitations.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new instance of InvitationRepository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts a new invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invitations (id, email, role, token, status, invited_by, expires_at, accepted_at, created_at) VALUES (:id, :email, :role, :token, :status, :invited_by, :expires_at, :accepted_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindByToken returns an invitation by its opaque token.
func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	const query = `SELECT id, email, role, token, status, invited_by, expires_at, accepted_at, created_at FROM invitations WHERE token = $1 LIMIT 1`
	var inv models.Invitation
	if err := r.db.GetContext(ctx, &inv, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invitation by token: %w", err)
	}
	return &inv, nil
}

// FindPendingByEmail returns a pending invitation for an email, if any.
func (r *InvitationRepository) FindPendingByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	const query = `SELECT id, email, role, token, status, invited_by, expires_at, accepted_at, created_at FROM invitations WHERE email = $1 AND status = 'pending' LIMIT 1`
	var inv models.Invitation
	if err := r.db.GetContext(ctx, &inv, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending invitation: %w", err)
	}
	return &inv, nil
}

// List returns invitations, newest first.
func (r *InvitationRepository) List(ctx context.Context, status *models.InvitationStatus) ([]models.Invitation, error) {
	query := `SELECT id, email, role, token, status, invited_by, expires_at, accepted_at, created_at FROM invitations`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	var invs []models.Invitation
	if err := r.db.SelectContext(ctx, &invs, query, args...); err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invs, nil
}

// MarkAccepted records acceptance of an invitation.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE invitations SET status = 'accepted', accepted_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("mark invitation accepted: %w", err)
	}
	return nil
}

// Revoke marks an invitation as revoked.
func (r *InvitationRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE invitations SET status = 'revoked' WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	return nil
}
