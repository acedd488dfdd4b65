package models

import "time"

// InvitationStatus tracks the invitation lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation is an admin-issued account invitation with a pre-assigned role.
type Invitation struct {
	ID         string           `db:"id" json:"id"`
	Email      string           `db:"email" json:"email"`
	Role       UserRole         `db:"role" json:"role"`
	Token      string           `db:"token" json:"-"`
	Status     InvitationStatus `db:"status" json:"status"`
	InvitedBy  string           `db:"invited_by" json:"invited_by"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
