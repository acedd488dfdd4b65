package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
)

// FallbackMissionName is shown when no mission can be resolved for a request.
const FallbackMissionName = "Sans mission"

// legacyMissionNames pins display names for a handful of mission IDs whose
// upstream rows carry inconsistent names. These always win over dynamic
// resolution; do not extend this map for new missions.
var legacyMissionNames = map[string]string{
	"mission-seventic-interne": "Seventic Interne",
	"mission-prospection-2023": "Prospection 2023",
}

type missionNameResolver interface {
	MissionName(ctx context.Context, id string) (string, error)
}

// Normalizer turns raw request rows into fully-populated Request entities.
// It never fails: malformed payloads degrade to empty shaped structures and
// the row is flagged instead of dropped, so the dashboard always has
// something to render.
type Normalizer struct {
	missions missionNameResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewNormalizer constructs a Normalizer. The clock is injectable for tests.
func NewNormalizer(missions missionNameResolver, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{missions: missions, logger: logger, now: time.Now}
}

// Normalize maps one persisted record into a Request with derived fields
// recomputed. IsLate is a function of wall-clock time and must never be
// trusted from storage.
func (n *Normalizer) Normalize(ctx context.Context, rec models.RequestRecord) models.Request {
	req := models.Request{
		ID:          rec.ID,
		Title:       rec.Title,
		Type:        rec.Type,
		Status:      rec.Status,
		CreatedBy:   rec.CreatedBy,
		TargetRole:  rec.TargetRole,
		DueDate:     rec.DueDate,
		CreatedAt:   rec.CreatedAt,
		LastUpdated: rec.LastUpdated,
	}

	req.WorkflowStatus = rec.WorkflowStatus
	if req.WorkflowStatus == "" {
		req.WorkflowStatus = models.WorkflowPendingAssignment
	}

	if rec.AssignedTo != nil {
		req.AssignedTo = strings.TrimSpace(*rec.AssignedTo)
	}
	if rec.MissionID != nil {
		req.MissionID = *rec.MissionID
	}

	req.IsLate = !rec.DueDate.IsZero() && rec.DueDate.Before(n.now()) && req.WorkflowStatus.IsActive()

	req.Details, req.DetailsCorrupted = n.resolveDetails(rec)
	req.MissionName = n.resolveMissionName(ctx, rec)

	return req
}

// NormalizeAll maps a batch of records.
func (n *Normalizer) NormalizeAll(ctx context.Context, recs []models.RequestRecord) []models.Request {
	out := make([]models.Request, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.Normalize(ctx, rec))
	}
	return out
}

// resolveDetails parses the raw payload and guarantees the sub-structure for
// the request's type exists. Legacy writers persisted details as a
// JSON-encoded string, so a double-decode pass is attempted first.
func (n *Normalizer) resolveDetails(rec models.RequestRecord) (models.RequestDetails, bool) {
	var details models.RequestDetails
	corrupted := false

	raw := rec.Details
	if len(raw) > 0 {
		if raw[0] == '"' {
			var inner string
			if err := json.Unmarshal(raw, &inner); err != nil {
				corrupted = true
				raw = nil
			} else {
				raw = []byte(inner)
			}
		}
	}
	if len(raw) > 0 && strings.TrimSpace(string(raw)) != "" {
		if err := json.Unmarshal(raw, &details); err != nil {
			n.logger.Warn("request details unparseable, substituting empty structure",
				zap.String("request_id", rec.ID), zap.Error(err))
			details = models.RequestDetails{}
			corrupted = true
		}
	}

	switch rec.Type {
	case models.RequestTypeEmail:
		if details.Email == nil {
			details.Email = &models.EmailDetails{}
		}
	case models.RequestTypeDatabase:
		if details.Database == nil {
			details.Database = &models.DatabaseDetails{}
		}
	case models.RequestTypeLinkedin:
		if details.Linkedin == nil {
			details.Linkedin = &models.LinkedinDetails{}
		}
	}

	return details, corrupted
}

// resolveMissionName follows a fixed precedence chain: explicit name on the
// record, then the legacy ID overrides, then the mission repository, then the
// fallback label.
func (n *Normalizer) resolveMissionName(ctx context.Context, rec models.RequestRecord) string {
	if rec.MissionName != nil && strings.TrimSpace(*rec.MissionName) != "" {
		return strings.TrimSpace(*rec.MissionName)
	}
	if rec.MissionID != nil {
		if name, ok := legacyMissionNames[*rec.MissionID]; ok {
			return name
		}
	}
	if rec.MissionID != nil && *rec.MissionID != "" && n.missions != nil {
		name, err := n.missions.MissionName(ctx, *rec.MissionID)
		if err == nil && strings.TrimSpace(name) != "" {
			return name
		}
		if err != nil {
			n.logger.Debug("mission name lookup failed",
				zap.String("mission_id", *rec.MissionID), zap.Error(err))
		}
	}
	return FallbackMissionName
}
