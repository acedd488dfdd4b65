package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
)

type fakeMissionResolver struct {
	names map[string]string
	err   error
	calls int
}

func (f *fakeMissionResolver) MissionName(_ context.Context, id string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.names[id], nil
}

func newTestNormalizer(resolver missionNameResolver, now time.Time) *Normalizer {
	n := NewNormalizer(resolver, zap.NewNop())
	n.now = func() time.Time { return now }
	return n
}

func strPtr(s string) *string { return &s }

func baseRecord() models.RequestRecord {
	return models.RequestRecord{
		ID:             "req-1",
		Title:          "Campagne Q3",
		Type:           models.RequestTypeEmail,
		Status:         models.StatusPending,
		WorkflowStatus: models.WorkflowPendingAssignment,
		CreatedBy:      "sdr-1",
		TargetRole:     models.RoleGrowth,
		DueDate:        time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeIsLateDerivedFromClock(t *testing.T) {
	ctx := context.Background()
	rec := baseRecord()

	late := newTestNormalizer(nil, rec.DueDate.Add(24*time.Hour)).Normalize(ctx, rec)
	assert.True(t, late.IsLate)

	onTime := newTestNormalizer(nil, rec.DueDate.Add(-24*time.Hour)).Normalize(ctx, rec)
	assert.False(t, onTime.IsLate)
}

func TestNormalizeCompletedRequestIsNeverLate(t *testing.T) {
	rec := baseRecord()
	rec.WorkflowStatus = models.WorkflowCompleted

	req := newTestNormalizer(nil, rec.DueDate.Add(48*time.Hour)).Normalize(context.Background(), rec)
	assert.False(t, req.IsLate, "inactive work cannot be late no matter the due date")
}

func TestNormalizeEmptyWorkflowDefaultsToPendingAssignment(t *testing.T) {
	rec := baseRecord()
	rec.WorkflowStatus = ""

	req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, models.WorkflowPendingAssignment, req.WorkflowStatus)
}

func TestNormalizeDetailsDoubleEncodedString(t *testing.T) {
	rec := baseRecord()
	inner := `{"email":{"template":{"subject":"Relance"}}}`
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)
	rec.Details = quoted

	req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.False(t, req.DetailsCorrupted)
	require.NotNil(t, req.Details.Email)
	assert.Equal(t, "Relance", req.Details.Email.Template.Subject)
}

func TestNormalizeDetailsGarbageFlagsCorruption(t *testing.T) {
	rec := baseRecord()
	rec.Details = json.RawMessage(`{"email": not-json`)

	req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.True(t, req.DetailsCorrupted)
	require.NotNil(t, req.Details.Email, "email requests always carry a shaped email structure")
	assert.Empty(t, req.Details.Email.Template.Subject)
}

func TestNormalizeDetailsShapedPerType(t *testing.T) {
	cases := []struct {
		typ    models.RequestType
		verify func(t *testing.T, d models.RequestDetails)
	}{
		{models.RequestTypeEmail, func(t *testing.T, d models.RequestDetails) {
			assert.NotNil(t, d.Email)
			assert.Nil(t, d.Database)
		}},
		{models.RequestTypeDatabase, func(t *testing.T, d models.RequestDetails) {
			assert.NotNil(t, d.Database)
			assert.Nil(t, d.Linkedin)
		}},
		{models.RequestTypeLinkedin, func(t *testing.T, d models.RequestDetails) {
			assert.NotNil(t, d.Linkedin)
			assert.Nil(t, d.Email)
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			rec := baseRecord()
			rec.Type = tc.typ
			rec.Details = nil

			req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
			assert.False(t, req.DetailsCorrupted)
			tc.verify(t, req.Details)
		})
	}
}

func TestNormalizeMissionNameExplicitRecordNameWins(t *testing.T) {
	resolver := &fakeMissionResolver{names: map[string]string{"mission-seventic-interne": "From Repo"}}
	rec := baseRecord()
	rec.MissionID = strPtr("mission-seventic-interne")
	rec.MissionName = strPtr("  Nom Explicite  ")

	req := newTestNormalizer(resolver, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, "Nom Explicite", req.MissionName)
	assert.Zero(t, resolver.calls)
}

func TestNormalizeMissionNameLegacyMapBeatsRepository(t *testing.T) {
	resolver := &fakeMissionResolver{names: map[string]string{"mission-seventic-interne": "From Repo"}}
	rec := baseRecord()
	rec.MissionID = strPtr("mission-seventic-interne")

	req := newTestNormalizer(resolver, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, "Seventic Interne", req.MissionName)
	assert.Zero(t, resolver.calls)
}

func TestNormalizeMissionNameFromRepository(t *testing.T) {
	resolver := &fakeMissionResolver{names: map[string]string{"m-42": "Client 42"}}
	rec := baseRecord()
	rec.MissionID = strPtr("m-42")

	req := newTestNormalizer(resolver, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, "Client 42", req.MissionName)
	assert.Equal(t, 1, resolver.calls)
}

func TestNormalizeMissionNameFallsBackOnResolverError(t *testing.T) {
	resolver := &fakeMissionResolver{err: errors.New("db down")}
	rec := baseRecord()
	rec.MissionID = strPtr("m-42")

	req := newTestNormalizer(resolver, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, FallbackMissionName, req.MissionName)
}

func TestNormalizeMissionNameFallbackWhenNoMission(t *testing.T) {
	rec := baseRecord()
	req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, FallbackMissionName, req.MissionName)
}

func TestNormalizeTrimsAssignee(t *testing.T) {
	rec := baseRecord()
	rec.AssignedTo = strPtr("  growth-1 ")

	req := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.Equal(t, "growth-1", req.AssignedTo)

	rec.AssignedTo = strPtr("   ")
	blank := newTestNormalizer(nil, rec.DueDate).Normalize(context.Background(), rec)
	assert.True(t, blank.Unassigned())
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	first := baseRecord()
	second := baseRecord()
	second.ID = "req-2"

	reqs := newTestNormalizer(nil, first.DueDate).NormalizeAll(context.Background(), []models.RequestRecord{first, second})
	require.Len(t, reqs, 2)
	assert.Equal(t, "req-1", reqs[0].ID)
	assert.Equal(t, "req-2", reqs[1].ID)
}
