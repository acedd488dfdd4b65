package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
)

type fakeDashboardRepo struct {
	records []models.RequestRecord
	err     error
	filters []models.RequestFilter
}

func (f *fakeDashboardRepo) List(_ context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeNameResolver struct {
	names map[string]string
	err   error
	asked [][]string
}

func (f *fakeNameResolver) DisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	f.asked = append(f.asked, ids)
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func newTestDashboardService(repo dashboardRequestRepository, users displayNameResolver) *DashboardService {
	normalizer := NewNormalizer(nil, zap.NewNop())
	normalizer.now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	svc := NewDashboardService(repo, users, normalizer, NewFilterEngine(), nil, time.Minute, zap.NewNop())
	svc.now = normalizer.now
	return svc
}

func dashboardRecord(id, createdBy, assignedTo string, targetRole models.UserRole, wf models.WorkflowStatus) models.RequestRecord {
	rec := models.RequestRecord{
		ID:             id,
		Title:          "Demande " + id,
		Type:           models.RequestTypeEmail,
		Status:         wf.LegacyStatus(),
		WorkflowStatus: wf,
		CreatedBy:      createdBy,
		TargetRole:     targetRole,
		DueDate:        time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if assignedTo != "" {
		rec.AssignedTo = &assignedTo
	}
	return rec
}

func TestDashboardLoadScopesAndCounts(t *testing.T) {
	repo := &fakeDashboardRepo{records: []models.RequestRecord{
		dashboardRecord("r1", "sdr-1", "", models.RoleGrowth, models.WorkflowPendingAssignment),
		dashboardRecord("r2", "sdr-1", "growth-1", models.RoleGrowth, models.WorkflowInProgress),
		dashboardRecord("r3", "sdr-2", "", models.RoleGrowth, models.WorkflowPendingAssignment),
	}}
	svc := newTestDashboardService(repo, nil)

	result, err := svc.Load(context.Background(), Viewer{ID: "sdr-1", Role: models.RoleSDR}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)

	assert.Equal(t, ViewAll, result.View)
	assert.Len(t, result.Requests, 2, "SDRs only see their own creations")
	assert.Equal(t, 2, result.Counters.All)
	assert.Equal(t, 1, result.Counters.ToAssign)
	assert.Equal(t, 1, result.Counters.InProgress)
	assert.False(t, result.CacheHit)
	assert.False(t, result.GeneratedAt.IsZero())
}

func TestDashboardLoadRejectsUnknownRole(t *testing.T) {
	svc := newTestDashboardService(&fakeDashboardRepo{}, nil)

	_, err := svc.Load(context.Background(), Viewer{ID: "x", Role: "superuser"}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	assert.Error(t, err)
}

func TestDashboardLoadRepositoryError(t *testing.T) {
	svc := newTestDashboardService(&fakeDashboardRepo{err: errors.New("db down")}, nil)

	_, err := svc.Load(context.Background(), Viewer{ID: "admin-1", Role: models.RoleAdmin}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	assert.Error(t, err)
}

func TestDashboardLoadAttachesDisplayNames(t *testing.T) {
	repo := &fakeDashboardRepo{records: []models.RequestRecord{
		dashboardRecord("r1", "sdr-1", "growth-1", models.RoleGrowth, models.WorkflowInProgress),
	}}
	users := &fakeNameResolver{names: map[string]string{
		"sdr-1":    "Alice Martin",
		"growth-1": "Bruno Leroy",
	}}
	svc := newTestDashboardService(repo, users)

	result, err := svc.Load(context.Background(), Viewer{ID: "admin-1", Role: models.RoleAdmin}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "Alice Martin", result.Requests[0].CreatedByName)
	assert.Equal(t, "Bruno Leroy", result.Requests[0].AssignedToName)
	require.Len(t, users.asked, 1)
	assert.ElementsMatch(t, []string{"sdr-1", "growth-1"}, users.asked[0])
}

func TestDashboardLoadSurvivesNameLookupFailure(t *testing.T) {
	repo := &fakeDashboardRepo{records: []models.RequestRecord{
		dashboardRecord("r1", "sdr-1", "growth-1", models.RoleGrowth, models.WorkflowInProgress),
	}}
	users := &fakeNameResolver{err: errors.New("users table locked")}
	svc := newTestDashboardService(repo, users)

	result, err := svc.Load(context.Background(), Viewer{ID: "admin-1", Role: models.RoleAdmin}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)
	require.Len(t, result.Requests, 1)
	assert.Empty(t, result.Requests[0].CreatedByName)
	assert.Equal(t, "sdr-1", result.Requests[0].CreatedBy)
}

func TestDashboardLoadStripsCorruptionFlagForNonAdmins(t *testing.T) {
	rec := dashboardRecord("r1", "sdr-1", "", models.RoleGrowth, models.WorkflowPendingAssignment)
	rec.Details = []byte(`{"email": broken`)
	repo := &fakeDashboardRepo{records: []models.RequestRecord{rec}}

	admin, err := newTestDashboardService(repo, nil).Load(context.Background(), Viewer{ID: "admin-1", Role: models.RoleAdmin}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)
	require.Len(t, admin.Requests, 1)
	assert.True(t, admin.Requests[0].DetailsCorrupted)

	sdr, err := newTestDashboardService(repo, nil).Load(context.Background(), Viewer{ID: "sdr-1", Role: models.RoleSDR}, ViewAll, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)
	require.Len(t, sdr.Requests, 1)
	assert.False(t, sdr.Requests[0].DetailsCorrupted)
}

func TestDashboardLoadCompletedView(t *testing.T) {
	repo := &fakeDashboardRepo{records: []models.RequestRecord{
		dashboardRecord("r1", "sdr-1", "growth-1", models.RoleGrowth, models.WorkflowCompleted),
		dashboardRecord("r2", "sdr-1", "", models.RoleGrowth, models.WorkflowPendingAssignment),
	}}
	svc := newTestDashboardService(repo, nil)

	result, err := svc.Load(context.Background(), Viewer{ID: "admin-1", Role: models.RoleAdmin}, ViewCompleted, models.RequestFilter{}, SpecialFilters{}, false)
	require.NoError(t, err)
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "r1", result.Requests[0].ID)
	assert.Equal(t, 1, result.Counters.Completed)
	assert.Equal(t, 1, result.Counters.All, "counters describe the whole scoped set, not just the current view")
}

func TestDashboardCacheKeyIsViewerAndFilterSpecific(t *testing.T) {
	svc := newTestDashboardService(&fakeDashboardRepo{}, nil)
	base := svc.cacheKey(Viewer{ID: "u1", Role: models.RoleSDR}, ViewAll, models.RequestFilter{}, SpecialFilters{})

	otherUser := svc.cacheKey(Viewer{ID: "u2", Role: models.RoleSDR}, ViewAll, models.RequestFilter{}, SpecialFilters{})
	otherView := svc.cacheKey(Viewer{ID: "u1", Role: models.RoleSDR}, ViewLate, models.RequestFilter{}, SpecialFilters{})
	otherFilter := svc.cacheKey(Viewer{ID: "u1", Role: models.RoleSDR}, ViewAll, models.RequestFilter{MissionID: "m-1"}, SpecialFilters{})
	otherSpecial := svc.cacheKey(Viewer{ID: "u1", Role: models.RoleSDR}, ViewAll, models.RequestFilter{}, SpecialFilters{UnassignedOnly: true})

	for _, other := range []string{otherUser, otherView, otherFilter, otherSpecial} {
		assert.NotEqual(t, base, other)
	}
}
