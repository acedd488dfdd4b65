package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type fakeRequestRepo struct {
	records map[string]*models.RequestRecord

	created        []*models.RequestRecord
	setWorkflow    []models.WorkflowStatus
	setAssignee    []*string
	deleted        []string
	setWorkflowErr error
}

func newFakeRequestRepo(recs ...*models.RequestRecord) *fakeRequestRepo {
	repo := &fakeRequestRepo{records: make(map[string]*models.RequestRecord)}
	for _, rec := range recs {
		repo.records[rec.ID] = rec
	}
	return repo
}

func (f *fakeRequestRepo) FindByID(_ context.Context, id string) (*models.RequestRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRequestRepo) List(_ context.Context, _ models.RequestFilter) ([]models.RequestRecord, error) {
	out := make([]models.RequestRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeRequestRepo) Create(_ context.Context, rec *models.RequestRecord) error {
	f.created = append(f.created, rec)
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRequestRepo) UpdateDetails(_ context.Context, id string, details []byte, ts time.Time) error {
	rec, ok := f.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.Details = details
	rec.LastUpdated = ts
	return nil
}

func (f *fakeRequestRepo) SetWorkflow(_ context.Context, id string, status models.WorkflowStatus, assignedTo *string, ts time.Time) error {
	if f.setWorkflowErr != nil {
		return f.setWorkflowErr
	}
	rec, ok := f.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.setWorkflow = append(f.setWorkflow, status)
	f.setAssignee = append(f.setAssignee, assignedTo)
	rec.WorkflowStatus = status
	rec.Status = status.LegacyStatus()
	if assignedTo != nil {
		rec.AssignedTo = assignedTo
	}
	rec.LastUpdated = ts
	return nil
}

func (f *fakeRequestRepo) UpdateTitleAndDue(_ context.Context, id, title string, dueDate, ts time.Time) error {
	rec, ok := f.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.Title = title
	rec.DueDate = dueDate
	rec.LastUpdated = ts
	return nil
}

func (f *fakeRequestRepo) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.records, id)
	return nil
}

type fakeAuditor struct {
	entries []*models.AuditLog
}

func (f *fakeAuditor) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.entries = append(f.entries, log)
	return nil
}

type fakeInvalidator struct {
	patterns []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func newTestRequestService(repo *fakeRequestRepo) (*RequestService, *fakeAuditor, *fakeInvalidator) {
	auditor := &fakeAuditor{}
	invalidator := &fakeInvalidator{}
	normalizer := NewNormalizer(nil, zap.NewNop())
	svc := NewRequestService(repo, auditor, normalizer, invalidator, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	return svc, auditor, invalidator
}

func pendingRecord(id, createdBy string, targetRole models.UserRole) *models.RequestRecord {
	return &models.RequestRecord{
		ID:             id,
		Title:          "Base SDR",
		Type:           models.RequestTypeDatabase,
		Status:         models.StatusPending,
		WorkflowStatus: models.WorkflowPendingAssignment,
		CreatedBy:      createdBy,
		TargetRole:     targetRole,
		DueDate:        time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	return appErr.Code
}

func TestRequestServiceCreate(t *testing.T) {
	repo := newFakeRequestRepo()
	svc, auditor, invalidator := newTestRequestService(repo)

	req, err := svc.Create(context.Background(), CreateRequestInput{
		Title:      "Scraping cible",
		Type:       "linkedin",
		TargetRole: "growth",
		DueDate:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}, Viewer{ID: "sdr-1", Role: models.RoleSDR})

	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPendingAssignment, req.WorkflowStatus)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "sdr-1", req.CreatedBy)
	assert.NotNil(t, req.Details.Linkedin)

	require.Len(t, repo.created, 1)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditActionRequestCreate, auditor.entries[0].Action)
	assert.Contains(t, invalidator.patterns, "dashboard:*")
}

func TestRequestServiceCreateValidation(t *testing.T) {
	svc, _, _ := newTestRequestService(newFakeRequestRepo())

	_, err := svc.Create(context.Background(), CreateRequestInput{
		Title:      "Bad type",
		Type:       "phone",
		TargetRole: "growth",
		DueDate:    time.Now(),
	}, Viewer{ID: "sdr-1", Role: models.RoleSDR})
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))

	_, err = svc.Create(context.Background(), CreateRequestInput{
		Title:      "Bad details",
		Type:       "email",
		TargetRole: "growth",
		DueDate:    time.Now(),
		Details:    json.RawMessage(`{"broken`),
	}, Viewer{ID: "sdr-1", Role: models.RoleSDR})
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))
}

func TestRequestServiceCreateRequiresSDR(t *testing.T) {
	repo := newFakeRequestRepo()
	svc, auditor, _ := newTestRequestService(repo)

	input := CreateRequestInput{
		Title:      "Hors role",
		Type:       "email",
		TargetRole: "growth",
		DueDate:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := svc.Create(context.Background(), input, Viewer{ID: "growth-1", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	_, err = svc.Create(context.Background(), input, Viewer{ID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	assert.Empty(t, repo.created, "rejected creations must not persist anything")
	assert.Empty(t, auditor.entries)
}

func TestRequestServiceClaim(t *testing.T) {
	repo := newFakeRequestRepo(pendingRecord("req-1", "sdr-1", models.RoleGrowth))
	svc, _, _ := newTestRequestService(repo)

	req, err := svc.Claim(context.Background(), "req-1", Viewer{ID: "growth-1", Role: models.RoleGrowth})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowInProgress, req.WorkflowStatus)
	assert.Equal(t, models.StatusInProgress, req.Status)
	assert.Equal(t, "growth-1", req.AssignedTo)
}

func TestRequestServiceClaimAlreadyAssigned(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	rec.WorkflowStatus = models.WorkflowInProgress
	rec.AssignedTo = strPtr("growth-2")
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))

	_, err := svc.Claim(context.Background(), "req-1", Viewer{ID: "growth-1", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrConflict.Code, appCode(t, err))
}

func TestRequestServiceClaimInactive(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	rec.WorkflowStatus = models.WorkflowCanceled
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))

	_, err := svc.Claim(context.Background(), "req-1", Viewer{ID: "growth-1", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appCode(t, err))
}

func TestRequestServiceAssign(t *testing.T) {
	repo := newFakeRequestRepo(pendingRecord("req-1", "sdr-1", models.RoleGrowth))
	svc, auditor, _ := newTestRequestService(repo)

	req, err := svc.Assign(context.Background(), "req-1", AssignRequestInput{AssigneeID: "growth-2"}, Viewer{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowInProgress, req.WorkflowStatus)
	assert.Equal(t, "growth-2", req.AssignedTo)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditActionRequestAssign, auditor.entries[0].Action)
}

func TestRequestServiceCompleteOnlyFromInProgress(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))

	_, err := svc.Complete(context.Background(), "req-1", Viewer{ID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appCode(t, err))
}

func TestRequestServiceCompleteByAssignee(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	rec.WorkflowStatus = models.WorkflowInProgress
	rec.AssignedTo = strPtr("growth-1")
	svc, _, invalidator := newTestRequestService(newFakeRequestRepo(rec))

	_, err := svc.Complete(context.Background(), "req-1", Viewer{ID: "growth-2", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	req, err := svc.Complete(context.Background(), "req-1", Viewer{ID: "growth-1", Role: models.RoleGrowth})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCompleted, req.WorkflowStatus)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.False(t, req.IsLate, "completed work is never late")
	assert.Contains(t, invalidator.patterns, "dashboard:*")
}

func TestRequestServiceCancelByCreatorOnly(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))

	_, err := svc.Cancel(context.Background(), "req-1", Viewer{ID: "sdr-2", Role: models.RoleSDR})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	req, err := svc.Cancel(context.Background(), "req-1", Viewer{ID: "sdr-1", Role: models.RoleSDR})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCanceled, req.WorkflowStatus)
}

func TestRequestServiceGetVisibility(t *testing.T) {
	growthTarget := pendingRecord("req-growth", "sdr-1", models.RoleGrowth)
	sdrTarget := pendingRecord("req-sdr", "growth-1", models.RoleSDR)
	svc, _, _ := newTestRequestService(newFakeRequestRepo(growthTarget, sdrTarget))
	ctx := context.Background()

	_, err := svc.Get(ctx, "req-growth", Viewer{ID: "sdr-1", Role: models.RoleSDR})
	assert.NoError(t, err)

	_, err = svc.Get(ctx, "req-growth", Viewer{ID: "sdr-2", Role: models.RoleSDR})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	_, err = svc.Get(ctx, "req-sdr", Viewer{ID: "growth-2", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	_, err = svc.Get(ctx, "req-sdr", Viewer{ID: "growth-1", Role: models.RoleGrowth})
	assert.NoError(t, err, "the creator keeps access regardless of target role")

	_, err = svc.Get(ctx, "req-missing", Viewer{ID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrNotFound.Code, appCode(t, err))
}

func TestRequestServiceGetHidesCorruptionFlagFromNonAdmins(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	rec.Details = json.RawMessage(`{"database": broken`)
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))
	ctx := context.Background()

	adminView, err := svc.Get(ctx, "req-1", Viewer{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, adminView.DetailsCorrupted)

	sdrView, err := svc.Get(ctx, "req-1", Viewer{ID: "sdr-1", Role: models.RoleSDR})
	require.NoError(t, err)
	assert.False(t, sdrView.DetailsCorrupted)
}

func TestRequestServiceUpdatePermissions(t *testing.T) {
	rec := pendingRecord("req-1", "sdr-1", models.RoleGrowth)
	rec.AssignedTo = strPtr("growth-1")
	svc, _, _ := newTestRequestService(newFakeRequestRepo(rec))
	ctx := context.Background()

	input := UpdateRequestInput{Title: "Titre revu", DueDate: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}

	_, err := svc.Update(ctx, "req-1", input, Viewer{ID: "growth-2", Role: models.RoleGrowth})
	assert.Equal(t, appErrors.ErrForbidden.Code, appCode(t, err))

	req, err := svc.Update(ctx, "req-1", input, Viewer{ID: "growth-1", Role: models.RoleGrowth})
	require.NoError(t, err)
	assert.Equal(t, "Titre revu", req.Title)
	assert.Equal(t, input.DueDate, req.DueDate)
}

func TestRequestServiceDelete(t *testing.T) {
	repo := newFakeRequestRepo(pendingRecord("req-1", "sdr-1", models.RoleGrowth))
	svc, auditor, invalidator := newTestRequestService(repo)

	err := svc.Delete(context.Background(), "req-1", Viewer{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, repo.deleted)
	assert.Contains(t, invalidator.patterns, "dashboard:*")

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditActionRequestDelete, auditor.entries[0].Action,
		"deletion must be distinguishable from cancelation in the audit trail")

	err = svc.Delete(context.Background(), "req-1", Viewer{ID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrNotFound.Code, appCode(t, err))
}
