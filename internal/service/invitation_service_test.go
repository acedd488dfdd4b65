package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/jobs"
)

type fakeInvitationRepo struct {
	byToken  map[string]*models.Invitation
	accepted []string
	revoked  []string
}

func newFakeInvitationRepo(invs ...*models.Invitation) *fakeInvitationRepo {
	repo := &fakeInvitationRepo{byToken: make(map[string]*models.Invitation)}
	for _, inv := range invs {
		repo.byToken[inv.Token] = inv
	}
	return repo
}

func (f *fakeInvitationRepo) Create(_ context.Context, inv *models.Invitation) error {
	f.byToken[inv.Token] = inv
	return nil
}

func (f *fakeInvitationRepo) FindByToken(_ context.Context, token string) (*models.Invitation, error) {
	inv, ok := f.byToken[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return inv, nil
}

func (f *fakeInvitationRepo) FindPendingByEmail(_ context.Context, email string) (*models.Invitation, error) {
	for _, inv := range f.byToken {
		if inv.Email == email && inv.Status == models.InvitationPending {
			return inv, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInvitationRepo) List(_ context.Context, status *models.InvitationStatus) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, inv := range f.byToken {
		if status != nil && inv.Status != *status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (f *fakeInvitationRepo) MarkAccepted(_ context.Context, id string, ts time.Time) error {
	f.accepted = append(f.accepted, id)
	for _, inv := range f.byToken {
		if inv.ID == id {
			inv.Status = models.InvitationAccepted
			inv.AcceptedAt = &ts
		}
	}
	return nil
}

func (f *fakeInvitationRepo) Revoke(_ context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	for _, inv := range f.byToken {
		if inv.ID == id {
			inv.Status = models.InvitationRevoked
		}
	}
	return nil
}

type fakeInvitationUsers struct {
	byEmail map[string]*models.User
	created []*models.User
	audits  []string
}

func newFakeInvitationUsers(users ...*models.User) *fakeInvitationUsers {
	f := &fakeInvitationUsers{byEmail: make(map[string]*models.User)}
	for _, u := range users {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeInvitationUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeInvitationUsers) Create(_ context.Context, user *models.User) error {
	f.created = append(f.created, user)
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeInvitationUsers) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.audits = append(f.audits, log.Action)
	return nil
}

type fakeDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestInvitationService(repo *fakeInvitationRepo, users *fakeInvitationUsers, dispatcher invitationDispatcher) *InvitationService {
	svc := NewInvitationService(repo, users, dispatcher, nil, zap.NewNop(), 72*time.Hour)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestInvitationInvite(t *testing.T) {
	repo := newFakeInvitationRepo()
	users := newFakeInvitationUsers()
	dispatcher := &fakeDispatcher{}
	svc := newTestInvitationService(repo, users, dispatcher)

	inv, err := svc.Invite(context.Background(), InviteUserRequest{Email: "New.SDR@Seventic.FR", Role: models.RoleSDR}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "new.sdr@seventic.fr", inv.Email, "emails are stored lowercase")
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, svc.now().Add(72*time.Hour), inv.ExpiresAt)

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, "invitation_email", dispatcher.jobs[0].Type)
	payload, ok := dispatcher.jobs[0].Payload.(InvitationEmailPayload)
	require.True(t, ok)
	assert.Equal(t, inv.Token, payload.Token)

	assert.Contains(t, users.audits, models.AuditActionInvitationSent)
}

func TestInvitationInviteDuplicateEmail(t *testing.T) {
	users := newFakeInvitationUsers(&models.User{ID: "u-1", Email: "taken@seventic.fr"})
	svc := newTestInvitationService(newFakeInvitationRepo(), users, nil)

	_, err := svc.Invite(context.Background(), InviteUserRequest{Email: "taken@seventic.fr", Role: models.RoleGrowth}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationInviteDuplicatePending(t *testing.T) {
	repo := newFakeInvitationRepo(&models.Invitation{
		ID: "inv-1", Email: "waiting@seventic.fr", Token: "tok-1", Status: models.InvitationPending,
	})
	svc := newTestInvitationService(repo, newFakeInvitationUsers(), nil)

	_, err := svc.Invite(context.Background(), InviteUserRequest{Email: "waiting@seventic.fr", Role: models.RoleSDR}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationAccept(t *testing.T) {
	repo := newFakeInvitationRepo(&models.Invitation{
		ID: "inv-1", Email: "new@seventic.fr", Role: models.RoleGrowth, Token: "tok-1",
		Status: models.InvitationPending, ExpiresAt: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	users := newFakeInvitationUsers()
	svc := newTestInvitationService(repo, users, nil)

	user, err := svc.Accept(context.Background(), AcceptInvitationRequest{
		Token: "tok-1", FullName: "Chloe Dubois", Password: "longenough1",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@seventic.fr", user.Email)
	assert.Equal(t, models.RoleGrowth, user.Role, "the role was fixed at invite time")
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough1")))

	assert.Contains(t, repo.accepted, "inv-1")
	require.Len(t, users.created, 1)
}

func TestInvitationAcceptExpired(t *testing.T) {
	repo := newFakeInvitationRepo(&models.Invitation{
		ID: "inv-1", Email: "late@seventic.fr", Role: models.RoleSDR, Token: "tok-1",
		Status: models.InvitationPending, ExpiresAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	svc := newTestInvitationService(repo, newFakeInvitationUsers(), nil)

	_, err := svc.Accept(context.Background(), AcceptInvitationRequest{
		Token: "tok-1", FullName: "Too Late", Password: "longenough1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvitationExpired.Code, appErrors.FromError(err).Code)
}

func TestInvitationAcceptNonPending(t *testing.T) {
	repo := newFakeInvitationRepo(&models.Invitation{
		ID: "inv-1", Email: "done@seventic.fr", Role: models.RoleSDR, Token: "tok-1",
		Status: models.InvitationAccepted, ExpiresAt: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	svc := newTestInvitationService(repo, newFakeInvitationUsers(), nil)

	_, err := svc.Accept(context.Background(), AcceptInvitationRequest{
		Token: "tok-1", FullName: "Again", Password: "longenough1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvitationRevoke(t *testing.T) {
	repo := newFakeInvitationRepo(&models.Invitation{
		ID: "inv-1", Email: "gone@seventic.fr", Token: "tok-1", Status: models.InvitationPending,
	})
	svc := newTestInvitationService(repo, newFakeInvitationUsers(), nil)
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "tok-1", "admin-1"))
	assert.Contains(t, repo.revoked, "inv-1")

	err := svc.Revoke(ctx, "tok-1", "admin-1")
	require.Error(t, err, "a revoked invitation cannot be revoked twice")

	err = svc.Revoke(ctx, "tok-404", "admin-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInvitationInviteSurvivesDispatchFailure(t *testing.T) {
	repo := newFakeInvitationRepo()
	dispatcher := &fakeDispatcher{err: assert.AnError}
	svc := newTestInvitationService(repo, newFakeInvitationUsers(), dispatcher)

	inv, err := svc.Invite(context.Background(), InviteUserRequest{Email: "robust@seventic.fr", Role: models.RoleSDR}, "admin-1")
	require.NoError(t, err, "a mail queue hiccup must not lose the invitation")
	assert.Equal(t, models.InvitationPending, inv.Status)
}
