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
)

type fakeAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken

	revokedTokenIDs []string
	revokedUsers    []string
	auditActions    []string
	passwordHashes  map[string]string
	lastLogins      []string
}

func newFakeAuthRepo(users ...*models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{
		users:          make(map[string]*models.User),
		refreshTokens:  make(map[string]*models.RefreshToken),
		passwordHashes: make(map[string]string),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeAuthRepo) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	f.lastLogins = append(f.lastLogins, id)
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	f.passwordHashes[id] = hash
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	f.revokedTokenIDs = append(f.revokedTokenIDs, id)
	for _, t := range f.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.auditActions = append(f.auditActions, log.Action)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 72 * time.Hour,
		Issuer:             "seventic-ops",
	}
}

func activeUser(id, email, password string, role models.UserRole) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         role,
		Active:       true,
	}
}

func TestAuthLoginSuccess(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@seventic.fr", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), resp.ExpiresIn)
	assert.Equal(t, "u-1", resp.User.ID)
	assert.Equal(t, models.RoleSDR, resp.User.Role)

	assert.Contains(t, repo.auditActions, models.AuditActionLogin)
	assert.Contains(t, repo.lastLogins, "u-1")
	assert.Len(t, repo.refreshTokens, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleSDR, claims.Role)
	assert.Equal(t, "seventic-ops", claims.Issuer)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@seventic.fr", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmailLooksLikeBadCredentials(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@seventic.fr", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	user := activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR)
	user.Active = false
	svc := NewAuthService(newFakeAuthRepo(user), nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@seventic.fr", Password: "s3cretpass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "alice@seventic.fr", Password: "s3cretpass"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked; replaying it must fail.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshExpiredToken(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthLogout(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "alice@seventic.fr", Password: "s3cretpass"})
	require.NoError(t, err)

	err = svc.Logout(ctx, login.RefreshToken, "u-2", models.LoginRequest{})
	require.Error(t, err, "a token belonging to someone else cannot be revoked")

	err = svc.Logout(ctx, login.RefreshToken, "u-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Contains(t, repo.auditActions, models.AuditActionLogout)
	assert.Len(t, repo.revokedTokenIDs, 1)
}

func TestAuthChangePassword(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "oldpassword", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "u-1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpassword1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(ctx, "u-1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword1"})
	require.NoError(t, err)

	newHash, ok := repo.passwordHashes["u-1"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("newpassword1")))
	assert.Contains(t, repo.revokedUsers, "u-1", "sessions must not survive a password change")
	assert.Contains(t, repo.auditActions, models.AuditActionPasswordChange)
}

func TestAuthValidateTokenRejectsTampering(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleSDR))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "alice@seventic.fr", Password: "s3cretpass"})
	require.NoError(t, err)

	otherCfg := testAuthConfig()
	otherCfg.AccessTokenSecret = "different-secret"
	other := NewAuthService(repo, nil, zap.NewNop(), otherCfg)

	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)

	_, err = svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}

func TestAuthMe(t *testing.T) {
	repo := newFakeAuthRepo(activeUser("u-1", "alice@seventic.fr", "s3cretpass", models.RoleGrowth))
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	info, err := svc.Me(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@seventic.fr", info.Email)
	assert.Equal(t, models.RoleGrowth, info.Role)

	_, err = svc.Me(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
