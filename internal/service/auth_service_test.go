package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type fakeAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	created          []*models.User
	lastLoginUpdated bool
	revokedAllFor    []string
}

func newFakeAuthRepo(users ...*models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
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
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	f.lastLoginUpdated = true
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	f.users[id].PasswordHash = passwordHash
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	f.revokedAllFor = append(f.revokedAllFor, userID)
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := f.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeAuthRepo) Create(_ context.Context, user *models.User) error {
	f.created = append(f.created, user)
	f.users[user.ID] = user
	return nil
}

var testAuthConfig = AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour, SingleSession: true}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{ID: "u1", Email: "enfermera@uni.test", PasswordHash: hashed(t, "password1"), Active: true, Role: models.RoleNurse})
	audit := &memoryAudit{}
	svc := NewAuthService(repo, audit, validator.New(), zap.NewNop(), testAuthConfig)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "enfermera@uni.test", Password: "password1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleNurse, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)
	assert.Equal(t, "10.0.0.1", audit.logs[0].IPAddress)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := newFakeAuthRepo(
		&models.User{ID: "u1", Email: "activa@uni.test", PasswordHash: hashed(t, "password1"), Active: true},
		&models.User{ID: "u2", Email: "inactiva@uni.test", PasswordHash: hashed(t, "password1")},
	)
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "activa@uni.test", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nadie@uni.test", Password: "password1"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "inactiva@uni.test", Password: "password1"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "enfermera@uni.test", Active: true, Role: models.RoleNurse}
	repo := newFakeAuthRepo(user)
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{ID: "u1", Active: true})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, &memoryAudit{}, validator.New(), zap.NewNop(), testAuthConfig)

	err := svc.Logout(context.Background(), "token", "u2", models.LoginRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), "token", "u1", models.LoginRequest{}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "oldpassword")
	repo := newFakeAuthRepo(&models.User{ID: "u1", PasswordHash: oldHash, Active: true})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword", ConfirmPassword: "different"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "short", ConfirmPassword: "short"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword", ConfirmPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.users["u1"].PasswordHash)
}

func TestAuthServiceEnsureAdmin(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "", ""))
	assert.Empty(t, repo.created)

	require.Error(t, svc.EnsureAdmin(context.Background(), "admin@uni.test", "short"))

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@uni.test", "supersecret"))
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@uni.test", "supersecret"))
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleAdmin, repo.created[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("supersecret")))
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), nil, validator.New(), zap.NewNop(), testAuthConfig)
	user := &models.User{ID: "u1", Email: "enfermera@uni.test", Role: models.RoleNurse}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleNurse, claims.Role)

	_, err = svc.ValidateToken(token + "x")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
