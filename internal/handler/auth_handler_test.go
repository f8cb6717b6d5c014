package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enfermeria-api/internal/models"
	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type authServiceMock struct {
	login         models.LoginRequest
	revoked       string
	revokedBy     string
	passwordOwner string
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.login = req
	if req.Password != "correcta123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "a", RefreshToken: "r", User: models.UserInfo{ID: "u1", Role: models.RoleNurse}}, nil
}

func (m *authServiceMock) RefreshToken(_ context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "a2", RefreshToken: req.RefreshToken + "-next"}, nil
}

func (m *authServiceMock) Logout(_ context.Context, refreshToken, userID string, _ models.LoginRequest) error {
	m.revoked, m.revokedBy = refreshToken, userID
	return nil
}

func (m *authServiceMock) ChangePassword(_ context.Context, userID string, _ models.ChangePasswordRequest) error {
	m.passwordOwner = userID
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	mock := &authServiceMock{}
	h := NewAuthHandler(mock)

	body, _ := json.Marshal(map[string]string{"email": "enf@example.com", "password": "correcta123"})
	c, w := newGinContext(http.MethodPost, "/auth/login", body)
	c.Request.Header.Set("User-Agent", "tests")
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tests", mock.login.UserAgent)
	var session models.LoginResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &session))
	assert.Equal(t, models.RoleNurse, session.User.Role)
}

func TestAuthHandlerLoginRejected(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	body, _ := json.Marshal(map[string]string{"email": "enf@example.com", "password": "otra"})
	c, w := newGinContext(http.MethodPost, "/auth/login", body)
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginMalformed(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte("{"))
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogoutRequiresRefreshToken(t *testing.T) {
	mock := &authServiceMock{}
	h := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	withUser(c, "u1", models.RoleNurse)
	h.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"r1"}`))
	withUser(c, "u1", models.RoleNurse)
	h.Logout(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r1", mock.revoked)
	assert.Equal(t, "u1", mock.revokedBy)
}

func TestAuthHandlerChangePasswordNeedsClaims(t *testing.T) {
	mock := &authServiceMock{}
	h := NewAuthHandler(mock)
	body, _ := json.Marshal(models.ChangePasswordRequest{OldPassword: "a", NewPassword: "nuevaClave1", ConfirmPassword: "nuevaClave1"})

	c, w := newGinContext(http.MethodPost, "/auth/change-password", body)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/change-password", body)
	withUser(c, "u7", models.RoleReception)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u7", mock.passwordOwner)
}
