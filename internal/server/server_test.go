package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"savings-client/internal/bootstrap"
	"savings-client/internal/config"
	"savings-client/internal/dto"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/pkg/serverutils"
	"savings-client/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "test"},
		DevAPI: config.DevAPIConfig{
			Port:               "0",
			JWTSecret:          "test-secret",
			CorsAllowedOrigins: "http://localhost:5173",
		},
	}
}

func newTestServer(t *testing.T) (*fiber.App, *bootstrap.DevAPIContainer) {
	t.Helper()
	cfg := testConfig()
	container, err := bootstrap.NewDevAPIContainer(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	return New(cfg, container, logger.NewNopLogger()).GetApp(), container
}

func call[T any](t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, serverutils.BaseResponse[T]) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result serverutils.BaseResponse[T]
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

func loginAs(t *testing.T, app *fiber.App, login, password string, remember bool) dto.LoginResponse {
	t.Helper()
	status, res := call[dto.LoginResponse](t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{
		Login:      login,
		Password:   password,
		RememberMe: remember,
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
	return res.Data
}

func TestLogin(t *testing.T) {
	app, _ := newTestServer(t)

	t.Run("by username", func(t *testing.T) {
		res := loginAs(t, app, "saver", "hunter22", false)
		assert.NotEmpty(t, res.AccessToken)
		assert.Empty(t, res.RefreshToken)
		assert.Equal(t, "saver@example.com", res.User.Email)
		assert.False(t, res.User.IsAdmin)
	})

	t.Run("by email with remember me", func(t *testing.T) {
		res := loginAs(t, app, "SAVER@example.com", "hunter22", true)
		assert.NotEmpty(t, res.RefreshToken)
	})

	t.Run("admin flag", func(t *testing.T) {
		res := loginAs(t, app, "admin", "admin1234", false)
		assert.True(t, res.User.IsAdmin)
	})

	t.Run("wrong password", func(t *testing.T) {
		status, res := call[dto.LoginResponse](t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Login: "saver", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, res.Success)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		status, _ := call[dto.LoginResponse](t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Login: "saver"})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestAuthCheck(t *testing.T) {
	app, _ := newTestServer(t)
	token := loginAs(t, app, "saver", "hunter22", false).AccessToken

	status, res := call[dto.AuthCheckResponse](t, app, http.MethodGet, "/api/auth/check", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.Data.IsAuthenticated)
	require.NotNil(t, res.Data.User)
	assert.Equal(t, "saver", res.Data.User.Username)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := call[dto.AuthCheckResponse](t, app, http.MethodGet, "/api/auth/check", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.False(t, res.Success)
		})
	}
}

func TestRegister(t *testing.T) {
	app, _ := newTestServer(t)

	req := dto.RegisterRequest{
		FullName: "Nadia Putri",
		Username: "nadia",
		Email:    "nadia@example.com",
		Password: "tabungan123",
	}
	status, res := call[dto.RegisterResponse](t, app, http.MethodPost, "/api/auth/register", "", req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "nadia", res.Data.User.Username)

	status, _ = call[dto.RegisterResponse](t, app, http.MethodPost, "/api/auth/register", "", req)
	assert.Equal(t, http.StatusConflict, status)

	req.Email, req.Username, req.Password = "other@example.com", "other", "short"
	status, _ = call[dto.RegisterResponse](t, app, http.MethodPost, "/api/auth/register", "", req)
	assert.Equal(t, http.StatusBadRequest, status)

	loginAs(t, app, "nadia", "tabungan123", false)

	// admins hear about new members
	adminToken := loginAs(t, app, "admin", "admin1234", false).AccessToken
	_, list := call[dto.NotificationListResponse](t, app, http.MethodGet, "/api/notifications", adminToken, nil)
	require.Len(t, list.Data.Items, 1)
	assert.Equal(t, "USER_REGISTERED", list.Data.Items[0].Type)
	assert.Equal(t, "Nadia Putri just joined.", list.Data.Items[0].Message)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	app, container := newTestServer(t)
	res := loginAs(t, app, "saver", "hunter22", true)

	status, _ := call[any](t, app, http.MethodPost, "/api/auth/logout", "", dto.LogoutRequest{RefreshToken: res.RefreshToken})
	assert.Equal(t, http.StatusOK, status)

	// the second revocation finds nothing, the endpoint still succeeds
	assert.ErrorIs(t, container.AuthService.Logout(context.Background(), res.RefreshToken), contract.ErrNotFound)
	status, _ = call[any](t, app, http.MethodPost, "/api/auth/logout", "", dto.LogoutRequest{RefreshToken: res.RefreshToken})
	assert.Equal(t, http.StatusOK, status)
}

func TestNotificationLifecycle(t *testing.T) {
	app, _ := newTestServer(t)
	token := loginAs(t, app, "saver", "hunter22", false).AccessToken

	status, _ := call[any](t, app, http.MethodPost, "/api/debug/trigger-notification", token, dto.TriggerNotificationRequest{
		Type:    "CHALLENGE_COMPLETED",
		Payload: map[string]interface{}{"challenge_name": "No-Spend Week", "amount": 50000},
	})
	require.Equal(t, http.StatusOK, status)
	call[any](t, app, http.MethodPost, "/api/debug/trigger-notification", token, dto.TriggerNotificationRequest{})

	_, count := call[dto.UnreadCountResponse](t, app, http.MethodGet, "/api/notifications/unread-count", token, nil)
	assert.Equal(t, int64(2), count.Data.Count)

	_, list := call[dto.NotificationListResponse](t, app, http.MethodGet, "/api/notifications?limit=1&offset=1", token, nil)
	assert.Equal(t, int64(2), list.Data.Total)
	assert.Equal(t, 2, list.Data.Page)
	require.Len(t, list.Data.Items, 1)
	oldest := list.Data.Items[0]
	assert.Equal(t, "Challenge completed", oldest.Title)
	assert.Equal(t, "You completed No-Spend Week and saved 50000.", oldest.Message)

	status, _ = call[any](t, app, http.MethodPatch, "/api/notifications/"+oldest.ID+"/read", token, nil)
	require.Equal(t, http.StatusOK, status)
	_, count = call[dto.UnreadCountResponse](t, app, http.MethodGet, "/api/notifications/unread-count", token, nil)
	assert.Equal(t, int64(1), count.Data.Count)

	// another user's token cannot touch it
	adminToken := loginAs(t, app, "admin", "admin1234", false).AccessToken
	status, _ = call[any](t, app, http.MethodPatch, "/api/notifications/"+oldest.ID+"/read", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call[any](t, app, http.MethodPatch, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, status)
	_, count = call[dto.UnreadCountResponse](t, app, http.MethodGet, "/api/notifications/unread-count", token, nil)
	assert.Equal(t, int64(0), count.Data.Count)
}

func TestBroadcastIsAdminOnly(t *testing.T) {
	app, _ := newTestServer(t)
	userToken := loginAs(t, app, "saver", "hunter22", false).AccessToken
	adminToken := loginAs(t, app, "admin", "admin1234", false).AccessToken

	body := dto.BroadcastRequest{Title: "Maintenance", Message: "Back in 10 minutes"}

	status, _ := call[any](t, app, http.MethodPost, "/api/notifications/broadcast", userToken, body)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call[any](t, app, http.MethodPost, "/api/notifications/broadcast", adminToken, dto.BroadcastRequest{Title: "Maintenance"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call[any](t, app, http.MethodPost, "/api/notifications/broadcast", adminToken, body)
	require.Equal(t, http.StatusOK, status)

	for _, token := range []string{userToken, adminToken} {
		_, list := call[dto.NotificationListResponse](t, app, http.MethodGet, "/api/notifications", token, nil)
		require.Len(t, list.Data.Items, 1)
		assert.Equal(t, "Maintenance", list.Data.Items[0].Title)
		assert.Equal(t, "Back in 10 minutes", list.Data.Items[0].Message)
	}
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	app, _ := newTestServer(t)

	status, _ := call[any](t, app, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call[any](t, app, http.MethodGet, "/api/ws?token=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
