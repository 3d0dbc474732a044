package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmtrace/internal/auth"
	"farmtrace/internal/config"
	"farmtrace/internal/handler"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/service"
)

type stubAuthService struct {
	service.AuthService
	revoked bool
}

func (s stubAuthService) IsRevoked(context.Context, string) bool {
	return s.revoked
}

func newTestServer(t *testing.T, revoked bool) (*echo.Echo, *auth.JWTService) {
	t.Helper()
	e := echo.New()
	jwtService := auth.NewJWTService("router-secret")
	cfg := &config.Config{Admin: config.Admin{APIKey: "admin-key"}}

	Register(e, cfg, logger.Nop(), jwtService, stubAuthService{revoked: revoked}, Handlers{
		Auth:    handler.NewAuthHandler(nil, nil),
		User:    handler.NewUserHandler(nil),
		Admin:   handler.NewAdminHandler(nil),
		Batch:   handler.NewBatchHandler(nil),
		Handoff: handler.NewHandoffHandler(nil),
		Health:  handler.NewHealthHandler(nil),
	})
	return e, jwtService
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, jwtService *auth.JWTService) string {
	t.Helper()
	_, token, err := jwtService.GenerateAccessToken(uuid.New(), string(model.RoleFarmer))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Healthz(t *testing.T) {
	e, _ := newTestServer(t, false)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouter_SecuredRoutesRequireToken(t *testing.T) {
	e, _ := newTestServer(t, false)

	for _, path := range []string{"/api/me", "/api/users", "/api/batches"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_ForeignTokenRejected(t *testing.T) {
	e, _ := newTestServer(t, false)
	other := auth.NewJWTService("another-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/users/"+uuid.NewString(), nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, other))
	rec := serve(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ValidTokenReachesHandler(t *testing.T) {
	e, jwtService := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/users/not-a-uuid", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, jwtService))
	rec := serve(e, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_UUID")
}

func TestRouter_RefreshTokenIsNotABearerToken(t *testing.T) {
	e, jwtService := newTestServer(t, false)
	_, refresh, err := jwtService.GenerateRefreshToken(uuid.New(), string(model.RoleFarmer))
	require.NoError(t, err)

	for _, path := range []string{"/api/me", "/api/users/not-a-uuid"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+refresh)
		rec := serve(e, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED", path)
	}
}

func TestRouter_RevokedTokenRejected(t *testing.T) {
	e, jwtService := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/users/not-a-uuid", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, jwtService))
	rec := serve(e, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token revoked")
}

func TestRouter_AdminKey(t *testing.T) {
	e, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/not-a-uuid/verify", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/users/not-a-uuid/verify", nil)
	req.Header.Set(AdminKeyHeader, "admin-key")
	assert.Equal(t, http.StatusBadRequest, serve(e, req).Code)
}

func TestRouter_PublicTraceNeedsNoToken(t *testing.T) {
	e, _ := newTestServer(t, false)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/trace/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
