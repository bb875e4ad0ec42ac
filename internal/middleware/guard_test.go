package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albumforge/backoffice/internal/auth"
)

const testSecret = "test-secret"

func newGuardEcho(t *testing.T, apiKey string) *echo.Echo {
	t.Helper()
	policy := auth.CookiePolicy{}
	guard := NewRouteGuard(testSecret, apiKey, policy, NewSessionCache(time.Minute, 64))

	e := echo.New()
	e.Pre(guard.Middleware())
	e.GET("/admin/login", func(c echo.Context) error { return c.String(http.StatusOK, "login") })
	e.GET("/admin/dashboard", func(c echo.Context) error { return c.String(http.StatusOK, "dashboard") })
	e.GET("/admin/boom", func(c echo.Context) error { panic("kaboom") })
	e.GET("/api/anything", func(c echo.Context) error { return c.String(http.StatusOK, "api") })
	e.GET("/error", func(c echo.Context) error { return c.String(http.StatusOK, "error page") })
	return e
}

func withSession(t *testing.T, req *http.Request) {
	t.Helper()
	tok, err := auth.NewAccessToken(testSecret, 42, "admin", 15)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tok.Token})
}

func TestGuard_AdminRootRedirectsToDashboard(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
}

func TestGuard_LoginRedirectsWhenAuthenticated(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	withSession(t, req)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
}

func TestGuard_LoginPassesWhenAnonymous(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login", rec.Body.String())
}

func TestGuard_DashboardRequiresSession(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestGuard_DashboardNoStoreWhenAuthenticated(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	withSession(t, req)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, no-cache, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestGuard_ExpiredTokenReadsAsAnonymous(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	tok, err := auth.NewAccessToken(testSecret, 42, "admin", -1)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tok.Token})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestGuard_APISecurityHeaders(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestGuard_InvalidAPIKeyRejected(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "correct-key")

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	req.Header.Set("x-api-key", "invalid")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid API key"}`, rec.Body.String())
}

func TestGuard_ValidAPIKeyAccepted(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "correct-key")

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	req.Header.Set("x-api-key", "correct-key")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_EmptyConfiguredKeyRejectsAll(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	req.Header.Set("x-api-key", "anything")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuard_SkipsStaticAssets(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "secret")

	// No redirect, no headers: the guard never touches framework assets.
	req := httptest.NewRequest(http.MethodGet, "/_next/static/chunk.js", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestGuard_PanicFailsClosed(t *testing.T) {
	t.Parallel()
	e := newGuardEcho(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/boom", nil)
	withSession(t, req)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/error", rec.Header().Get("Location"))
}

func TestGuard_ProbeCacheServesRepeatLookups(t *testing.T) {
	t.Parallel()

	policy := auth.CookiePolicy{}
	cache := NewSessionCache(time.Minute, 64)
	guard := NewRouteGuard(testSecret, "", policy, cache)

	e := echo.New()
	e.Pre(guard.Middleware())
	e.GET("/admin/dashboard", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	tok, err := auth.NewAccessToken(testSecret, 42, "admin", 15)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: tok.Token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, cache.Len(), "one cached probe entry for the token")
}
