package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/guard"
)

type decisionCounter map[string]int

func (d decisionCounter) RecordDecision(action, reason string) {
	d[action+"/"+reason]++
}

func newGuardedApp(t *testing.T) (*fiber.App, *TokenManager, decisionCounter) {
	t.Helper()
	tm := NewTokenManager("secret", 10)
	cookies := config.CookieConfig{Session: "session-token", Admin: "admin-token"}
	g := guard.New(guard.Options{
		Table:         guard.DefaultRouteTable(config.DefaultRoutes()),
		SessionCookie: cookies.Session,
		AdminCookie:   cookies.Admin,
	}, tm)
	counter := decisionCounter{}
	mw := NewGuardMiddleware(g, cookies, zap.NewNop(), counter)

	app := fiber.New()
	app.Get("/*", mw.Handle, func(c *fiber.Ctx) error {
		d, ok := DecisionFromContext(c)
		require.True(t, ok)
		return c.SendString("page " + string(d.Role))
	})
	return app, tm, counter
}

func doRequest(t *testing.T, app *fiber.App, path string, cookies map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestGuardMiddlewareRedirectsAnonymousDashboard(t *testing.T) {
	app, _, counter := newGuardedApp(t)

	resp := doRequest(t, app, "/dashboard", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, 1, counter["redirect/session_missing"])
}

func TestGuardMiddlewareAllowsVerifiedRole(t *testing.T) {
	app, tm, _ := newGuardedApp(t)
	token, _, err := tm.GenerateToken("coach-1", domain.RoleAstromegistusCoach)
	require.NoError(t, err)

	resp := doRequest(t, app, "/dashboard/astromegistus/schedule", map[string]string{"session-token": token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, "/products/purchase/reading-1", map[string]string{"session-token": token})
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestGuardMiddlewareExpiresInvalidSessionCookie(t *testing.T) {
	app, _, _ := newGuardedApp(t)

	resp := doRequest(t, app, "/dashboard", map[string]string{"session-token": "garbage"})
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	var cleared bool
	for _, header := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(header, "session-token=;") {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie must be expired")
}

func TestGuardMiddlewareAdminPresenceOnly(t *testing.T) {
	app, _, _ := newGuardedApp(t)

	resp := doRequest(t, app, "/admin/bookings", nil)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))

	resp = doRequest(t, app, "/admin/bookings", map[string]string{"admin-token": "opaque"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuardMiddlewareRejectsDotSegmentBypass(t *testing.T) {
	app, _, _ := newGuardedApp(t)

	for target, location := range map[string]string{
		"/products/../dashboard":        "/login",
		"/products/%2e%2e/admin/users":  "/admin/login",
		"/coaching/%2E%2E/dashboard/x/": "/login",
	} {
		resp := doRequest(t, app, target, nil)
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode, target)
		assert.Equal(t, location, resp.Header.Get("Location"), target)
	}
}
