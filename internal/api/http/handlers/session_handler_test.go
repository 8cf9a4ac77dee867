package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/astro-gateway/internal/backend"
	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/session"
	apperrors "github.com/spec-kit/astro-gateway/pkg/util/errorutil"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyToken(ctx context.Context, token string) backend.Result {
	args := m.Called(ctx, token)
	return args.Get(0).(backend.Result)
}

type envelope struct {
	Data struct {
		Status        string          `json:"status"`
		Authenticated bool            `json:"authenticated"`
		User          *domain.User    `json:"user"`
		Tier          domain.PlanTier `json:"tier"`
		Redirect      string          `json:"redirect"`
	} `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// renderErrors mirrors the gateway's error middleware closely enough for handler tests.
func renderErrors(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	body := fiber.Map{"code": domainErr.Code, "message": domainErr.Message}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

type sessionFixture struct {
	app      *fiber.App
	verifier *MockVerifier
	registry *session.Registry
	local    *session.MemoryLocalStoreSet
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		verifier: &MockVerifier{},
		registry: session.NewRegistry(8, 4, time.Hour, nil),
		local:    session.NewMemoryLocalStoreSet(),
	}
	h := NewSessionHandler(SessionDependencies{
		Registry:  f.registry,
		Verifier:  f.verifier,
		Local:     f.local.For,
		Cookies:   config.CookieConfig{Session: "session-token", Admin: "admin-token", ClientID: "client-id"},
		ClientTTL: time.Hour,
		LoginPath: "/login",
	})

	f.app = fiber.New(fiber.Config{ErrorHandler: renderErrors})
	f.app.Get("/api/session", h.Get)
	f.app.Post("/api/session/sync", h.Sync)
	f.app.Put("/api/session/subscriptions", h.UpdateSubscriptions)
	f.app.Post("/api/session/logout", h.Logout)
	return f
}

func (f *sessionFixture) do(t *testing.T, method, path string, body io.Reader, cookies map[string]string) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func cookieValue(resp *http.Response, name string) (string, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func premierUser(id string) *domain.User {
	return &domain.User{
		ID:    id,
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  domain.RolePaid,
		Subscriptions: []domain.Subscription{
			{Plan: domain.Plan{Name: "Premier"}},
		},
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newSessionFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "tok").Return(backend.Ok(premierUser("alice"))).Once()

	resp, env := f.do(t, http.MethodPost, "/api/session/sync", nil, map[string]string{"session-token": "tok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "verified", env.Data.Status)
	assert.True(t, env.Data.Authenticated)
	assert.Equal(t, domain.PlanTierPremier, env.Data.Tier)
	clientID, ok := cookieValue(resp, "client-id")
	require.True(t, ok, "a client id cookie is issued")

	cookies := map[string]string{"session-token": "tok", "client-id": clientID}
	_, env = f.do(t, http.MethodPost, "/api/session/sync", nil, cookies)
	assert.Equal(t, "cached", env.Data.Status)
	f.verifier.AssertNumberOfCalls(t, "VerifyToken", 1)

	_, env = f.do(t, http.MethodGet, "/api/session", nil, cookies)
	assert.True(t, env.Data.Authenticated)
	assert.Equal(t, "alice", env.Data.User.ID)

	body := bytes.NewBufferString(`{"subscriptions":[{"plan":{"name":"classic"}}]}`)
	resp, env = f.do(t, http.MethodPut, "/api/session/subscriptions", body, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.PlanTierClassic, env.Data.Tier)
	require.Len(t, env.Data.User.Subscriptions, 1)

	_, env = f.do(t, http.MethodPost, "/api/session/sync", nil, cookies)
	assert.Equal(t, "cached", env.Data.Status)
	assert.Equal(t, domain.PlanTierClassic, env.Data.Tier, "a later sync keeps the updated plan")

	resp, env = f.do(t, http.MethodPost, "/api/session/logout", nil, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", env.Data.Redirect)
	v, ok := cookieValue(resp, "session-token")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, env = f.do(t, http.MethodGet, "/api/session", nil, map[string]string{"client-id": clientID})
	assert.False(t, env.Data.Authenticated)
	assert.Equal(t, domain.PlanTierGuest, env.Data.Tier)
}

func TestSessionSyncEvictsOnFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.verifier.On("VerifyToken", mock.Anything, "expired").
		Return(backend.Fail(backend.KindUnauthorized, http.StatusUnauthorized, errors.New("jwt expired"))).Once()

	resp, env := f.do(t, http.MethodPost, "/api/session/sync", nil, map[string]string{"session-token": "expired"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	assert.Equal(t, "/login", env.Error.Details["redirect"])

	var cleared bool
	for _, header := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(header, "session-token=;") {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestSessionSyncWithoutCookieIsIdle(t *testing.T) {
	f := newSessionFixture(t)

	resp, env := f.do(t, http.MethodPost, "/api/session/sync", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", env.Data.Status)
	assert.False(t, env.Data.Authenticated)
	f.verifier.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestSessionUpdateSubscriptionsRequiresUser(t *testing.T) {
	f := newSessionFixture(t)

	body := bytes.NewBufferString(`{"subscriptions":[]}`)
	resp, env := f.do(t, http.MethodPut, "/api/session/subscriptions", body, map[string]string{"client-id": session.NewClientID()})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", env.Error.Details["redirect"])

	resp, _ = f.do(t, http.MethodPut, "/api/session/subscriptions", bytes.NewBufferString("{"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionRejectsForgedClientID(t *testing.T) {
	f := newSessionFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/session/sync", nil, map[string]string{"client-id": "../../etc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued, ok := cookieValue(resp, "client-id")
	require.True(t, ok)
	assert.NotEqual(t, "../../etc", issued)
	assert.Equal(t, 1, f.registry.Len())
}
