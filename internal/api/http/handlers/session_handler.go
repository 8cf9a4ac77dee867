package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/api/dto"
	"github.com/spec-kit/astro-gateway/internal/auth"
	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/session"
	apperrors "github.com/spec-kit/astro-gateway/pkg/util/errorutil"
)

// LocalStoreFactory returns the persisted key-value store of one client.
type LocalStoreFactory func(clientID string) session.LocalStore

// SessionDependencies groups what the session endpoints need.
type SessionDependencies struct {
	Registry  *session.Registry
	Verifier  session.Verifier
	Local     LocalStoreFactory
	Cookies   config.CookieConfig
	ClientTTL time.Duration
	LoginPath string
	Recorder  session.Recorder
	Logger    *zap.Logger
}

// SessionHandler exposes the session synchronizer and store over HTTP.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler constructs handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Local == nil {
		stores := session.NewMemoryLocalStoreSet()
		deps.Registry.OnEvict(stores.Drop)
		deps.Local = stores.For
	}
	return &SessionHandler{deps: deps}
}

// Sync handles POST /api/session/sync.
func (h *SessionHandler) Sync(c *fiber.Ctx) error {
	cs := h.client(c)
	nav := &navigation{}
	sync, err := h.synchronizer(c, cs, nav)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	out, err := sync.Sync(c.UserContext())
	if err != nil {
		h.deps.Logger.Warn("session sync storage error", zap.String("client_id", cs.ID), zap.Error(err))
	}
	if out.Status == session.SyncEvicted {
		return apperrors.NewUnauthorized("session verification failed", nav.location)
	}

	resp := h.state(c.UserContext(), cs)
	resp.Status = string(out.Status)
	return c.JSON(fiber.Map{"data": resp})
}

// Get handles GET /api/session.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	cs, ok := h.existingClient(c)
	if !ok {
		return c.JSON(fiber.Map{"data": dto.SessionResponse{Tier: domain.PlanTierGuest}})
	}
	return c.JSON(fiber.Map{"data": h.state(c.UserContext(), cs)})
}

// UpdateSubscriptions handles PUT /api/session/subscriptions.
//
// The body is the client's own view after a purchase and is not checked with
// the backend. The tier derived from it only drives the UI; the guard never
// reads it and authorizes from the signed session token alone. The next
// verification that misses the cache replaces it with the backend's view.
func (h *SessionHandler) UpdateSubscriptions(c *fiber.Ctx) error {
	var req dto.SubscriptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	ctx := c.UserContext()

	cs, ok := h.existingClient(c)
	if !ok || !cs.Store.UpdateUserSubscription(ctx, req.Subscriptions) {
		return apperrors.NewUnauthorized("no active session", h.deps.LoginPath)
	}

	// keep the cached verification in step so a later sync does not revert the update
	if snap := cs.Store.Snapshot(); snap.Token != "" {
		cs.Cache.Add(snap.Token, snap.User)
	}
	tier := session.DeriveTier(req.Subscriptions)
	if err := h.deps.Local(cs.ID).Set(ctx, session.TierKey, string(tier)); err != nil {
		h.deps.Logger.Warn("persist plan tier", zap.String("client_id", cs.ID), zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": h.state(ctx, cs)})
}

// Logout handles POST /api/session/logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	cs := h.client(c)
	nav := &navigation{}
	sync, err := h.synchronizer(c, cs, nav)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	out, err := sync.Logout(c.UserContext())
	if err != nil {
		h.deps.Logger.Warn("logout storage error", zap.String("client_id", cs.ID), zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": dto.LogoutResponse{Redirect: out.Redirect}})
}

func (h *SessionHandler) synchronizer(c *fiber.Ctx, cs *session.ClientSession, nav session.Navigator) (*session.Synchronizer, error) {
	return session.NewSynchronizer(session.Dependencies{
		Verifier:  h.deps.Verifier,
		Store:     cs.Store,
		Cookies:   newFiberCookies(c, h.deps.Cookies.Secure),
		Local:     h.deps.Local(cs.ID),
		Cache:     cs.Cache,
		Navigator: nav,
		Recorder:  h.deps.Recorder,
		Logger:    h.deps.Logger,
	}, h.deps.Cookies.Session, h.deps.LoginPath)
}

func (h *SessionHandler) state(ctx context.Context, cs *session.ClientSession) dto.SessionResponse {
	snap := cs.Store.Snapshot()
	resp := dto.SessionResponse{
		Authenticated: snap.Authenticated(),
		User:          snap.User,
		Tier:          domain.PlanTierGuest,
	}
	tier, ok, err := h.deps.Local(cs.ID).Get(ctx, session.TierKey)
	switch {
	case err != nil:
		h.deps.Logger.Warn("read plan tier", zap.String("client_id", cs.ID), zap.Error(err))
	case ok:
		resp.Tier = domain.PlanTier(tier)
	}
	return resp
}

// client returns the caller's session, issuing a client id cookie when the
// request carries none.
func (h *SessionHandler) client(c *fiber.Ctx) *session.ClientSession {
	id, ok := h.clientID(c)
	if !ok {
		id = session.NewClientID()
		c.Cookie(&fiber.Cookie{
			Name:     h.deps.Cookies.ClientID,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.deps.ClientTTL.Seconds()),
			Secure:   h.deps.Cookies.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return h.deps.Registry.Get(id)
}

func (h *SessionHandler) existingClient(c *fiber.Ctx) (*session.ClientSession, bool) {
	id, ok := h.clientID(c)
	if !ok {
		return nil, false
	}
	return h.deps.Registry.Peek(id)
}

func (h *SessionHandler) clientID(c *fiber.Ctx) (string, bool) {
	raw := c.Cookies(h.deps.Cookies.ClientID)
	if raw == "" {
		return "", false
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}

// fiberCookies exposes request cookies to the synchronizer. Deleted cookies
// are expired on the response and hidden from later reads.
type fiberCookies struct {
	c       *fiber.Ctx
	secure  bool
	deleted map[string]struct{}
}

func newFiberCookies(c *fiber.Ctx, secure bool) *fiberCookies {
	return &fiberCookies{c: c, secure: secure, deleted: map[string]struct{}{}}
}

func (f *fiberCookies) Get(name string) (string, bool) {
	if _, gone := f.deleted[name]; gone {
		return "", false
	}
	v := f.c.Cookies(name)
	return v, v != ""
}

func (f *fiberCookies) Delete(name string) {
	f.deleted[name] = struct{}{}
	auth.ExpireCookie(f.c, name, f.secure)
}

// navigation captures where the synchronizer sent the client.
type navigation struct {
	location string
}

func (n *navigation) Navigate(path string) {
	n.location = path
}

var _ session.Navigator = (*navigation)(nil)
