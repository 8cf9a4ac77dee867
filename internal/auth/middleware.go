package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/guard"
)

const decisionKey = "guard_decision"

// DecisionRecorder counts guard decisions.
type DecisionRecorder interface {
	RecordDecision(action, reason string)
}

// GuardMiddleware runs the route guard in front of page requests.
type GuardMiddleware struct {
	guard    *guard.Guard
	cookies  config.CookieConfig
	logger   *zap.Logger
	recorder DecisionRecorder
}

// NewGuardMiddleware constructs middleware. recorder may be nil.
func NewGuardMiddleware(g *guard.Guard, cookies config.CookieConfig, logger *zap.Logger, recorder DecisionRecorder) *GuardMiddleware {
	return &GuardMiddleware{guard: g, cookies: cookies, logger: logger, recorder: recorder}
}

// Handle lets the request through or answers with a redirect, expiring any
// cookies the decision names.
func (m *GuardMiddleware) Handle(c *fiber.Ctx) error {
	decision := m.guard.Decide(c.UserContext(), guard.Request{
		Path:         c.Path(),
		SessionToken: c.Cookies(m.cookies.Session),
		AdminToken:   c.Cookies(m.cookies.Admin),
	})
	if m.recorder != nil {
		m.recorder.RecordDecision(decision.Action.String(), string(decision.Reason))
	}

	if decision.Allowed() {
		c.Locals(decisionKey, decision)
		return c.Next()
	}

	for _, name := range decision.DeleteCookies {
		ExpireCookie(c, name, m.cookies.Secure)
	}
	m.logger.Debug("guard redirect",
		zap.String("path", c.Path()),
		zap.String("location", decision.Location),
		zap.String("reason", string(decision.Reason)))
	return c.Redirect(decision.Location, fiber.StatusTemporaryRedirect)
}

// DecisionFromContext retrieves the decision that let the request through.
func DecisionFromContext(c *fiber.Ctx) (guard.Decision, bool) {
	val := c.Locals(decisionKey)
	if val == nil {
		return guard.Decision{}, false
	}
	decision, ok := val.(guard.Decision)
	return decision, ok
}

// ExpireCookie instructs the browser to drop cookie name.
func ExpireCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
