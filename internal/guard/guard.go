// Package guard decides, per navigation, whether a page request passes
// through or is redirected. Decide depends only on the path, the two cookies
// and the role decoded from the session cookie, so it can be exercised
// without a server.
package guard

import (
	"context"
	"fmt"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// TokenVerifier checks a token signature and returns the decoded role.
type TokenVerifier interface {
	VerifyRole(ctx context.Context, token string) (domain.Role, error)
}

// Action is the outcome kind of a guard decision.
type Action int

const (
	ActionAllow Action = iota
	ActionRedirect
	ActionBypass
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	case ActionBypass:
		return "bypass"
	}
	return "unknown"
}

// Reason explains which rule produced a decision. Used for logs and metrics labels.
type Reason string

const (
	ReasonStatic          Reason = "static"
	ReasonAdminMissing    Reason = "admin_token_missing"
	ReasonAdminInvalid    Reason = "admin_token_invalid"
	ReasonAdmin           Reason = "admin"
	ReasonSessionMissing  Reason = "session_missing"
	ReasonSessionInvalid  Reason = "session_invalid"
	ReasonRoleMismatch    Reason = "role_mismatch"
	ReasonAlreadySignedIn Reason = "already_signed_in"
	ReasonAdminSignedIn   Reason = "admin_signed_in"
	ReasonPublic          Reason = "public"
	ReasonAuthorized      Reason = "authorized"
)

// Request is the guard's view of an incoming navigation. Empty tokens mean
// the cookie is absent.
type Request struct {
	Path         string
	SessionToken string
	AdminToken   string
}

// Decision is the result of evaluating a Request.
type Decision struct {
	Action        Action
	Location      string
	DeleteCookies []string
	Reason        Reason
	// Role is set when the session token was verified.
	Role domain.Role
	// Path is the canonical path the decision was made for.
	Path string
}

// Allowed reports whether the request may continue to the page.
func (d Decision) Allowed() bool {
	return d.Action != ActionRedirect
}

// Options configures a Guard.
type Options struct {
	Table         RouteTable
	SessionCookie string
	AdminCookie   string
	// VerifyAdmin requires the admin cookie to carry a valid ADMIN token
	// instead of only being present.
	VerifyAdmin bool
}

// Guard evaluates requests against a route table.
type Guard struct {
	table         RouteTable
	verifier      TokenVerifier
	sessionCookie string
	adminCookie   string
	verifyAdmin   bool
}

// New constructs a guard.
func New(opts Options, verifier TokenVerifier) *Guard {
	return &Guard{
		table:         opts.Table,
		verifier:      verifier,
		sessionCookie: opts.SessionCookie,
		adminCookie:   opts.AdminCookie,
		verifyAdmin:   opts.VerifyAdmin,
	}
}

// Table returns the route table in use.
func (g *Guard) Table() RouteTable {
	return g.table
}

// Decide applies the guard rules in order; the first matching rule wins.
// Rules see the canonical path, so dot segments and encoded dots cannot
// smuggle a private path under a public prefix.
func (g *Guard) Decide(ctx context.Context, req Request) Decision {
	p := CanonicalPath(req.Path)
	d := g.decide(ctx, p, req)
	d.Path = p
	return d
}

func (g *Guard) decide(ctx context.Context, p string, req Request) Decision {
	t := g.table

	if t.isBypassed(p) {
		return Decision{Action: ActionBypass, Reason: ReasonStatic}
	}

	public := t.isPublic(p)
	hasSession := req.SessionToken != ""
	hasAdmin := req.AdminToken != ""

	if t.isAdmin(p) {
		if !hasAdmin {
			return redirect(t.AdminLogin, ReasonAdminMissing)
		}
		if g.verifyAdmin {
			role, err := g.verify(ctx, req.AdminToken)
			if err != nil || role != domain.RoleAdmin {
				d := redirect(t.AdminLogin, ReasonAdminInvalid)
				d.DeleteCookies = []string{g.adminCookie}
				return d
			}
		}
		return Decision{Action: ActionAllow, Reason: ReasonAdmin}
	}

	if !public && !hasSession {
		return redirect(t.Login, ReasonSessionMissing)
	}

	var role domain.Role
	if hasSession && !public {
		var err error
		role, err = g.verify(ctx, req.SessionToken)
		if err != nil {
			d := redirect(t.Login, ReasonSessionInvalid)
			d.DeleteCookies = []string{g.sessionCookie}
			return d
		}
		if rule, ok := t.ruleFor(p); ok && !rule.allows(role) {
			d := redirect(rule.redirectFor(role), ReasonRoleMismatch)
			d.Role = role
			return d
		}
	}

	if hasSession && t.isAuthOnly(p) {
		return redirect(t.Dashboard, ReasonAlreadySignedIn)
	}

	if hasAdmin && p == t.Login {
		return redirect(t.AdminHome, ReasonAdminSignedIn)
	}

	if public {
		return Decision{Action: ActionAllow, Reason: ReasonPublic, Role: role}
	}
	return Decision{Action: ActionAllow, Reason: ReasonAuthorized, Role: role}
}

// verify converts verifier panics into errors so a broken token never
// surfaces as a server error.
func (g *Guard) verify(ctx context.Context, token string) (role domain.Role, err error) {
	defer func() {
		if r := recover(); r != nil {
			role, err = "", fmt.Errorf("token verification panicked: %v", r)
		}
	}()
	if g.verifier == nil {
		return "", fmt.Errorf("no token verifier configured")
	}
	return g.verifier.VerifyRole(ctx, token)
}

func redirect(location string, reason Reason) Decision {
	return Decision{Action: ActionRedirect, Location: location, Reason: reason}
}
