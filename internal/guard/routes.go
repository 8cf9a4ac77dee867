package guard

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/spec-kit/astro-gateway/internal/config"
	"github.com/spec-kit/astro-gateway/internal/domain"
)

// RoleRule restricts a path prefix to a set of roles.
//
// A role in Allow passes. Any other role is redirected to Redirects[role]
// when present, otherwise to Fallback. ForcePrivate marks the prefix private
// even when a parent prefix is on the public allow-list.
type RoleRule struct {
	Prefix       string
	ForcePrivate bool
	Allow        []domain.Role
	Redirects    map[domain.Role]string
	Fallback     string
	// Priority breaks ties between rules of equal prefix length; lower wins.
	Priority int
}

func (r RoleRule) allows(role domain.Role) bool {
	for _, allowed := range r.Allow {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r RoleRule) redirectFor(role domain.Role) string {
	if loc, ok := r.Redirects[role]; ok && loc != "" {
		return loc
	}
	return r.Fallback
}

// RouteTable is the static configuration consulted by the guard.
type RouteTable struct {
	StaticPrefixes []string
	APIPrefix      string
	Public         []string
	AuthOnly       []string
	Home           string
	Login          string
	Dashboard      string
	AdminPrefix    string
	AdminLogin     string
	AdminHome      string
	Rules          []RoleRule
}

// DefaultRouteTable builds the table for the booking app: astrologer dashboard,
// generic dashboard and purchase flow rules on top of the public allow-list.
func DefaultRouteTable(cfg config.RoutesConfig) RouteTable {
	astrologers := []domain.Role{domain.RoleAstromegistus, domain.RoleAstromegistusCoach}
	customers := []domain.Role{domain.RoleGuest, domain.RolePaid}

	table := RouteTable{
		StaticPrefixes: append([]string(nil), cfg.StaticPrefixes...),
		APIPrefix:      cfg.APIPrefix,
		Public:         append([]string(nil), cfg.Public...),
		AuthOnly:       append([]string(nil), cfg.AuthOnly...),
		Home:           cfg.Home,
		Login:          cfg.Login,
		Dashboard:      cfg.Dashboard,
		AdminPrefix:    cfg.AdminPrefix,
		AdminLogin:     cfg.AdminLogin,
		AdminHome:      cfg.AdminHome,
		Rules: []RoleRule{
			{
				Prefix:   cfg.AstrologerDashboard,
				Allow:    astrologers,
				Fallback: cfg.Dashboard,
			},
			{
				Prefix: cfg.Dashboard,
				Allow:  customers,
				Redirects: map[domain.Role]string{
					domain.RoleAdmin:              cfg.AdminHome,
					domain.RoleAstromegistus:      cfg.AstrologerDashboard,
					domain.RoleAstromegistusCoach: cfg.AstrologerDashboard,
				},
				Fallback: cfg.AstrologerDashboard,
			},
			{
				Prefix:       cfg.PurchaseFlow,
				ForcePrivate: true,
				Allow:        customers,
				Fallback:     cfg.Home,
			},
		},
	}
	return table.normalized()
}

// Merge appends persisted rules. PUBLIC rules extend the allow-list and
// PRIVATE rules become role rules forced private. A persisted PRIVATE rule
// replaces a built-in rule with the same prefix; among persisted rules for
// one prefix the lowest Priority wins.
func (t RouteTable) Merge(extra []domain.RouteRule) RouteTable {
	if len(extra) == 0 {
		return t
	}
	ordered := append([]domain.RouteRule(nil), extra...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	out := t
	out.Public = append([]string(nil), t.Public...)
	out.AuthOnly = append([]string(nil), t.AuthOnly...)
	persisted := make(map[string]RoleRule)
	var order []string
	for _, rule := range ordered {
		prefix := normalizePath(rule.Prefix)
		if rule.Visibility == domain.VisibilityPublic {
			out.Public = append(out.Public, prefix)
			continue
		}
		if _, seen := persisted[prefix]; seen {
			continue
		}
		fallback := rule.Fallback
		if fallback == "" {
			fallback = t.Home
		}
		persisted[prefix] = RoleRule{
			Prefix:       prefix,
			ForcePrivate: true,
			Allow:        rule.AllowedRoles,
			Redirects:    rule.RoleRedirects,
			Fallback:     fallback,
			Priority:     rule.Priority,
		}
		order = append(order, prefix)
	}

	out.Rules = make([]RoleRule, 0, len(t.Rules)+len(order))
	for _, rule := range t.Rules {
		if _, overridden := persisted[normalizePath(rule.Prefix)]; !overridden {
			out.Rules = append(out.Rules, rule)
		}
	}
	for _, prefix := range order {
		out.Rules = append(out.Rules, persisted[prefix])
	}
	return out.normalized()
}

// normalized trims paths and orders rules longest prefix first, then by
// priority, so the most specific rule wins.
func (t RouteTable) normalized() RouteTable {
	for i, p := range t.Public {
		t.Public[i] = normalizePath(p)
	}
	for i, p := range t.AuthOnly {
		t.AuthOnly[i] = normalizePath(p)
	}
	for i := range t.Rules {
		t.Rules[i].Prefix = normalizePath(t.Rules[i].Prefix)
	}
	sort.SliceStable(t.Rules, func(i, j int) bool {
		li, lj := len(t.Rules[i].Prefix), len(t.Rules[j].Prefix)
		if li != lj {
			return li > lj
		}
		return t.Rules[i].Priority < t.Rules[j].Priority
	})
	return t
}

func (t RouteTable) isBypassed(p string) bool {
	for _, prefix := range t.StaticPrefixes {
		if hasPathPrefix(p, prefix) {
			return true
		}
	}
	if t.APIPrefix != "" && hasPathPrefix(p, t.APIPrefix) {
		return true
	}
	return hasFileExtension(p)
}

func (t RouteTable) isPublic(p string) bool {
	for _, rule := range t.Rules {
		if rule.ForcePrivate && hasPathPrefix(p, rule.Prefix) {
			return false
		}
	}
	for _, prefix := range t.Public {
		if hasPathPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (t RouteTable) isAuthOnly(p string) bool {
	for _, candidate := range t.AuthOnly {
		if p == candidate {
			return true
		}
	}
	return false
}

func (t RouteTable) isAdmin(p string) bool {
	return t.AdminPrefix != "" && hasPathPrefix(p, t.AdminPrefix) && p != t.AdminLogin
}

func (t RouteTable) ruleFor(p string) (RoleRule, bool) {
	for _, rule := range t.Rules {
		if hasPathPrefix(p, rule.Prefix) {
			return rule, true
		}
	}
	return RoleRule{}, false
}

// hasPathPrefix matches p equal to prefix or nested under it. "/" only matches itself.
func hasPathPrefix(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	if p == prefix {
		return true
	}
	if prefix == "/" {
		return false
	}
	return strings.HasPrefix(p, prefix+"/")
}

func hasFileExtension(p string) bool {
	return strings.Contains(path.Base(p), ".")
}

// normalizePath cleans a configured or request path: dot segments resolved,
// duplicate and trailing slashes dropped, always rooted.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// CanonicalPath percent-decodes a raw request path once and normalizes it.
// The guard classifies this form, so anything forwarded upstream must use it too.
func CanonicalPath(raw string) string {
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return normalizePath(raw)
}
