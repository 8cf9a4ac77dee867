package domain

// Visibility classifies a route prefix.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// RouteRule is a persisted guard rule. A PUBLIC rule only extends the allow-list;
// a PRIVATE rule restricts Prefix to AllowedRoles. Priority orders rules
// sharing a prefix, lowest first.
type RouteRule struct {
	ID            string
	Prefix        string
	Visibility    Visibility
	AllowedRoles  []Role
	RoleRedirects map[Role]string
	Fallback      string
	Priority      int
}
