package domain

import "strings"

// Role enumerates the identities carried in the session token's role claim.
type Role string

const (
	RoleGuest              Role = "GUEST"
	RolePaid               Role = "PAID"
	RoleAstromegistus      Role = "ASTROMEGISTUS"
	RoleAstromegistusCoach Role = "ASTROMEGISTUS_COACH"
	RoleAdmin              Role = "ADMIN"
)

var knownRoles = map[Role]struct{}{
	RoleGuest:              {},
	RolePaid:               {},
	RoleAstromegistus:      {},
	RoleAstromegistusCoach: {},
	RoleAdmin:              {},
}

// ParseRole normalises a raw claim. Unknown or empty values fall back to RoleGuest.
func ParseRole(raw string) Role {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownRoles[role]; !ok {
		return RoleGuest
	}
	return role
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// IsAstrologer reports whether r may reach the astrologer dashboard.
func (r Role) IsAstrologer() bool {
	return r == RoleAstromegistus || r == RoleAstromegistusCoach
}

// PlanTier is the client-side subscription level used for UI gating.
type PlanTier string

const (
	PlanTierGuest   PlanTier = "GUEST"
	PlanTierClassic PlanTier = "CLASSIC"
	PlanTierPremier PlanTier = "PREMIER"
)
