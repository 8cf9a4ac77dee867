package session

import (
	"strings"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// TierKey is the client-local key holding the derived plan tier.
const TierKey = "role"

// DeriveTier maps the first subscription's plan name to a plan tier.
// Anything unrecognised is GUEST.
func DeriveTier(subs []domain.Subscription) domain.PlanTier {
	if len(subs) == 0 {
		return domain.PlanTierGuest
	}
	switch domain.PlanTier(strings.ToUpper(strings.TrimSpace(subs[0].Plan.Name))) {
	case domain.PlanTierPremier:
		return domain.PlanTierPremier
	case domain.PlanTierClassic:
		return domain.PlanTierClassic
	}
	return domain.PlanTierGuest
}
