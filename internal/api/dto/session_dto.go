package dto

import (
	"github.com/spec-kit/astro-gateway/internal/domain"
)

// SessionResponse describes a client's session state.
type SessionResponse struct {
	Status        string          `json:"status,omitempty"`
	Authenticated bool            `json:"authenticated"`
	User          *domain.User    `json:"user,omitempty"`
	Tier          domain.PlanTier `json:"tier"`
	Redirect      string          `json:"redirect,omitempty"`
}

// SubscriptionsRequest replaces the subscriptions of the current user.
type SubscriptionsRequest struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
}

// LogoutResponse tells the client where to navigate after logout.
type LogoutResponse struct {
	Redirect string `json:"redirect"`
}
