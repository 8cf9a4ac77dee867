package events

import (
	"time"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// EventType enumerates session lifecycle events.
type EventType string

const (
	EventSessionEstablished   EventType = "session_established"
	EventSessionCleared       EventType = "session_cleared"
	EventSubscriptionsUpdated EventType = "subscriptions_updated"
)

// Event is emitted by a session store whenever its state changes.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	ClientID   string      `json:"client_id"`
	UserID     string      `json:"user_id,omitempty"`
	Generation uint64      `json:"generation"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// SessionEstablishedPayload payload.
type SessionEstablishedPayload struct {
	Role domain.Role     `json:"role"`
	Tier domain.PlanTier `json:"tier"`
}

// SubscriptionsUpdatedPayload payload.
type SubscriptionsUpdatedPayload struct {
	Count int             `json:"count"`
	Tier  domain.PlanTier `json:"tier"`
}
