package session

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/events"
)

// State is a point-in-time copy of a Store.
type State struct {
	User       *domain.User
	Token      string
	Generation uint64
}

// Authenticated reports whether a user is held.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Store holds the current user and token for one client. Every mutation
// bumps the generation so late verification results can detect that the
// state moved on underneath them.
type Store struct {
	clientID   string
	dispatcher events.Dispatcher

	mu         sync.RWMutex
	user       *domain.User
	token      string
	generation uint64
}

// NewStore creates an empty store. dispatcher may be nil.
func NewStore(clientID string, dispatcher events.Dispatcher) *Store {
	return &Store{clientID: clientID, dispatcher: dispatcher}
}

// ClientID returns the owning client's id.
func (s *Store) ClientID() string {
	return s.clientID
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{User: s.user.Clone(), Token: s.token, Generation: s.generation}
}

// Generation returns the mutation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SetCurrentUser replaces the held user and token wholesale.
func (s *Store) SetCurrentUser(ctx context.Context, user *domain.User, token string) {
	s.mu.Lock()
	evt, changed := s.setLocked(user, token)
	s.mu.Unlock()
	if changed {
		s.publish(ctx, evt)
	}
}

// SetIfGeneration sets the user only when no mutation happened since gen was
// read. It reports the generation holding user and token, and whether the
// set took place.
func (s *Store) SetIfGeneration(ctx context.Context, gen uint64, user *domain.User, token string) (uint64, bool) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return 0, false
	}
	evt, changed := s.setLocked(user, token)
	applied := s.generation
	s.mu.Unlock()
	if changed {
		s.publish(ctx, evt)
	}
	return applied, true
}

// CommitIfGeneration runs fn under the store lock if the generation is still
// gen, and reports whether it ran. Side effects tied to a stored user go
// through here so a concurrent clear either waits for them or skips them.
// fn must not call back into the store.
func (s *Store) CommitIfGeneration(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	fn()
	return true
}

func (s *Store) setLocked(user *domain.User, token string) (events.Event, bool) {
	if user == nil {
		return s.clearLocked()
	}
	if s.token == token && reflect.DeepEqual(s.user, user) {
		return events.Event{}, false
	}
	s.user = user.Clone()
	s.token = token
	s.generation++
	return s.event(events.EventSessionEstablished, events.SessionEstablishedPayload{
		Role: s.user.Role,
		Tier: DeriveTier(s.user.Subscriptions),
	}), true
}

// ClearCurrentUser resets the store. The generation is bumped even when the
// store was already empty so in-flight verifications are invalidated.
func (s *Store) ClearCurrentUser(ctx context.Context) {
	s.mu.Lock()
	evt, changed := s.clearLocked()
	s.mu.Unlock()
	if changed {
		s.publish(ctx, evt)
	}
}

func (s *Store) clearLocked() (events.Event, bool) {
	s.generation++
	if s.user == nil && s.token == "" {
		return events.Event{}, false
	}
	var userID string
	if s.user != nil {
		userID = s.user.ID
	}
	s.user = nil
	s.token = ""
	evt := s.event(events.EventSessionCleared, nil)
	evt.UserID = userID
	return evt, true
}

// UpdateUserSubscription replaces the subscriptions of the held user. It is
// a no-op when no user is set.
func (s *Store) UpdateUserSubscription(ctx context.Context, subs []domain.Subscription) bool {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return false
	}
	next := make([]domain.Subscription, len(subs))
	copy(next, subs)
	s.user.Subscriptions = next
	s.generation++
	evt := s.event(events.EventSubscriptionsUpdated, events.SubscriptionsUpdatedPayload{
		Count: len(next),
		Tier:  DeriveTier(next),
	})
	s.mu.Unlock()
	s.publish(ctx, evt)
	return true
}

// event must be called with mu held.
func (s *Store) event(t events.EventType, payload interface{}) events.Event {
	evt := events.Event{
		ID:         uuid.NewString(),
		Type:       t,
		ClientID:   s.clientID,
		Generation: s.generation,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
	if s.user != nil {
		evt.UserID = s.user.ID
	}
	return evt
}

func (s *Store) publish(ctx context.Context, evt events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, evt)
}
