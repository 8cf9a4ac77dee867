package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/astro-gateway/internal/events"
)

// ClientSession bundles the in-memory state owned by one browser client.
type ClientSession struct {
	ID    string
	Store *Store
	Cache *QueryCache
}

// Registry hands out ClientSessions keyed by client id. Idle clients expire
// after ttl and the least recently used ones are dropped beyond size.
type Registry struct {
	mu         sync.Mutex
	clients    *expirable.LRU[string, *ClientSession]
	dispatcher events.Dispatcher
	cacheSize  int

	evictMu sync.RWMutex
	onEvict []func(clientID string)
}

// NewRegistry builds a registry.
func NewRegistry(size, cacheSize int, ttl time.Duration, dispatcher events.Dispatcher) *Registry {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{
		dispatcher: dispatcher,
		cacheSize:  cacheSize,
	}
	r.clients = expirable.NewLRU[string, *ClientSession](size, r.evicted, ttl)
	return r
}

// OnEvict registers fn to run when a client expires or is pushed out, so
// state kept outside the registry can be released with it.
func (r *Registry) OnEvict(fn func(clientID string)) {
	r.evictMu.Lock()
	defer r.evictMu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// evicted runs inside the LRU's lock; hooks must not call back into the registry.
func (r *Registry) evicted(clientID string, _ *ClientSession) {
	r.evictMu.RLock()
	hooks := append([]func(string){}, r.onEvict...)
	r.evictMu.RUnlock()
	for _, fn := range hooks {
		fn(clientID)
	}
}

// NewClientID returns a fresh client identifier.
func NewClientID() string {
	return uuid.NewString()
}

// Get returns the session for clientID, creating it on first use.
func (r *Registry) Get(clientID string) *ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.clients.Get(clientID); ok {
		return cs
	}
	cs := &ClientSession{
		ID:    clientID,
		Store: NewStore(clientID, r.dispatcher),
		Cache: NewQueryCache(r.cacheSize, 0),
	}
	r.clients.Add(clientID, cs)
	return cs
}

// Peek returns the session for clientID without creating one.
func (r *Registry) Peek(clientID string) (*ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients.Peek(clientID)
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	return r.clients.Len()
}
