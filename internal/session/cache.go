package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// QueryCache remembers successful verifications per token so a mounted
// client does not re-verify on every call. A zero ttl never expires entries.
type QueryCache struct {
	lru *expirable.LRU[string, *domain.User]
}

// NewQueryCache builds a cache bounded to size entries.
func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = 16
	}
	return &QueryCache{lru: expirable.NewLRU[string, *domain.User](size, nil, ttl)}
}

// Get returns a copy of the cached user for token.
func (c *QueryCache) Get(token string) (*domain.User, bool) {
	user, ok := c.lru.Get(token)
	if !ok {
		return nil, false
	}
	return user.Clone(), true
}

// Add caches user under token.
func (c *QueryCache) Add(token string, user *domain.User) {
	c.lru.Add(token, user.Clone())
}

// Purge drops every cached result.
func (c *QueryCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached results.
func (c *QueryCache) Len() int {
	return c.lru.Len()
}
