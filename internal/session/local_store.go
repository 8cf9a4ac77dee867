package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocalStore keeps a client's local values in Redis under
// <prefix>:client:<clientID>:<key> so other gateway instances can read them.
// Values expire after ttl, which should match the client id lifetime.
type RedisLocalStore struct {
	client   redis.Cmdable
	prefix   string
	clientID string
	ttl      time.Duration
}

// NewRedisLocalStore scopes a store to one client. A ttl of zero keeps
// values until deleted.
func NewRedisLocalStore(client redis.Cmdable, prefix, clientID string, ttl time.Duration) *RedisLocalStore {
	return &RedisLocalStore{client: client, prefix: prefix, clientID: clientID, ttl: ttl}
}

func (s *RedisLocalStore) key(k string) string {
	return fmt.Sprintf("%s:client:%s:%s", s.prefix, s.clientID, k)
}

// Set stores value, refreshing its expiry.
func (s *RedisLocalStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// Get returns the stored value and whether it exists.
func (s *RedisLocalStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *RedisLocalStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// MemoryLocalStore is an in-process LocalStore used when Redis is not configured.
type MemoryLocalStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryLocalStore creates an empty store.
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{values: make(map[string]string)}
}

func (s *MemoryLocalStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryLocalStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok, nil
}

func (s *MemoryLocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// MemoryLocalStoreSet hands out one MemoryLocalStore per client id.
type MemoryLocalStoreSet struct {
	mu     sync.Mutex
	stores map[string]*MemoryLocalStore
}

// NewMemoryLocalStoreSet creates an empty set.
func NewMemoryLocalStoreSet() *MemoryLocalStoreSet {
	return &MemoryLocalStoreSet{stores: make(map[string]*MemoryLocalStore)}
}

// For returns the store of clientID, creating it on first use.
func (s *MemoryLocalStoreSet) For(clientID string) LocalStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[clientID]
	if !ok {
		store = NewMemoryLocalStore()
		s.stores[clientID] = store
	}
	return store
}

// Drop forgets the store of clientID. Registry.OnEvict takes it directly.
func (s *MemoryLocalStoreSet) Drop(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, clientID)
}

// Len returns the number of clients holding a store.
func (s *MemoryLocalStoreSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}
