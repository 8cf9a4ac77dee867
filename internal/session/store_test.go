package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/events"
)

func testUser(id, plan string) *domain.User {
	u := &domain.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: domain.RolePaid}
	if plan != "" {
		u.Subscriptions = []domain.Subscription{{Plan: domain.Plan{Name: plan}}}
	}
	return u
}

func TestStoreSetReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)

	store.SetCurrentUser(ctx, testUser("alice", "PREMIER"), "tok-a")
	bob := testUser("bob", "")
	store.SetCurrentUser(ctx, bob, "tok-b")

	state := store.Snapshot()
	require.True(t, state.Authenticated())
	assert.Equal(t, "bob", state.User.ID)
	assert.Equal(t, "tok-b", state.Token)
	assert.Empty(t, state.User.Subscriptions, "previous user's subscriptions must not leak")
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)
	user := testUser("alice", "CLASSIC")
	store.SetCurrentUser(ctx, user, "tok")

	user.Subscriptions[0].Plan.Name = "PREMIER"
	snap := store.Snapshot()
	snap.User.Name = "mallory"

	again := store.Snapshot()
	assert.Equal(t, "CLASSIC", again.User.Subscriptions[0].Plan.Name)
	assert.Equal(t, "User alice", again.User.Name)
}

func TestStoreIdenticalSetIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)
	store.SetCurrentUser(ctx, testUser("alice", "PREMIER"), "tok")
	gen := store.Generation()

	store.SetCurrentUser(ctx, testUser("alice", "PREMIER"), "tok")
	assert.Equal(t, gen, store.Generation())
	assert.Len(t, store.Snapshot().User.Subscriptions, 1)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)
	store.SetCurrentUser(ctx, testUser("alice", ""), "tok")

	store.ClearCurrentUser(ctx)
	state := store.Snapshot()
	assert.False(t, state.Authenticated())
	assert.Empty(t, state.Token)

	gen := store.Generation()
	store.ClearCurrentUser(ctx)
	assert.Greater(t, store.Generation(), gen, "clearing an empty store still invalidates in-flight work")
}

func TestStoreUpdateUserSubscription(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)

	assert.False(t, store.UpdateUserSubscription(ctx, []domain.Subscription{{Plan: domain.Plan{Name: "PREMIER"}}}))
	assert.False(t, store.Snapshot().Authenticated())

	store.SetCurrentUser(ctx, testUser("alice", "CLASSIC"), "tok")
	subs := []domain.Subscription{{Plan: domain.Plan{Name: "PREMIER"}}}
	require.True(t, store.UpdateUserSubscription(ctx, subs))
	subs[0].Plan.Name = "mutated"

	state := store.Snapshot()
	require.Len(t, state.User.Subscriptions, 1)
	assert.Equal(t, "PREMIER", state.User.Subscriptions[0].Plan.Name)
	assert.Equal(t, "alice", state.User.ID)
	assert.Equal(t, "tok", state.Token)
}

func TestStoreSetIfGeneration(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)
	gen := store.Generation()

	store.ClearCurrentUser(ctx)
	_, ok := store.SetIfGeneration(ctx, gen, testUser("alice", ""), "tok")
	assert.False(t, ok)
	assert.False(t, store.Snapshot().Authenticated())

	applied, ok := store.SetIfGeneration(ctx, store.Generation(), testUser("alice", ""), "tok")
	assert.True(t, ok)
	assert.True(t, store.Snapshot().Authenticated())
	assert.Equal(t, store.Generation(), applied)

	again, ok := store.SetIfGeneration(ctx, applied, testUser("alice", ""), "tok")
	assert.True(t, ok)
	assert.Equal(t, applied, again, "an identical set leaves the generation alone")
}

func TestStoreCommitIfGeneration(t *testing.T) {
	ctx := context.Background()
	store := NewStore("c1", nil)
	applied, ok := store.SetIfGeneration(ctx, 0, testUser("alice", ""), "tok")
	require.True(t, ok)

	var ran int
	assert.True(t, store.CommitIfGeneration(applied, func() { ran++ }))

	store.ClearCurrentUser(ctx)
	assert.False(t, store.CommitIfGeneration(applied, func() { ran++ }))
	assert.Equal(t, 1, ran)
}

func TestStorePublishesEvents(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	var got []events.Event
	record := func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	}
	dispatcher.Subscribe(events.EventSessionEstablished, record)
	dispatcher.Subscribe(events.EventSessionCleared, record)
	dispatcher.Subscribe(events.EventSubscriptionsUpdated, record)

	store := NewStore("c1", dispatcher)
	store.SetCurrentUser(ctx, testUser("alice", "PREMIER"), "tok")
	store.UpdateUserSubscription(ctx, nil)
	store.ClearCurrentUser(ctx)
	store.ClearCurrentUser(ctx)

	require.Len(t, got, 3)
	assert.Equal(t, events.EventSessionEstablished, got[0].Type)
	assert.Equal(t, events.SessionEstablishedPayload{Role: domain.RolePaid, Tier: domain.PlanTierPremier}, got[0].Payload)
	assert.Equal(t, events.EventSubscriptionsUpdated, got[1].Type)
	assert.Equal(t, events.EventSessionCleared, got[2].Type)
	assert.Equal(t, "alice", got[2].UserID)
	assert.Equal(t, "c1", got[2].ClientID)
}
