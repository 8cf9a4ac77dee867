package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/astro-gateway/internal/domain"
	"github.com/spec-kit/astro-gateway/internal/events"
)

type eventCounter map[string]int

func (c eventCounter) RecordEvent(t string) { c[t]++ }

func TestSessionAuditServiceLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	counter := eventCounter{}
	NewSessionAuditService(dispatcher, zap.New(core), counter).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventSessionEstablished,
		ClientID: "c1",
		UserID:   "u1",
		Payload:  events.SessionEstablishedPayload{Role: domain.RolePaid, Tier: domain.PlanTierClassic},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventSessionCleared, ClientID: "c1", UserID: "u1"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "SessionEstablished", entries[0].Message)
	assert.Equal(t, "CLASSIC", entries[0].ContextMap()["tier"])
	assert.Equal(t, "SessionCleared", entries[1].Message)
	assert.Equal(t, 1, counter[string(events.EventSessionCleared)])
}
