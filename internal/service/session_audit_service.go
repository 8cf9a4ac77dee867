package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/astro-gateway/internal/events"
)

// EventRecorder counts session events.
type EventRecorder interface {
	RecordEvent(eventType string)
}

// SessionAuditService logs and counts session lifecycle events.
type SessionAuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	recorder   EventRecorder
}

// NewSessionAuditService creates the service. recorder may be nil.
func NewSessionAuditService(dispatcher events.Dispatcher, logger *zap.Logger, recorder EventRecorder) *SessionAuditService {
	return &SessionAuditService{
		dispatcher: dispatcher,
		logger:     logger,
		recorder:   recorder,
	}
}

// RegisterHandlers subscribes to events.
func (s *SessionAuditService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventSessionEstablished, s.handleEstablished)
	s.dispatcher.Subscribe(events.EventSessionCleared, s.handleCleared)
	s.dispatcher.Subscribe(events.EventSubscriptionsUpdated, s.handleSubscriptionsUpdated)
}

func (s *SessionAuditService) handleEstablished(_ context.Context, event events.Event) error {
	fields := s.fields(event)
	if p, ok := event.Payload.(events.SessionEstablishedPayload); ok {
		fields = append(fields, zap.String("role", string(p.Role)), zap.String("tier", string(p.Tier)))
	}
	s.logger.Info("SessionEstablished", fields...)
	return nil
}

func (s *SessionAuditService) handleCleared(_ context.Context, event events.Event) error {
	s.logger.Info("SessionCleared", s.fields(event)...)
	return nil
}

func (s *SessionAuditService) handleSubscriptionsUpdated(_ context.Context, event events.Event) error {
	fields := s.fields(event)
	if p, ok := event.Payload.(events.SubscriptionsUpdatedPayload); ok {
		fields = append(fields, zap.Int("count", p.Count), zap.String("tier", string(p.Tier)))
	}
	s.logger.Info("SubscriptionsUpdated", fields...)
	return nil
}

func (s *SessionAuditService) fields(event events.Event) []zap.Field {
	if s.recorder != nil {
		s.recorder.RecordEvent(string(event.Type))
	}
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("client_id", event.ClientID),
		zap.String("user_id", event.UserID),
		zap.Uint64("generation", event.Generation),
	}
}
