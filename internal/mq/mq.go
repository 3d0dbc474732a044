package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"farmtrace/internal/logger"
)

// Domain event types.
const (
	EventUserRegistered = "user.registered"
	EventUserVerified   = "user.verified"
	EventBatchCreated   = "batch.created"
	EventBatchHandoff   = "batch.handoff"
)

// Backend defines the broker operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Event is the envelope of every published domain event.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher emits domain events on a best-effort basis. A Publisher without a
// backend drops every event.
type Publisher struct {
	backend Backend
	channel string
	log     *logger.Logger
}

// NewPublisher creates a Publisher sending to channel. backend may be nil.
func NewPublisher(backend Backend, channel string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{backend: backend, channel: channel, log: log}
}

// Publish sends an event. Failures are logged and never returned.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) {
	if p == nil || p.backend == nil {
		return
	}

	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("Publisher: failed to marshal event", "type", eventType, "error", err)
		return
	}

	if _, err := p.backend.Publish(ctx, p.channel, data, map[string]string{"type": eventType}); err != nil {
		p.log.Warn("Publisher: failed to publish event", "type", eventType, "error", err)
		return
	}
	p.log.Debug("Publisher: event published", "type", eventType, "id", evt.ID)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
