package core

import (
	"context"
	"fmt"
	"time"
)

// Event types
const (
	EventLikeAdded         = "like.added"
	EventLikeRemoved       = "like.removed"
	EventPaymentRecorded   = "payment.recorded"
	EventEnrollmentCreated = "enrollment.created"
)

type (
	Event struct {
		Type       string      `json:"type"`
		OccurredAt time.Time   `json:"occurred_at"`
		Data       interface{} `json:"data"`
	}

	// EventPublisher is any service that can broadcast domain events.
	EventPublisher interface {
		Publish(ctx context.Context, evt Event) error
	}
)

func NewEvent(typ string, data interface{}) Event {
	return Event{Type: typ, OccurredAt: time.Now().UTC(), Data: data}
}

// PublishEvent publishes on a best effort basis: failures are logged, never returned.
func PublishEvent(ctx context.Context, pub EventPublisher, logger Logger, typ string, data interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, NewEvent(typ, data)); err != nil {
		logger.Error(fmt.Sprintf("publishing %s: %v", typ, err), err)
	}
}
