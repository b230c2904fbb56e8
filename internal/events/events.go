package events

import (
	"context"
	"time"
)

// StreamEngine carries reconciler transitions and operator alerts.
const StreamEngine = "events:engine"

// Event types
const (
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentExpired   = "payment_expired"
	EventEscrowTransition = "escrow_transition"
	EventSeriesAdvanced   = "series_advanced"
	EventManualReview     = "manual_review_required"
	EventTickCompleted    = "tick_completed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
