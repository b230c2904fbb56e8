package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event types
const (
	WebhookPaymentConfirmed = "payment.confirmed"
	WebhookPaymentExpired   = "payment.expired"
	WebhookEscrowFunded     = "escrow.funded"
	WebhookEscrowExpired    = "escrow.expired"
	WebhookEscrowRefunded   = "escrow.refunded"
)

// WebhookConfig is the business-side delivery target.
type WebhookConfig struct {
	BusinessID uuid.UUID
	URL        string
	Secret     string
}

// WebhookDeliveryLog is an append-only attempt record, observability only.
type WebhookDeliveryLog struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	Event      string    `json:"event"`
	URL        string    `json:"url"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
