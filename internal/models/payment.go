package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusExpired   = "expired"
)

type Payment struct {
	ID             uuid.UUID  `json:"id"`
	BusinessID     uuid.UUID  `json:"business_id"`
	Chain          string     `json:"chain"`
	ExpectedAmount float64    `json:"crypto_amount"`
	ReceivedAmount *float64   `json:"received_amount,omitempty"`
	Status         string     `json:"status"`
	PaymentAddress string     `json:"payment_address"`
	EscrowHeld     bool       `json:"escrow_held"` // address belongs to an escrow, funds settle there
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// IsTerminal reports whether the payment left pending; terminal payments are never re-checked.
func (p *Payment) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}
