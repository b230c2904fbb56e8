package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusCreated      = "created"
	EscrowStatusFunded       = "funded"
	EscrowStatusReleased     = "released"
	EscrowStatusRefunded     = "refunded"
	EscrowStatusSettled      = "settled"
	EscrowStatusSettleFailed = "settle_failed"
	EscrowStatusExpired      = "expired"
	EscrowStatusDisputed     = "disputed"
)

// Valid escrow transitions: from -> []to. Released and disputed are entered
// outside this engine (release by the parties, dispute by support).
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusCreated:      {EscrowStatusFunded, EscrowStatusExpired},
	EscrowStatusFunded:       {EscrowStatusRefunded},
	EscrowStatusReleased:     {EscrowStatusSettled, EscrowStatusSettleFailed},
	EscrowStatusRefunded:     {EscrowStatusSettled},
	EscrowStatusSettled:      {},
	EscrowStatusSettleFailed: {},
	EscrowStatusExpired:      {},
	EscrowStatusDisputed:     {},
}

func IsValidEscrowTransition(from, to string) bool {
	allowed, ok := ValidEscrowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Escrow struct {
	ID                 uuid.UUID  `json:"id"`
	BusinessID         *uuid.UUID `json:"business_id,omitempty"`
	EscrowAddress      string     `json:"escrow_address"`
	Chain              string     `json:"chain"`
	Amount             float64    `json:"amount"`
	DepositedAmount    *float64   `json:"deposited_amount,omitempty"`
	Status             string     `json:"status"`
	DepositorAddress   string     `json:"depositor_address"`
	BeneficiaryAddress string     `json:"beneficiary_address"`
	SettleAttempts     int        `json:"settle_attempts"`
	SettlementTxHash   *string    `json:"settlement_tx_hash,omitempty"`
	ExpiresAt          time.Time  `json:"expires_at"`
	FundedAt           *time.Time `json:"funded_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// RefundAmount is what goes back to the depositor: the observed deposit when known.
func (e *Escrow) RefundAmount() float64 {
	if e.DepositedAmount != nil {
		return *e.DepositedAmount
	}
	return e.Amount
}

// Escrow event types
const (
	EscrowEventFunded          = "funded"
	EscrowEventExpired         = "expired"
	EscrowEventRefunded        = "refunded"
	EscrowEventSettleTriggered = "settle_triggered"
	EscrowEventSettleFailed    = "settle_failed"
	EscrowEventRefundFailed    = "refund_failed"
)

// EscrowEvent is an append-only audit row.
type EscrowEvent struct {
	ID        uuid.UUID      `json:"id"`
	EscrowID  uuid.UUID      `json:"escrow_id"`
	EventType string         `json:"event_type"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActorSystem marks events written by the reconciler.
const ActorSystem = "system"

// Receipt is a best-effort reputation record written after a settlement call succeeds.
type Receipt struct {
	EscrowID   uuid.UUID  `json:"escrow_id"`
	BusinessID *uuid.UUID `json:"business_id,omitempty"`
	Chain      string     `json:"chain"`
	Amount     float64    `json:"amount"`
	Outcome    string     `json:"outcome"` // released / refunded
	CreatedAt  time.Time  `json:"created_at"`
}
