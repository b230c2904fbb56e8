package dto

import (
	"time"

	"github.com/coinpay/backend/internal/models"
)

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// TickResponse is the body of a successful trigger call.
type TickResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Stats     any       `json:"stats"`
}

type ReviewItem struct {
	Escrow models.Escrow `json:"escrow"`
	Reason string        `json:"reason"` // settle_failed / refund_not_settled
}

type ReviewResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Items   []ReviewItem `json:"items"`
}
