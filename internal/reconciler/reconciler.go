// Package reconciler drives payments, escrows and recurring escrow series
// from their stored state towards what the chains report. Every scan is
// safe to run from overlapping ticks: transitions are compare-and-swap
// writes and a lost race is a no-op.
package reconciler

import (
	"context"
	"time"

	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"github.com/coinpay/backend/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceChecker never fails; an unreachable chain reads as zero.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, address, chain string) float64
}

// Notifier delivers business webhooks. Errors are informational.
type Notifier interface {
	Dispatch(ctx context.Context, businessID uuid.UUID, event string, data map[string]any) error
}

type PaymentStore interface {
	ListPending(ctx context.Context, limit int) ([]models.Payment, error)
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, received float64, at time.Time) (bool, error)
}

// EscrowStore writes return false, nil when the guarded row was already moved.
type EscrowStore interface {
	ListCreatedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error)
	ListCreatedActive(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error)
	ListFundedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error)
	ListReleasedForSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error)
	ListRefundsPendingSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error)
	ListStuckRefunds(ctx context.Context, maxAttempts, limit int) ([]models.Escrow, error)

	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFunded(ctx context.Context, id uuid.UUID, deposited float64, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RecordSettleFailure(ctx context.Context, id uuid.UUID, status string, seen int, newStatus string) (bool, error)

	AppendEvent(ctx context.Context, ev models.EscrowEvent) error
	SaveReceipt(ctx context.Context, rc models.Receipt) error
}

type SeriesStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.EscrowSeries, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	Advance(ctx context.Context, id uuid.UUID, seenPeriods int, next time.Time) (bool, error)
	MerchantPaidTier(ctx context.Context, merchantID uuid.UUID) (bool, error)
}

type SettlementClient interface {
	TriggerSettlement(ctx context.Context, escrowID uuid.UUID, refund bool) error
}

type PaymentForwarder interface {
	ForwardPayment(ctx context.Context, paymentID uuid.UUID) error
}

type EscrowCreator interface {
	CreateEscrow(ctx context.Context, params services.CreateEscrowParams, paidTier bool) (*services.CreateEscrowResult, error)
}

func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, typ string, payload map[string]any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, events.StreamEngine, events.Event{Type: typ, Payload: payload}); err != nil {
		log.Debug("failed to publish engine event", zap.String("type", typ), zap.Error(err))
	}
}
