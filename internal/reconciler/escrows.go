package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/coinpay/backend/internal/chain"
	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"go.uber.org/zap"
)

type EscrowStats struct {
	Checked  int `json:"checked"`
	Expired  int `json:"expired"`
	Funded   int `json:"funded"`
	Refunded int `json:"refunded"`
	Errors   int `json:"errors"`
}

func (s *EscrowStats) add(o EscrowStats) {
	s.Checked += o.Checked
	s.Expired += o.Expired
	s.Funded += o.Funded
	s.Refunded += o.Refunded
	s.Errors += o.Errors
}

// EscrowMachine runs the three escrow passes. Their status predicates are
// disjoint so no two passes ever select the same row.
type EscrowMachine struct {
	store     EscrowStore
	oracle    BalanceChecker
	notifier  Notifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewEscrowMachine(store EscrowStore, oracle BalanceChecker, notifier Notifier, publisher events.Publisher,
	cfg *config.Config, log *zap.Logger) *EscrowMachine {
	return &EscrowMachine{
		store:     store,
		oracle:    oracle,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type escrowStep func(ctx context.Context, e *models.Escrow, now time.Time, stats *EscrowStats) error

func (m *EscrowMachine) scan(ctx context.Context, pass string, escrows []models.Escrow, now time.Time, step escrowStep) EscrowStats {
	var stats EscrowStats
	for i := range escrows {
		e := &escrows[i]
		stats.Checked++
		if err := step(ctx, e, now, &stats); err != nil {
			stats.Errors++
			m.log.Error("escrow transition failed",
				zap.String("pass", pass),
				zap.String("escrow_id", e.ID.String()),
				zap.String("chain", e.Chain),
				zap.Error(err),
			)
		}
	}
	return stats
}

// ExpireUnfunded moves created escrows past their deadline to expired
// without touching the chain.
func (m *EscrowMachine) ExpireUnfunded(ctx context.Context) (EscrowStats, error) {
	now := m.now()
	escrows, err := m.store.ListCreatedExpired(ctx, now, m.cfg.EscrowExpiryBatch)
	if err != nil {
		return EscrowStats{}, fmt.Errorf("list expired escrows: %w", err)
	}
	return m.scan(ctx, "expire", escrows, now, m.expire), nil
}

func (m *EscrowMachine) expire(ctx context.Context, e *models.Escrow, now time.Time, stats *EscrowStats) error {
	ok, err := m.store.MarkExpired(ctx, e.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	stats.Expired++
	m.afterTransition(ctx, e, models.EscrowStatusCreated, models.EscrowStatusExpired, now,
		models.EscrowEventExpired, map[string]any{
			"reason":     "deposit window elapsed",
			"expires_at": e.ExpiresAt.UTC().Format(time.RFC3339),
		}, models.WebhookEscrowExpired)
	return nil
}

// DetectFunding checks the deposit address of every live created escrow.
func (m *EscrowMachine) DetectFunding(ctx context.Context) (EscrowStats, error) {
	now := m.now()
	escrows, err := m.store.ListCreatedActive(ctx, now, m.cfg.EscrowFundingBatch)
	if err != nil {
		return EscrowStats{}, fmt.Errorf("list created escrows: %w", err)
	}
	return m.scan(ctx, "funding", escrows, now, m.detectFunding), nil
}

func (m *EscrowMachine) detectFunding(ctx context.Context, e *models.Escrow, now time.Time, stats *EscrowStats) error {
	balance := m.oracle.CheckBalance(ctx, e.EscrowAddress, e.Chain)
	if !chain.IsFunded(balance, e.Amount, m.cfg.PaymentTolerance) {
		return nil
	}

	ok, err := m.store.MarkFunded(ctx, e.ID, balance, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	stats.Funded++
	e.DepositedAmount = &balance
	m.afterTransition(ctx, e, models.EscrowStatusCreated, models.EscrowStatusFunded, now,
		models.EscrowEventFunded, map[string]any{
			"balance":  balance,
			"expected": e.Amount,
		}, models.WebhookEscrowFunded)
	return nil
}

// AutoRefund marks funded escrows past their deadline as refunded. Only the
// intent is recorded here; the transfer back to the depositor happens when
// the settlement trigger succeeds for the refund.
func (m *EscrowMachine) AutoRefund(ctx context.Context) (EscrowStats, error) {
	now := m.now()
	escrows, err := m.store.ListFundedExpired(ctx, now, m.cfg.EscrowRefundBatch)
	if err != nil {
		return EscrowStats{}, fmt.Errorf("list funded expired escrows: %w", err)
	}
	return m.scan(ctx, "refund", escrows, now, m.refund), nil
}

func (m *EscrowMachine) refund(ctx context.Context, e *models.Escrow, now time.Time, stats *EscrowStats) error {
	ok, err := m.store.MarkRefunded(ctx, e.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	stats.Refunded++
	m.afterTransition(ctx, e, models.EscrowStatusFunded, models.EscrowStatusRefunded, now,
		models.EscrowEventRefunded, map[string]any{
			"reason":         "escrow expired after funding",
			"refund_address": e.DepositorAddress,
			"refund_amount":  e.RefundAmount(),
		}, models.WebhookEscrowRefunded)
	return nil
}

// afterTransition appends the audit event and notifies. It runs only after
// the guarded write affected the row; its own failures are logged.
func (m *EscrowMachine) afterTransition(ctx context.Context, e *models.Escrow, from, to string, now time.Time,
	eventType string, details map[string]any, webhook string) {
	m.log.Info("escrow transitioned",
		zap.String("escrow_id", e.ID.String()),
		zap.String("from", from),
		zap.String("to", to),
	)

	if err := m.store.AppendEvent(ctx, models.EscrowEvent{
		EscrowID:  e.ID,
		EventType: eventType,
		Actor:     models.ActorSystem,
		Details:   details,
		CreatedAt: now,
	}); err != nil {
		m.log.Error("failed to append escrow event",
			zap.String("escrow_id", e.ID.String()),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}

	if e.BusinessID != nil {
		data := map[string]any{
			"escrow_id":      e.ID.String(),
			"escrow_address": e.EscrowAddress,
			"chain":          e.Chain,
			"amount":         e.Amount,
			"status":         to,
		}
		for k, v := range details {
			data[k] = v
		}
		_ = m.notifier.Dispatch(ctx, *e.BusinessID, webhook, data)
	}

	publish(ctx, m.publisher, m.log, events.EventEscrowTransition, map[string]any{
		"escrow_id": e.ID.String(),
		"from":      from,
		"to":        to,
	})
}
