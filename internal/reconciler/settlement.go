package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"github.com/coinpay/backend/internal/retry"
	"go.uber.org/zap"
)

type SettlementStats struct {
	Checked      int `json:"checked"`
	Triggered    int `json:"triggered"`
	Skipped      int `json:"skipped"`
	SettleFailed int `json:"settle_failed"`
	Errors       int `json:"errors"`
}

func (s *SettlementStats) add(o SettlementStats) {
	s.Checked += o.Checked
	s.Triggered += o.Triggered
	s.Skipped += o.Skipped
	s.SettleFailed += o.SettleFailed
	s.Errors += o.Errors
}

// Settler calls the platform settlement endpoint for released escrows and
// recorded refunds. Each failure spends one attempt from the stored budget;
// a released escrow that exhausts it lands in settle_failed and is left for
// an operator.
type Settler struct {
	store     EscrowStore
	client    SettlementClient
	publisher events.Publisher
	policy    retry.Policy
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewSettler(store EscrowStore, client SettlementClient, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *Settler {
	return &Settler{
		store:     store,
		client:    client,
		publisher: publisher,
		policy:    retry.NewPolicy(cfg.SettleMaxAttempts),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (s *Settler) SettleReleased(ctx context.Context) (SettlementStats, error) {
	escrows, err := s.store.ListReleasedForSettlement(ctx, s.cfg.SettlementChains, s.policy.MaxAttempts, s.cfg.SettlementBatch)
	if err != nil {
		return SettlementStats{}, fmt.Errorf("list released escrows: %w", err)
	}
	return s.run(ctx, escrows, false), nil
}

// SettleRefunds retries the on-chain refund of escrows marked refunded that
// have no settlement tx yet.
func (s *Settler) SettleRefunds(ctx context.Context) (SettlementStats, error) {
	escrows, err := s.store.ListRefundsPendingSettlement(ctx, s.cfg.SettlementChains, s.policy.MaxAttempts, s.cfg.SettlementBatch)
	if err != nil {
		return SettlementStats{}, fmt.Errorf("list refunded escrows: %w", err)
	}
	return s.run(ctx, escrows, true), nil
}

func (s *Settler) run(ctx context.Context, escrows []models.Escrow, refund bool) SettlementStats {
	var stats SettlementStats
	for i := range escrows {
		e := &escrows[i]
		stats.Checked++

		if !s.cfg.SettlementSupported(e.Chain) {
			stats.Skipped++
			s.log.Debug("chain has no automated settlement, skipping",
				zap.String("escrow_id", e.ID.String()),
				zap.String("chain", e.Chain),
			)
			continue
		}
		if s.policy.Exhausted(e.SettleAttempts) {
			stats.Skipped++
			continue
		}

		if err := s.settle(ctx, e, refund, &stats); err != nil {
			s.log.Error("settlement bookkeeping failed", zap.String("escrow_id", e.ID.String()), zap.Error(err))
		}
	}
	return stats
}

// settle counts a failed trigger once in stats.Errors. The returned error
// only reports bookkeeping that could not be written.
func (s *Settler) settle(ctx context.Context, e *models.Escrow, refund bool, stats *SettlementStats) error {
	now := s.now()

	callErr := s.client.TriggerSettlement(ctx, e.ID, refund)
	if callErr == nil {
		stats.Triggered++
		s.onTriggered(ctx, e, refund, now)
		return nil
	}

	stats.Errors++
	outcome := s.policy.Next(e.SettleAttempts)
	s.log.Warn("settlement trigger failed",
		zap.String("escrow_id", e.ID.String()),
		zap.String("status", e.Status),
		zap.Int("attempt", outcome.Attempts),
		zap.Bool("terminal", outcome.Terminal),
		zap.Error(callErr),
	)

	newStatus := e.Status
	if outcome.Terminal && !refund {
		newStatus = models.EscrowStatusSettleFailed
	}
	ok, err := s.store.RecordSettleFailure(ctx, e.ID, e.Status, e.SettleAttempts, newStatus)
	if err != nil {
		return fmt.Errorf("record settle attempt: %w", err)
	}
	if !ok || !outcome.Terminal {
		return nil
	}

	eventType := models.EscrowEventSettleFailed
	if refund {
		eventType = models.EscrowEventRefundFailed
	} else {
		stats.SettleFailed++
	}
	if err := s.store.AppendEvent(ctx, models.EscrowEvent{
		EscrowID:  e.ID,
		EventType: eventType,
		Actor:     models.ActorSystem,
		Details: map[string]any{
			"attempts":   outcome.Attempts,
			"last_error": callErr.Error(),
		},
		CreatedAt: now,
	}); err != nil {
		s.log.Error("failed to append escrow event", zap.String("escrow_id", e.ID.String()), zap.Error(err))
	}

	s.log.Error("settlement attempts exhausted, manual review required",
		zap.String("escrow_id", e.ID.String()),
		zap.String("chain", e.Chain),
		zap.Bool("refund", refund),
	)
	publish(ctx, s.publisher, s.log, events.EventManualReview, map[string]any{
		"escrow_id": e.ID.String(),
		"chain":     e.Chain,
		"status":    newStatus,
		"refund":    refund,
		"attempts":  outcome.Attempts,
	})
	return nil
}

// onTriggered records the audit event and a best-effort receipt. Neither
// failure affects the settlement itself.
func (s *Settler) onTriggered(ctx context.Context, e *models.Escrow, refund bool, now time.Time) {
	outcome, amount := models.EscrowStatusReleased, e.Amount
	if refund {
		outcome, amount = models.EscrowStatusRefunded, e.RefundAmount()
	}

	if err := s.store.AppendEvent(ctx, models.EscrowEvent{
		EscrowID:  e.ID,
		EventType: models.EscrowEventSettleTriggered,
		Actor:     models.ActorSystem,
		Details:   map[string]any{"outcome": outcome, "amount": amount},
		CreatedAt: now,
	}); err != nil {
		s.log.Error("failed to append escrow event", zap.String("escrow_id", e.ID.String()), zap.Error(err))
	}

	if err := s.store.SaveReceipt(ctx, models.Receipt{
		EscrowID:   e.ID,
		BusinessID: e.BusinessID,
		Chain:      e.Chain,
		Amount:     amount,
		Outcome:    outcome,
		CreatedAt:  now,
	}); err != nil {
		s.log.Warn("failed to save settlement receipt", zap.String("escrow_id", e.ID.String()), zap.Error(err))
	}
}
