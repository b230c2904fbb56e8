package reconciler

import (
	"context"
	"fmt"

	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"go.uber.org/zap"
)

type MonitorStats struct {
	StuckRefunds int `json:"stuck_refunds"`
	Errors       int `json:"errors"`
}

// RefundMonitor surfaces escrows recorded as refunded whose on-chain refund
// never went through, so none sits as refunded without either a settlement
// tx or an operator alert.
type RefundMonitor struct {
	store     EscrowStore
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewRefundMonitor(store EscrowStore, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *RefundMonitor {
	return &RefundMonitor{store: store, publisher: publisher, cfg: cfg, log: log}
}

func (m *RefundMonitor) Run(ctx context.Context) (MonitorStats, error) {
	var stats MonitorStats

	stuck, err := m.store.ListStuckRefunds(ctx, m.cfg.SettleMaxAttempts, m.cfg.SettlementBatch)
	if err != nil {
		return stats, fmt.Errorf("list stuck refunds: %w", err)
	}

	for _, e := range stuck {
		stats.StuckRefunds++
		m.log.Warn("refund recorded but never settled",
			zap.String("escrow_id", e.ID.String()),
			zap.String("chain", e.Chain),
			zap.Int("settle_attempts", e.SettleAttempts),
		)
		publish(ctx, m.publisher, m.log, events.EventManualReview, map[string]any{
			"escrow_id":      e.ID.String(),
			"chain":          e.Chain,
			"status":         models.EscrowStatusRefunded,
			"refund":         true,
			"refund_address": e.DepositorAddress,
			"refund_amount":  e.RefundAmount(),
		})
	}
	return stats, nil
}
