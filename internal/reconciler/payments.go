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

type PaymentStats struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Expired   int `json:"expired"`
	Forwarded int `json:"forwarded"`
	Errors    int `json:"errors"`
}

// PaymentReconciler settles pending single-shot payments: expiry first,
// then an on-chain balance check.
type PaymentReconciler struct {
	store     PaymentStore
	oracle    BalanceChecker
	notifier  Notifier
	forwarder PaymentForwarder
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewPaymentReconciler(store PaymentStore, oracle BalanceChecker, notifier Notifier, forwarder PaymentForwarder,
	publisher events.Publisher, cfg *config.Config, log *zap.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		store:     store,
		oracle:    oracle,
		notifier:  notifier,
		forwarder: forwarder,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (r *PaymentReconciler) Run(ctx context.Context) (PaymentStats, error) {
	var stats PaymentStats

	payments, err := r.store.ListPending(ctx, r.cfg.PaymentBatch)
	if err != nil {
		return stats, fmt.Errorf("list pending payments: %w", err)
	}

	for i := range payments {
		p := &payments[i]
		stats.Checked++
		if err := r.process(ctx, p, &stats); err != nil {
			stats.Errors++
			r.log.Error("payment reconciliation failed",
				zap.String("payment_id", p.ID.String()),
				zap.String("chain", p.Chain),
				zap.Error(err),
			)
		}
	}
	return stats, nil
}

func (r *PaymentReconciler) process(ctx context.Context, p *models.Payment, stats *PaymentStats) error {
	if p.IsTerminal() {
		return nil
	}

	now := r.now()
	if now.After(p.ExpiresAt) {
		ok, err := r.store.MarkExpired(ctx, p.ID, now)
		if err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}
		if !ok {
			return nil
		}
		stats.Expired++
		_ = r.notifier.Dispatch(ctx, p.BusinessID, models.WebhookPaymentExpired, map[string]any{
			"payment_id":    p.ID.String(),
			"chain":         p.Chain,
			"crypto_amount": p.ExpectedAmount,
			"expired_at":    now.UTC().Format(time.RFC3339),
		})
		publish(ctx, r.publisher, r.log, events.EventPaymentExpired, map[string]any{"payment_id": p.ID.String()})
		return nil
	}

	balance := r.oracle.CheckBalance(ctx, p.PaymentAddress, p.Chain)
	if !chain.IsFunded(balance, p.ExpectedAmount, r.cfg.PaymentTolerance) {
		return nil
	}

	// The status write lands before any webhook so an overlapping tick
	// loses the CAS and never notifies a second time.
	ok, err := r.store.MarkConfirmed(ctx, p.ID, balance, now)
	if err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	if !ok {
		return nil
	}
	stats.Confirmed++
	r.log.Info("payment confirmed",
		zap.String("payment_id", p.ID.String()),
		zap.String("chain", p.Chain),
		zap.Float64("balance", balance),
		zap.Float64("expected", p.ExpectedAmount),
	)

	_ = r.notifier.Dispatch(ctx, p.BusinessID, models.WebhookPaymentConfirmed, map[string]any{
		"payment_id":      p.ID.String(),
		"chain":           p.Chain,
		"crypto_amount":   p.ExpectedAmount,
		"received_amount": balance,
		"payment_address": p.PaymentAddress,
		"confirmed_at":    now.UTC().Format(time.RFC3339),
	})
	publish(ctx, r.publisher, r.log, events.EventPaymentConfirmed, map[string]any{
		"payment_id": p.ID.String(),
		"balance":    balance,
	})

	if p.EscrowHeld {
		r.log.Debug("escrow-held payment, forwarding left to escrow settlement", zap.String("payment_id", p.ID.String()))
		return nil
	}
	if err := r.forwarder.ForwardPayment(ctx, p.ID); err != nil {
		return fmt.Errorf("forward payment: %w", err)
	}
	stats.Forwarded++
	return nil
}
