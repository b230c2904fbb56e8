package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/coinpay/backend/internal/events"
	"go.uber.org/zap"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TickReport aggregates the stats of one orchestrator run.
type TickReport struct {
	StartedAt     time.Time       `json:"started_at"`
	DurationMS    int64           `json:"duration_ms"`
	Payments      PaymentStats    `json:"payments"`
	Escrows       EscrowStats     `json:"escrows"`
	Settlements   SettlementStats `json:"settlements"`
	Series        SeriesStats     `json:"series"`
	RefundMonitor MonitorStats    `json:"refund_monitor"`
}

// Orchestrator runs every scan once per tick, sequentially, each isolated
// from the others' errors and panics.
type Orchestrator struct {
	store     Pinger
	payments  *PaymentReconciler
	escrows   *EscrowMachine
	settler   *Settler
	series    *SeriesScheduler
	monitor   *RefundMonitor
	publisher events.Publisher
	log       *zap.Logger
}

func NewOrchestrator(store Pinger, payments *PaymentReconciler, escrows *EscrowMachine, settler *Settler,
	series *SeriesScheduler, monitor *RefundMonitor, publisher events.Publisher, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		payments:  payments,
		escrows:   escrows,
		settler:   settler,
		series:    series,
		monitor:   monitor,
		publisher: publisher,
		log:       log,
	}
}

// Run executes one tick. It fails only when the store is unreachable;
// per-item and per-scan failures are counted in the report.
func (o *Orchestrator) Run(ctx context.Context) (*TickReport, error) {
	report := &TickReport{StartedAt: time.Now().UTC()}

	if err := o.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	if o.guard(ctx, "payments", func(ctx context.Context) error {
		s, err := o.payments.Run(ctx)
		report.Payments = s
		return err
	}) {
		report.Payments.Errors++
	}

	// Expiry runs before funding so a lapsed escrow is never marked funded.
	escrowPasses := []struct {
		name string
		run  func(context.Context) (EscrowStats, error)
	}{
		{"escrow_expire", o.escrows.ExpireUnfunded},
		{"escrow_funding", o.escrows.DetectFunding},
		{"escrow_refund", o.escrows.AutoRefund},
	}
	for _, p := range escrowPasses {
		if o.guard(ctx, p.name, func(ctx context.Context) error {
			s, err := p.run(ctx)
			report.Escrows.add(s)
			return err
		}) {
			report.Escrows.Errors++
		}
	}

	settlePasses := []struct {
		name string
		run  func(context.Context) (SettlementStats, error)
	}{
		{"settle_released", o.settler.SettleReleased},
		{"settle_refunds", o.settler.SettleRefunds},
	}
	for _, p := range settlePasses {
		if o.guard(ctx, p.name, func(ctx context.Context) error {
			s, err := p.run(ctx)
			report.Settlements.add(s)
			return err
		}) {
			report.Settlements.Errors++
		}
	}

	if o.guard(ctx, "series", func(ctx context.Context) error {
		s, err := o.series.Run(ctx)
		report.Series = s
		return err
	}) {
		report.Series.Errors++
	}

	if o.guard(ctx, "refund_monitor", func(ctx context.Context) error {
		s, err := o.monitor.Run(ctx)
		report.RefundMonitor = s
		return err
	}) {
		report.RefundMonitor.Errors++
	}

	report.DurationMS = time.Since(report.StartedAt).Milliseconds()
	o.log.Info("tick completed",
		zap.Int64("duration_ms", report.DurationMS),
		zap.Int("payments_confirmed", report.Payments.Confirmed),
		zap.Int("escrows_funded", report.Escrows.Funded),
		zap.Int("settlements_triggered", report.Settlements.Triggered),
		zap.Int("series_created", report.Series.Created),
	)
	publish(ctx, o.publisher, o.log, events.EventTickCompleted, map[string]any{
		"duration_ms": report.DurationMS,
		"payments":    report.Payments,
		"escrows":     report.Escrows,
		"settlements": report.Settlements,
		"series":      report.Series,
	})
	return report, nil
}

// guard runs one scan and reports whether it failed as a whole.
func (o *Orchestrator) guard(ctx context.Context, name string, fn func(context.Context) error) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("scan panicked", zap.String("scan", name), zap.Any("panic", r), zap.Stack("stack"))
			failed = true
		}
	}()

	if err := fn(ctx); err != nil {
		o.log.Error("scan failed", zap.String("scan", name), zap.Error(err))
		return true
	}
	return false
}
