package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/models"
	"github.com/coinpay/backend/internal/services"
	"go.uber.org/zap"
)

type SeriesStats struct {
	Checked   int `json:"checked"`
	Created   int `json:"created"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// SeriesScheduler creates the next escrow of every due recurring series.
// next_charge_at moves only after the escrow was created, so a failed
// period is retried by the next tick.
type SeriesScheduler struct {
	store     SeriesStore
	creator   EscrowCreator
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewSeriesScheduler(store SeriesStore, creator EscrowCreator, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *SeriesScheduler {
	return &SeriesScheduler{
		store:     store,
		creator:   creator,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (s *SeriesScheduler) Run(ctx context.Context) (SeriesStats, error) {
	var stats SeriesStats

	due, err := s.store.ListDue(ctx, s.now(), s.cfg.SeriesBatch)
	if err != nil {
		return stats, fmt.Errorf("list due series: %w", err)
	}

	for i := range due {
		sr := &due[i]
		stats.Checked++
		if err := s.process(ctx, sr, &stats); err != nil {
			stats.Errors++
			s.log.Error("series period failed",
				zap.String("series_id", sr.ID.String()),
				zap.Int("period", sr.PeriodsCompleted+1),
				zap.Error(err),
			)
		}
	}
	return stats, nil
}

func (s *SeriesScheduler) process(ctx context.Context, sr *models.EscrowSeries, stats *SeriesStats) error {
	if sr.Exhausted() {
		ok, err := s.store.MarkCompleted(ctx, sr.ID)
		if err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		if ok {
			stats.Completed++
			s.log.Info("series completed", zap.String("series_id", sr.ID.String()), zap.Int("periods", sr.PeriodsCompleted))
		}
		return nil
	}

	if sr.DepositorAddress == nil || *sr.DepositorAddress == "" ||
		sr.BeneficiaryAddress == nil || *sr.BeneficiaryAddress == "" {
		stats.Skipped++
		s.log.Debug("series missing addresses, skipping", zap.String("series_id", sr.ID.String()))
		return nil
	}

	next, ok := models.NextCharge(sr.Interval, sr.NextChargeAt)
	if !ok {
		return fmt.Errorf("unknown interval %q", sr.Interval)
	}

	paid, err := s.store.MerchantPaidTier(ctx, sr.MerchantID)
	if err != nil {
		return fmt.Errorf("merchant tier: %w", err)
	}

	period := sr.PeriodsCompleted + 1
	res, err := s.creator.CreateEscrow(ctx, services.CreateEscrowParams{
		SeriesID:           sr.ID,
		Period:             period,
		MerchantID:         sr.MerchantID,
		BusinessID:         sr.BusinessID,
		Chain:              sr.Coin,
		Amount:             sr.Amount,
		DepositorAddress:   *sr.DepositorAddress,
		BeneficiaryAddress: *sr.BeneficiaryAddress,
	}, paid)
	if err != nil {
		return fmt.Errorf("create escrow: %w", err)
	}

	advanced, err := s.store.Advance(ctx, sr.ID, sr.PeriodsCompleted, next)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if !advanced {
		s.log.Warn("series advanced concurrently", zap.String("series_id", sr.ID.String()), zap.Int("period", period))
		return nil
	}
	stats.Created++

	payload := map[string]any{
		"series_id":      sr.ID.String(),
		"period":         period,
		"next_charge_at": next.UTC().Format(time.RFC3339),
	}
	if res != nil && res.Escrow != nil {
		payload["escrow_id"] = res.Escrow.ID.String()
	}
	publish(ctx, s.publisher, s.log, events.EventSeriesAdvanced, payload)
	return nil
}
