package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeriesRepo struct {
	pool *pgxpool.Pool
}

func NewSeriesRepo(pool *pgxpool.Pool) *SeriesRepo {
	return &SeriesRepo{pool: pool}
}

func (r *SeriesRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.EscrowSeries, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, merchant_id, business_id, status, interval, periods_completed, max_periods, next_charge_at,
		       coin, amount, depositor_address, beneficiary_address, created_at
		FROM escrow_series
		WHERE status = 'active' AND next_charge_at <= $1
		ORDER BY next_charge_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EscrowSeries, error) {
		var s models.EscrowSeries
		err := row.Scan(&s.ID, &s.MerchantID, &s.BusinessID, &s.Status, &s.Interval, &s.PeriodsCompleted, &s.MaxPeriods,
			&s.NextChargeAt, &s.Coin, &s.Amount, &s.DepositorAddress, &s.BeneficiaryAddress, &s.CreatedAt)
		return s, err
	})
}

func (r *SeriesRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrow_series SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Advance records one completed period. The periods_completed guard keeps two
// overlapping ticks from advancing the same period twice.
func (r *SeriesRepo) Advance(ctx context.Context, id uuid.UUID, seenPeriods int, next time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrow_series SET periods_completed = $2 + 1, next_charge_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'active' AND periods_completed = $2
	`, id, seenPeriods, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MerchantPaidTier reports whether the merchant is on a paid plan. Unknown merchants are free tier.
func (r *SeriesRepo) MerchantPaidTier(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	var plan string
	err := r.pool.QueryRow(ctx, `SELECT plan FROM merchants WHERE id = $1`, merchantID).Scan(&plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return plan != "" && plan != "free", nil
}
