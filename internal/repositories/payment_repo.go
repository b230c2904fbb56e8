package repositories

import (
	"context"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// ListPending returns the oldest pending payments. escrow_held comes from the
// deposit address registry.
func (r *PaymentRepo) ListPending(ctx context.Context, limit int) ([]models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.business_id, p.chain, p.crypto_amount, p.received_amount, p.status,
		       p.payment_address, COALESCE(pa.is_escrow, false), p.created_at, p.expires_at, p.confirmed_at
		FROM payments p
		LEFT JOIN payment_addresses pa ON pa.address = p.payment_address
		WHERE p.status = 'pending'
		ORDER BY p.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Payment, error) {
		var p models.Payment
		err := row.Scan(&p.ID, &p.BusinessID, &p.Chain, &p.ExpectedAmount, &p.ReceivedAmount, &p.Status,
			&p.PaymentAddress, &p.EscrowHeld, &p.CreatedAt, &p.ExpiresAt, &p.ConfirmedAt)
		return p, err
	})
}

func (r *PaymentRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = 'expired', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepo) MarkConfirmed(ctx context.Context, id uuid.UUID, received float64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = 'confirmed', received_amount = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, received, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
