package repositories

import (
	"context"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `
	id, business_id, escrow_address, chain, amount, deposited_amount, status,
	depositor_address, beneficiary_address, settle_attempts, settlement_tx_hash,
	expires_at, funded_at, refunded_at, created_at`

func scanEscrow(row pgx.CollectableRow) (models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.BusinessID, &e.EscrowAddress, &e.Chain, &e.Amount, &e.DepositedAmount, &e.Status,
		&e.DepositorAddress, &e.BeneficiaryAddress, &e.SettleAttempts, &e.SettlementTxHash,
		&e.ExpiresAt, &e.FundedAt, &e.RefundedAt, &e.CreatedAt)
	return e, err
}

func (r *EscrowRepo) list(ctx context.Context, where string, args ...any) ([]models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEscrow)
}

// ListCreatedExpired: status=created AND expires_at < now.
func (r *EscrowRepo) ListCreatedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'created' AND expires_at < $1 ORDER BY expires_at LIMIT $2`, now, limit)
}

// ListCreatedActive: status=created AND expires_at >= now.
func (r *EscrowRepo) ListCreatedActive(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'created' AND expires_at >= $1 ORDER BY created_at LIMIT $2`, now, limit)
}

// ListFundedExpired: status=funded AND expires_at < now.
func (r *EscrowRepo) ListFundedExpired(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'funded' AND expires_at < $1 ORDER BY expires_at LIMIT $2`, now, limit)
}

// ListReleasedForSettlement returns released escrows on chains that can be
// settled automatically with attempts remaining.
func (r *EscrowRepo) ListReleasedForSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'released' AND settle_attempts < $1 AND upper(chain) = ANY($2)
		ORDER BY updated_at LIMIT $3`, maxAttempts, chains, limit)
}

func (r *EscrowRepo) ListRefundsPendingSettlement(ctx context.Context, chains []string, maxAttempts, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'refunded' AND settlement_tx_hash IS NULL AND settle_attempts < $1
		AND upper(chain) = ANY($2) ORDER BY refunded_at LIMIT $3`, maxAttempts, chains, limit)
}

// ListStuckRefunds returns refunds whose settlement budget is spent with no tx on record.
func (r *EscrowRepo) ListStuckRefunds(ctx context.Context, maxAttempts, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'refunded' AND settlement_tx_hash IS NULL AND settle_attempts >= $1
		ORDER BY refunded_at LIMIT $2`, maxAttempts, limit)
}

func (r *EscrowRepo) ListSettleFailed(ctx context.Context, limit int) ([]models.Escrow, error) {
	return r.list(ctx, `status = 'settle_failed' ORDER BY updated_at DESC LIMIT $1`, limit)
}

func (r *EscrowRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE escrows SET status = 'expired', updated_at = $2
		WHERE id = $1 AND status = 'created'
	`, id, at)
}

func (r *EscrowRepo) MarkFunded(ctx context.Context, id uuid.UUID, deposited float64, at time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE escrows SET status = 'funded', deposited_amount = $2, funded_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'created'
	`, id, deposited, at)
}

func (r *EscrowRepo) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE escrows SET status = 'refunded', refunded_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'funded'
	`, id, at)
}

// RecordSettleFailure bumps settle_attempts from seen to seen+1 and moves the
// row to newStatus, guarded on both the prior status and the prior count.
func (r *EscrowRepo) RecordSettleFailure(ctx context.Context, id uuid.UUID, status string, seen int, newStatus string) (bool, error) {
	return r.exec(ctx, `
		UPDATE escrows SET settle_attempts = $3 + 1, status = $4, updated_at = now()
		WHERE id = $1 AND status = $2 AND settle_attempts = $3
	`, id, status, seen, newStatus)
}

// SaveReceipt records the settlement outcome once per escrow.
func (r *EscrowRepo) SaveReceipt(ctx context.Context, rc models.Receipt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO escrow_receipts (escrow_id, business_id, chain, amount, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (escrow_id) DO NOTHING
	`, rc.EscrowID, rc.BusinessID, rc.Chain, rc.Amount, rc.Outcome, rc.CreatedAt)
	return err
}

func (r *EscrowRepo) exec(ctx context.Context, sql string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
