package repositories

import (
	"context"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AppendEvent writes one row to the append-only escrow audit trail.
func (r *EscrowRepo) AppendEvent(ctx context.Context, ev models.EscrowEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO escrow_events (escrow_id, event_type, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.EscrowID, ev.EventType, ev.Actor, ev.Details, ev.CreatedAt)
	return err
}

func (r *EscrowRepo) ListEvents(ctx context.Context, escrowID uuid.UUID, limit int) ([]models.EscrowEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, escrow_id, event_type, actor, details, created_at
		FROM escrow_events WHERE escrow_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, escrowID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EscrowEvent, error) {
		var ev models.EscrowEvent
		err := row.Scan(&ev.ID, &ev.EscrowID, &ev.EventType, &ev.Actor, &ev.Details, &ev.CreatedAt)
		return ev, err
	})
}
