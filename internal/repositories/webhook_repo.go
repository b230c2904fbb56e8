package repositories

import (
	"context"
	"errors"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// GetWebhookConfig returns nil, nil when the business has no webhook URL.
func (r *WebhookRepo) GetWebhookConfig(ctx context.Context, businessID uuid.UUID) (*models.WebhookConfig, error) {
	var url, secret *string
	err := r.pool.QueryRow(ctx, `
		SELECT webhook_url, webhook_secret FROM businesses WHERE id = $1
	`, businessID).Scan(&url, &secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if url == nil || *url == "" {
		return nil, nil
	}

	cfg := &models.WebhookConfig{BusinessID: businessID, URL: *url}
	if secret != nil {
		cfg.Secret = *secret
	}
	return cfg, nil
}

func (r *WebhookRepo) LogDelivery(ctx context.Context, entry models.WebhookDeliveryLog) error {
	var errText *string
	if entry.Error != "" {
		errText = &entry.Error
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_delivery_logs (business_id, event, url, success, status_code, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.BusinessID, entry.Event, entry.URL, entry.Success, entry.StatusCode, errText, entry.CreatedAt)
	return err
}
