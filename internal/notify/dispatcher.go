// Package notify delivers signed business webhooks and records every
// delivery attempt. Delivery is at-least-once at best: failures are logged
// and left to the out-of-band delivery queue.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookStore resolves delivery targets and records attempts.
// GetWebhookConfig returns nil, nil when the business has no webhook.
type WebhookStore interface {
	GetWebhookConfig(ctx context.Context, businessID uuid.UUID) (*models.WebhookConfig, error)
	LogDelivery(ctx context.Context, entry models.WebhookDeliveryLog) error
}

// Envelope is the JSON body POSTed to merchants.
type Envelope struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	CreatedAt  string         `json:"created_at"`
	BusinessID string         `json:"business_id"`
}

type Dispatcher struct {
	store      WebhookStore
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
}

func NewDispatcher(store WebhookStore, httpClient *http.Client, log *zap.Logger) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{store: store, httpClient: httpClient, log: log, now: time.Now}
}

// Dispatch sends event to the business webhook. A missing webhook config is
// a silent no-op. The returned error is informational; callers do not retry.
func (d *Dispatcher) Dispatch(ctx context.Context, businessID uuid.UUID, event string, data map[string]any) error {
	cfg, err := d.store.GetWebhookConfig(ctx, businessID)
	if err != nil {
		d.log.Error("webhook config lookup failed",
			zap.String("business_id", businessID.String()),
			zap.String("event", event),
			zap.Error(err),
		)
		return err
	}
	if cfg == nil || cfg.URL == "" {
		d.log.Debug("no webhook configured", zap.String("business_id", businessID.String()))
		return nil
	}

	now := d.now().UTC()
	body, err := json.Marshal(Envelope{
		ID:         "evt_" + uuid.New().String(),
		Type:       event,
		Data:       data,
		CreatedAt:  now.Format(time.RFC3339),
		BusinessID: businessID.String(),
	})
	if err != nil {
		return err
	}

	statusCode, sendErr := d.send(ctx, cfg, now.Unix(), body)
	entry := models.WebhookDeliveryLog{
		ID:         uuid.New(),
		BusinessID: businessID,
		Event:      event,
		URL:        cfg.URL,
		Success:    sendErr == nil,
		StatusCode: statusCode,
		CreatedAt:  now,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
		d.log.Warn("webhook delivery failed",
			zap.String("business_id", businessID.String()),
			zap.String("event", event),
			zap.Int("status", statusCode),
			zap.Error(sendErr),
		)
	}
	if err := d.store.LogDelivery(ctx, entry); err != nil {
		d.log.Error("failed to record webhook delivery", zap.String("event", event), zap.Error(err))
	}
	return sendErr
}

func (d *Dispatcher) send(ctx context.Context, cfg *models.WebhookConfig, ts int64, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, FormatSignature(cfg.Secret, ts, body))
	req.Header.Set("User-Agent", "CoinPay-Webhook/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
