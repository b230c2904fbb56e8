package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coinpay/backend/internal/auth"
	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/http/handlers"
	"github.com/coinpay/backend/internal/models"
	"github.com/coinpay/backend/internal/reconciler"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap/zaptest"
)

type okTicker struct{}

func (okTicker) Run(ctx context.Context) (*reconciler.TickReport, error) {
	return &reconciler.TickReport{}, nil
}

type emptyReview struct{}

func (emptyReview) ListSettleFailed(ctx context.Context, limit int) ([]models.Escrow, error) {
	return nil, nil
}

func (emptyReview) ListStuckRefunds(ctx context.Context, maxAttempts, limit int) ([]models.Escrow, error) {
	return nil, nil
}

func TestRouter(t *testing.T) {
	cfg := &config.Config{CronSecret: "cron", JWTSecret: "jwt", SettleMaxAttempts: 3}
	log := zaptest.NewLogger(t)
	app := fiber.New()
	SetupRouter(app, cfg, log, nil,
		handlers.NewCronHandler(okTicker{}, time.Minute, log),
		handlers.NewReviewHandler(emptyReview{}, cfg.SettleMaxAttempts, log),
		nil,
	)

	opsToken, err := auth.GenerateJWT(cfg.JWTSecret, "ops-dan", auth.RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", "GET", "/health", "", fiber.StatusOK},
		{"trigger via GET", "GET", "/api/cron/monitor-payments", "Bearer cron", fiber.StatusOK},
		{"trigger via POST", "POST", "/api/cron/monitor-payments", "Bearer cron", fiber.StatusOK},
		{"trigger unauthorized", "POST", "/api/cron/monitor-payments", "Bearer nope", fiber.StatusUnauthorized},
		{"operator token cannot trigger", "POST", "/api/cron/monitor-payments", "Bearer " + opsToken, fiber.StatusUnauthorized},
		{"review with operator token", "GET", "/api/ops/escrows/review", "Bearer " + opsToken, fiber.StatusOK},
		{"review with cron secret", "GET", "/api/ops/escrows/review", "Bearer cron", fiber.StatusUnauthorized},
		{"unknown route", "GET", "/api/v1/deals", "", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
