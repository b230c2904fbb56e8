package handlers

import (
	"context"
	"time"

	"github.com/coinpay/backend/internal/http/dto"
	"github.com/coinpay/backend/internal/middleware"
	"github.com/coinpay/backend/internal/reconciler"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Ticker runs one reconciliation tick.
type Ticker interface {
	Run(ctx context.Context) (*reconciler.TickReport, error)
}

type CronHandler struct {
	ticker  Ticker
	timeout time.Duration
	log     *zap.Logger
}

// NewCronHandler bounds every tick by timeout; zero means no bound.
func NewCronHandler(ticker Ticker, timeout time.Duration, log *zap.Logger) *CronHandler {
	return &CronHandler{ticker: ticker, timeout: timeout, log: log}
}

func (h *CronHandler) MonitorPayments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.ticker.Run(ctx)
	if err != nil {
		reqID, _ := c.Locals(middleware.CtxRequestID).(string)
		h.log.Error("tick failed", zap.String("request_id", reqID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Success:   false,
			Error:     err.Error(),
			RequestID: reqID,
		})
	}

	return c.JSON(dto.TickResponse{
		Success:   true,
		Timestamp: time.Now().UTC(),
		Stats:     report,
	})
}
