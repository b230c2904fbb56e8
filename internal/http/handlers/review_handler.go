package handlers

import (
	"context"

	"github.com/coinpay/backend/internal/http/dto"
	"github.com/coinpay/backend/internal/middleware"
	"github.com/coinpay/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	ReasonSettleFailed     = "settle_failed"
	ReasonRefundNotSettled = "refund_not_settled"
)

type ReviewStore interface {
	ListSettleFailed(ctx context.Context, limit int) ([]models.Escrow, error)
	ListStuckRefunds(ctx context.Context, maxAttempts, limit int) ([]models.Escrow, error)
}

// ReviewHandler lists escrows that need an operator.
type ReviewHandler struct {
	store       ReviewStore
	maxAttempts int
	log         *zap.Logger
}

func NewReviewHandler(store ReviewStore, maxAttempts int, log *zap.Logger) *ReviewHandler {
	return &ReviewHandler{store: store, maxAttempts: maxAttempts, log: log}
}

func (h *ReviewHandler) ListEscrows(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx := c.UserContext()

	failed, err := h.store.ListSettleFailed(ctx, limit)
	if err != nil {
		h.log.Error("failed to list settle_failed escrows", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	stuck, err := h.store.ListStuckRefunds(ctx, h.maxAttempts, limit)
	if err != nil {
		h.log.Error("failed to list stuck refunds", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	items := make([]dto.ReviewItem, 0, len(failed)+len(stuck))
	for _, e := range failed {
		items = append(items, dto.ReviewItem{Escrow: e, Reason: ReasonSettleFailed})
	}
	for _, e := range stuck {
		items = append(items, dto.ReviewItem{Escrow: e, Reason: ReasonRefundNotSettled})
	}

	h.log.Debug("review queue served",
		zap.String("operator_id", middleware.GetOperatorID(c)),
		zap.Int("count", len(items)),
	)
	return c.JSON(dto.ReviewResponse{Success: true, Count: len(items), Items: items})
}
