package http

import (
	"time"

	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/http/handlers"
	"github.com/coinpay/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	triggerRateLimit  = 30
	triggerRateWindow = time.Minute
)

// SetupRouter mounts the trigger, the operator review API and the operator
// stream. rdb and wsHub may be nil, which disables rate limiting and the
// stream respectively.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	cronHandler *handlers.CronHandler,
	reviewHandler *handlers.ReviewHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Tick trigger
	cron := api.Group("/cron")
	if rdb != nil {
		cron.Use(middleware.RateLimitMiddleware(rdb, triggerRateLimit, triggerRateWindow))
	}
	cron.Use(middleware.CronAuthMiddleware(cfg, log))
	cron.Get("/monitor-payments", cronHandler.MonitorPayments)
	cron.Post("/monitor-payments", cronHandler.MonitorPayments)

	// Operator
	ops := api.Group("/ops", middleware.AuthMiddleware(cfg, log))
	ops.Get("/escrows/review", reviewHandler.ListEscrows)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
