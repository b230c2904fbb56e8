package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/coinpay/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CronAuthMiddleware admits the tick trigger when the caller presents
// "Bearer <CRON_SECRET>" or, if the deployment trusts it, the scheduler
// platform header. Everything else gets 401.
func CronAuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.CronSecret != "" {
			token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) == 1 {
				return c.Next()
			}
		}

		if cfg.TrustSchedulerHeader && cfg.SchedulerHeader != "" && c.Get(cfg.SchedulerHeader) != "" {
			return c.Next()
		}

		log.Warn("unauthorized trigger attempt", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "unauthorized"})
	}
}
