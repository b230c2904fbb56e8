package middleware

import (
	"strings"

	"github.com/coinpay/backend/internal/auth"
	"github.com/coinpay/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	CtxOperatorID   = "operator_id"
	CtxOperatorRole = "operator_role"
)

// AuthMiddleware requires an operator JWT in the Authorization header.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxOperatorID, claims.OperatorID)
		c.Locals(CtxOperatorRole, claims.Role)

		return c.Next()
	}
}

func GetOperatorID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxOperatorID).(string)
	return id
}
