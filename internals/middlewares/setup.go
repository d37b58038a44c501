package middlewares

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/utils"

	"campusmap_backend/internals/configs"
	requestLogger "campusmap_backend/internals/middlewares/logger"
)

const requestTimeout = 5 * time.Second

// RequestContext sets X-Request-ID and gives every request a deadline that
// matches the DB statement timeout.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func SetupMiddlewares(app *fiber.App, cfg *configs.Config) {
	app.Use(RecoveryMiddleware())
	app.Use(RequestContext())
	app.Use(requestLogger.LoggerMiddleware())
	app.Use(CorsMiddleware(cfg.AllowedOrigins()))
	app.Use(GlobalRateLimiter())
}
