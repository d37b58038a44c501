package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	authController "campusmap_backend/internals/features/users/auth/controller"
	authService "campusmap_backend/internals/features/users/auth/service"
	helper "campusmap_backend/internals/helpers"
	"campusmap_backend/internals/logger"
)

// AuthMiddleware guards admin routes. A valid, non-blacklisted bearer token
// stores user_id (uint), user_name and email in Locals.
func AuthMiddleware(svc *authService.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := authController.BearerToken(c)
		if tok == "" {
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - no token provided")
		}

		claims, err := svc.Authenticate(c.UserContext(), tok)
		switch {
		case err == nil:
		case errors.Is(err, authService.ErrTokenRevoked):
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - token is blacklisted")
		case errors.Is(err, authService.ErrInvalidToken):
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - invalid or expired token")
		default:
			logger.App().WithError(err).Error("auth middleware")
			return helper.JsonError(c, fiber.StatusInternalServerError, "internal server error")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_name", claims.UserName)
		c.Locals("email", claims.Email)
		return c.Next()
	}
}
