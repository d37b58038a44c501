package route

import (
	"github.com/gofiber/fiber/v2"

	activityService "campusmap_backend/internals/features/activity/service"
	"campusmap_backend/internals/features/users/auth/controller"
	"campusmap_backend/internals/features/users/auth/service"
	rateLimiter "campusmap_backend/internals/middlewares"
)

// Base path: /api/auth
func AuthPublicRoutes(public fiber.Router, svc *service.AuthService, rec activityService.Recorder) {
	ctl := controller.NewAuthController(svc, rec)
	public.Post("/auth/login", rateLimiter.LoginRateLimiter(), ctl.Login)
}

// Base path: /api/auth (admin)
func AuthAdminRoutes(admin fiber.Router, svc *service.AuthService, rec activityService.Recorder) {
	ctl := controller.NewAuthController(svc, rec)

	g := admin.Group("/auth")
	g.Get("/me", ctl.Me)
	g.Post("/logout", ctl.Logout)
}
