package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityCtl "campusmap_backend/internals/features/activity/controller"
	"campusmap_backend/internals/features/activity/service"
)

// Base path: /api/activity-logs (admin)
func ActivityAdminRoutes(admin fiber.Router, db *gorm.DB, svc *service.ActivityService) {
	ctl := activityCtl.NewActivityController(db, svc)

	g := admin.Group("/activity-logs")
	g.Get("/", ctl.List)
	g.Delete("/", ctl.Clear)
}
