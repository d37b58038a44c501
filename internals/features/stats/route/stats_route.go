package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	statsCtl "campusmap_backend/internals/features/stats/controller"
)

// Base path: /api/stats (admin)
func StatsAdminRoutes(admin fiber.Router, db *gorm.DB) {
	ctl := statsCtl.NewStatsController(db)
	admin.Get("/stats", ctl.Get)
}
