package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	trashCtl "campusmap_backend/internals/features/trash/controller"
	"campusmap_backend/internals/features/trash/service"
)

// Base path: /api/trash (admin)
func TrashAdminRoutes(admin fiber.Router, db *gorm.DB, svc *service.TrashService) {
	ctl := trashCtl.NewTrashController(db, svc)

	g := admin.Group("/trash")
	g.Get("/", ctl.Index)
	g.Delete("/", ctl.Empty)
	g.Get("/buildings", ctl.Buildings)
	g.Get("/maps", ctl.Maps)
	g.Get("/:id", ctl.Show)
	g.Post("/:id/restore", ctl.Restore)
	g.Post("/:id/purge", ctl.Purge)
	g.Delete("/:id", ctl.PermanentDelete)
}
