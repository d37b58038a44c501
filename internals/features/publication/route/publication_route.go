package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	pubCtl "campusmap_backend/internals/features/publication/controller"
	"campusmap_backend/internals/features/publication/service"
)

// Base path: /api/publish (admin)
func PublicationAdminRoutes(admin fiber.Router, db *gorm.DB, svc *service.PublicationService) {
	ctl := pubCtl.NewPublicationController(db, svc)

	g := admin.Group("/publish")
	g.Get("/status", ctl.Status)
	g.Get("/unpublished", ctl.Unpublished)
	g.Post("/all", ctl.PublishAll)
	g.Get("/:type", ctl.ListDirty)
	g.Post("/:type", ctl.PublishKind)
	g.Get("/:type/:id", ctl.IsDirty)
	g.Post("/:type/:id", ctl.PublishOne)
	g.Post("/:type/:id/revert", ctl.Revert)
	g.Post("/:type/:id/unpublish", ctl.Unpublish)
}

// Base path: /api/published (public, read only)
func PublicationPublicRoutes(public fiber.Router, db *gorm.DB, svc *service.PublicationService, c cache.PublicCache) {
	ctl := pubCtl.NewPublicController(db, svc, c)

	g := public.Group("/published")
	g.Get("/map/active", ctl.ActiveMap)
	g.Get("/maps", ctl.Maps)
	g.Get("/buildings", ctl.Buildings)
	g.Get("/buildings/:id", ctl.Building)
	g.Get("/rooms/building/:buildingId", ctl.Rooms)
	g.Get("/employees", ctl.Employees)
	g.Get("/employees/building/:buildingId", ctl.Employees)
}
