package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	mapCtl "campusmap_backend/internals/features/campus/maps/controller"
	pubService "campusmap_backend/internals/features/publication/service"
	trashService "campusmap_backend/internals/features/trash/service"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

// Base path: /api/map (admin)
func MapAdminRoutes(admin fiber.Router, db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, pub *pubService.PublicationService, rec activityService.Recorder) {
	ctl := mapCtl.NewMapController(db, images, trash, pub, rec)

	g := admin.Group("/map")
	g.Get("/", ctl.List)
	g.Post("/", ctl.Create)
	g.Get("/active", ctl.Active)
	g.Post("/upload", ctl.Upload)
	g.Get("/:id", ctl.Show)
	g.Put("/:id", ctl.Update)
	g.Delete("/:id", ctl.Delete)
	g.Post("/:id/activate", ctl.Activate)
	g.Get("/:id/layout", ctl.Layout)
	g.Post("/:id/layout", ctl.SaveLayout)
}
