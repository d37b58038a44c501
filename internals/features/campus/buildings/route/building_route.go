package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	buildingCtl "campusmap_backend/internals/features/campus/buildings/controller"
	trashService "campusmap_backend/internals/features/trash/service"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

// Base path: /api/buildings (admin)
func BuildingAdminRoutes(admin fiber.Router, db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) {
	ctl := buildingCtl.NewBuildingController(db, images, trash, rec)

	g := admin.Group("/buildings")
	g.Get("/", ctl.List)
	g.Post("/", ctl.Create)
	g.Get("/:id", ctl.Show)
	g.Put("/:id", ctl.Update)
	g.Delete("/:id", ctl.Delete)
	g.Post("/:id/image", ctl.UploadImage)
	g.Get("/:id/rooms", ctl.Rooms)
}
