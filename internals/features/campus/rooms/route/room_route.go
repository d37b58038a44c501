package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	roomCtl "campusmap_backend/internals/features/campus/rooms/controller"
	trashService "campusmap_backend/internals/features/trash/service"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

// Base path: /api/rooms (admin)
func RoomAdminRoutes(admin fiber.Router, db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) {
	ctl := roomCtl.NewRoomController(db, images, trash, rec)

	g := admin.Group("/rooms")
	g.Get("/", ctl.List)
	g.Post("/", ctl.Create)
	g.Get("/building/:buildingId", ctl.ByBuilding)
	g.Get("/:id", ctl.Show)
	g.Put("/:id", ctl.Update)
	g.Delete("/:id", ctl.Delete)
}
