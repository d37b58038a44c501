package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	employeeCtl "campusmap_backend/internals/features/campus/employees/controller"
	trashService "campusmap_backend/internals/features/trash/service"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

// Base path: /api/employees (admin)
func EmployeeAdminRoutes(admin fiber.Router, db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) {
	ctl := employeeCtl.NewEmployeeController(db, images, trash, rec)

	g := admin.Group("/employees")
	g.Get("/", ctl.List)
	g.Post("/", ctl.Create)
	g.Get("/building/:buildingId", ctl.ByBuilding)
	g.Get("/:id", ctl.Show)
	g.Put("/:id", ctl.Update)
	g.Delete("/:id", ctl.Delete)
}
