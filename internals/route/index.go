package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	activityRoute "campusmap_backend/internals/features/activity/route"
	activityService "campusmap_backend/internals/features/activity/service"
	buildingRoute "campusmap_backend/internals/features/campus/buildings/route"
	employeeRoute "campusmap_backend/internals/features/campus/employees/route"
	mapRoute "campusmap_backend/internals/features/campus/maps/route"
	roomRoute "campusmap_backend/internals/features/campus/rooms/route"
	pubRoute "campusmap_backend/internals/features/publication/route"
	pubService "campusmap_backend/internals/features/publication/service"
	statsRoute "campusmap_backend/internals/features/stats/route"
	trashRoute "campusmap_backend/internals/features/trash/route"
	trashService "campusmap_backend/internals/features/trash/service"
	authRoute "campusmap_backend/internals/features/users/auth/route"
	authService "campusmap_backend/internals/features/users/auth/service"
	helperOSS "campusmap_backend/internals/helpers/oss"
	"campusmap_backend/internals/logger"
	authMiddleware "campusmap_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps are the shared services every feature route is built from.
type Deps struct {
	DB          *gorm.DB
	Images      helperOSS.ImageStore
	Cache       cache.PublicCache
	Auth        *authService.AuthService
	Activity    *activityService.ActivityService
	Trash       *trashService.TrashService
	Publication *pubService.PublicationService
}

func NewDeps(db *gorm.DB, images helperOSS.ImageStore, c cache.PublicCache, auth *authService.AuthService) *Deps {
	if c == nil {
		c = cache.NopCache{}
	}
	activity := activityService.NewActivityService(db)
	trash := trashService.NewTrashService(db, images, activity, c)
	return &Deps{
		DB:          db,
		Images:      images,
		Cache:       c,
		Auth:        auth,
		Activity:    activity,
		Trash:       trash,
		Publication: pubService.NewPublicationService(db, trash, activity, c),
	}
}

func SetupRoutes(app *fiber.App, d *Deps) {
	startTime = time.Now()
	log := logger.App()

	BaseRoutes(app, d.DB)

	// ===================== PUBLIC =====================
	log.Info("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api")
	authRoute.AuthPublicRoutes(public, d.Auth, d.Activity)
	pubRoute.PublicationPublicRoutes(public, d.DB, d.Publication, d.Cache)

	// ===================== ADMIN (JWT) =====================
	log.Info("[INFO] Setting up ADMIN group...")
	admin := app.Group("/api", authMiddleware.AuthMiddleware(d.Auth))
	authRoute.AuthAdminRoutes(admin, d.Auth, d.Activity)
	mapRoute.MapAdminRoutes(admin, d.DB, d.Images, d.Trash, d.Publication, d.Activity)
	buildingRoute.BuildingAdminRoutes(admin, d.DB, d.Images, d.Trash, d.Activity)
	employeeRoute.EmployeeAdminRoutes(admin, d.DB, d.Images, d.Trash, d.Activity)
	roomRoute.RoomAdminRoutes(admin, d.DB, d.Images, d.Trash, d.Activity)
	pubRoute.PublicationAdminRoutes(admin, d.DB, d.Publication)
	trashRoute.TrashAdminRoutes(admin, d.DB, d.Trash)
	activityRoute.ActivityAdminRoutes(admin, d.DB, d.Activity)
	statsRoute.StatsAdminRoutes(admin, d.DB)

	log.Info("[INFO] Routes ready")
}
