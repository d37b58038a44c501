package database

import (
	"gorm.io/gorm"

	activityModel "campusmap_backend/internals/features/activity/model"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	trashModel "campusmap_backend/internals/features/trash/model"
	authModel "campusmap_backend/internals/features/users/auth/model"
)

// AutoMigrate builds the schema from the models. Used for SQLite in tests and
// local runs; Postgres deployments use Migrate.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&mapModel.MapModel{},
		&buildingModel.BuildingModel{},
		&employeeModel.EmployeeModel{},
		&roomModel.RoomModel{},
		&trashModel.DeletedItemModel{},
		&activityModel.ActivityLogModel{},
		&authModel.AdminModel{},
		&authModel.TokenBlacklist{},
	); err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uq_maps_single_active ON maps (is_active) WHERE is_active").Error
}
