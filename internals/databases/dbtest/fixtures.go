package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
)

func Str(s string) *string { return &s }

func CreateMap(t testing.TB, db *gorm.DB, name string, active bool) mapModel.MapModel {
	t.Helper()
	m := mapModel.MapModel{
		Name:      name,
		ImagePath: "images/maps/" + name + ".webp",
		Width:     1200,
		Height:    800,
		IsActive:  active,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func CreateBuilding(t testing.TB, db *gorm.DB, mapID uint, name string) buildingModel.BuildingModel {
	t.Helper()
	b := buildingModel.BuildingModel{
		MapID:        mapID,
		BuildingName: name,
		Description:  Str(name + " description"),
		XCoordinate:  10,
		YCoordinate:  20,
		Width:        30,
		Height:       40,
		ImagePath:    Str("images/buildings/" + name + ".webp"),
		IsActive:     true,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func CreateEmployee(t testing.TB, db *gorm.DB, buildingID uint, name string) employeeModel.EmployeeModel {
	t.Helper()
	e := employeeModel.EmployeeModel{
		BuildingID:    buildingID,
		EmployeeName:  name,
		Position:      Str("Staff"),
		EmployeeImage: employeeModel.DefaultEmployeeImage,
	}
	require.NoError(t, db.Create(&e).Error)
	return e
}

func CreateRoom(t testing.TB, db *gorm.DB, buildingID uint, name string) roomModel.RoomModel {
	t.Helper()
	r := roomModel.RoomModel{
		BuildingID:        buildingID,
		Name:              name,
		PanoramaImagePath: "images/rooms/" + name + ".webp",
		ThumbnailPath:     Str("images/rooms/thumbs/" + name + ".webp"),
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}
