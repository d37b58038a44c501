package service

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/publication/snapshot"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	"campusmap_backend/internals/logger"
)

// Result of a publish or revert on one entity.
type Result string

const (
	ResultUpdated Result = "updated"
	ResultDeleted Result = "deleted"
)

// PublicationService owns the draft/publish state machine: dirty
// evaluation, publish, revert, unpublish, map activation and the public
// read surface.
type PublicationService struct {
	DB       *gorm.DB
	Trash    *trashService.TrashService
	Recorder activityService.Recorder
	Cache    cache.PublicCache
	log      *logrus.Logger
}

func NewPublicationService(db *gorm.DB, trash *trashService.TrashService, rec activityService.Recorder, c cache.PublicCache) *PublicationService {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	if c == nil {
		c = cache.NopCache{}
	}
	return &PublicationService{DB: db, Trash: trash, Recorder: rec, Cache: c, log: logger.App()}
}

// ParseKind accepts the singular or plural kind name used in routes.
func ParseKind(s string) (snapshot.Kind, error) {
	switch s {
	case "map", "maps":
		return snapshot.KindMap, nil
	case "building", "buildings":
		return snapshot.KindBuilding, nil
	case "employee", "employees":
		return snapshot.KindEmployee, nil
	case "room", "rooms":
		return snapshot.KindRoom, nil
	}
	return "", helper.Invalid("unknown entity type %q", s)
}

// publishOrder is the processing order of PublishAll.
var publishOrder = []snapshot.Kind{snapshot.KindMap, snapshot.KindBuilding, snapshot.KindRoom, snapshot.KindEmployee}

func modelOf(k snapshot.Kind) any {
	switch k {
	case snapshot.KindMap:
		return &mapModel.MapModel{}
	case snapshot.KindBuilding:
		return &buildingModel.BuildingModel{}
	case snapshot.KindEmployee:
		return &employeeModel.EmployeeModel{}
	default:
		return &roomModel.RoomModel{}
	}
}

func itemTypeOf(k snapshot.Kind) trashModel.ItemType {
	return trashModel.ItemType(k)
}

// activeMapID returns the id of the active map, or 0.
func activeMapID(db *gorm.DB) (uint, error) {
	var ids []uint
	if err := db.Model(&mapModel.MapModel{}).Where("is_active = ?", true).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, helper.Storage(err, "find active map")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func employeesByBuilding(db *gorm.DB, buildingIDs []uint) (map[uint][]employeeModel.EmployeeModel, error) {
	out := make(map[uint][]employeeModel.EmployeeModel, len(buildingIDs))
	if len(buildingIDs) == 0 {
		return out, nil
	}
	var rows []employeeModel.EmployeeModel
	if err := db.Where("building_id IN ?", buildingIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "load employees")
	}
	for _, e := range rows {
		out[e.BuildingID] = append(out[e.BuildingID], e)
	}
	return out, nil
}
