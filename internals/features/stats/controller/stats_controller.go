package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	trashModel "campusmap_backend/internals/features/trash/model"
	helper "campusmap_backend/internals/helpers"
)

type StatsController struct {
	DB *gorm.DB
}

func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{DB: db}
}

// KindStats counts one entity table. Draft means never published or
// unpublished since; pending counts rows staged for deletion.
type KindStats struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Draft     int64 `json:"draft"`
	Pending   int64 `json:"pending_deletion"`
}

type TrashStats struct {
	Pending int64 `json:"pending_deletion"`
	Trashed int64 `json:"trashed"`
}

type Stats struct {
	Maps      KindStats  `json:"maps"`
	Buildings KindStats  `json:"buildings"`
	Rooms     KindStats  `json:"rooms"`
	Employees KindStats  `json:"employees"`
	Trash     TrashStats `json:"trash"`
}

func count(db *gorm.DB, m any, withPending bool) (KindStats, error) {
	var s KindStats
	if err := db.Model(m).Count(&s.Total).Error; err != nil {
		return s, err
	}
	if err := db.Model(m).Where("is_published = ?", true).Count(&s.Published).Error; err != nil {
		return s, err
	}
	s.Draft = s.Total - s.Published
	if withPending {
		if err := db.Model(m).Where("pending_deletion = ?", true).Count(&s.Pending).Error; err != nil {
			return s, err
		}
	}
	return s, nil
}

func (ctl *StatsController) load(ctx context.Context) (*Stats, error) {
	db := ctl.DB.WithContext(ctx)
	var (
		out Stats
		err error
	)
	if out.Maps, err = count(db, &mapModel.MapModel{}, true); err != nil {
		return nil, err
	}
	if out.Buildings, err = count(db, &buildingModel.BuildingModel{}, true); err != nil {
		return nil, err
	}
	if out.Rooms, err = count(db, &roomModel.RoomModel{}, true); err != nil {
		return nil, err
	}
	if out.Employees, err = count(db, &employeeModel.EmployeeModel{}, false); err != nil {
		return nil, err
	}
	// every staged row owns one ledger entry; the rest are already gone
	var entries int64
	if err := db.Model(&trashModel.DeletedItemModel{}).Count(&entries).Error; err != nil {
		return nil, err
	}
	out.Trash.Pending = out.Maps.Pending + out.Buildings.Pending + out.Rooms.Pending
	out.Trash.Trashed = max(entries-out.Trash.Pending, 0)
	return &out, nil
}

// GET /api/stats
func (ctl *StatsController) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := ctl.load(ctx)
	if err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load stats"))
	}
	return helper.JsonOK(c, "stats", s)
}
