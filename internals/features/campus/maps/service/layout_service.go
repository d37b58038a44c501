package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	"campusmap_backend/internals/features/campus/maps/dto"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	helper "campusmap_backend/internals/helpers"
)

// Layout is the editor's saved arrangement of a map. It is independent of
// publication and never served to the public app.
type Layout struct {
	Map       LayoutMap        `json:"map"`
	Buildings []LayoutBuilding `json:"buildings"`
	SavedAt   *time.Time       `json:"saved_at"`
}

type LayoutMap struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type LayoutBuilding struct {
	ID           uint           `json:"id"`
	BuildingName string         `json:"building_name"`
	Description  *string        `json:"description"`
	Services     datatypes.JSON `json:"services"`
	XCoordinate  float64        `json:"x_coordinate"`
	YCoordinate  float64        `json:"y_coordinate"`
	Width        float64        `json:"width"`
	Height       float64        `json:"height"`
	MarkerImage  *string        `json:"marker_image"`
	ModalImage   *string        `json:"modal_image"`
}

// BuildLayout renders the current arrangement of m.
func BuildLayout(db *gorm.DB, m *mapModel.MapModel) (*Layout, error) {
	var rows []buildingModel.BuildingModel
	if err := db.Where("map_id = ? AND pending_deletion = ?", m.ID, false).Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list buildings")
	}
	out := &Layout{
		Map:       LayoutMap{ID: m.ID, Name: m.Name, ImagePath: m.ImagePath, Width: m.Width, Height: m.Height},
		Buildings: make([]LayoutBuilding, 0, len(rows)),
	}
	for _, b := range rows {
		out.Buildings = append(out.Buildings, LayoutBuilding{
			ID:           b.ID,
			BuildingName: b.BuildingName,
			Description:  b.Description,
			Services:     b.Services,
			XCoordinate:  b.XCoordinate,
			YCoordinate:  b.YCoordinate,
			Width:        b.Width,
			Height:       b.Height,
			MarkerImage:  b.ImagePath,
			ModalImage:   b.ModalImagePath,
		})
	}
	return out, nil
}

// SaveLayout applies the given building positions and stores the resulting
// arrangement on the map.
func SaveLayout(ctx context.Context, db *gorm.DB, mapID uint, positions []dto.LayoutPosition) (*Layout, error) {
	var layout *Layout
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m mapModel.MapModel
		if err := tx.First(&m, mapID).Error; err != nil {
			return helper.Storage(err, "load map")
		}

		for _, p := range positions {
			upd := map[string]any{}
			if p.XCoordinate != nil {
				upd["x_coordinate"] = *p.XCoordinate
			}
			if p.YCoordinate != nil {
				upd["y_coordinate"] = *p.YCoordinate
			}
			if p.Width != nil {
				upd["width"] = *p.Width
			}
			if p.Height != nil {
				upd["height"] = *p.Height
			}
			if len(upd) == 0 {
				continue
			}
			res := tx.Model(&buildingModel.BuildingModel{}).Where("id = ? AND map_id = ?", p.ID, mapID).Updates(upd)
			if res.Error != nil {
				return helper.Storage(res.Error, "move building")
			}
			if res.RowsAffected == 0 {
				return helper.Invalid("building %d is not on map %d", p.ID, mapID)
			}
		}

		var err error
		if layout, err = BuildLayout(tx, &m); err != nil {
			return err
		}
		now := time.Now()
		layout.SavedAt = &now
		raw, err := json.Marshal(layout)
		if err != nil {
			return errors.Wrap(err, "encode layout")
		}
		return helper.Storage(tx.Model(&m).Update("layout_snapshot", datatypes.JSON(raw)).Error, "save layout")
	})
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// GetLayout returns the stored layout, or the current arrangement with a nil
// SavedAt when none was saved.
func GetLayout(ctx context.Context, db *gorm.DB, mapID uint) (*Layout, error) {
	db = db.WithContext(ctx)
	var m mapModel.MapModel
	if err := db.First(&m, mapID).Error; err != nil {
		return nil, helper.Storage(err, "load map")
	}
	if len(m.LayoutSnapshot) > 0 && string(m.LayoutSnapshot) != "null" {
		var l Layout
		if err := json.Unmarshal(m.LayoutSnapshot, &l); err == nil {
			return &l, nil
		}
	}
	return BuildLayout(db, &m)
}
