package campus

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/logger"
)

type EmployeeSeed struct {
	Name       string  `json:"employee_name"`
	Position   *string `json:"position"`
	Department *string `json:"department"`
	Email      *string `json:"email"`
	Contact    *string `json:"contact_number"`
	Image      string  `json:"employee_image"`
}

type RoomSeed struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Panorama    string  `json:"panorama_image_path"`
	Thumbnail   *string `json:"thumbnail_path"`
}

type BuildingSeed struct {
	Name        string         `json:"building_name"`
	Description *string        `json:"description"`
	Services    []string       `json:"services"`
	X           float64        `json:"x_coordinate"`
	Y           float64        `json:"y_coordinate"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Image       *string        `json:"image_path"`
	ModalImage  *string        `json:"modal_image_path"`
	Employees   []EmployeeSeed `json:"employees"`
	Rooms       []RoomSeed     `json:"rooms"`
}

type MapSeed struct {
	Name      string         `json:"name"`
	ImagePath string         `json:"image_path"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	IsActive  bool           `json:"is_active"`
	Buildings []BuildingSeed `json:"buildings"`
}

// SeedCampusFromJSON inserts maps with their buildings, employees and rooms
// as unpublished drafts. Maps whose name already exists are skipped.
func SeedCampusFromJSON(ctx context.Context, db *gorm.DB, filePath string) error {
	log := logger.App()
	log.Infof("📥 reading campus seed from %s", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrap(err, "read campus seed")
	}
	var maps []MapSeed
	if err := json.Unmarshal(file, &maps); err != nil {
		return errors.Wrap(err, "decode campus seed")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ms := range maps {
			var n int64
			if err := tx.Model(&mapModel.MapModel{}).Where("name = ?", ms.Name).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				log.Infof("ℹ️ map %q exists, skipped", ms.Name)
				continue
			}
			if ms.IsActive {
				if err := tx.Model(&mapModel.MapModel{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
					return err
				}
			}
			m := mapModel.MapModel{Name: ms.Name, ImagePath: ms.ImagePath, Width: ms.Width, Height: ms.Height, IsActive: ms.IsActive}
			if err := tx.Create(&m).Error; err != nil {
				return errors.Wrapf(err, "seed map %q", ms.Name)
			}
			for _, bs := range ms.Buildings {
				if err := seedBuilding(tx, m.ID, bs); err != nil {
					return err
				}
			}
			log.Infof("✅ map %q seeded with %d buildings", ms.Name, len(ms.Buildings))
		}
		return nil
	})
}

func seedBuilding(tx *gorm.DB, mapID uint, bs BuildingSeed) error {
	services := datatypes.JSON("[]")
	if len(bs.Services) > 0 {
		raw, err := json.Marshal(bs.Services)
		if err != nil {
			return err
		}
		services = raw
	}
	b := buildingModel.BuildingModel{
		MapID:          mapID,
		BuildingName:   bs.Name,
		Description:    bs.Description,
		Services:       services,
		XCoordinate:    bs.X,
		YCoordinate:    bs.Y,
		Width:          bs.Width,
		Height:         bs.Height,
		ImagePath:      bs.Image,
		ModalImagePath: bs.ModalImage,
		IsActive:       true,
	}
	if err := tx.Omit("Employees", "Rooms").Create(&b).Error; err != nil {
		return errors.Wrapf(err, "seed building %q", bs.Name)
	}
	for _, es := range bs.Employees {
		e := employeeModel.EmployeeModel{
			BuildingID:    b.ID,
			EmployeeName:  es.Name,
			Position:      es.Position,
			Department:    es.Department,
			Email:         es.Email,
			ContactNumber: es.Contact,
			EmployeeImage: employeeModel.ImageOrDefault(es.Image),
		}
		if err := tx.Create(&e).Error; err != nil {
			return errors.Wrapf(err, "seed employee %q", es.Name)
		}
	}
	for _, rs := range bs.Rooms {
		r := roomModel.RoomModel{
			BuildingID:        b.ID,
			Name:              rs.Name,
			Description:       rs.Description,
			PanoramaImagePath: rs.Panorama,
			ThumbnailPath:     rs.Thumbnail,
		}
		if err := tx.Create(&r).Error; err != nil {
			return errors.Wrapf(err, "seed room %q", rs.Name)
		}
	}
	return nil
}
