package model

import (
	"time"

	"gorm.io/datatypes"

	empModel "campusmap_backend/internals/features/campus/employees/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
)

type BuildingModel struct {
	ID             uint           `gorm:"column:id;primaryKey" json:"id"`
	MapID          uint           `gorm:"column:map_id;not null;index" json:"map_id"`
	BuildingName   string         `gorm:"column:building_name;type:varchar(255);not null" json:"building_name"`
	Description    *string        `gorm:"column:description;type:text" json:"description"`
	Services       datatypes.JSON `gorm:"column:services;type:jsonb" json:"services"`
	XCoordinate    float64        `gorm:"column:x_coordinate;not null;default:0" json:"x_coordinate"`
	YCoordinate    float64        `gorm:"column:y_coordinate;not null;default:0" json:"y_coordinate"`
	Width          float64        `gorm:"column:width;not null;default:0" json:"width"`
	Height         float64        `gorm:"column:height;not null;default:0" json:"height"`
	Latitude       *float64       `gorm:"column:latitude" json:"latitude"`
	Longitude      *float64       `gorm:"column:longitude" json:"longitude"`
	ImagePath      *string        `gorm:"column:image_path;type:text" json:"image_path"`
	ModalImagePath *string        `gorm:"column:modal_image_path;type:text" json:"modal_image_path"`
	IsActive       bool           `gorm:"column:is_active;not null" json:"is_active"`

	IsPublished     bool           `gorm:"column:is_published;not null;default:false" json:"is_published"`
	PublishedAt     *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	PublishedBy     *string        `gorm:"column:published_by;type:varchar(255)" json:"published_by,omitempty"`
	PublishedData   datatypes.JSON `gorm:"column:published_data;type:jsonb" json:"published_data,omitempty"`
	PendingDeletion bool           `gorm:"column:pending_deletion;not null;default:false" json:"pending_deletion"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Employees []empModel.EmployeeModel `gorm:"foreignKey:BuildingID" json:"-"`
	Rooms     []roomModel.RoomModel    `gorm:"foreignKey:BuildingID" json:"-"`
}

func (BuildingModel) TableName() string { return "buildings" }

func (b *BuildingModel) HasSnapshot() bool {
	s := string(b.PublishedData)
	return len(b.PublishedData) > 0 && s != "null" && s != "{}"
}
