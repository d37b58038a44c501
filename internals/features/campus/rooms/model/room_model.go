package model

import (
	"time"

	"gorm.io/datatypes"
)

// RoomModel is a 360° panorama attached to a building.
type RoomModel struct {
	ID                uint    `gorm:"column:id;primaryKey" json:"id"`
	BuildingID        uint    `gorm:"column:building_id;not null;index" json:"building_id"`
	Name              string  `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description       *string `gorm:"column:description;type:text" json:"description"`
	PanoramaImagePath string  `gorm:"column:panorama_image_path;type:text;not null;default:''" json:"panorama_image_path"`
	ThumbnailPath     *string `gorm:"column:thumbnail_path;type:text" json:"thumbnail_path"`

	IsPublished     bool           `gorm:"column:is_published;not null;default:false" json:"is_published"`
	PublishedAt     *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	PublishedBy     *string        `gorm:"column:published_by;type:varchar(255)" json:"published_by,omitempty"`
	PublishedData   datatypes.JSON `gorm:"column:published_data;type:jsonb" json:"published_data,omitempty"`
	PendingDeletion bool           `gorm:"column:pending_deletion;not null;default:false" json:"pending_deletion"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (RoomModel) TableName() string { return "rooms" }

func (r *RoomModel) HasSnapshot() bool {
	s := string(r.PublishedData)
	return len(r.PublishedData) > 0 && s != "null" && s != "{}"
}
