package model

import (
	"time"

	"gorm.io/datatypes"
)

// MapModel is one campus map (a base image with buildings placed on it).
// At most one row may have IsActive=true (uq_maps_single_active).
type MapModel struct {
	ID        uint   `gorm:"column:id;primaryKey" json:"id"`
	Name      string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	ImagePath string `gorm:"column:image_path;type:text;not null;default:''" json:"image_path"`
	Width     int    `gorm:"column:width;not null;default:0" json:"width"`
	Height    int    `gorm:"column:height;not null;default:0" json:"height"`
	IsActive  bool   `gorm:"column:is_active;not null;default:false" json:"is_active"`

	// Publication
	IsPublished     bool           `gorm:"column:is_published;not null;default:false" json:"is_published"`
	PublishedAt     *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	PublishedBy     *string        `gorm:"column:published_by;type:varchar(255)" json:"published_by,omitempty"`
	PublishedData   datatypes.JSON `gorm:"column:published_data;type:jsonb" json:"published_data,omitempty"`
	PendingDeletion bool           `gorm:"column:pending_deletion;not null;default:false" json:"pending_deletion"`

	LayoutSnapshot datatypes.JSON `gorm:"column:layout_snapshot;type:jsonb" json:"layout_snapshot,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MapModel) TableName() string { return "maps" }

func (m *MapModel) HasSnapshot() bool { return hasJSON(m.PublishedData) }

func hasJSON(j datatypes.JSON) bool {
	s := string(j)
	return len(j) > 0 && s != "null" && s != "{}"
}
