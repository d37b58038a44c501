package model

import (
	"time"

	"gorm.io/datatypes"
)

type ItemType string

const (
	ItemMap      ItemType = "map"
	ItemBuilding ItemType = "building"
	ItemRoom     ItemType = "room"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemMap, ItemBuilding, ItemRoom:
		return true
	}
	return false
}

// State of a deletion: the row still exists (staged) or is gone (trashed).
type State string

const (
	StatePendingDeletion State = "pending_deletion"
	StateTrashed         State = "trashed"
)

// DeletedItemModel is one entry of the recycle bin. ItemData holds the full
// serialisation of the entity (and its children) at the time it was staged.
type DeletedItemModel struct {
	ID         uint           `gorm:"column:id;primaryKey" json:"id"`
	ItemType   ItemType       `gorm:"column:item_type;type:varchar(32);not null;index:idx_deleted_items_type_original" json:"item_type"`
	OriginalID uint           `gorm:"column:original_id;not null;index:idx_deleted_items_type_original" json:"original_id"`
	ItemName   string         `gorm:"column:item_name;type:varchar(255);not null;default:''" json:"item_name"`
	ItemData   datatypes.JSON `gorm:"column:item_data;type:jsonb;not null" json:"item_data"`
	DeletedBy  *string        `gorm:"column:deleted_by;type:varchar(255)" json:"deleted_by,omitempty"`
	DeletedAt  time.Time      `gorm:"column:deleted_at;not null;index" json:"deleted_at"`
}

func (DeletedItemModel) TableName() string { return "deleted_items" }
