package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DefaultEmployeeImage is stored when no photo was uploaded. It is a real
// asset path, never deleted by image cleanup.
const DefaultEmployeeImage = "images/employees/default-profile-icon.png"

type EmployeeModel struct {
	ID            uint    `gorm:"column:id;primaryKey" json:"id"`
	BuildingID    uint    `gorm:"column:building_id;not null;index" json:"building_id"`
	EmployeeName  string  `gorm:"column:employee_name;type:varchar(255);not null" json:"employee_name"`
	Position      *string `gorm:"column:position;type:varchar(255)" json:"position"`
	Department    *string `gorm:"column:department;type:varchar(255)" json:"department"`
	Email         *string `gorm:"column:email;type:varchar(255)" json:"email"`
	ContactNumber *string `gorm:"column:contact_number;type:varchar(64)" json:"contact_number"`
	EmployeeImage string  `gorm:"column:employee_image;type:text;not null;default:''" json:"employee_image"`

	IsPublished   bool           `gorm:"column:is_published;not null;default:false" json:"is_published"`
	PublishedAt   *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	PublishedBy   *string        `gorm:"column:published_by;type:varchar(255)" json:"published_by,omitempty"`
	PublishedData datatypes.JSON `gorm:"column:published_data;type:jsonb" json:"published_data,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (EmployeeModel) TableName() string { return "employees" }

func (e *EmployeeModel) HasSnapshot() bool {
	s := string(e.PublishedData)
	return len(e.PublishedData) > 0 && s != "null" && s != "{}"
}

// ImageOrDefault returns the stored image, or the default sentinel when empty.
func ImageOrDefault(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return DefaultEmployeeImage
	}
	return ref
}
