package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityLogModel struct {
	ID         uint           `gorm:"column:id;primaryKey" json:"id"`
	UserID     *uint          `gorm:"column:user_id" json:"user_id,omitempty"`
	UserName   string         `gorm:"column:user_name;type:varchar(255);not null" json:"user_name"`
	Action     string         `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	TargetType string         `gorm:"column:target_type;type:varchar(64);not null;index" json:"target_type"`
	TargetID   *uint          `gorm:"column:target_id" json:"target_id,omitempty"`
	TargetName string         `gorm:"column:target_name;type:varchar(255);not null;default:''" json:"target_name"`
	Details    datatypes.JSON `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	IPAddress  string         `gorm:"column:ip_address;type:varchar(64);not null;default:''" json:"ip_address"`
	UserAgent  string         `gorm:"column:user_agent;type:text;not null;default:''" json:"user_agent"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (ActivityLogModel) TableName() string { return "activity_logs" }
