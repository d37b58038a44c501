package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"campusmap_backend/internals/features/activity/model"
	helper "campusmap_backend/internals/helpers"
	"campusmap_backend/internals/logger"
)

// Actions written to activity_logs.
const (
	ActionCreated            = "created"
	ActionUpdated            = "updated"
	ActionDeleted            = "deleted"
	ActionPublished          = "published"
	ActionPublishedDeletion  = "published_deletion"
	ActionReverted           = "reverted"
	ActionUnpublished        = "unpublished"
	ActionActivated          = "activated"
	ActionRestored           = "restored"
	ActionPermanentlyDeleted = "permanently_deleted"
	ActionTrashEmptied       = "trash_emptied"
	ActionLayoutSaved        = "layout_saved"
	ActionLogin              = "login"
	ActionLogout             = "logout"
)

// PublishedAction returns published_map, published_building, ...
func PublishedAction(kind string) string { return ActionPublished + "_" + kind }

// Entry describes one change.
type Entry struct {
	Action     string
	TargetType string
	TargetID   *uint
	TargetName string
	Details    map[string]any
}

// Recorder receives change descriptions. Implementations never fail the
// caller: errors are logged and dropped.
type Recorder interface {
	Record(ctx context.Context, actor helper.Actor, e Entry)
}

type ActivityService struct {
	DB  *gorm.DB
	log *logrus.Logger
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db, log: logger.Audit()}
}

func (s *ActivityService) Record(ctx context.Context, actor helper.Actor, e Entry) {
	row := model.ActivityLogModel{
		UserID:     actor.ID,
		UserName:   actor.DisplayName(),
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		TargetName: e.TargetName,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			row.Details = datatypes.JSON(b)
		}
	}

	fields := logrus.Fields{
		"user":   row.UserName,
		"action": row.Action,
		"target": row.TargetType,
		"name":   row.TargetName,
	}
	if e.TargetID != nil {
		fields["target_id"] = *e.TargetID
	}
	s.log.WithFields(fields).Info("activity")

	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.WithFields(fields).WithError(err).Error("❌ failed to record activity")
	}
}

type ListFilter struct {
	Action     string
	TargetType string
	UserName   string
}

func (s *ActivityService) List(ctx context.Context, f ListFilter, p helper.Paging) ([]model.ActivityLogModel, int64, error) {
	q := s.DB.WithContext(ctx).Model(&model.ActivityLogModel{})
	if v := strings.TrimSpace(f.Action); v != "" {
		q = q.Where("action = ?", v)
	}
	if v := strings.TrimSpace(f.TargetType); v != "" {
		q = q.Where("target_type = ?", v)
	}
	if v := strings.TrimSpace(f.UserName); v != "" {
		q = q.Where("LOWER(user_name) LIKE ?", "%"+strings.ToLower(v)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, helper.Storage(err, "count activity logs")
	}

	var rows []model.ActivityLogModel
	if err := q.Order("created_at DESC, id DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, helper.Storage(err, "list activity logs")
	}
	return rows, total, nil
}

// Clear removes entries older than the cutoff, or every entry when the
// cutoff is zero.
func (s *ActivityService) Clear(ctx context.Context, olderThan time.Time) (int64, error) {
	q := s.DB.WithContext(ctx)
	if olderThan.IsZero() {
		q = q.Where("1 = 1")
	} else {
		q = q.Where("created_at < ?", olderThan)
	}
	res := q.Delete(&model.ActivityLogModel{})
	if res.Error != nil {
		return 0, helper.Storage(res.Error, "clear activity logs")
	}
	return res.RowsAffected, nil
}

// NopRecorder drops every entry.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, helper.Actor, Entry) {}
