package service

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	"campusmap_backend/internals/features/publication/snapshot"
	helper "campusmap_backend/internals/helpers"
)

// Activate makes mapID the only active map.
//
// The public app follows the snapshot flagged active, so activation is a
// draft change. The published map losing activation has its current state
// frozen as its snapshot, a published target without a snapshot gets one
// from before the switch, and the switch itself goes live on the next
// publish.
func (s *PublicationService) Activate(ctx context.Context, mapID uint, actor helper.Actor) (*mapModel.MapModel, error) {
	var (
		target   mapModel.MapModel
		previous string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, mapID).Error; err != nil {
			return helper.Storage(err, "load map")
		}
		if target.PendingDeletion {
			return helper.Conflict("map %d is staged for deletion", mapID)
		}

		var current mapModel.MapModel
		err := tx.Where("is_active = ? AND id <> ?", true, mapID).Take(&current).Error
		switch {
		case err == nil:
			previous = current.Name
			if current.IsPublished {
				if err := freeze(tx, &current, true); err != nil {
					return err
				}
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return helper.Storage(err, "find active map")
		}

		if err := tx.Model(&mapModel.MapModel{}).
			Where("is_active = ? AND id <> ?", true, mapID).
			Update("is_active", false).Error; err != nil {
			return helper.Storage(err, "deactivate maps")
		}

		if target.IsPublished && !target.HasSnapshot() {
			if err := freeze(tx, &target, false); err != nil {
				return err
			}
		}
		target.IsActive = true
		return helper.Storage(tx.Model(&target).Update("is_active", true).Error, "activate map")
	})
	if err != nil {
		return nil, err
	}

	var buildings int64
	s.DB.WithContext(ctx).Model(&buildingModel.BuildingModel{}).Where("map_id = ?", mapID).Count(&buildings)
	id := target.ID
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionActivated,
		TargetType: string(snapshot.KindMap),
		TargetID:   &id,
		TargetName: target.Name,
		Details: map[string]any{
			"previous_active_map": previous,
			"width":               target.Width,
			"height":              target.Height,
			"building_count":      buildings,
		},
	})
	s.Cache.InvalidatePublic(ctx)
	return &target, nil
}

// freeze stores the map's current fields as its snapshot with the given
// activation state.
func freeze(tx *gorm.DB, m *mapModel.MapModel, active bool) error {
	snap := snapshot.CaptureMap(*m)
	snap.Fields["is_active"] = active
	raw, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	m.PublishedData = raw
	return helper.Storage(tx.Model(m).Update("published_data", raw).Error, "freeze map snapshot")
}
