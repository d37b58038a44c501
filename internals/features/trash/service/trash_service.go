package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/trash/model"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
	"campusmap_backend/internals/logger"
	"campusmap_backend/internals/metrics"
)

// TrashService drives the deletion lifecycle of maps, buildings and rooms:
//
//	Active -> PendingDeletion   StageDeletion (ledger entry written, row flagged)
//	PendingDeletion -> Trashed  Finalize (row removed, ledger entry kept)
//	PendingDeletion|Trashed -> Active  Restore
//	PendingDeletion|Trashed -> gone    PermanentDelete
type TrashService struct {
	DB       *gorm.DB
	Images   helperOSS.ImageStore
	Recorder activityService.Recorder
	Cache    cache.PublicCache
	log      *logrus.Logger
}

func NewTrashService(db *gorm.DB, images helperOSS.ImageStore, rec activityService.Recorder, c cache.PublicCache) *TrashService {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	if c == nil {
		c = cache.NopCache{}
	}
	return &TrashService{DB: db, Images: images, Recorder: rec, Cache: c, log: logger.App()}
}

// TrashEntry is a ledger entry with its derived state.
type TrashEntry struct {
	model.DeletedItemModel
	State model.State `json:"state"`
}

type RestoreResult struct {
	ItemType   model.ItemType `json:"item_type"`
	OriginalID uint           `json:"original_id"`
	RestoredID uint           `json:"restored_id"`
	Recreated  bool           `json:"recreated"`
}

/* =========================
   Active -> PendingDeletion
   ========================= */

// StageDeletion records the entity in the ledger and flags it
// pending_deletion. The row and its images stay in place. Staging an
// already staged row refreshes its ledger entry.
func (s *TrashService) StageDeletion(ctx context.Context, t model.ItemType, id uint, actor helper.Actor) (*model.DeletedItemModel, error) {
	if !t.Valid() {
		return nil, helper.Invalid("unknown item type %q", t)
	}

	var entry *model.DeletedItemModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := upsertEntry(tx, t, id, actor)
		if err != nil {
			return err
		}
		entry = e

		updates := map[string]any{"pending_deletion": true}
		if t == model.ItemRoom {
			updates["is_published"] = false
		}
		return helper.Storage(tx.Model(modelFor(t)).Where("id = ?", id).Updates(updates).Error, "stage deletion")
	})
	if err != nil {
		return nil, err
	}

	s.Cache.InvalidatePublic(ctx)
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionDeleted,
		TargetType: string(t),
		TargetID:   &id,
		TargetName: entry.ItemName,
		Details:    map[string]any{"state": string(model.StatePendingDeletion), "trash_id": entry.ID},
	})
	return entry, nil
}

// MoveToTrash is StageDeletion under its recycle-bin name.
func (s *TrashService) MoveToTrash(ctx context.Context, t model.ItemType, id uint, actor helper.Actor) (*model.DeletedItemModel, error) {
	return s.StageDeletion(ctx, t, id, actor)
}

/* =========================
   PendingDeletion -> Trashed
   ========================= */

// Finalize removes the row (and its children) inside tx, keeping the ledger
// entry so the item stays restorable. A missing entry is written first.
func (s *TrashService) Finalize(tx *gorm.DB, t model.ItemType, id uint, actor helper.Actor) (*model.DeletedItemModel, error) {
	entry, err := upsertEntry(tx, t, id, actor)
	if err != nil {
		return nil, err
	}
	if err := DeleteRow(tx, t, id); err != nil {
		return nil, err
	}
	return entry, nil
}

// Purge finalises a staged entry without publishing.
func (s *TrashService) Purge(ctx context.Context, entryID uint, actor helper.Actor) error {
	e, err := s.entry(ctx, entryID)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := rowExists(tx, e.ItemType, e.OriginalID)
		if err != nil || !exists {
			return err
		}
		_, err = s.Finalize(tx, e.ItemType, e.OriginalID, actor)
		return err
	})
	if err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("purge", metrics.StatusFailed).Inc()
		return err
	}
	metrics.TrashOperationsTotal.WithLabelValues("purge", metrics.StatusOK).Inc()
	s.Cache.InvalidatePublic(ctx)
	return nil
}

// upsertEntry snapshots the live row into the ledger, reusing the newest
// entry of the same item.
func upsertEntry(tx *gorm.DB, t model.ItemType, id uint, actor helper.Actor) (*model.DeletedItemModel, error) {
	name, data, err := loadItem(tx, t, id)
	if err != nil {
		return nil, err
	}
	by := actor.DisplayName()
	now := time.Now()

	var e model.DeletedItemModel
	err = tx.Where("item_type = ? AND original_id = ?", t, id).Order("id DESC").First(&e).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		e = model.DeletedItemModel{
			ItemType:   t,
			OriginalID: id,
			ItemName:   name,
			ItemData:   data,
			DeletedBy:  &by,
			DeletedAt:  now,
		}
		if err := tx.Create(&e).Error; err != nil {
			return nil, helper.Storage(err, "create trash entry")
		}
	case err != nil:
		return nil, helper.Storage(err, "find trash entry")
	default:
		e.ItemName, e.ItemData, e.DeletedBy, e.DeletedAt = name, data, &by, now
		if err := tx.Save(&e).Error; err != nil {
			return nil, helper.Storage(err, "update trash entry")
		}
	}
	return &e, nil
}

/* =========================
   -> Active
   ========================= */

// Restore brings an entry back. A still-present row is un-flagged and left
// unpublished; a removed row is recreated from item_data under a new id,
// keeping only images the store still has. The ledger entry is removed.
// A failure leaves both the entry and any row untouched.
func (s *TrashService) Restore(ctx context.Context, entryID uint, actor helper.Actor) (*RestoreResult, error) {
	e, err := s.entry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	// image checks hit the store, keep them outside the transaction
	available := s.availableImages(ctx, itemImageRefs(e.ItemType, e.ItemData))

	res := &RestoreResult{ItemType: e.ItemType, OriginalID: e.OriginalID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := rowExists(tx, e.ItemType, e.OriginalID)
		if err != nil {
			return err
		}
		if exists {
			res.RestoredID = e.OriginalID
			if err := tx.Model(modelFor(e.ItemType)).Where("id = ?", e.OriginalID).
				Updates(map[string]any{"pending_deletion": false, "is_published": false}).Error; err != nil {
				return helper.Storage(err, "unflag row")
			}
		} else {
			res.Recreated = true
			newID, err := recreate(tx, e, available)
			if err != nil {
				return err
			}
			res.RestoredID = newID
		}
		return helper.Storage(tx.Delete(&model.DeletedItemModel{}, e.ID).Error, "delete trash entry")
	})
	if err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", metrics.StatusFailed).Inc()
		s.log.WithError(err).WithField("trash_id", entryID).Error("❌ restore failed")
		return nil, err
	}
	metrics.TrashOperationsTotal.WithLabelValues("restore", metrics.StatusOK).Inc()

	s.Cache.InvalidatePublic(ctx)
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionRestored,
		TargetType: string(e.ItemType),
		TargetID:   &res.RestoredID,
		TargetName: e.ItemName,
		Details:    map[string]any{"original_id": e.OriginalID, "recreated": res.Recreated},
	})
	return res, nil
}

func (s *TrashService) availableImages(ctx context.Context, refs []string) map[string]bool {
	out := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if _, seen := out[ref]; seen {
			continue
		}
		ok := false
		if s.Images != nil {
			exists, err := s.Images.Exists(ctx, ref)
			if err != nil {
				s.log.WithError(err).WithField("ref", ref).Warn("image existence check failed")
			}
			ok = exists
		}
		out[ref] = ok
	}
	return out
}

func recreate(tx *gorm.DB, e *model.DeletedItemModel, available map[string]bool) (uint, error) {
	keep := func(ref string) string {
		if ref == employeeModel.DefaultEmployeeImage || available[ref] {
			return ref
		}
		return ""
	}
	keepPtr := func(ref *string) *string {
		if ref == nil || keep(*ref) == "" {
			return nil
		}
		return ref
	}

	switch e.ItemType {
	case model.ItemRoom:
		var ri RoomItem
		if err := json.Unmarshal(e.ItemData, &ri); err != nil {
			return 0, helper.Conflict("corrupt item_data: %v", err)
		}
		if err := requireParent(tx, &buildingModel.BuildingModel{}, ri.Room.BuildingID, "building"); err != nil {
			return 0, err
		}
		return recreateRoom(tx, ri.Room, ri.Room.BuildingID, keep, keepPtr)

	case model.ItemBuilding:
		var bi BuildingItem
		if err := json.Unmarshal(e.ItemData, &bi); err != nil {
			return 0, helper.Conflict("corrupt item_data: %v", err)
		}
		if err := requireParent(tx, &mapModel.MapModel{}, bi.Building.MapID, "map"); err != nil {
			return 0, err
		}
		return recreateBuilding(tx, bi, bi.Building.MapID, keep, keepPtr)

	case model.ItemMap:
		var mi MapItem
		if err := json.Unmarshal(e.ItemData, &mi); err != nil {
			return 0, helper.Conflict("corrupt item_data: %v", err)
		}
		m := mi.Map
		resetPublication(&m.ID, &m.IsPublished, &m.PublishedAt, &m.PublishedBy, &m.PublishedData)
		m.PendingDeletion = false
		// another map may have been activated meanwhile
		m.IsActive = false
		m.ImagePath = keep(m.ImagePath)
		m.CreatedAt, m.UpdatedAt = time.Time{}, time.Time{}
		if err := tx.Create(&m).Error; err != nil {
			return 0, helper.Storage(err, "recreate map")
		}
		for _, bi := range mi.Buildings {
			if _, err := recreateBuilding(tx, bi, m.ID, keep, keepPtr); err != nil {
				return 0, err
			}
		}
		return m.ID, nil
	}
	return 0, helper.Invalid("unknown item type %q", e.ItemType)
}

func recreateBuilding(tx *gorm.DB, bi BuildingItem, mapID uint, keep func(string) string, keepPtr func(*string) *string) (uint, error) {
	b := bi.Building
	resetPublication(&b.ID, &b.IsPublished, &b.PublishedAt, &b.PublishedBy, &b.PublishedData)
	b.MapID = mapID
	b.PendingDeletion = false
	b.ImagePath = keepPtr(b.ImagePath)
	b.ModalImagePath = keepPtr(b.ModalImagePath)
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	b.Employees, b.Rooms = nil, nil
	if err := tx.Create(&b).Error; err != nil {
		return 0, helper.Storage(err, "recreate building")
	}

	for _, emp := range bi.Employees {
		emp := emp
		resetPublication(&emp.ID, &emp.IsPublished, &emp.PublishedAt, &emp.PublishedBy, &emp.PublishedData)
		emp.BuildingID = b.ID
		emp.EmployeeImage = employeeModel.ImageOrDefault(keep(emp.EmployeeImage))
		emp.CreatedAt, emp.UpdatedAt = time.Time{}, time.Time{}
		if err := tx.Create(&emp).Error; err != nil {
			return 0, helper.Storage(err, "recreate employee")
		}
	}
	for _, r := range bi.Rooms {
		if _, err := recreateRoom(tx, r, b.ID, keep, keepPtr); err != nil {
			return 0, err
		}
	}
	return b.ID, nil
}

func recreateRoom(tx *gorm.DB, r roomModel.RoomModel, buildingID uint, keep func(string) string, keepPtr func(*string) *string) (uint, error) {
	resetPublication(&r.ID, &r.IsPublished, &r.PublishedAt, &r.PublishedBy, &r.PublishedData)
	r.BuildingID = buildingID
	r.PendingDeletion = false
	r.PanoramaImagePath = keep(r.PanoramaImagePath)
	r.ThumbnailPath = keepPtr(r.ThumbnailPath)
	r.CreatedAt, r.UpdatedAt = time.Time{}, time.Time{}
	if err := tx.Create(&r).Error; err != nil {
		return 0, helper.Storage(err, "recreate room")
	}
	return r.ID, nil
}

func resetPublication(id *uint, published *bool, at **time.Time, by **string, data *datatypes.JSON) {
	*id = 0
	*published = false
	*at = nil
	*by = nil
	*data = nil
}

func requireParent(tx *gorm.DB, m any, id uint, kind string) error {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return helper.Storage(err, "check parent "+kind)
	}
	if n == 0 {
		return helper.Conflict("parent %s %d no longer exists", kind, id)
	}
	return nil
}

/* =========================
   -> gone
   ========================= */

// PermanentDelete removes the ledger entry and the row if still present,
// then deletes images nothing else references. Irreversible.
func (s *TrashService) PermanentDelete(ctx context.Context, entryID uint, actor helper.Actor) error {
	e, err := s.entry(ctx, entryID)
	if err != nil {
		return err
	}
	refs := itemImageRefs(e.ItemType, e.ItemData)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := rowExists(tx, e.ItemType, e.OriginalID)
		if err != nil {
			return err
		}
		if exists {
			if err := DeleteRow(tx, e.ItemType, e.OriginalID); err != nil {
				return err
			}
		}
		return helper.Storage(tx.Delete(&model.DeletedItemModel{}, e.ID).Error, "delete trash entry")
	})
	if err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("permanent_delete", metrics.StatusFailed).Inc()
		s.log.WithError(err).WithField("trash_id", entryID).Error("❌ permanent delete failed")
		return err
	}
	metrics.TrashOperationsTotal.WithLabelValues("permanent_delete", metrics.StatusOK).Inc()

	s.DeleteImages(ctx, refs)
	s.Cache.InvalidatePublic(ctx)
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionPermanentlyDeleted,
		TargetType: string(e.ItemType),
		TargetID:   &e.OriginalID,
		TargetName: e.ItemName,
	})
	return nil
}

// DeleteImages removes refs from the image store unless a stored row still
// points at them. Failures are logged.
func (s *TrashService) DeleteImages(ctx context.Context, refs []string) {
	if s.Images == nil {
		return
	}
	seen := map[string]struct{}{}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}

		used, err := ImageReferenced(ctx, s.DB, ref)
		if err != nil || used {
			continue
		}
		if err := s.Images.Delete(ctx, ref); err != nil {
			metrics.ImageDeletesTotal.WithLabelValues(metrics.StatusFailed).Inc()
			s.log.WithError(err).WithField("ref", ref).Warn("image delete failed")
			continue
		}
		metrics.ImageDeletesTotal.WithLabelValues(metrics.StatusOK).Inc()
	}
}

// EmptyTrash permanently deletes every entry and returns how many went.
func (s *TrashService) EmptyTrash(ctx context.Context, actor helper.Actor) (int, error) {
	var ids []uint
	if err := s.DB.WithContext(ctx).Model(&model.DeletedItemModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, helper.Storage(err, "list trash")
	}
	n := s.deleteAll(ctx, ids, actor)
	s.Recorder.Record(ctx, actor, activityService.Entry{
		Action:     activityService.ActionTrashEmptied,
		TargetType: "trash",
		Details:    map[string]any{"deleted": n, "total": len(ids)},
	})
	return n, nil
}

// ReapOlderThan permanently deletes entries deleted before cutoff.
func (s *TrashService) ReapOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var ids []uint
	if err := s.DB.WithContext(ctx).Model(&model.DeletedItemModel{}).
		Where("deleted_at < ?", cutoff).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, helper.Storage(err, "list expired trash")
	}
	return s.deleteAll(ctx, ids, helper.SystemActor()), nil
}

func (s *TrashService) deleteAll(ctx context.Context, ids []uint, actor helper.Actor) int {
	n := 0
	for _, id := range ids {
		if err := s.PermanentDelete(ctx, id, actor); err != nil {
			continue
		}
		n++
	}
	return n
}

/* =========================
   Listing
   ========================= */

// List returns ledger entries newest first, optionally filtered by type.
func (s *TrashService) List(ctx context.Context, t model.ItemType) ([]TrashEntry, error) {
	q := s.DB.WithContext(ctx).Model(&model.DeletedItemModel{})
	if t != "" {
		if !t.Valid() {
			return nil, helper.Invalid("unknown item type %q", t)
		}
		q = q.Where("item_type = ?", t)
	}
	var rows []model.DeletedItemModel
	if err := q.Order("deleted_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list trash")
	}

	out := make([]TrashEntry, 0, len(rows))
	for _, r := range rows {
		exists, err := rowExists(s.DB.WithContext(ctx), r.ItemType, r.OriginalID)
		if err != nil {
			return nil, err
		}
		state := model.StateTrashed
		if exists {
			state = model.StatePendingDeletion
		}
		out = append(out, TrashEntry{DeletedItemModel: r, State: state})
	}
	return out, nil
}

func (s *TrashService) Buildings(ctx context.Context) ([]TrashEntry, error) {
	return s.List(ctx, model.ItemBuilding)
}

func (s *TrashService) Maps(ctx context.Context) ([]TrashEntry, error) {
	return s.List(ctx, model.ItemMap)
}

func (s *TrashService) Get(ctx context.Context, entryID uint) (*TrashEntry, error) {
	e, err := s.entry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	exists, err := rowExists(s.DB.WithContext(ctx), e.ItemType, e.OriginalID)
	if err != nil {
		return nil, err
	}
	state := model.StateTrashed
	if exists {
		state = model.StatePendingDeletion
	}
	return &TrashEntry{DeletedItemModel: *e, State: state}, nil
}

func (s *TrashService) entry(ctx context.Context, id uint) (*model.DeletedItemModel, error) {
	var e model.DeletedItemModel
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, helper.NotFound("trash entry", id)
		}
		return nil, helper.Storage(err, "load trash entry")
	}
	return &e, nil
}

func modelFor(t model.ItemType) any {
	switch t {
	case model.ItemMap:
		return &mapModel.MapModel{}
	case model.ItemBuilding:
		return &buildingModel.BuildingModel{}
	default:
		return &roomModel.RoomModel{}
	}
}
