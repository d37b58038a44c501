package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/databases/dbtest"
	activityModel "campusmap_backend/internals/features/activity/model"
	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/trash/model"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type fixture struct {
	db     *gorm.DB
	store  *helperOSS.MemoryImageStore
	cache  *cache.MemoryCache
	svc    *TrashService
	actor  helper.Actor
	ctx    context.Context
	mapRow mapModel.MapModel
	b      buildingModel.BuildingModel
	emp    employeeModel.EmployeeModel
	room   roomModel.RoomModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:    db,
		store: helperOSS.NewMemoryImageStore(""),
		cache: cache.NewMemoryCache(),
		actor: helper.Actor{Name: "Dina"},
		ctx:   context.Background(),
	}
	f.svc = NewTrashService(db, f.store, activityService.NewActivityService(db), f.cache)

	f.mapRow = dbtest.CreateMap(t, db, "main", true)
	f.b = dbtest.CreateBuilding(t, db, f.mapRow.ID, "library")
	f.emp = dbtest.CreateEmployee(t, db, f.b.ID, "Ana")
	f.room = dbtest.CreateRoom(t, db, f.b.ID, "hall")

	for _, ref := range []string{f.mapRow.ImagePath, *f.b.ImagePath, f.room.PanoramaImagePath, *f.room.ThumbnailPath} {
		_, err := f.store.Store(f.ctx, ref, []byte("img"), "image/webp")
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) finalize(t *testing.T, typ model.ItemType, id uint) *model.DeletedItemModel {
	t.Helper()
	var entry *model.DeletedItemModel
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = f.svc.Finalize(tx, typ, id, f.actor)
		return err
	}))
	return entry
}

func count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestStageDeletionKeepsRowAndImages(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.StageDeletion(f.ctx, model.ItemBuilding, f.b.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "library", entry.ItemName)
	assert.Equal(t, "Dina", *entry.DeletedBy)

	var b buildingModel.BuildingModel
	require.NoError(t, f.db.First(&b, f.b.ID).Error)
	assert.True(t, b.PendingDeletion)

	assert.Len(t, f.store.Keys(), 4)
	assert.Equal(t, 1, f.cache.Invalidations)

	list, err := f.svc.List(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatePendingDeletion, list[0].State)

	var item BuildingItem
	require.NoError(t, json.Unmarshal(entry.ItemData, &item))
	assert.Len(t, item.Employees, 1)
	assert.Len(t, item.Rooms, 1)

	var logs []activityModel.ActivityLogModel
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, activityService.ActionDeleted, logs[0].Action)
}

func TestStageDeletionTwiceKeepsOneEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)
	_, err = f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count(t, f.db, &model.DeletedItemModel{}))

	var r roomModel.RoomModel
	require.NoError(t, f.db.First(&r, f.room.ID).Error)
	assert.True(t, r.PendingDeletion)
	assert.False(t, r.IsPublished)
}

func TestStageDeletionUnknownRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, 999, f.actor)
	assert.True(t, errors.Is(err, helper.ErrNotFound))

	_, err = f.svc.StageDeletion(f.ctx, model.ItemType("floor"), 1, f.actor)
	assert.True(t, errors.Is(err, helper.ErrValidationFailed))
}

func TestFinalizeRemovesRowKeepsEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StageDeletion(f.ctx, model.ItemBuilding, f.b.ID, f.actor)
	require.NoError(t, err)

	f.finalize(t, model.ItemBuilding, f.b.ID)

	assert.Zero(t, count(t, f.db, &buildingModel.BuildingModel{}))
	assert.Zero(t, count(t, f.db, &employeeModel.EmployeeModel{}))
	assert.Zero(t, count(t, f.db, &roomModel.RoomModel{}))
	assert.Equal(t, int64(1), count(t, f.db, &model.DeletedItemModel{}))
	// images stay for preview and restore
	assert.Len(t, f.store.Keys(), 4)

	list, err := f.svc.Buildings(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StateTrashed, list[0].State)
}

func TestFinalizeWithoutEntryWritesOne(t *testing.T) {
	f := newFixture(t)

	entry := f.finalize(t, model.ItemRoom, f.room.ID)
	require.NotNil(t, entry)
	assert.Equal(t, f.room.ID, entry.OriginalID)
	assert.Zero(t, count(t, f.db, &roomModel.RoomModel{}))
}

func TestRestoreExistingRow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&roomModel.RoomModel{}).Where("id = ?", f.room.ID).Update("is_published", true).Error)
	entry, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	res, err := f.svc.Restore(f.ctx, entry.ID, f.actor)
	require.NoError(t, err)
	assert.False(t, res.Recreated)
	assert.Equal(t, f.room.ID, res.RestoredID)

	var r roomModel.RoomModel
	require.NoError(t, f.db.First(&r, f.room.ID).Error)
	assert.False(t, r.PendingDeletion)
	assert.False(t, r.IsPublished)
	assert.Zero(t, count(t, f.db, &model.DeletedItemModel{}))
}

func TestRestoreRecreatesRemovedBuilding(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StageDeletion(f.ctx, model.ItemBuilding, f.b.ID, f.actor)
	require.NoError(t, err)
	entry := f.finalize(t, model.ItemBuilding, f.b.ID)

	// the panorama vanished from the store meanwhile
	require.NoError(t, f.store.Delete(f.ctx, f.room.PanoramaImagePath))

	res, err := f.svc.Restore(f.ctx, entry.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, res.Recreated)
	assert.NotEqual(t, f.b.ID, res.RestoredID)

	var b buildingModel.BuildingModel
	require.NoError(t, f.db.First(&b, res.RestoredID).Error)
	assert.Equal(t, "library", b.BuildingName)
	assert.False(t, b.IsPublished)
	assert.False(t, b.PendingDeletion)
	assert.True(t, b.IsActive)
	assert.Equal(t, *f.b.ImagePath, *b.ImagePath)

	var emps []employeeModel.EmployeeModel
	require.NoError(t, f.db.Where("building_id = ?", b.ID).Find(&emps).Error)
	require.Len(t, emps, 1)
	assert.Equal(t, employeeModel.DefaultEmployeeImage, emps[0].EmployeeImage)

	var rooms []roomModel.RoomModel
	require.NoError(t, f.db.Where("building_id = ?", b.ID).Find(&rooms).Error)
	require.Len(t, rooms, 1)
	assert.Empty(t, rooms[0].PanoramaImagePath)
	require.NotNil(t, rooms[0].ThumbnailPath)

	assert.Zero(t, count(t, f.db, &model.DeletedItemModel{}))
}

func TestRestoreRoomWithoutParentFails(t *testing.T) {
	f := newFixture(t)
	entry := f.finalize(t, model.ItemRoom, f.room.ID)
	f.finalize(t, model.ItemBuilding, f.b.ID)

	_, err := f.svc.Restore(f.ctx, entry.ID, f.actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, helper.ErrPublishConflict))

	// ledger untouched
	assert.Equal(t, int64(2), count(t, f.db, &model.DeletedItemModel{}))
	assert.Zero(t, count(t, f.db, &roomModel.RoomModel{}))
}

func TestRestoreMissingEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Restore(f.ctx, 42, f.actor)
	assert.True(t, errors.Is(err, helper.ErrNotFound))
}

func TestRestoreRecreatedMapIsInactive(t *testing.T) {
	f := newFixture(t)
	entry := f.finalize(t, model.ItemMap, f.mapRow.ID)
	assert.Zero(t, count(t, f.db, &buildingModel.BuildingModel{}))

	other := dbtest.CreateMap(t, f.db, "annex", true)

	res, err := f.svc.Restore(f.ctx, entry.ID, f.actor)
	require.NoError(t, err)

	var m mapModel.MapModel
	require.NoError(t, f.db.First(&m, res.RestoredID).Error)
	assert.False(t, m.IsActive)

	var active []mapModel.MapModel
	require.NoError(t, f.db.Where("is_active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	assert.Equal(t, int64(1), count(t, f.db, &buildingModel.BuildingModel{}))
}

func TestPermanentDeleteRemovesRowEntryAndImages(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	require.NoError(t, f.svc.PermanentDelete(f.ctx, entry.ID, f.actor))

	assert.Zero(t, count(t, f.db, &roomModel.RoomModel{}))
	assert.Zero(t, count(t, f.db, &model.DeletedItemModel{}))

	ok, _ := f.store.Exists(f.ctx, f.room.PanoramaImagePath)
	assert.False(t, ok)
	ok, _ = f.store.Exists(f.ctx, *f.b.ImagePath)
	assert.True(t, ok)
}

func TestPermanentDeleteKeepsSharedImages(t *testing.T) {
	f := newFixture(t)
	// a second room points at the same panorama
	twin := roomModel.RoomModel{BuildingID: f.b.ID, Name: "twin", PanoramaImagePath: f.room.PanoramaImagePath}
	require.NoError(t, f.db.Create(&twin).Error)

	entry := f.finalize(t, model.ItemRoom, f.room.ID)
	require.NoError(t, f.svc.PermanentDelete(f.ctx, entry.ID, f.actor))

	ok, _ := f.store.Exists(f.ctx, f.room.PanoramaImagePath)
	assert.True(t, ok)
}

func TestEmptyTrashAndReap(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)
	old, err := f.svc.StageDeletion(f.ctx, model.ItemBuilding, f.b.ID, f.actor)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.DeletedItemModel{}).Where("id = ?", old.ID).
		Update("deleted_at", time.Now().AddDate(0, 0, -40)).Error)

	n, err := f.svc.ReapOlderThan(f.ctx, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), count(t, f.db, &model.DeletedItemModel{}))

	n, err = f.svc.EmptyTrash(f.ctx, f.actor)
	require.NoError(t, err)
	// the room went with its building
	assert.Equal(t, 1, n)
	assert.Zero(t, count(t, f.db, &model.DeletedItemModel{}))
}

func TestPurgeFinalisesStagedEntry(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.StageDeletion(f.ctx, model.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	require.NoError(t, f.svc.Purge(f.ctx, entry.ID, f.actor))
	assert.Zero(t, count(t, f.db, &roomModel.RoomModel{}))

	got, err := f.svc.Get(f.ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateTrashed, got.State)
}

func TestImageReferencedMatchesWholeKey(t *testing.T) {
	f := newFixture(t)
	key := "images/rooms/hall_1.webp"
	require.NoError(t, f.db.Model(&f.room).
		Update("published_data", `{"name":"hall","panorama_image_path":"images/rooms/hall_1.webp"}`).Error)

	used, err := ImageReferenced(f.ctx, f.db, key)
	require.NoError(t, err)
	assert.True(t, used)

	for _, ref := range []string{"images/rooms/hallX1.webp", "images/rooms/%.webp", "images/rooms/hall_%"} {
		used, err := ImageReferenced(f.ctx, f.db, ref)
		require.NoError(t, err)
		assert.False(t, used, ref)
	}
}
