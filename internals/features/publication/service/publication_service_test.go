package service

import (
	"context"
	"testing"

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
	"campusmap_backend/internals/features/publication/snapshot"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type fixture struct {
	db     *gorm.DB
	store  *helperOSS.MemoryImageStore
	cache  *cache.MemoryCache
	trash  *trashService.TrashService
	svc    *PublicationService
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
	rec := activityService.NewActivityService(db)
	f.trash = trashService.NewTrashService(db, f.store, rec, f.cache)
	f.svc = NewPublicationService(db, f.trash, rec, f.cache)

	f.mapRow = dbtest.CreateMap(t, db, "main", true)
	f.b = dbtest.CreateBuilding(t, db, f.mapRow.ID, "library")
	f.emp = dbtest.CreateEmployee(t, db, f.b.ID, "Ana")
	f.room = dbtest.CreateRoom(t, db, f.b.ID, "hall")
	return f
}

func (f *fixture) publish(t *testing.T, kind snapshot.Kind, id uint) Result {
	t.Helper()
	res, err := f.svc.PublishOne(f.ctx, kind, id, f.actor)
	require.NoError(t, err)
	return res
}

func (f *fixture) dirty(t *testing.T, kind snapshot.Kind, id uint) bool {
	t.Helper()
	d, err := f.svc.IsDirty(f.ctx, kind, id)
	require.NoError(t, err)
	return d
}

func (f *fixture) building(t *testing.T) buildingModel.BuildingModel {
	t.Helper()
	var b buildingModel.BuildingModel
	require.NoError(t, f.db.First(&b, f.b.ID).Error)
	return b
}

func decode(t *testing.T, raw []byte) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestPublishOneMakesEntityClean(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		kind snapshot.Kind
		id   uint
	}{
		{snapshot.KindMap, f.mapRow.ID},
		{snapshot.KindBuilding, f.b.ID},
		{snapshot.KindEmployee, f.emp.ID},
		{snapshot.KindRoom, f.room.ID},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.True(t, f.dirty(t, tc.kind, tc.id))
			assert.Equal(t, ResultUpdated, f.publish(t, tc.kind, tc.id))
			assert.False(t, f.dirty(t, tc.kind, tc.id))
			// publishing again changes nothing
			assert.Equal(t, ResultUpdated, f.publish(t, tc.kind, tc.id))
			assert.False(t, f.dirty(t, tc.kind, tc.id))
		})
	}

	b := f.building(t)
	assert.True(t, b.IsPublished)
	require.NotNil(t, b.PublishedBy)
	assert.Equal(t, "Dina", *b.PublishedBy)
	assert.NotNil(t, b.PublishedAt)
	assert.Positive(t, f.cache.Invalidations)
}

func TestBuildingEditAndEmployeeCascade(t *testing.T) {
	f := newFixture(t)

	f.publish(t, snapshot.KindBuilding, f.b.ID)
	b := f.building(t)
	snap := decode(t, b.PublishedData)
	assert.Equal(t, "library", snap.Fields["building_name"])
	assert.Len(t, snap.Children[snapshot.ChildEmployees], 1)

	// scalar edit
	require.NoError(t, f.db.Model(&b).Update("building_name", "Central Library").Error)
	assert.True(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))
	b = f.building(t)
	assert.Equal(t, "library", decode(t, b.PublishedData).Fields["building_name"])

	f.publish(t, snapshot.KindBuilding, f.b.ID)
	assert.False(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))

	// employee-only edit
	dbtest.CreateEmployee(t, f.db, f.b.ID, "Budi")
	assert.True(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))

	f.publish(t, snapshot.KindBuilding, f.b.ID)
	b = f.building(t)
	assert.Len(t, decode(t, b.PublishedData).Children[snapshot.ChildEmployees], 2)
	assert.False(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))

	// an employee field change also counts
	require.NoError(t, f.db.Model(&employeeModel.EmployeeModel{}).Where("id = ?", f.emp.ID).
		Update("position", "Head Librarian").Error)
	assert.True(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))
}

func TestPublishPendingBuildingDeletesIt(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindBuilding, f.b.ID)

	_, err := f.trash.StageDeletion(f.ctx, trashModel.ItemBuilding, f.b.ID, f.actor)
	require.NoError(t, err)

	b := f.building(t)
	assert.True(t, b.PendingDeletion)

	all, err := f.svc.ListDirty(f.ctx, snapshot.KindBuilding, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ChangePendingDeletion, all[0].ChangeType)

	normal, err := f.svc.ListDirty(f.ctx, snapshot.KindBuilding, ListOptions{ExcludeDeletions: true})
	require.NoError(t, err)
	assert.Empty(t, normal)

	// staged rows are hidden from the public app before publishing
	_, err = f.svc.PublishedBuilding(f.ctx, f.b.ID)
	assert.True(t, errors.Is(err, helper.ErrNotFound))

	assert.Equal(t, ResultDeleted, f.publish(t, snapshot.KindBuilding, f.b.ID))

	err = f.db.First(&buildingModel.BuildingModel{}, f.b.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	var emps int64
	require.NoError(t, f.db.Model(&employeeModel.EmployeeModel{}).Where("building_id = ?", f.b.ID).Count(&emps).Error)
	assert.Zero(t, emps)

	entries, err := f.trash.List(f.ctx, trashModel.ItemBuilding)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, trashModel.StateTrashed, entries[0].State)

	var logs []activityModel.ActivityLogModel
	require.NoError(t, f.db.Where("action = ?", activityService.ActionPublishedDeletion).Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestRevertRoomWithoutSnapshotDeletesIt(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RevertOne(f.ctx, snapshot.KindRoom, f.room.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultDeleted, res)

	err = f.db.First(&roomModel.RoomModel{}, f.room.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRevertRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindBuilding, f.b.ID)

	require.NoError(t, f.db.Model(&buildingModel.BuildingModel{}).Where("id = ?", f.b.ID).Updates(map[string]any{
		"building_name": "Draft name",
		"x_coordinate":  500,
		"is_published":  false,
	}).Error)
	require.NoError(t, f.db.Delete(&employeeModel.EmployeeModel{}, f.emp.ID).Error)
	dbtest.CreateEmployee(t, f.db, f.b.ID, "Stranger")

	res, err := f.svc.RevertOne(f.ctx, snapshot.KindBuilding, f.b.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)

	b := f.building(t)
	assert.Equal(t, "library", b.BuildingName)
	assert.Equal(t, float64(10), b.XCoordinate)
	assert.True(t, b.IsPublished)

	var emps []employeeModel.EmployeeModel
	require.NoError(t, f.db.Where("building_id = ?", f.b.ID).Find(&emps).Error)
	require.Len(t, emps, 1)
	assert.Equal(t, "Ana", emps[0].EmployeeName)

	assert.False(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))
}

func TestRevertClearsStagedDeletion(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindRoom, f.room.ID)
	_, err := f.trash.StageDeletion(f.ctx, trashModel.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	_, err = f.svc.RevertOne(f.ctx, snapshot.KindRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	var r roomModel.RoomModel
	require.NoError(t, f.db.First(&r, f.room.ID).Error)
	assert.False(t, r.PendingDeletion)
	assert.True(t, r.IsPublished)

	entries, err := f.trash.List(f.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRevertMapKeepsActivation(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindMap, f.mapRow.ID)
	other := dbtest.CreateMap(t, f.db, "annex", false)
	f.publish(t, snapshot.KindMap, other.ID)

	_, err := f.svc.Activate(f.ctx, other.ID, f.actor)
	require.NoError(t, err)

	_, err = f.svc.RevertOne(f.ctx, snapshot.KindMap, other.ID, f.actor)
	require.NoError(t, err)

	var m mapModel.MapModel
	require.NoError(t, f.db.First(&m, other.ID).Error)
	assert.True(t, m.IsActive)
}

func TestRevertMissingRow(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RevertOne(f.ctx, snapshot.KindBuilding, 999, f.actor)
	assert.True(t, errors.Is(err, helper.ErrNotFound))

	_, err = f.svc.RevertOne(f.ctx, snapshot.Kind("floor"), 1, f.actor)
	assert.True(t, errors.Is(err, helper.ErrValidationFailed))
}

func TestActivateKeepsOneActiveMap(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindMap, f.mapRow.ID)
	f.publish(t, snapshot.KindBuilding, f.b.ID)
	second := dbtest.CreateMap(t, f.db, "north", false)
	third := dbtest.CreateMap(t, f.db, "south", false)

	for _, id := range []uint{second.ID, third.ID, f.mapRow.ID, second.ID} {
		_, err := f.svc.Activate(f.ctx, id, f.actor)
		require.NoError(t, err)

		var active []mapModel.MapModel
		require.NoError(t, f.db.Where("is_active = ?", true).Find(&active).Error)
		require.Len(t, active, 1)
		assert.Equal(t, id, active[0].ID)
	}

	// the first map was published and is frozen as active when it loses activation
	var first mapModel.MapModel
	require.NoError(t, f.db.First(&first, f.mapRow.ID).Error)
	assert.False(t, first.IsActive)
	assert.Equal(t, true, decode(t, first.PublishedData).Fields["is_active"])

	// the public app follows published state until the switch is published
	view, err := f.svc.ActivePublished(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.mapRow.ID, view.ID)
	require.Len(t, view.Buildings, 1)

	_, err = f.svc.PublishAllOf(f.ctx, snapshot.KindMap, f.actor)
	require.NoError(t, err)
	view, err = f.svc.ActivePublished(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, view.ID)
	assert.Empty(t, view.Buildings)
}

func TestActivateFreezesEditedPreviousMap(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindMap, f.mapRow.ID)
	require.NoError(t, f.db.Model(&f.mapRow).Update("name", "main-edited").Error)
	other := dbtest.CreateMap(t, f.db, "annex", false)

	_, err := f.svc.Activate(f.ctx, other.ID, f.actor)
	require.NoError(t, err)

	var prev mapModel.MapModel
	require.NoError(t, f.db.First(&prev, f.mapRow.ID).Error)
	assert.False(t, prev.IsActive)
	snap := decode(t, prev.PublishedData)
	assert.Equal(t, "main-edited", snap.Fields["name"])
	assert.Equal(t, true, snap.Fields["is_active"])
}

func TestActivateFreezesPublishedMapWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	// published before snapshots were kept
	require.NoError(t, f.db.Model(&f.mapRow).Update("is_published", true).Error)
	other := dbtest.CreateMap(t, f.db, "annex", false)
	require.NoError(t, f.db.Model(&other).Update("is_published", true).Error)

	_, err := f.svc.Activate(f.ctx, other.ID, f.actor)
	require.NoError(t, err)

	var prev, next mapModel.MapModel
	require.NoError(t, f.db.First(&prev, f.mapRow.ID).Error)
	require.NoError(t, f.db.First(&next, other.ID).Error)
	assert.Equal(t, true, decode(t, prev.PublishedData).Fields["is_active"])
	assert.Equal(t, false, decode(t, next.PublishedData).Fields["is_active"])
	assert.True(t, next.IsActive)

	var logs []activityModel.ActivityLogModel
	require.NoError(t, f.db.Where("action = ?", activityService.ActionActivated).Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestActivateRejectsStagedMap(t *testing.T) {
	f := newFixture(t)
	other := dbtest.CreateMap(t, f.db, "annex", false)
	_, err := f.trash.StageDeletion(f.ctx, trashModel.ItemMap, other.ID, f.actor)
	require.NoError(t, err)

	_, err = f.svc.Activate(f.ctx, other.ID, f.actor)
	assert.True(t, errors.Is(err, helper.ErrPublishConflict))

	_, err = f.svc.Activate(f.ctx, 999, f.actor)
	assert.True(t, errors.Is(err, helper.ErrNotFound))
}

func TestPublishAllCountsAndScope(t *testing.T) {
	f := newFixture(t)
	inactive := dbtest.CreateMap(t, f.db, "old", false)
	dbtest.CreateBuilding(t, f.db, inactive.ID, "annex")

	res, err := f.svc.PublishAll(f.ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, Counts{Published: 2}, res.Maps)
	// buildings are limited to the active map
	assert.Equal(t, Counts{Published: 1}, res.Buildings)
	assert.Equal(t, Counts{Published: 1}, res.Rooms)
	assert.Equal(t, Counts{Published: 1}, res.Employees)
	assert.Equal(t, 5, res.Total())

	st, err := f.svc.Status(f.ctx)
	require.NoError(t, err)
	assert.False(t, st.HasUnpublishedChanges)
	require.NotNil(t, st.ActiveMapID)
	assert.Equal(t, f.mapRow.ID, *st.ActiveMapID)

	var logs []activityModel.ActivityLogModel
	require.NoError(t, f.db.Where("action = ? AND target_type = ?", activityService.ActionPublished, "system").Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestPublishAllFinalizesStagedDeletions(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PublishAll(f.ctx, f.actor)
	require.NoError(t, err)

	_, err = f.trash.StageDeletion(f.ctx, trashModel.ItemRoom, f.room.ID, f.actor)
	require.NoError(t, err)

	res, err := f.svc.PublishAll(f.ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, Counts{Deleted: 1}, res.Rooms)
	assert.Equal(t, 1, res.Total())

	rooms, err := f.svc.PublishedRooms(f.ctx, f.b.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestPublishAllRollsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_rooms", func(tx *gorm.DB) {
		if tx.Statement.Table == "rooms" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := f.svc.PublishAll(f.ctx, f.actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, helper.ErrStorageFailure))

	var m mapModel.MapModel
	require.NoError(t, f.db.First(&m, f.mapRow.ID).Error)
	assert.False(t, m.IsPublished)
	assert.False(t, m.HasSnapshot())
	assert.False(t, f.building(t).IsPublished)
}

func TestPublishSurvivesActivityFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_activity", func(tx *gorm.DB) {
		if tx.Statement.Table == "activity_logs" {
			_ = tx.AddError(errors.New("audit store down"))
		}
	}))

	res := f.publish(t, snapshot.KindRoom, f.room.ID)
	assert.Equal(t, ResultUpdated, res)
	assert.False(t, f.dirty(t, snapshot.KindRoom, f.room.ID))

	all, err := f.svc.PublishAll(f.ctx, f.actor)
	require.NoError(t, err)
	assert.Equal(t, 1, all.Maps.Published)
	assert.False(t, f.dirty(t, snapshot.KindBuilding, f.b.ID))

	var logs int64
	require.NoError(t, f.db.Model(&activityModel.ActivityLogModel{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestPublishRemovesReplacedImage(t *testing.T) {
	f := newFixture(t)
	old := *f.b.ImagePath
	_, err := f.store.Store(f.ctx, old, []byte("img"), "image/webp")
	require.NoError(t, err)
	f.publish(t, snapshot.KindBuilding, f.b.ID)

	require.NoError(t, f.db.Model(&buildingModel.BuildingModel{}).Where("id = ?", f.b.ID).
		Update("image_path", "images/buildings/library-v2.webp").Error)

	// still served by the snapshot
	ok, _ := f.store.Exists(f.ctx, old)
	assert.True(t, ok)

	f.publish(t, snapshot.KindBuilding, f.b.ID)
	ok, _ = f.store.Exists(f.ctx, old)
	assert.False(t, ok)
}

func TestUnpublishKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.publish(t, snapshot.KindRoom, f.room.ID)
	var before roomModel.RoomModel
	require.NoError(t, f.db.First(&before, f.room.ID).Error)

	require.NoError(t, f.svc.Unpublish(f.ctx, snapshot.KindRoom, f.room.ID, f.actor))

	var after roomModel.RoomModel
	require.NoError(t, f.db.First(&after, f.room.ID).Error)
	assert.False(t, after.IsPublished)
	assert.JSONEq(t, string(before.PublishedData), string(after.PublishedData))
	assert.NotNil(t, after.PublishedAt)
	assert.True(t, f.dirty(t, snapshot.KindRoom, f.room.ID))

	rooms, err := f.svc.PublishedRooms(f.ctx, f.b.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	err = f.svc.Unpublish(f.ctx, snapshot.KindRoom, 999, f.actor)
	assert.True(t, errors.Is(err, helper.ErrNotFound))
}

func TestPublicSurfaceServesSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PublishAll(f.ctx, f.actor)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&buildingModel.BuildingModel{}).Where("id = ?", f.b.ID).
		Update("building_name", "Unreleased").Error)
	require.NoError(t, f.db.Model(&roomModel.RoomModel{}).Where("id = ?", f.room.ID).
		Update("name", "Unreleased hall").Error)
	draft := dbtest.CreateBuilding(t, f.db, f.mapRow.ID, "draft")

	view, err := f.svc.ActivePublished(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", view.Name)
	require.Len(t, view.Buildings, 1)
	assert.Equal(t, "library", view.Buildings[0].BuildingName)
	require.Len(t, view.Buildings[0].Employees, 1)
	assert.Equal(t, employeeModel.DefaultEmployeeImage, view.Buildings[0].Employees[0].EmployeeImage)

	_, err = f.svc.PublishedBuilding(f.ctx, draft.ID)
	assert.True(t, errors.Is(err, helper.ErrNotFound))

	rooms, err := f.svc.PublishedRooms(f.ctx, f.b.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "hall", rooms[0].Name)

	emps, err := f.svc.PublishedEmployees(f.ctx, &f.b.ID)
	require.NoError(t, err)
	assert.Len(t, emps, 1)

	maps, err := f.svc.PublishedMaps(f.ctx)
	require.NoError(t, err)
	assert.Len(t, maps, 1)
}

func TestPublishedRoomsFollowSnapshotBuilding(t *testing.T) {
	f := newFixture(t)
	annex := dbtest.CreateBuilding(t, f.db, f.mapRow.ID, "annex")
	f.publish(t, snapshot.KindRoom, f.room.ID)
	require.NoError(t, f.db.Model(&f.room).Update("building_id", annex.ID).Error)
	draft := dbtest.CreateRoom(t, f.db, annex.ID, "lab")

	rooms, err := f.svc.PublishedRooms(f.ctx, f.b.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, f.room.ID, rooms[0].ID)
	assert.Equal(t, f.b.ID, rooms[0].BuildingID)

	rooms, err = f.svc.PublishedRooms(f.ctx, annex.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	f.publish(t, snapshot.KindRoom, draft.ID)
	rooms, err = f.svc.PublishedRooms(f.ctx, annex.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, draft.ID, rooms[0].ID)
}

func TestNoActivePublishedMap(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ActivePublished(f.ctx)
	assert.True(t, errors.Is(err, helper.ErrNotFound))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("buildings")
	require.NoError(t, err)
	assert.Equal(t, snapshot.KindBuilding, k)

	_, err = ParseKind("floors")
	assert.True(t, errors.Is(err, helper.ErrValidationFailed))
}
