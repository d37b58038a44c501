package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/databases/dbtest"
	activityService "campusmap_backend/internals/features/activity/service"
	"campusmap_backend/internals/features/trash/model"
	"campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

func newService(t *testing.T) (*gorm.DB, *service.TrashService) {
	t.Helper()
	db := dbtest.Open(t)
	return db, service.NewTrashService(db, helperOSS.NewMemoryImageStore(""), activityService.NopRecorder{}, cache.NopCache{})
}

func TestStartTrashReaperRejectsBadSchedule(t *testing.T) {
	_, svc := newService(t)
	_, err := StartTrashReaper(svc, "every tuesday", time.Hour)
	assert.Error(t, err)
}

func TestStartTrashReaper(t *testing.T) {
	_, svc := newService(t)
	c, err := StartTrashReaper(svc, "0 3 * * *", time.Hour)
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}

func TestRunReaperRemovesOnlyExpiredEntries(t *testing.T) {
	db, svc := newService(t)
	ctx := context.Background()

	n, err := RunReaper(ctx, svc, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	m := dbtest.CreateMap(t, db, "main", true)
	b := dbtest.CreateBuilding(t, db, m.ID, "library")
	old := dbtest.CreateRoom(t, db, b.ID, "old hall")
	fresh := dbtest.CreateRoom(t, db, b.ID, "new hall")

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		for _, id := range []uint{old.ID, fresh.ID} {
			if _, err := svc.Finalize(tx, model.ItemRoom, id, helper.SystemActor()); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, db.Model(&model.DeletedItemModel{}).
		Where("original_id = ?", old.ID).
		Update("deleted_at", time.Now().Add(-48*time.Hour)).Error)

	n, err = RunReaper(ctx, svc, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var left []model.DeletedItemModel
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].OriginalID)
}
