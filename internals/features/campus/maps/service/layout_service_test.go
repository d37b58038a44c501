package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmap_backend/internals/databases/dbtest"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	"campusmap_backend/internals/features/campus/maps/dto"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	helper "campusmap_backend/internals/helpers"
)

func ptr(f float64) *float64 { return &f }

func TestGetLayoutWithoutSave(t *testing.T) {
	db := dbtest.Open(t)
	m := dbtest.CreateMap(t, db, "main", true)
	dbtest.CreateBuilding(t, db, m.ID, "library")
	staged := dbtest.CreateBuilding(t, db, m.ID, "gym")
	require.NoError(t, db.Model(&staged).Update("pending_deletion", true).Error)

	l, err := GetLayout(context.Background(), db, m.ID)
	require.NoError(t, err)
	assert.Nil(t, l.SavedAt)
	assert.Equal(t, "main", l.Map.Name)
	require.Len(t, l.Buildings, 1)
	assert.Equal(t, "library", l.Buildings[0].BuildingName)
}

func TestSaveLayoutMovesBuildingsAndStoresSnapshot(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	m := dbtest.CreateMap(t, db, "main", true)
	b := dbtest.CreateBuilding(t, db, m.ID, "library")

	l, err := SaveLayout(ctx, db, m.ID, []dto.LayoutPosition{
		{ID: b.ID, XCoordinate: ptr(55), Width: ptr(12)},
	})
	require.NoError(t, err)
	require.NotNil(t, l.SavedAt)
	require.Len(t, l.Buildings, 1)
	assert.Equal(t, 55.0, l.Buildings[0].XCoordinate)
	assert.Equal(t, 20.0, l.Buildings[0].YCoordinate)

	var got buildingModel.BuildingModel
	require.NoError(t, db.First(&got, b.ID).Error)
	assert.Equal(t, 55.0, got.XCoordinate)
	assert.Equal(t, 12.0, got.Width)

	// a later move without saving leaves the stored layout untouched
	require.NoError(t, db.Model(&got).Update("x_coordinate", 99).Error)
	stored, err := GetLayout(ctx, db, m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SavedAt)
	assert.Equal(t, 55.0, stored.Buildings[0].XCoordinate)

	var row mapModel.MapModel
	require.NoError(t, db.First(&row, m.ID).Error)
	assert.NotEmpty(t, row.LayoutSnapshot)
}

func TestSaveLayoutRejectsForeignBuilding(t *testing.T) {
	db := dbtest.Open(t)
	m := dbtest.CreateMap(t, db, "main", true)
	other := dbtest.CreateMap(t, db, "north", false)
	b := dbtest.CreateBuilding(t, db, other.ID, "lab")

	_, err := SaveLayout(context.Background(), db, m.ID, []dto.LayoutPosition{{ID: b.ID, XCoordinate: ptr(1)}})
	assert.True(t, errors.Is(err, helper.ErrValidationFailed))

	var got buildingModel.BuildingModel
	require.NoError(t, db.First(&got, b.ID).Error)
	assert.Equal(t, 10.0, got.XCoordinate)
}

func TestLayoutUnknownMap(t *testing.T) {
	db := dbtest.Open(t)
	_, err := GetLayout(context.Background(), db, 42)
	assert.True(t, errors.Is(err, helper.ErrNotFound))
}
