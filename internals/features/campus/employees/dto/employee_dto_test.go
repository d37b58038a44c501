package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campusmap_backend/internals/features/campus/employees/model"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

func TestSortByNameIgnoresCaseAndAccents(t *testing.T) {
	rows := []model.EmployeeModel{
		{ID: 1, EmployeeName: "zara"},
		{ID: 2, EmployeeName: "Élise"},
		{ID: 3, EmployeeName: "ana"},
		{ID: 4, EmployeeName: "Elise"},
		{ID: 5, EmployeeName: "Bruno"},
	}
	SortByName(rows)

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	assert.Equal(t, []uint{3, 5, 2, 4, 1}, ids)
	assert.Equal(t, "elise", SortKey(" Élise "))
}

func TestCreateEmployeeRequestDefaultsImage(t *testing.T) {
	req := CreateEmployeeRequest{BuildingID: 1, EmployeeName: " Ana ", Position: new(string)}
	req.Normalize()
	e := req.ToModel()
	assert.Equal(t, "Ana", e.EmployeeName)
	assert.Nil(t, e.Position)
	assert.Equal(t, model.DefaultEmployeeImage, e.EmployeeImage)
}

func TestUpdateEmployeeRequestClearsImage(t *testing.T) {
	e := model.EmployeeModel{EmployeeName: "Ana", EmployeeImage: "images/employees/ana.webp"}
	empty := ""
	UpdateEmployeeRequest{EmployeeImage: &empty}.Apply(&e)
	assert.Equal(t, model.DefaultEmployeeImage, e.EmployeeImage)
	assert.Equal(t, "Ana", e.EmployeeName)
}

func TestFromModelSkipsDefaultImageURL(t *testing.T) {
	store := helperOSS.NewMemoryImageStore("https://cdn.test")
	out := FromModel(model.EmployeeModel{EmployeeImage: model.DefaultEmployeeImage}, store, false)
	assert.Empty(t, out.ImageURL)

	out = FromModel(model.EmployeeModel{EmployeeImage: "images/employees/ana.webp"}, store, true)
	assert.Equal(t, "https://cdn.test/images/employees/ana.webp", out.ImageURL)
	assert.True(t, out.HasUnpublishedChanges)
}
