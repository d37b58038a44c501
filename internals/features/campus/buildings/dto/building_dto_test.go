package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

func str(s string) *string { return &s }

func TestCreateBuildingRequestToModel(t *testing.T) {
	req := CreateBuildingRequest{
		BuildingName: "  Library ",
		Description:  str("   "),
		Services:     []string{" wifi ", "", "printing"},
		Employees:    []EmployeeInput{{EmployeeName: " Ana ", Email: str(" ")}},
	}
	req.Normalize()
	require.NoError(t, helper.NewValidator().Struct(&req))

	b := req.ToModel()
	assert.Equal(t, "Library", b.BuildingName)
	assert.Nil(t, b.Description)
	assert.JSONEq(t, `["wifi","printing"]`, string(b.Services))
	assert.True(t, b.IsActive)
	assert.Equal(t, "Ana", req.Employees[0].EmployeeName)
	assert.Nil(t, req.Employees[0].Email)
}

func TestCreateBuildingRequestValidation(t *testing.T) {
	v := helper.NewValidator()
	lat := 120.0
	assert.Error(t, v.Struct(&CreateBuildingRequest{BuildingName: "x", Latitude: &lat}))
	assert.Error(t, v.Struct(&CreateBuildingRequest{BuildingName: "x", Employees: []EmployeeInput{{EmployeeName: ""}}}))
	assert.Error(t, v.Struct(&CreateBuildingRequest{}))
}

func TestUpdateBuildingRequestIsPartial(t *testing.T) {
	b := buildingModel.BuildingModel{BuildingName: "Library", XCoordinate: 5, ImagePath: str("images/buildings/a.webp")}
	x := 9.0
	empty := []string{}
	req := UpdateBuildingRequest{XCoordinate: &x, Services: &empty, ImagePath: str(" ")}
	req.Normalize()
	req.Apply(&b)

	assert.Equal(t, "Library", b.BuildingName)
	assert.Equal(t, 9.0, b.XCoordinate)
	assert.Equal(t, "[]", string(b.Services))
	assert.Nil(t, b.ImagePath)
}

func TestFromModelBuildsURLs(t *testing.T) {
	b := buildingModel.BuildingModel{ID: 1, ImagePath: str("images/buildings/a.webp")}
	out := FromModel(b, nil, helperOSS.NewMemoryImageStore("https://cdn.test"), true)
	assert.Equal(t, "https://cdn.test/images/buildings/a.webp", out.ImageURL)
	assert.Empty(t, out.ModalImageURL)
	assert.NotNil(t, out.Employees)
	assert.True(t, out.HasUnpublishedChanges)
}
