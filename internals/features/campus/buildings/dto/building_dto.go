package dto

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

/* =========================================================
   REQUEST DTO
========================================================= */

// EmployeeInput is one employee sent inline with a building. A known ID
// updates that employee; no ID creates one.
type EmployeeInput struct {
	ID            *uint   `json:"id"`
	EmployeeName  string  `json:"employee_name" validate:"required,max=255"`
	Position      *string `json:"position" validate:"omitempty,max=255"`
	Department    *string `json:"department" validate:"omitempty,max=255"`
	Email         *string `json:"email" validate:"omitempty,email,max=255"`
	ContactNumber *string `json:"contact_number" validate:"omitempty,max=64"`
	EmployeeImage string  `json:"employee_image"`
}

func (e *EmployeeInput) Normalize() {
	e.EmployeeName = strings.TrimSpace(e.EmployeeName)
	e.Position = trimOrNil(e.Position)
	e.Department = trimOrNil(e.Department)
	e.Email = trimOrNil(e.Email)
	e.ContactNumber = trimOrNil(e.ContactNumber)
	e.EmployeeImage = strings.TrimSpace(e.EmployeeImage)
}

type CreateBuildingRequest struct {
	// 0 places the building on the active map.
	MapID          uint            `json:"map_id" form:"map_id"`
	BuildingName   string          `json:"building_name" form:"building_name" validate:"required,max=255"`
	Description    *string         `json:"description" form:"description"`
	Services       []string        `json:"services" form:"services"`
	XCoordinate    float64         `json:"x_coordinate" form:"x_coordinate"`
	YCoordinate    float64         `json:"y_coordinate" form:"y_coordinate"`
	Width          float64         `json:"width" form:"width" validate:"gte=0"`
	Height         float64         `json:"height" form:"height" validate:"gte=0"`
	Latitude       *float64        `json:"latitude" form:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64        `json:"longitude" form:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ImagePath      *string         `json:"image_path" form:"image_path"`
	ModalImagePath *string         `json:"modal_image_path" form:"modal_image_path"`
	IsActive       *bool           `json:"is_active" form:"is_active"`
	Employees      []EmployeeInput `json:"employees" form:"-" validate:"dive"`
}

func (r *CreateBuildingRequest) Normalize() {
	r.BuildingName = strings.TrimSpace(r.BuildingName)
	r.Description = trimOrNil(r.Description)
	r.ImagePath = trimOrNil(r.ImagePath)
	r.ModalImagePath = trimOrNil(r.ModalImagePath)
	r.Services = cleanServices(r.Services)
	for i := range r.Employees {
		r.Employees[i].Normalize()
	}
}

func (r CreateBuildingRequest) ToModel() buildingModel.BuildingModel {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return buildingModel.BuildingModel{
		MapID:          r.MapID,
		BuildingName:   r.BuildingName,
		Description:    r.Description,
		Services:       servicesJSON(r.Services),
		XCoordinate:    r.XCoordinate,
		YCoordinate:    r.YCoordinate,
		Width:          r.Width,
		Height:         r.Height,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		ImagePath:      r.ImagePath,
		ModalImagePath: r.ModalImagePath,
		IsActive:       active,
	}
}

// UpdateBuildingRequest is partial. Employees, when present, replaces the
// whole employee list; an empty list removes every employee.
type UpdateBuildingRequest struct {
	MapID          *uint            `json:"map_id" form:"map_id"`
	BuildingName   *string          `json:"building_name" form:"building_name" validate:"omitempty,min=1,max=255"`
	Description    *string          `json:"description" form:"description"`
	Services       *[]string        `json:"services" form:"-"`
	XCoordinate    *float64         `json:"x_coordinate" form:"x_coordinate"`
	YCoordinate    *float64         `json:"y_coordinate" form:"y_coordinate"`
	Width          *float64         `json:"width" form:"width" validate:"omitempty,gte=0"`
	Height         *float64         `json:"height" form:"height" validate:"omitempty,gte=0"`
	Latitude       *float64         `json:"latitude" form:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64         `json:"longitude" form:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ImagePath      *string          `json:"image_path" form:"image_path"`
	ModalImagePath *string          `json:"modal_image_path" form:"modal_image_path"`
	IsActive       *bool            `json:"is_active" form:"is_active"`
	Employees      *[]EmployeeInput `json:"employees" form:"-" validate:"omitempty,dive"`
}

func (r *UpdateBuildingRequest) Normalize() {
	if r.BuildingName != nil {
		s := strings.TrimSpace(*r.BuildingName)
		r.BuildingName = &s
	}
	if r.Services != nil {
		s := cleanServices(*r.Services)
		r.Services = &s
	}
	if r.Employees != nil {
		for i := range *r.Employees {
			(*r.Employees)[i].Normalize()
		}
	}
}

func (r UpdateBuildingRequest) Apply(b *buildingModel.BuildingModel) {
	if r.MapID != nil {
		b.MapID = *r.MapID
	}
	if r.BuildingName != nil {
		b.BuildingName = *r.BuildingName
	}
	if r.Description != nil {
		b.Description = trimOrNil(r.Description)
	}
	if r.Services != nil {
		b.Services = servicesJSON(*r.Services)
	}
	if r.XCoordinate != nil {
		b.XCoordinate = *r.XCoordinate
	}
	if r.YCoordinate != nil {
		b.YCoordinate = *r.YCoordinate
	}
	if r.Width != nil {
		b.Width = *r.Width
	}
	if r.Height != nil {
		b.Height = *r.Height
	}
	if r.Latitude != nil {
		b.Latitude = r.Latitude
	}
	if r.Longitude != nil {
		b.Longitude = r.Longitude
	}
	if r.ImagePath != nil {
		b.ImagePath = trimOrNil(r.ImagePath)
	}
	if r.ModalImagePath != nil {
		b.ModalImagePath = trimOrNil(r.ModalImagePath)
	}
	if r.IsActive != nil {
		b.IsActive = *r.IsActive
	}
}

/* =========================================================
   RESPONSE DTO
========================================================= */

type BuildingResponse struct {
	buildingModel.BuildingModel
	Employees             []employeeModel.EmployeeModel `json:"employees"`
	ImageURL              string                        `json:"image_url"`
	ModalImageURL         string                        `json:"modal_image_url"`
	HasUnpublishedChanges bool                          `json:"has_unpublished_changes"`
}

func FromModel(b buildingModel.BuildingModel, emps []employeeModel.EmployeeModel, store helperOSS.ImageStore, dirty bool) BuildingResponse {
	if emps == nil {
		emps = []employeeModel.EmployeeModel{}
	}
	out := BuildingResponse{BuildingModel: b, Employees: emps, HasUnpublishedChanges: dirty}
	if store != nil {
		if b.ImagePath != nil {
			out.ImageURL = store.PublicURL(*b.ImagePath)
		}
		if b.ModalImagePath != nil {
			out.ModalImageURL = store.PublicURL(*b.ModalImagePath)
		}
	}
	return out
}

/* =========================================================
   Helpers
========================================================= */

func trimOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func cleanServices(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func servicesJSON(s []string) datatypes.JSON {
	if len(s) == 0 {
		return datatypes.JSON("[]")
	}
	b, _ := json.Marshal(s)
	return datatypes.JSON(b)
}
