package dto

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"campusmap_backend/internals/features/campus/employees/model"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

/* =========================================================
   REQUEST DTO
========================================================= */

type CreateEmployeeRequest struct {
	BuildingID    uint    `json:"building_id" form:"building_id" validate:"required"`
	EmployeeName  string  `json:"employee_name" form:"employee_name" validate:"required,max=255"`
	Position      *string `json:"position" form:"position" validate:"omitempty,max=255"`
	Department    *string `json:"department" form:"department" validate:"omitempty,max=255"`
	Email         *string `json:"email" form:"email" validate:"omitempty,email,max=255"`
	ContactNumber *string `json:"contact_number" form:"contact_number" validate:"omitempty,max=64"`
	EmployeeImage string  `json:"employee_image" form:"employee_image"`
}

func (r *CreateEmployeeRequest) Normalize() {
	r.EmployeeName = strings.TrimSpace(r.EmployeeName)
	r.Position = trimOrNil(r.Position)
	r.Department = trimOrNil(r.Department)
	r.Email = trimOrNil(r.Email)
	r.ContactNumber = trimOrNil(r.ContactNumber)
	r.EmployeeImage = strings.TrimSpace(r.EmployeeImage)
}

func (r CreateEmployeeRequest) ToModel() model.EmployeeModel {
	return model.EmployeeModel{
		BuildingID:    r.BuildingID,
		EmployeeName:  r.EmployeeName,
		Position:      r.Position,
		Department:    r.Department,
		Email:         r.Email,
		ContactNumber: r.ContactNumber,
		EmployeeImage: model.ImageOrDefault(r.EmployeeImage),
	}
}

type UpdateEmployeeRequest struct {
	BuildingID    *uint   `json:"building_id" form:"building_id" validate:"omitempty,min=1"`
	EmployeeName  *string `json:"employee_name" form:"employee_name" validate:"omitempty,min=1,max=255"`
	Position      *string `json:"position" form:"position" validate:"omitempty,max=255"`
	Department    *string `json:"department" form:"department" validate:"omitempty,max=255"`
	Email         *string `json:"email" form:"email" validate:"omitempty,email,max=255"`
	ContactNumber *string `json:"contact_number" form:"contact_number" validate:"omitempty,max=64"`
	EmployeeImage *string `json:"employee_image" form:"employee_image"`
}

func (r *UpdateEmployeeRequest) Normalize() {
	if r.EmployeeName != nil {
		s := strings.TrimSpace(*r.EmployeeName)
		r.EmployeeName = &s
	}
	if r.Email != nil {
		s := strings.TrimSpace(*r.Email)
		r.Email = &s
	}
}

func (r UpdateEmployeeRequest) Apply(e *model.EmployeeModel) {
	if r.BuildingID != nil {
		e.BuildingID = *r.BuildingID
	}
	if r.EmployeeName != nil {
		e.EmployeeName = *r.EmployeeName
	}
	if r.Position != nil {
		e.Position = trimOrNil(r.Position)
	}
	if r.Department != nil {
		e.Department = trimOrNil(r.Department)
	}
	if r.Email != nil {
		e.Email = trimOrNil(r.Email)
	}
	if r.ContactNumber != nil {
		e.ContactNumber = trimOrNil(r.ContactNumber)
	}
	if r.EmployeeImage != nil {
		e.EmployeeImage = model.ImageOrDefault(*r.EmployeeImage)
	}
}

/* =========================================================
   RESPONSE DTO
========================================================= */

type EmployeeResponse struct {
	model.EmployeeModel
	ImageURL              string `json:"image_url"`
	HasUnpublishedChanges bool   `json:"has_unpublished_changes"`
}

func FromModel(e model.EmployeeModel, store helperOSS.ImageStore, dirty bool) EmployeeResponse {
	out := EmployeeResponse{EmployeeModel: e, HasUnpublishedChanges: dirty}
	if store != nil && e.EmployeeImage != model.DefaultEmployeeImage {
		out.ImageURL = store.PublicURL(e.EmployeeImage)
	}
	return out
}

// SortByName orders employees by name ignoring case and diacritics, so
// "Élise" sorts next to "Elise".
func SortByName(rows []model.EmployeeModel) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := SortKey(rows[i].EmployeeName), SortKey(rows[j].EmployeeName)
		if a != b {
			return a < b
		}
		return rows[i].ID < rows[j].ID
	})
}

func SortKey(name string) string {
	var sb strings.Builder
	for _, r := range norm.NFD.String(strings.TrimSpace(name)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

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
