package dto

import (
	"strings"

	mapModel "campusmap_backend/internals/features/campus/maps/model"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

/* =========================================================
   REQUEST DTO
========================================================= */

type CreateMapRequest struct {
	Name      string `json:"name" form:"name" validate:"required,max=255"`
	ImagePath string `json:"image_path" form:"image_path"`
	Width     int    `json:"width" form:"width" validate:"gte=0"`
	Height    int    `json:"height" form:"height" validate:"gte=0"`
	IsActive  bool   `json:"is_active" form:"is_active"`
}

func (r *CreateMapRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.ImagePath = strings.TrimSpace(r.ImagePath)
}

func (r CreateMapRequest) ToModel() mapModel.MapModel {
	return mapModel.MapModel{
		Name:      r.Name,
		ImagePath: r.ImagePath,
		Width:     r.Width,
		Height:    r.Height,
	}
}

// UpdateMapRequest is partial: nil leaves the column as it is. Activation
// has its own endpoint.
type UpdateMapRequest struct {
	Name      *string `json:"name" form:"name" validate:"omitempty,min=1,max=255"`
	ImagePath *string `json:"image_path" form:"image_path"`
	Width     *int    `json:"width" form:"width" validate:"omitempty,gte=0"`
	Height    *int    `json:"height" form:"height" validate:"omitempty,gte=0"`
}

func (r *UpdateMapRequest) Normalize() {
	if r.Name != nil {
		s := strings.TrimSpace(*r.Name)
		r.Name = &s
	}
	if r.ImagePath != nil {
		s := strings.TrimSpace(*r.ImagePath)
		r.ImagePath = &s
	}
}

func (r UpdateMapRequest) Apply(m *mapModel.MapModel) {
	if r.Name != nil {
		m.Name = *r.Name
	}
	if r.ImagePath != nil {
		m.ImagePath = *r.ImagePath
	}
	if r.Width != nil {
		m.Width = *r.Width
	}
	if r.Height != nil {
		m.Height = *r.Height
	}
}

// LayoutPosition moves one building when a layout is saved.
type LayoutPosition struct {
	ID          uint     `json:"id" validate:"required"`
	XCoordinate *float64 `json:"x_coordinate"`
	YCoordinate *float64 `json:"y_coordinate"`
	Width       *float64 `json:"width" validate:"omitempty,gte=0"`
	Height      *float64 `json:"height" validate:"omitempty,gte=0"`
}

type SaveLayoutRequest struct {
	Buildings []LayoutPosition `json:"buildings" validate:"dive"`
}

/* =========================================================
   RESPONSE DTO
========================================================= */

type MapResponse struct {
	mapModel.MapModel
	ImageURL              string `json:"image_url"`
	HasUnpublishedChanges bool   `json:"has_unpublished_changes"`
}

func FromModel(m mapModel.MapModel, store helperOSS.ImageStore, dirty bool) MapResponse {
	out := MapResponse{MapModel: m, HasUnpublishedChanges: dirty}
	if store != nil {
		out.ImageURL = store.PublicURL(m.ImagePath)
	}
	return out
}
