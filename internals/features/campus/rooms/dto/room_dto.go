package dto

import (
	"strings"

	"campusmap_backend/internals/features/campus/rooms/model"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type CreateRoomRequest struct {
	BuildingID  uint    `json:"building_id" form:"building_id" validate:"required"`
	Name        string  `json:"name" form:"name" validate:"required,max=255"`
	Description *string `json:"description" form:"description"`
}

func (r *CreateRoomRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = trimOrNil(r.Description)
}

func (r CreateRoomRequest) ToModel() model.RoomModel {
	return model.RoomModel{
		BuildingID:  r.BuildingID,
		Name:        r.Name,
		Description: r.Description,
	}
}

type UpdateRoomRequest struct {
	BuildingID  *uint   `json:"building_id" form:"building_id" validate:"omitempty,min=1"`
	Name        *string `json:"name" form:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" form:"description"`
}

func (r *UpdateRoomRequest) Normalize() {
	if r.Name != nil {
		s := strings.TrimSpace(*r.Name)
		r.Name = &s
	}
}

// Apply copies the request onto r. Any edit takes the room off the public
// app until it is published again.
func (r UpdateRoomRequest) Apply(m *model.RoomModel) {
	if r.BuildingID != nil {
		m.BuildingID = *r.BuildingID
	}
	if r.Name != nil {
		m.Name = *r.Name
	}
	if r.Description != nil {
		m.Description = trimOrNil(r.Description)
	}
	m.IsPublished = false
}

type RoomResponse struct {
	model.RoomModel
	PanoramaURL           string `json:"panorama_url"`
	ThumbnailURL          string `json:"thumbnail_url"`
	HasUnpublishedChanges bool   `json:"has_unpublished_changes"`
}

func FromModel(r model.RoomModel, store helperOSS.ImageStore, dirty bool) RoomResponse {
	out := RoomResponse{RoomModel: r, HasUnpublishedChanges: dirty}
	if store != nil {
		if r.PanoramaImagePath != "" {
			out.PanoramaURL = store.PublicURL(r.PanoramaImagePath)
		}
		if r.ThumbnailPath != nil {
			out.ThumbnailURL = store.PublicURL(*r.ThumbnailPath)
		}
	}
	return out
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
