package service

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/publication/snapshot"
	helper "campusmap_backend/internals/helpers"
)

type ChangeType string

const (
	ChangeNew             ChangeType = "new"
	ChangeModified        ChangeType = "modified"
	ChangePendingDeletion ChangeType = "pending_deletion"
)

// ListOptions narrows ListDirty.
type ListOptions struct {
	// ExcludeDeletions drops pending-deletion rows.
	ExcludeDeletions bool
}

// DirtyItem is one entity with unpublished work.
type DirtyItem struct {
	Kind       snapshot.Kind `json:"type"`
	ID         uint          `json:"id"`
	Name       string        `json:"name"`
	ChangeType ChangeType    `json:"change_type"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

/* =========================
   Pure evaluators
   ========================= */

// scalarDirty is the rule shared by every kind: unpublished or staged rows
// are dirty; a published row is dirty when its whitelisted fields moved
// away from the snapshot; published without snapshot is clean.
func scalarDirty(isPublished, pending bool, raw datatypes.JSON, current snapshot.Snapshot, fields []string) (bool, *snapshot.Snapshot) {
	if pending || !isPublished {
		return true, nil
	}
	snap, err := snapshot.Decode(raw)
	if err != nil {
		return true, nil
	}
	if snap == nil {
		return false, nil
	}
	return snapshot.FieldsDiffer(snap, current, fields), snap
}

func MapDirty(m *mapModel.MapModel) bool {
	d, _ := scalarDirty(m.IsPublished, m.PendingDeletion, m.PublishedData, snapshot.CaptureMap(*m), snapshot.MapFields)
	return d
}

// BuildingDirty also diffs the employee layer against the snapshot's
// embedded employees.
func BuildingDirty(b *buildingModel.BuildingModel, employees []employeeModel.EmployeeModel) bool {
	d, snap := scalarDirty(b.IsPublished, b.PendingDeletion, b.PublishedData, snapshot.CaptureBuilding(*b, employees), snapshot.BuildingFields)
	if d || snap == nil {
		return d
	}
	return snapshot.EmployeesDiffer(snap, employees)
}

func EmployeeDirty(e *employeeModel.EmployeeModel) bool {
	d, _ := scalarDirty(e.IsPublished, false, e.PublishedData, snapshot.CaptureEmployee(*e), snapshot.EmployeeFields)
	return d
}

func RoomDirty(r *roomModel.RoomModel) bool {
	d, _ := scalarDirty(r.IsPublished, r.PendingDeletion, r.PublishedData, snapshot.CaptureRoom(*r), snapshot.RoomFields)
	return d
}

func changeType(pending, hasSnapshot bool) ChangeType {
	switch {
	case pending:
		return ChangePendingDeletion
	case !hasSnapshot:
		return ChangeNew
	default:
		return ChangeModified
	}
}

/* =========================
   Loaders
   ========================= */

// IsDirty loads one entity and evaluates it.
func (s *PublicationService) IsDirty(ctx context.Context, kind snapshot.Kind, id uint) (bool, error) {
	db := s.DB.WithContext(ctx)
	switch kind {
	case snapshot.KindMap:
		var m mapModel.MapModel
		if err := db.First(&m, id).Error; err != nil {
			return false, helper.Storage(err, "load map")
		}
		return MapDirty(&m), nil
	case snapshot.KindBuilding:
		var b buildingModel.BuildingModel
		if err := db.First(&b, id).Error; err != nil {
			return false, helper.Storage(err, "load building")
		}
		emps, err := employeesByBuilding(db, []uint{id})
		if err != nil {
			return false, err
		}
		return BuildingDirty(&b, emps[id]), nil
	case snapshot.KindEmployee:
		var e employeeModel.EmployeeModel
		if err := db.First(&e, id).Error; err != nil {
			return false, helper.Storage(err, "load employee")
		}
		return EmployeeDirty(&e), nil
	case snapshot.KindRoom:
		var r roomModel.RoomModel
		if err := db.First(&r, id).Error; err != nil {
			return false, helper.Storage(err, "load room")
		}
		return RoomDirty(&r), nil
	}
	return false, helper.Invalid("unknown entity type %q", kind)
}

// ListDirty returns the entities of kind with unpublished work. Buildings
// are limited to the active map.
func (s *PublicationService) ListDirty(ctx context.Context, kind snapshot.Kind, opts ListOptions) ([]DirtyItem, error) {
	return listDirty(s.DB.WithContext(ctx), kind, opts)
}

func listDirty(db *gorm.DB, kind snapshot.Kind, opts ListOptions) ([]DirtyItem, error) {
	var out []DirtyItem
	add := func(id uint, name string, pending, hasSnap bool, updated time.Time) {
		if pending && opts.ExcludeDeletions {
			return
		}
		out = append(out, DirtyItem{Kind: kind, ID: id, Name: name, ChangeType: changeType(pending, hasSnap), UpdatedAt: updated})
	}

	switch kind {
	case snapshot.KindMap:
		var rows []mapModel.MapModel
		if err := db.Order("id").Find(&rows).Error; err != nil {
			return nil, helper.Storage(err, "list maps")
		}
		for i := range rows {
			m := &rows[i]
			if MapDirty(m) {
				add(m.ID, m.Name, m.PendingDeletion, m.HasSnapshot(), m.UpdatedAt)
			}
		}

	case snapshot.KindBuilding:
		mapID, err := activeMapID(db)
		if err != nil || mapID == 0 {
			return out, err
		}
		var rows []buildingModel.BuildingModel
		if err := db.Where("map_id = ?", mapID).Order("id").Find(&rows).Error; err != nil {
			return nil, helper.Storage(err, "list buildings")
		}
		ids := make([]uint, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		emps, err := employeesByBuilding(db, ids)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			b := &rows[i]
			if BuildingDirty(b, emps[b.ID]) {
				add(b.ID, b.BuildingName, b.PendingDeletion, b.HasSnapshot(), b.UpdatedAt)
			}
		}

	case snapshot.KindEmployee:
		var rows []employeeModel.EmployeeModel
		if err := db.Order("id").Find(&rows).Error; err != nil {
			return nil, helper.Storage(err, "list employees")
		}
		for i := range rows {
			e := &rows[i]
			if EmployeeDirty(e) {
				add(e.ID, e.EmployeeName, false, e.HasSnapshot(), e.UpdatedAt)
			}
		}

	case snapshot.KindRoom:
		var rows []roomModel.RoomModel
		if err := db.Order("id").Find(&rows).Error; err != nil {
			return nil, helper.Storage(err, "list rooms")
		}
		for i := range rows {
			r := &rows[i]
			if RoomDirty(r) {
				add(r.ID, r.Name, r.PendingDeletion, r.HasSnapshot(), r.UpdatedAt)
			}
		}

	default:
		return nil, helper.Invalid("unknown entity type %q", kind)
	}
	return out, nil
}

// Status summarises unpublished work.
type Status struct {
	Maps                  int   `json:"maps"`
	Buildings             int   `json:"buildings"`
	Rooms                 int   `json:"rooms"`
	Employees             int   `json:"employees"`
	Total                 int   `json:"total"`
	HasUnpublishedChanges bool  `json:"has_unpublished_changes"`
	ActiveMapID           *uint `json:"active_map_id"`
}

func (s *PublicationService) Status(ctx context.Context) (*Status, error) {
	un, err := s.Unpublished(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Maps:      len(un[snapshot.KindMap]),
		Buildings: len(un[snapshot.KindBuilding]),
		Rooms:     len(un[snapshot.KindRoom]),
		Employees: len(un[snapshot.KindEmployee]),
	}
	st.Total = st.Maps + st.Buildings + st.Rooms + st.Employees
	st.HasUnpublishedChanges = st.Total > 0

	id, err := activeMapID(s.DB.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if id != 0 {
		st.ActiveMapID = &id
	}
	return st, nil
}

// Unpublished returns every dirty entity grouped by kind.
func (s *PublicationService) Unpublished(ctx context.Context) (map[snapshot.Kind][]DirtyItem, error) {
	out := make(map[snapshot.Kind][]DirtyItem, len(publishOrder))
	for _, k := range publishOrder {
		items, err := s.ListDirty(ctx, k, ListOptions{})
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []DirtyItem{}
		}
		out[k] = items
	}
	return out, nil
}
