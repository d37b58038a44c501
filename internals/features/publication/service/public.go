package service

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/publication/snapshot"
	helper "campusmap_backend/internals/helpers"
)

/* =========================
   Public read surface
   =========================
   Everything here is served to the public map app. Staged deletions are
   never returned, and a row with a snapshot is always shown through it.
*/

// PublishedMapView is a published map with its published buildings.
type PublishedMapView struct {
	mapModel.MapModel
	Buildings []snapshot.PublishedBuilding `json:"buildings"`
}

// ActivePublished resolves the map the public app should show: the one whose
// snapshot is flagged active (the live active map wins a tie), or a live
// active map published before snapshots existed.
func (s *PublicationService) ActivePublished(ctx context.Context) (*PublishedMapView, error) {
	db := s.DB.WithContext(ctx)

	var rows []mapModel.MapModel
	if err := db.Where("pending_deletion = ?", false).Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list maps")
	}

	var (
		chosen *mapModel.MapModel
		snap   *snapshot.Snapshot
	)
	for i := range rows {
		sn, err := snapshot.Decode(rows[i].PublishedData)
		if err != nil || sn == nil {
			continue
		}
		if active, _ := sn.Fields["is_active"].(bool); !active {
			continue
		}
		if chosen == nil || rows[i].IsActive {
			chosen, snap = &rows[i], sn
		}
	}
	if chosen == nil {
		for i := range rows {
			if rows[i].IsActive && rows[i].IsPublished && !rows[i].HasSnapshot() {
				chosen = &rows[i]
				break
			}
		}
	}
	if chosen == nil {
		return nil, errors.Wrap(helper.ErrNotFound, "no active published map")
	}

	view, err := publishedMap(chosen, snap)
	if err != nil {
		return nil, err
	}
	buildings, err := publishedBuildings(db, chosen.ID)
	if err != nil {
		return nil, err
	}
	return &PublishedMapView{MapModel: view, Buildings: buildings}, nil
}

// PublishedMaps lists every map that is live in the public app.
func (s *PublicationService) PublishedMaps(ctx context.Context) ([]mapModel.MapModel, error) {
	var rows []mapModel.MapModel
	if err := s.DB.WithContext(ctx).
		Where("pending_deletion = ?", false).
		Where("is_published = ? OR published_data IS NOT NULL", true).
		Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list maps")
	}
	out := make([]mapModel.MapModel, 0, len(rows))
	for i := range rows {
		sn, err := snapshot.Decode(rows[i].PublishedData)
		if err != nil {
			continue
		}
		if sn == nil && !rows[i].IsPublished {
			continue
		}
		v, err := publishedMap(&rows[i], sn)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// PublishedBuildings lists published buildings of one map.
func (s *PublicationService) PublishedBuildings(ctx context.Context, mapID uint) ([]snapshot.PublishedBuilding, error) {
	return publishedBuildings(s.DB.WithContext(ctx), mapID)
}

// PublishedBuilding returns one building through its snapshot.
func (s *PublicationService) PublishedBuilding(ctx context.Context, id uint) (*snapshot.PublishedBuilding, error) {
	db := s.DB.WithContext(ctx)
	var b buildingModel.BuildingModel
	if err := db.First(&b, id).Error; err != nil {
		return nil, helper.Storage(err, "load building")
	}
	sn, err := snapshot.Decode(b.PublishedData)
	if b.PendingDeletion || err != nil || sn == nil {
		return nil, helper.NotFound("published building", id)
	}
	emps, err := employeesByBuilding(db, []uint{id})
	if err != nil {
		return nil, err
	}
	v, err := snapshot.ReconstructBuilding(sn, b, emps[id])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PublishedRooms lists the rooms of a building as the public app sees them.
func (s *PublicationService) PublishedRooms(ctx context.Context, buildingID uint) ([]roomModel.RoomModel, error) {
	var rows []roomModel.RoomModel
	if err := s.DB.WithContext(ctx).
		Where("pending_deletion = ?", false).
		Where("is_published = ? OR published_data IS NOT NULL", true).
		// a snapshot may still place a moved room under buildingID
		Where("building_id = ? OR published_data IS NOT NULL", buildingID).
		Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list rooms")
	}
	out := make([]roomModel.RoomModel, 0)
	for _, r := range rows {
		sn, err := snapshot.Decode(r.PublishedData)
		if err != nil {
			continue
		}
		v := r
		if sn != nil {
			if v, err = snapshot.ReconstructRoom(sn, r); err != nil {
				return nil, err
			}
		} else if !r.IsPublished {
			continue
		}
		v.PublishedData = nil
		if v.BuildingID == buildingID {
			out = append(out, v)
		}
	}
	return out, nil
}

// PublishedEmployees lists published employees, optionally of one building.
func (s *PublicationService) PublishedEmployees(ctx context.Context, buildingID *uint) ([]employeeModel.EmployeeModel, error) {
	var rows []employeeModel.EmployeeModel
	if err := s.DB.WithContext(ctx).
		Where("is_published = ? OR published_data IS NOT NULL", true).
		Order("id").Find(&rows).Error; err != nil {
		return nil, helper.Storage(err, "list employees")
	}
	out := make([]employeeModel.EmployeeModel, 0)
	for _, e := range rows {
		sn, err := snapshot.Decode(e.PublishedData)
		if err != nil {
			continue
		}
		v := e
		if sn != nil {
			if v, err = snapshot.ReconstructEmployee(sn, e); err != nil {
				return nil, err
			}
		} else if !e.IsPublished {
			continue
		}
		v.PublishedData = nil
		v.EmployeeImage = employeeModel.ImageOrDefault(v.EmployeeImage)
		if buildingID == nil || v.BuildingID == *buildingID {
			out = append(out, v)
		}
	}
	return out, nil
}

func publishedMap(m *mapModel.MapModel, sn *snapshot.Snapshot) (mapModel.MapModel, error) {
	if sn == nil {
		v := *m
		v.PublishedData = nil
		v.LayoutSnapshot = nil
		return v, nil
	}
	return snapshot.ReconstructMap(sn, *m)
}

// publishedBuildings reconstructs every non-staged building with a snapshot
// and keeps those whose published map is mapID.
func publishedBuildings(db *gorm.DB, mapID uint) ([]snapshot.PublishedBuilding, error) {
	var rows []buildingModel.BuildingModel
	if err := db.Where("pending_deletion = ? AND published_data IS NOT NULL", false).
		Order("id").Find(&rows).Error; err != nil {
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

	out := make([]snapshot.PublishedBuilding, 0, len(rows))
	for _, b := range rows {
		sn, err := snapshot.Decode(b.PublishedData)
		if err != nil || sn == nil {
			continue
		}
		v, err := snapshot.ReconstructBuilding(sn, b, emps[b.ID])
		if err != nil {
			return nil, err
		}
		if v.MapID == mapID {
			out = append(out, v)
		}
	}
	return out, nil
}
