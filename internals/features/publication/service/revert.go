package service

import (
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/publication/snapshot"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
)

// Activation owns is_active, a revert never touches it.
var mapRevertFields = []string{"name", "image_path", "width", "height"}

func revertTx(tx *gorm.DB, kind snapshot.Kind, id uint) (Result, string, []string, error) {
	switch kind {
	case snapshot.KindMap:
		var m mapModel.MapModel
		if err := tx.First(&m, id).Error; err != nil {
			return "", "", nil, helper.Storage(err, "load map")
		}
		snap, err := snapshot.Decode(m.PublishedData)
		if err != nil {
			return "", m.Name, nil, helper.Conflict("map %d has an unreadable snapshot", id)
		}
		if snap == nil {
			return ResultDeleted, m.Name, nil, trashService.DeleteRow(tx, trashModel.ItemMap, id)
		}
		before := []string{m.ImagePath}
		if err := snapshot.Apply(&m, snap, mapRevertFields); err != nil {
			return "", m.Name, nil, err
		}
		if err := unstage(tx, trashModel.ItemMap, id, &m.PendingDeletion); err != nil {
			return "", m.Name, nil, err
		}
		m.IsPublished = true
		if err := tx.Save(&m).Error; err != nil {
			return "", m.Name, nil, helper.Storage(err, "revert map")
		}
		return ResultUpdated, m.Name, dropped(before, []string{m.ImagePath}), nil

	case snapshot.KindBuilding:
		var b buildingModel.BuildingModel
		if err := tx.First(&b, id).Error; err != nil {
			return "", "", nil, helper.Storage(err, "load building")
		}
		snap, err := snapshot.Decode(b.PublishedData)
		if err != nil {
			return "", b.BuildingName, nil, helper.Conflict("building %d has an unreadable snapshot", id)
		}
		if snap == nil {
			return ResultDeleted, b.BuildingName, nil, trashService.DeleteRow(tx, trashModel.ItemBuilding, id)
		}
		before := []string{deref(b.ImagePath), deref(b.ModalImagePath)}
		prevMap := b.MapID
		if err := snapshot.Apply(&b, snap, snapshot.BuildingFields); err != nil {
			return "", b.BuildingName, nil, err
		}
		if b.MapID != prevMap && !exists(tx, &mapModel.MapModel{}, b.MapID) {
			b.MapID = prevMap
		}
		if err := unstage(tx, trashModel.ItemBuilding, id, &b.PendingDeletion); err != nil {
			return "", b.BuildingName, nil, err
		}
		b.IsPublished = true
		if err := tx.Omit("Employees", "Rooms").Save(&b).Error; err != nil {
			return "", b.BuildingName, nil, helper.Storage(err, "revert building")
		}
		stale := dropped(before, []string{deref(b.ImagePath), deref(b.ModalImagePath)})
		if snap.HasChild(snapshot.ChildEmployees) {
			more, err := reconcileEmployees(tx, id, snapshot.EmbeddedEmployees(snap))
			if err != nil {
				return "", b.BuildingName, nil, err
			}
			stale = append(stale, more...)
		}
		return ResultUpdated, b.BuildingName, stale, nil

	case snapshot.KindEmployee:
		var e employeeModel.EmployeeModel
		if err := tx.First(&e, id).Error; err != nil {
			return "", "", nil, helper.Storage(err, "load employee")
		}
		snap, err := snapshot.Decode(e.PublishedData)
		if err != nil {
			return "", e.EmployeeName, nil, helper.Conflict("employee %d has an unreadable snapshot", id)
		}
		if snap == nil {
			if err := tx.Delete(&employeeModel.EmployeeModel{}, id).Error; err != nil {
				return "", e.EmployeeName, nil, helper.Storage(err, "delete employee")
			}
			return ResultDeleted, e.EmployeeName, nil, nil
		}
		before := []string{e.EmployeeImage}
		prevBuilding := e.BuildingID
		if err := snapshot.Apply(&e, snap, snapshot.EmployeeFields); err != nil {
			return "", e.EmployeeName, nil, err
		}
		if e.BuildingID != prevBuilding && !exists(tx, &buildingModel.BuildingModel{}, e.BuildingID) {
			e.BuildingID = prevBuilding
		}
		e.EmployeeImage = employeeModel.ImageOrDefault(e.EmployeeImage)
		e.IsPublished = true
		if err := tx.Save(&e).Error; err != nil {
			return "", e.EmployeeName, nil, helper.Storage(err, "revert employee")
		}
		return ResultUpdated, e.EmployeeName, dropped(before, []string{e.EmployeeImage}), nil

	case snapshot.KindRoom:
		var r roomModel.RoomModel
		if err := tx.First(&r, id).Error; err != nil {
			return "", "", nil, helper.Storage(err, "load room")
		}
		snap, err := snapshot.Decode(r.PublishedData)
		if err != nil {
			return "", r.Name, nil, helper.Conflict("room %d has an unreadable snapshot", id)
		}
		if snap == nil {
			return ResultDeleted, r.Name, nil, trashService.DeleteRow(tx, trashModel.ItemRoom, id)
		}
		before := []string{r.PanoramaImagePath, deref(r.ThumbnailPath)}
		prevBuilding := r.BuildingID
		if err := snapshot.Apply(&r, snap, snapshot.RoomFields); err != nil {
			return "", r.Name, nil, err
		}
		if r.BuildingID != prevBuilding && !exists(tx, &buildingModel.BuildingModel{}, r.BuildingID) {
			r.BuildingID = prevBuilding
		}
		if err := unstage(tx, trashModel.ItemRoom, id, &r.PendingDeletion); err != nil {
			return "", r.Name, nil, err
		}
		r.IsPublished = true
		if err := tx.Save(&r).Error; err != nil {
			return "", r.Name, nil, helper.Storage(err, "revert room")
		}
		return ResultUpdated, r.Name, dropped(before, []string{r.PanoramaImagePath, deref(r.ThumbnailPath)}), nil
	}
	return "", "", nil, helper.Invalid("unknown entity type %q", kind)
}

// unstage clears a staged deletion together with its ledger entry.
func unstage(tx *gorm.DB, t trashModel.ItemType, id uint, pending *bool) error {
	if !*pending {
		return nil
	}
	*pending = false
	err := tx.Where("item_type = ? AND original_id = ?", t, id).Delete(&trashModel.DeletedItemModel{}).Error
	return helper.Storage(err, "drop trash entry")
}

// reconcileEmployees makes the building's employees match the embedded
// list: matching ids are overwritten, missing ones recreated, extra ones
// removed. It returns images that are no longer used by the building.
func reconcileEmployees(tx *gorm.DB, buildingID uint, embedded []snapshot.EmbeddedEmployee) ([]string, error) {
	var live []employeeModel.EmployeeModel
	if err := tx.Where("building_id = ?", buildingID).Find(&live).Error; err != nil {
		return nil, helper.Storage(err, "load employees")
	}
	byID := make(map[uint]employeeModel.EmployeeModel, len(live))
	var before []string
	for _, e := range live {
		byID[e.ID] = e
		before = append(before, e.EmployeeImage)
	}

	var after []string
	for _, em := range embedded {
		after = append(after, em.EmployeeImage)
		if _, ok := byID[em.ID]; ok && em.ID != 0 {
			if err := tx.Model(&employeeModel.EmployeeModel{}).Where("id = ?", em.ID).Updates(map[string]any{
				"employee_name":  em.EmployeeName,
				"position":       em.Position,
				"department":     em.Department,
				"email":          em.Email,
				"contact_number": em.ContactNumber,
				"employee_image": em.EmployeeImage,
			}).Error; err != nil {
				return nil, helper.Storage(err, "revert employee")
			}
			delete(byID, em.ID)
			continue
		}
		row := employeeModel.EmployeeModel{
			BuildingID:    buildingID,
			EmployeeName:  em.EmployeeName,
			Position:      em.Position,
			Department:    em.Department,
			Email:         em.Email,
			ContactNumber: em.ContactNumber,
			EmployeeImage: employeeModel.ImageOrDefault(em.EmployeeImage),
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, helper.Storage(err, "recreate employee")
		}
	}
	for extra := range byID {
		if err := tx.Delete(&employeeModel.EmployeeModel{}, extra).Error; err != nil {
			return nil, helper.Storage(err, "remove employee")
		}
	}
	return dropped(before, after), nil
}

// dropped returns the refs of before that are not in after.
func dropped(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, r := range after {
		keep[r] = struct{}{}
	}
	var out []string
	for _, r := range before {
		if _, ok := keep[r]; !ok && r != "" && r != employeeModel.DefaultEmployeeImage {
			out = append(out, r)
		}
	}
	return out
}

func exists(tx *gorm.DB, m any, id uint) bool {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}
