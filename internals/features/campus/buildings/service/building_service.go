package service

import (
	"gorm.io/gorm"

	"campusmap_backend/internals/features/campus/buildings/dto"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	helper "campusmap_backend/internals/helpers"
)

// ResolveMapID returns mapID when the map exists, or the active map when
// mapID is 0.
func ResolveMapID(tx *gorm.DB, mapID uint) (uint, error) {
	q := tx.Select("id", "pending_deletion")
	if mapID == 0 {
		q = q.Where("is_active = ?", true)
	} else {
		q = q.Where("id = ?", mapID)
	}
	var rows []mapModel.MapModel
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return 0, helper.Storage(err, "resolve map")
	}
	if len(rows) == 0 {
		if mapID == 0 {
			return 0, helper.Invalid("map_id is required when no map is active")
		}
		return 0, helper.Invalid("map %d does not exist", mapID)
	}
	m := rows[0]
	if m.PendingDeletion {
		return 0, helper.Conflict("map %d is staged for deletion", m.ID)
	}
	return m.ID, nil
}

// SyncEmployees makes the building's employees match in: inputs with a
// known id update that employee, the rest are created, and employees not
// listed are removed. It returns image refs the building no longer uses.
func SyncEmployees(tx *gorm.DB, buildingID uint, in []dto.EmployeeInput) ([]string, error) {
	var live []employeeModel.EmployeeModel
	if err := tx.Where("building_id = ?", buildingID).Find(&live).Error; err != nil {
		return nil, helper.Storage(err, "load employees")
	}
	byID := make(map[uint]employeeModel.EmployeeModel, len(live))
	for _, e := range live {
		byID[e.ID] = e
	}

	used := map[string]struct{}{}
	var released []string
	for _, e := range in {
		img := employeeModel.ImageOrDefault(e.EmployeeImage)
		used[img] = struct{}{}

		if e.ID != nil {
			if cur, ok := byID[*e.ID]; ok {
				if err := tx.Model(&employeeModel.EmployeeModel{}).Where("id = ?", cur.ID).Updates(map[string]any{
					"employee_name":  e.EmployeeName,
					"position":       e.Position,
					"department":     e.Department,
					"email":          e.Email,
					"contact_number": e.ContactNumber,
					"employee_image": img,
				}).Error; err != nil {
					return nil, helper.Storage(err, "update employee")
				}
				if cur.EmployeeImage != img {
					released = append(released, cur.EmployeeImage)
				}
				delete(byID, cur.ID)
				continue
			}
		}
		row := NewEmployee(buildingID, e)
		if err := tx.Create(&row).Error; err != nil {
			return nil, helper.Storage(err, "create employee")
		}
	}

	for id, e := range byID {
		if err := tx.Delete(&employeeModel.EmployeeModel{}, id).Error; err != nil {
			return nil, helper.Storage(err, "remove employee")
		}
		released = append(released, e.EmployeeImage)
	}

	out := released[:0]
	for _, r := range released {
		if _, ok := used[r]; !ok && r != employeeModel.DefaultEmployeeImage {
			out = append(out, r)
		}
	}
	return out, nil
}

func NewEmployee(buildingID uint, e dto.EmployeeInput) employeeModel.EmployeeModel {
	return employeeModel.EmployeeModel{
		BuildingID:    buildingID,
		EmployeeName:  e.EmployeeName,
		Position:      e.Position,
		Department:    e.Department,
		Email:         e.Email,
		ContactNumber: e.ContactNumber,
		EmployeeImage: employeeModel.ImageOrDefault(e.EmployeeImage),
	}
}
