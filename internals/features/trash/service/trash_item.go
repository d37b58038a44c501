package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	mapModel "campusmap_backend/internals/features/campus/maps/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	"campusmap_backend/internals/features/trash/model"
	helper "campusmap_backend/internals/helpers"
)

/* =========================
   item_data payloads
   ========================= */

type RoomItem struct {
	Room roomModel.RoomModel `json:"room"`
}

type BuildingItem struct {
	Building  buildingModel.BuildingModel   `json:"building"`
	Employees []employeeModel.EmployeeModel `json:"employees"`
	Rooms     []roomModel.RoomModel         `json:"rooms"`
}

type MapItem struct {
	Map       mapModel.MapModel `json:"map"`
	Buildings []BuildingItem    `json:"buildings"`
}

// loadItem serialises the live row and its children. ErrNotFound when the
// row is gone.
func loadItem(tx *gorm.DB, t model.ItemType, id uint) (name string, data datatypes.JSON, err error) {
	var payload any
	switch t {
	case model.ItemRoom:
		var r roomModel.RoomModel
		if err := tx.First(&r, id).Error; err != nil {
			return "", nil, helper.Storage(err, "load room")
		}
		name, payload = r.Name, RoomItem{Room: r}

	case model.ItemBuilding:
		bi, err := loadBuildingItem(tx, id)
		if err != nil {
			return "", nil, err
		}
		name, payload = bi.Building.BuildingName, bi

	case model.ItemMap:
		var m mapModel.MapModel
		if err := tx.First(&m, id).Error; err != nil {
			return "", nil, helper.Storage(err, "load map")
		}
		var ids []uint
		if err := tx.Model(&buildingModel.BuildingModel{}).Where("map_id = ?", id).Order("id").Pluck("id", &ids).Error; err != nil {
			return "", nil, helper.Storage(err, "load map buildings")
		}
		mi := MapItem{Map: m, Buildings: make([]BuildingItem, 0, len(ids))}
		for _, bid := range ids {
			bi, err := loadBuildingItem(tx, bid)
			if err != nil {
				return "", nil, err
			}
			mi.Buildings = append(mi.Buildings, bi)
		}
		name, payload = m.Name, mi

	default:
		return "", nil, helper.Invalid("unknown item type %q", t)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", nil, errors.Wrap(err, "encode item_data")
	}
	return name, datatypes.JSON(b), nil
}

func loadBuildingItem(tx *gorm.DB, id uint) (BuildingItem, error) {
	var bi BuildingItem
	if err := tx.First(&bi.Building, id).Error; err != nil {
		return bi, helper.Storage(err, "load building")
	}
	if err := tx.Where("building_id = ?", id).Order("id").Find(&bi.Employees).Error; err != nil {
		return bi, helper.Storage(err, "load building employees")
	}
	if err := tx.Where("building_id = ?", id).Order("id").Find(&bi.Rooms).Error; err != nil {
		return bi, helper.Storage(err, "load building rooms")
	}
	return bi, nil
}

// rowExists reports whether the original row is still stored.
func rowExists(tx *gorm.DB, t model.ItemType, id uint) (bool, error) {
	var n int64
	var err error
	switch t {
	case model.ItemRoom:
		err = tx.Model(&roomModel.RoomModel{}).Where("id = ?", id).Count(&n).Error
	case model.ItemBuilding:
		err = tx.Model(&buildingModel.BuildingModel{}).Where("id = ?", id).Count(&n).Error
	case model.ItemMap:
		err = tx.Model(&mapModel.MapModel{}).Where("id = ?", id).Count(&n).Error
	default:
		return false, helper.Invalid("unknown item type %q", t)
	}
	if err != nil {
		return false, helper.Storage(err, "check row")
	}
	return n > 0, nil
}

// DeleteRow hard-deletes a row and its children. Children are removed
// explicitly so the result does not depend on FK cascades.
func DeleteRow(tx *gorm.DB, t model.ItemType, id uint) error {
	switch t {
	case model.ItemRoom:
		return helper.Storage(tx.Delete(&roomModel.RoomModel{}, id).Error, "delete room")

	case model.ItemBuilding:
		return deleteBuildings(tx, []uint{id})

	case model.ItemMap:
		var ids []uint
		if err := tx.Model(&buildingModel.BuildingModel{}).Where("map_id = ?", id).Pluck("id", &ids).Error; err != nil {
			return helper.Storage(err, "list map buildings")
		}
		if err := deleteBuildings(tx, ids); err != nil {
			return err
		}
		return helper.Storage(tx.Delete(&mapModel.MapModel{}, id).Error, "delete map")
	}
	return helper.Invalid("unknown item type %q", t)
}

func deleteBuildings(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("building_id IN ?", ids).Delete(&employeeModel.EmployeeModel{}).Error; err != nil {
		return helper.Storage(err, "delete employees")
	}
	if err := tx.Where("building_id IN ?", ids).Delete(&roomModel.RoomModel{}).Error; err != nil {
		return helper.Storage(err, "delete rooms")
	}
	return helper.Storage(tx.Where("id IN ?", ids).Delete(&buildingModel.BuildingModel{}).Error, "delete buildings")
}

/* =========================
   Image references
   ========================= */

func itemImageRefs(t model.ItemType, data datatypes.JSON) []string {
	var refs []string
	add := func(s string) {
		if s != "" && s != employeeModel.DefaultEmployeeImage {
			refs = append(refs, s)
		}
	}
	addPtr := func(s *string) {
		if s != nil {
			add(*s)
		}
	}
	building := func(bi BuildingItem) {
		addPtr(bi.Building.ImagePath)
		addPtr(bi.Building.ModalImagePath)
		for _, e := range bi.Employees {
			add(e.EmployeeImage)
		}
		for _, r := range bi.Rooms {
			add(r.PanoramaImagePath)
			addPtr(r.ThumbnailPath)
		}
	}

	switch t {
	case model.ItemRoom:
		var ri RoomItem
		if json.Unmarshal(data, &ri) == nil {
			add(ri.Room.PanoramaImagePath)
			addPtr(ri.Room.ThumbnailPath)
		}
	case model.ItemBuilding:
		var bi BuildingItem
		if json.Unmarshal(data, &bi) == nil {
			building(bi)
		}
	case model.ItemMap:
		var mi MapItem
		if json.Unmarshal(data, &mi) == nil {
			add(mi.Map.ImagePath)
			for _, bi := range mi.Buildings {
				building(bi)
			}
		}
	}
	return refs
}

// likeEscaper makes an object key match itself only in a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ImageReferenced reports whether any stored row, published snapshot or
// ledger entry still points at ref.
func ImageReferenced(ctx context.Context, db *gorm.DB, ref string) (bool, error) {
	if ref == employeeModel.DefaultEmployeeImage {
		return true, nil
	}
	quoted := "%" + likeEscaper.Replace(`"`+ref+`"`) + "%"
	checks := []struct {
		model any
		cols  []string
	}{
		{&mapModel.MapModel{}, []string{"image_path"}},
		{&buildingModel.BuildingModel{}, []string{"image_path", "modal_image_path"}},
		{&employeeModel.EmployeeModel{}, []string{"employee_image"}},
		{&roomModel.RoomModel{}, []string{"panorama_image_path", "thumbnail_path"}},
	}
	for _, c := range checks {
		q := db.WithContext(ctx).Model(c.model).Where(c.cols[0]+" = ?", ref)
		for _, col := range c.cols[1:] {
			q = q.Or(col+" = ?", ref)
		}
		q = q.Or(`CAST(published_data AS TEXT) LIKE ? ESCAPE '\'`, quoted)
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return false, helper.Storage(err, "check image reference")
		}
		if n > 0 {
			return true, nil
		}
	}

	var n int64
	if err := db.WithContext(ctx).Model(&model.DeletedItemModel{}).
		Where(`CAST(item_data AS TEXT) LIKE ? ESCAPE '\'`, quoted).
		Count(&n).Error; err != nil {
		return false, helper.Storage(err, "check ledger image reference")
	}
	return n > 0, nil
}
