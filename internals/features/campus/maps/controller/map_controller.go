package controller

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	"campusmap_backend/internals/features/campus/maps/dto"
	"campusmap_backend/internals/features/campus/maps/model"
	mapService "campusmap_backend/internals/features/campus/maps/service"
	pubService "campusmap_backend/internals/features/publication/service"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

/* =======================================================
   CONTROLLER
   ======================================================= */

type MapController struct {
	DB          *gorm.DB
	Validate    *validator.Validate
	Images      helperOSS.ImageStore
	Trash       *trashService.TrashService
	Publication *pubService.PublicationService
	Recorder    activityService.Recorder
}

func NewMapController(db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, pub *pubService.PublicationService, rec activityService.Recorder) *MapController {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	return &MapController{DB: db, Validate: helper.NewValidator(), Images: images, Trash: trash, Publication: pub, Recorder: rec}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func mapID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid map id")
	}
	return uint(id), nil
}

func (ctl *MapController) record(c *fiber.Ctx, action string, m *model.MapModel, details map[string]any) {
	id := m.ID
	ctl.Recorder.Record(reqCtx(c), helper.ActorFromCtx(c), activityService.Entry{
		Action:     action,
		TargetType: string(trashModel.ItemMap),
		TargetID:   &id,
		TargetName: m.Name,
		Details:    details,
	})
}

// storeImage saves the optional "image" upload and returns its ref.
func (ctl *MapController) storeImage(c *fiber.Ctx) (string, error) {
	fh := helperOSS.FormFile(c, "image")
	if fh == nil || ctl.Images == nil {
		return "", nil
	}
	ref, err := helperOSS.StoreUpload(reqCtx(c), ctl.Images, helperOSS.DirMaps, fh, helperOSS.DefaultWebPOptions)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid image: "+err.Error())
	}
	return ref, nil
}

/* =======================================================
   READ
   ======================================================= */

// GET /api/map?with_pending=true
func (ctl *MapController) List(c *fiber.Ctx) error {
	q := ctl.DB.WithContext(reqCtx(c)).Order("id")
	if !c.QueryBool("with_pending", false) {
		q = q.Where("pending_deletion = ?", false)
	}
	var rows []model.MapModel
	if err := q.Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list maps"))
	}
	out := make([]dto.MapResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromModel(rows[i], ctl.Images, pubService.MapDirty(&rows[i])))
	}
	return helper.JsonList(c, "maps", out, nil)
}

// GET /api/map/:id
func (ctl *MapController) Show(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var m model.MapModel
	if err := ctl.DB.WithContext(reqCtx(c)).First(&m, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load map"))
	}
	return helper.JsonOK(c, "map", dto.FromModel(m, ctl.Images, pubService.MapDirty(&m)))
}

// GET /api/map/active
// The live (draft) active map with its buildings, for the editor.
func (ctl *MapController) Active(c *fiber.Ctx) error {
	db := ctl.DB.WithContext(reqCtx(c))
	var m model.MapModel
	if err := db.Where("is_active = ?", true).Take(&m).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "active map"))
	}
	var buildings []buildingModel.BuildingModel
	if err := db.Where("map_id = ? AND pending_deletion = ?", m.ID, false).Order("id").Find(&buildings).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list buildings"))
	}
	return helper.JsonOK(c, "active map", fiber.Map{
		"map":       dto.FromModel(m, ctl.Images, pubService.MapDirty(&m)),
		"buildings": buildings,
	})
}

// GET /api/map/:id/layout
func (ctl *MapController) Layout(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	l, err := mapService.GetLayout(reqCtx(c), ctl.DB, id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "map layout", l)
}

/* =======================================================
   WRITE
   ======================================================= */

// POST /api/map (json or multipart with "image")
func (ctl *MapController) Create(c *fiber.Ctx) error {
	var req dto.CreateMapRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	ref, err := ctl.storeImage(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	m := req.ToModel()
	if ref != "" {
		m.ImagePath = ref
	}
	if err := ctl.DB.WithContext(reqCtx(c)).Create(&m).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "create map"))
	}
	ctl.record(c, activityService.ActionCreated, &m, map[string]any{"width": m.Width, "height": m.Height})

	if req.IsActive && ctl.Publication != nil {
		activated, err := ctl.Publication.Activate(reqCtx(c), m.ID, helper.ActorFromCtx(c))
		if err != nil {
			return helper.JsonErrorFrom(c, err)
		}
		m = *activated
	}
	return helper.JsonCreated(c, "map created", dto.FromModel(m, ctl.Images, true))
}

// PUT /api/map/:id
func (ctl *MapController) Update(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var req dto.UpdateMapRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	db := ctl.DB.WithContext(reqCtx(c))
	var m model.MapModel
	if err := db.First(&m, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load map"))
	}
	ref, err := ctl.storeImage(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if ref != "" {
		req.ImagePath = &ref
	}

	before := m
	req.Apply(&m)
	if err := db.Model(&m).Select("name", "image_path", "width", "height").Updates(&m).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "update map"))
	}
	if before.ImagePath != m.ImagePath && ctl.Trash != nil {
		ctl.Trash.DeleteImages(reqCtx(c), []string{before.ImagePath})
	}
	ctl.record(c, activityService.ActionUpdated, &m, changes(before, m))
	return helper.JsonUpdated(c, "map updated", dto.FromModel(m, ctl.Images, pubService.MapDirty(&m)))
}

// POST /api/map/upload
func (ctl *MapController) Upload(c *fiber.Ctx) error {
	if helperOSS.FormFile(c, "image") == nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "image file is required")
	}
	ref, err := ctl.storeImage(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if ref == "" {
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "image storage is not configured")
	}
	return helper.JsonCreated(c, "image uploaded", fiber.Map{
		"image_path": ref,
		"image_url":  ctl.Images.PublicURL(ref),
	})
}

// POST /api/map/:id/activate
func (ctl *MapController) Activate(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	m, err := ctl.Publication.Activate(reqCtx(c), id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "map activated", dto.FromModel(*m, ctl.Images, pubService.MapDirty(m)))
}

// POST /api/map/:id/layout
func (ctl *MapController) SaveLayout(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var req dto.SaveLayoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	l, err := mapService.SaveLayout(reqCtx(c), ctl.DB, id, req.Buildings)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	m := model.MapModel{ID: id, Name: l.Map.Name}
	ctl.record(c, activityService.ActionLayoutSaved, &m, map[string]any{
		"buildings": len(l.Buildings),
		"width":     l.Map.Width,
		"height":    l.Map.Height,
	})
	return helper.JsonOK(c, "layout snapshot saved", l)
}

// DELETE /api/map/:id
// Stages the deletion; the row goes away on the next publish.
func (ctl *MapController) Delete(c *fiber.Ctx) error {
	id, err := mapID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	entry, err := ctl.Trash.StageDeletion(reqCtx(c), trashModel.ItemMap, id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "map marked for deletion, publish to remove it", entry)
}

func changes(before, after model.MapModel) map[string]any {
	out := map[string]any{}
	if before.Name != after.Name {
		out["name"] = map[string]any{"from": before.Name, "to": after.Name}
	}
	if before.ImagePath != after.ImagePath {
		out["image_path"] = map[string]any{"from": before.ImagePath, "to": after.ImagePath}
	}
	if before.Width != after.Width || before.Height != after.Height {
		out["size"] = map[string]any{
			"from": []int{before.Width, before.Height},
			"to":   []int{after.Width, after.Height},
		}
	}
	return out
}
