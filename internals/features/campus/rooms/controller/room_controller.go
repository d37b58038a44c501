package controller

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	buildingModel "campusmap_backend/internals/features/campus/buildings/model"
	"campusmap_backend/internals/features/campus/rooms/dto"
	"campusmap_backend/internals/features/campus/rooms/model"
	pubService "campusmap_backend/internals/features/publication/service"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type RoomController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Images   helperOSS.ImageStore
	Trash    *trashService.TrashService
	Recorder activityService.Recorder
}

func NewRoomController(db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) *RoomController {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	return &RoomController{DB: db, Validate: helper.NewValidator(), Images: images, Trash: trash, Recorder: rec}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func requireBuilding(tx *gorm.DB, id uint) error {
	var b buildingModel.BuildingModel
	if err := tx.Select("id", "pending_deletion").First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.Invalid("building %d does not exist", id)
		}
		return helper.Storage(err, "load building")
	}
	if b.PendingDeletion {
		return helper.Conflict("building %d is staged for deletion", id)
	}
	return nil
}

func (ctl *RoomController) record(c *fiber.Ctx, action string, r *model.RoomModel, details map[string]any) {
	id := r.ID
	ctl.Recorder.Record(reqCtx(c), helper.ActorFromCtx(c), activityService.Entry{
		Action:     action,
		TargetType: string(trashModel.ItemRoom),
		TargetID:   &id,
		TargetName: r.Name,
		Details:    details,
	})
}

// storePanorama saves the "panorama_image" upload with its thumbnail.
func (ctl *RoomController) storePanorama(c *fiber.Ctx) (pano, thumb string, err error) {
	fh := helperOSS.FormFile(c, "panorama_image")
	if fh == nil {
		return "", "", nil
	}
	if ctl.Images == nil {
		return "", "", fiber.NewError(fiber.StatusServiceUnavailable, "image storage is not configured")
	}
	pano, thumb, err = helperOSS.StorePanorama(reqCtx(c), ctl.Images, fh)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "invalid panorama_image: "+err.Error())
	}
	return pano, thumb, nil
}

func (ctl *RoomController) list(c *fiber.Ctx, q *gorm.DB) error {
	if !c.QueryBool("with_pending", false) {
		q = q.Where("pending_deletion = ?", false)
	}
	var rows []model.RoomModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list rooms"))
	}
	out := make([]dto.RoomResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromModel(rows[i], ctl.Images, pubService.RoomDirty(&rows[i])))
	}
	return helper.JsonList(c, "rooms", out, nil)
}

/* =======================================================
   READ
   ======================================================= */

// GET /api/rooms?building_id=
func (ctl *RoomController) List(c *fiber.Ctx) error {
	q := ctl.DB.WithContext(reqCtx(c))
	if bid := c.QueryInt("building_id", 0); bid > 0 {
		q = q.Where("building_id = ?", bid)
	}
	return ctl.list(c, q)
}

// GET /api/rooms/building/:buildingId
func (ctl *RoomController) ByBuilding(c *fiber.Ctx) error {
	bid, err := parseID(c, "buildingId")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return ctl.list(c, ctl.DB.WithContext(reqCtx(c)).Where("building_id = ?", bid))
}

// GET /api/rooms/:id
func (ctl *RoomController) Show(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var r model.RoomModel
	if err := ctl.DB.WithContext(reqCtx(c)).First(&r, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load room"))
	}
	return helper.JsonOK(c, "room", dto.FromModel(r, ctl.Images, pubService.RoomDirty(&r)))
}

/* =======================================================
   WRITE
   ======================================================= */

// POST /api/rooms (multipart, "panorama_image" required)
func (ctl *RoomController) Create(c *fiber.Ctx) error {
	var req dto.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if helperOSS.FormFile(c, "panorama_image") == nil {
		return helper.JsonError(c, fiber.StatusUnprocessableEntity, "panorama_image is required")
	}

	db := ctl.DB.WithContext(reqCtx(c))
	if err := requireBuilding(db, req.BuildingID); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	pano, thumb, err := ctl.storePanorama(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	r := req.ToModel()
	r.PanoramaImagePath = pano
	r.ThumbnailPath = &thumb
	if err := db.Create(&r).Error; err != nil {
		if ctl.Trash != nil {
			ctl.Trash.DeleteImages(reqCtx(c), []string{pano, thumb})
		}
		return helper.JsonErrorFrom(c, helper.Storage(err, "create room"))
	}
	ctl.record(c, activityService.ActionCreated, &r, map[string]any{"building_id": r.BuildingID})
	return helper.JsonCreated(c, "room created", dto.FromModel(r, ctl.Images, true))
}

// PUT /api/rooms/:id (json, or multipart with an optional new "panorama_image")
func (ctl *RoomController) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var req dto.UpdateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	pano, thumb, err := ctl.storePanorama(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	var r, before model.RoomModel
	err = ctl.DB.WithContext(reqCtx(c)).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			return helper.Storage(err, "load room")
		}
		before = r
		req.Apply(&r)
		if r.BuildingID != before.BuildingID {
			if err := requireBuilding(tx, r.BuildingID); err != nil {
				return err
			}
		}
		if pano != "" {
			r.PanoramaImagePath = pano
			r.ThumbnailPath = &thumb
		}
		return helper.Storage(tx.Model(&r).Select(
			"building_id", "name", "description", "panorama_image_path", "thumbnail_path", "is_published",
		).Updates(&r).Error, "update room")
	})
	if err != nil {
		if pano != "" && ctl.Trash != nil {
			ctl.Trash.DeleteImages(reqCtx(c), []string{pano, thumb})
		}
		return helper.JsonErrorFrom(c, err)
	}

	if pano != "" && ctl.Trash != nil {
		old := []string{before.PanoramaImagePath}
		if before.ThumbnailPath != nil {
			old = append(old, *before.ThumbnailPath)
		}
		ctl.Trash.DeleteImages(reqCtx(c), old)
	}
	details := map[string]any{"panorama_replaced": pano != ""}
	if before.Name != r.Name {
		details["name"] = map[string]any{"from": before.Name, "to": r.Name}
	}
	ctl.record(c, activityService.ActionUpdated, &r, details)
	return helper.JsonUpdated(c, "room updated", dto.FromModel(r, ctl.Images, pubService.RoomDirty(&r)))
}

// DELETE /api/rooms/:id
// Stages the deletion; the row goes away on the next publish.
func (ctl *RoomController) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	entry, err := ctl.Trash.StageDeletion(reqCtx(c), trashModel.ItemRoom, id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "room marked for deletion, publish to remove it", entry)
}
