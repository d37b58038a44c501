package controller

import (
	"context"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	activityService "campusmap_backend/internals/features/activity/service"
	"campusmap_backend/internals/features/campus/buildings/dto"
	"campusmap_backend/internals/features/campus/buildings/model"
	buildingService "campusmap_backend/internals/features/campus/buildings/service"
	employeeModel "campusmap_backend/internals/features/campus/employees/model"
	roomModel "campusmap_backend/internals/features/campus/rooms/model"
	pubService "campusmap_backend/internals/features/publication/service"
	trashModel "campusmap_backend/internals/features/trash/model"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type BuildingController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Images   helperOSS.ImageStore
	Trash    *trashService.TrashService
	Recorder activityService.Recorder
}

func NewBuildingController(db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) *BuildingController {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	return &BuildingController{DB: db, Validate: helper.NewValidator(), Images: images, Trash: trash, Recorder: rec}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func buildingID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid building id")
	}
	return uint(id), nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formJSON decodes a JSON-encoded form value (employees, services) sent
// alongside a multipart upload.
func formJSON(c *fiber.Ctx, field string, dst any) error {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil
	}
	if err := sonic.UnmarshalString(raw, dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid "+field)
	}
	return nil
}

func (ctl *BuildingController) record(c *fiber.Ctx, action string, b *model.BuildingModel, details map[string]any) {
	id := b.ID
	ctl.Recorder.Record(reqCtx(c), helper.ActorFromCtx(c), activityService.Entry{
		Action:     action,
		TargetType: string(trashModel.ItemBuilding),
		TargetID:   &id,
		TargetName: b.BuildingName,
		Details:    details,
	})
}

// storeImages saves the optional "image" and "modal_image" uploads.
func (ctl *BuildingController) storeImages(c *fiber.Ctx) (image, modal *string, err error) {
	if ctl.Images == nil {
		return nil, nil, nil
	}
	for field, dst := range map[string]**string{"image": &image, "modal_image": &modal} {
		fh := helperOSS.FormFile(c, field)
		if fh == nil {
			continue
		}
		ref, err := helperOSS.StoreUpload(reqCtx(c), ctl.Images, helperOSS.DirBuildings, fh, helperOSS.DefaultWebPOptions)
		if err != nil {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
		}
		*dst = &ref
	}
	return image, modal, nil
}

func (ctl *BuildingController) employees(db *gorm.DB, id uint) ([]employeeModel.EmployeeModel, error) {
	var emps []employeeModel.EmployeeModel
	if err := db.Where("building_id = ?", id).Order("employee_name, id").Find(&emps).Error; err != nil {
		return nil, helper.Storage(err, "load employees")
	}
	return emps, nil
}

func (ctl *BuildingController) respond(db *gorm.DB, b model.BuildingModel) (dto.BuildingResponse, error) {
	emps, err := ctl.employees(db, b.ID)
	if err != nil {
		return dto.BuildingResponse{}, err
	}
	return dto.FromModel(b, emps, ctl.Images, pubService.BuildingDirty(&b, emps)), nil
}

/* =======================================================
   READ
   ======================================================= */

// GET /api/buildings?map_id=&with_pending=true
func (ctl *BuildingController) List(c *fiber.Ctx) error {
	db := ctl.DB.WithContext(reqCtx(c))
	mapID, err := buildingService.ResolveMapID(db, uint(c.QueryInt("map_id", 0)))
	if err != nil {
		if c.QueryInt("map_id", 0) == 0 {
			return helper.JsonList(c, "buildings", []dto.BuildingResponse{}, nil)
		}
		return helper.JsonErrorFrom(c, err)
	}

	q := db.Where("map_id = ?", mapID).Order("id")
	if !c.QueryBool("with_pending", false) {
		q = q.Where("pending_deletion = ?", false)
	}
	var rows []model.BuildingModel
	if err := q.Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list buildings"))
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var emps []employeeModel.EmployeeModel
	if len(ids) > 0 {
		if err := db.Where("building_id IN ?", ids).Order("employee_name, id").Find(&emps).Error; err != nil {
			return helper.JsonErrorFrom(c, helper.Storage(err, "load employees"))
		}
	}
	byBuilding := map[uint][]employeeModel.EmployeeModel{}
	for _, e := range emps {
		byBuilding[e.BuildingID] = append(byBuilding[e.BuildingID], e)
	}

	out := make([]dto.BuildingResponse, 0, len(rows))
	for i := range rows {
		b := &rows[i]
		out = append(out, dto.FromModel(*b, byBuilding[b.ID], ctl.Images, pubService.BuildingDirty(b, byBuilding[b.ID])))
	}
	return helper.JsonList(c, "buildings", out, nil)
}

// GET /api/buildings/:id
func (ctl *BuildingController) Show(c *fiber.Ctx) error {
	id, err := buildingID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	db := ctl.DB.WithContext(reqCtx(c))
	var b model.BuildingModel
	if err := db.First(&b, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load building"))
	}
	out, err := ctl.respond(db, b)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "building", out)
}

// GET /api/buildings/:id/rooms
func (ctl *BuildingController) Rooms(c *fiber.Ctx) error {
	id, err := buildingID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	q := ctl.DB.WithContext(reqCtx(c)).Where("building_id = ?", id).Order("id")
	if !c.QueryBool("with_pending", false) {
		q = q.Where("pending_deletion = ?", false)
	}
	var rows []roomModel.RoomModel
	if err := q.Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list rooms"))
	}
	return helper.JsonList(c, "rooms", rows, nil)
}

/* =======================================================
   WRITE
   ======================================================= */

// POST /api/buildings (json, or multipart with "image", "modal_image" and
// a JSON "employees" field)
func (ctl *BuildingController) Create(c *fiber.Ctx) error {
	var req dto.CreateBuildingRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if isMultipart(c) {
		if err := formJSON(c, "employees", &req.Employees); err != nil {
			return helper.JsonErrorFrom(c, err)
		}
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	image, modal, err := ctl.storeImages(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	b := req.ToModel()
	if image != nil {
		b.ImagePath = image
	}
	if modal != nil {
		b.ModalImagePath = modal
	}

	db := ctl.DB.WithContext(reqCtx(c))
	err = db.Transaction(func(tx *gorm.DB) error {
		mapID, err := buildingService.ResolveMapID(tx, b.MapID)
		if err != nil {
			return err
		}
		b.MapID = mapID
		if err := tx.Omit("Employees", "Rooms").Create(&b).Error; err != nil {
			return helper.Storage(err, "create building")
		}
		for _, e := range req.Employees {
			row := buildingService.NewEmployee(b.ID, e)
			if err := tx.Create(&row).Error; err != nil {
				return helper.Storage(err, "create employee")
			}
		}
		return nil
	})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	ctl.record(c, activityService.ActionCreated, &b, map[string]any{"map_id": b.MapID, "employees": len(req.Employees)})
	out, err := ctl.respond(db, b)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonCreated(c, "building created", out)
}

// PUT /api/buildings/:id
func (ctl *BuildingController) Update(c *fiber.Ctx) error {
	id, err := buildingID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var req dto.UpdateBuildingRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if isMultipart(c) {
		if v := c.FormValue("employees"); v != "" {
			req.Employees = &[]dto.EmployeeInput{}
			if err := formJSON(c, "employees", req.Employees); err != nil {
				return helper.JsonErrorFrom(c, err)
			}
		}
		if v := c.FormValue("services"); v != "" {
			req.Services = &[]string{}
			if err := formJSON(c, "services", req.Services); err != nil {
				return helper.JsonErrorFrom(c, err)
			}
		}
	}
	req.Normalize()
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	image, modal, err := ctl.storeImages(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if image != nil {
		req.ImagePath = image
	}
	if modal != nil {
		req.ModalImagePath = modal
	}

	db := ctl.DB.WithContext(reqCtx(c))
	var (
		b        model.BuildingModel
		before   model.BuildingModel
		released []string
	)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, id).Error; err != nil {
			return helper.Storage(err, "load building")
		}
		before = b
		req.Apply(&b)
		if b.MapID != before.MapID {
			var err error
			if b.MapID, err = buildingService.ResolveMapID(tx, b.MapID); err != nil {
				return err
			}
		}
		if err := tx.Model(&b).Select(
			"map_id", "building_name", "description", "services", "x_coordinate", "y_coordinate",
			"width", "height", "latitude", "longitude", "image_path", "modal_image_path", "is_active",
		).Updates(&b).Error; err != nil {
			return helper.Storage(err, "update building")
		}
		if req.Employees != nil {
			var err error
			if released, err = buildingService.SyncEmployees(tx, b.ID, *req.Employees); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	for _, pair := range [][2]*string{{before.ImagePath, b.ImagePath}, {before.ModalImagePath, b.ModalImagePath}} {
		if pair[0] != nil && (pair[1] == nil || *pair[0] != *pair[1]) {
			released = append(released, *pair[0])
		}
	}
	if len(released) > 0 && ctl.Trash != nil {
		ctl.Trash.DeleteImages(reqCtx(c), released)
	}

	details := map[string]any{}
	if before.BuildingName != b.BuildingName {
		details["building_name"] = map[string]any{"from": before.BuildingName, "to": b.BuildingName}
	}
	if before.XCoordinate != b.XCoordinate || before.YCoordinate != b.YCoordinate {
		details["position"] = map[string]any{
			"from": []float64{before.XCoordinate, before.YCoordinate},
			"to":   []float64{b.XCoordinate, b.YCoordinate},
		}
	}
	if req.Employees != nil {
		details["employees"] = len(*req.Employees)
	}
	ctl.record(c, activityService.ActionUpdated, &b, details)

	out, err := ctl.respond(db, b)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonUpdated(c, "building updated", out)
}

// POST /api/buildings/:id/image (multipart "image" and/or "modal_image")
func (ctl *BuildingController) UploadImage(c *fiber.Ctx) error {
	id, err := buildingID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	image, modal, err := ctl.storeImages(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if image == nil && modal == nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "image or modal_image file is required")
	}

	db := ctl.DB.WithContext(reqCtx(c))
	var b model.BuildingModel
	if err := db.First(&b, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load building"))
	}
	var released []string
	upd := map[string]any{}
	if image != nil {
		if b.ImagePath != nil {
			released = append(released, *b.ImagePath)
		}
		upd["image_path"], b.ImagePath = *image, image
	}
	if modal != nil {
		if b.ModalImagePath != nil {
			released = append(released, *b.ModalImagePath)
		}
		upd["modal_image_path"], b.ModalImagePath = *modal, modal
	}
	if err := db.Model(&b).Updates(upd).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "update building images"))
	}
	if ctl.Trash != nil {
		ctl.Trash.DeleteImages(reqCtx(c), released)
	}
	ctl.record(c, activityService.ActionUpdated, &b, map[string]any{"images": upd})

	out, err := ctl.respond(db, b)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonUpdated(c, "building images updated", out)
}

// DELETE /api/buildings/:id
// Stages the deletion; the row goes away on the next publish.
func (ctl *BuildingController) Delete(c *fiber.Ctx) error {
	id, err := buildingID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	entry, err := ctl.Trash.StageDeletion(reqCtx(c), trashModel.ItemBuilding, id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "building marked for deletion, publish to remove it", entry)
}
