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
	"campusmap_backend/internals/features/campus/employees/dto"
	"campusmap_backend/internals/features/campus/employees/model"
	pubService "campusmap_backend/internals/features/publication/service"
	"campusmap_backend/internals/features/publication/snapshot"
	trashService "campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type EmployeeController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Images   helperOSS.ImageStore
	Trash    *trashService.TrashService
	Recorder activityService.Recorder
}

func NewEmployeeController(db *gorm.DB, images helperOSS.ImageStore, trash *trashService.TrashService, rec activityService.Recorder) *EmployeeController {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	return &EmployeeController{DB: db, Validate: helper.NewValidator(), Images: images, Trash: trash, Recorder: rec}
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

// requireBuilding rejects employees attached to a missing or staged building.
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

func (ctl *EmployeeController) record(c *fiber.Ctx, action string, e *model.EmployeeModel, details map[string]any) {
	id := e.ID
	ctl.Recorder.Record(reqCtx(c), helper.ActorFromCtx(c), activityService.Entry{
		Action:     action,
		TargetType: string(snapshot.KindEmployee),
		TargetID:   &id,
		TargetName: e.EmployeeName,
		Details:    details,
	})
}

func (ctl *EmployeeController) storeImage(c *fiber.Ctx) (string, error) {
	fh := helperOSS.FormFile(c, "image")
	if fh == nil || ctl.Images == nil {
		return "", nil
	}
	ref, err := helperOSS.StoreUpload(reqCtx(c), ctl.Images, helperOSS.DirEmployees, fh, helperOSS.DefaultWebPOptions)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid image: "+err.Error())
	}
	return ref, nil
}

func (ctl *EmployeeController) respond(rows []model.EmployeeModel) []dto.EmployeeResponse {
	dto.SortByName(rows)
	out := make([]dto.EmployeeResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromModel(rows[i], ctl.Images, pubService.EmployeeDirty(&rows[i])))
	}
	return out
}

/* =======================================================
   READ
   ======================================================= */

// GET /api/employees?building_id=
func (ctl *EmployeeController) List(c *fiber.Ctx) error {
	q := ctl.DB.WithContext(reqCtx(c))
	if bid := c.QueryInt("building_id", 0); bid > 0 {
		q = q.Where("building_id = ?", bid)
	}
	var rows []model.EmployeeModel
	if err := q.Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list employees"))
	}
	return helper.JsonList(c, "employees", ctl.respond(rows), nil)
}

// GET /api/employees/building/:buildingId
func (ctl *EmployeeController) ByBuilding(c *fiber.Ctx) error {
	bid, err := parseID(c, "buildingId")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var rows []model.EmployeeModel
	if err := ctl.DB.WithContext(reqCtx(c)).Where("building_id = ?", bid).Find(&rows).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "list employees"))
	}
	return helper.JsonList(c, "employees", ctl.respond(rows), nil)
}

// GET /api/employees/:id
func (ctl *EmployeeController) Show(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var e model.EmployeeModel
	if err := ctl.DB.WithContext(reqCtx(c)).First(&e, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load employee"))
	}
	return helper.JsonOK(c, "employee", dto.FromModel(e, ctl.Images, pubService.EmployeeDirty(&e)))
}

/* =======================================================
   WRITE
   ======================================================= */

// POST /api/employees (json or multipart with "image")
func (ctl *EmployeeController) Create(c *fiber.Ctx) error {
	var req dto.CreateEmployeeRequest
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
	if ref != "" {
		req.EmployeeImage = ref
	}

	e := req.ToModel()
	err = ctl.DB.WithContext(reqCtx(c)).Transaction(func(tx *gorm.DB) error {
		if err := requireBuilding(tx, e.BuildingID); err != nil {
			return err
		}
		return helper.Storage(tx.Create(&e).Error, "create employee")
	})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	ctl.record(c, activityService.ActionCreated, &e, map[string]any{"building_id": e.BuildingID})
	return helper.JsonCreated(c, "employee created", dto.FromModel(e, ctl.Images, true))
}

// PUT /api/employees/:id
func (ctl *EmployeeController) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	var req dto.UpdateEmployeeRequest
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
	if ref != "" {
		req.EmployeeImage = &ref
	}

	var e, before model.EmployeeModel
	err = ctl.DB.WithContext(reqCtx(c)).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&e, id).Error; err != nil {
			return helper.Storage(err, "load employee")
		}
		before = e
		req.Apply(&e)
		if e.BuildingID != before.BuildingID {
			if err := requireBuilding(tx, e.BuildingID); err != nil {
				return err
			}
		}
		return helper.Storage(tx.Model(&e).Select(
			"building_id", "employee_name", "position", "department", "email", "contact_number", "employee_image",
		).Updates(&e).Error, "update employee")
	})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	if before.EmployeeImage != e.EmployeeImage && before.EmployeeImage != model.DefaultEmployeeImage && ctl.Trash != nil {
		ctl.Trash.DeleteImages(reqCtx(c), []string{before.EmployeeImage})
	}
	details := map[string]any{}
	if before.EmployeeName != e.EmployeeName {
		details["employee_name"] = map[string]any{"from": before.EmployeeName, "to": e.EmployeeName}
	}
	if before.BuildingID != e.BuildingID {
		details["building_id"] = map[string]any{"from": before.BuildingID, "to": e.BuildingID}
	}
	ctl.record(c, activityService.ActionUpdated, &e, details)
	return helper.JsonUpdated(c, "employee updated", dto.FromModel(e, ctl.Images, pubService.EmployeeDirty(&e)))
}

// DELETE /api/employees/:id
// Employees have no trash entry; the row and its photo go at once.
func (ctl *EmployeeController) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	db := ctl.DB.WithContext(reqCtx(c))
	var e model.EmployeeModel
	if err := db.First(&e, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "load employee"))
	}
	if err := db.Delete(&model.EmployeeModel{}, id).Error; err != nil {
		return helper.JsonErrorFrom(c, helper.Storage(err, "delete employee"))
	}
	if e.EmployeeImage != model.DefaultEmployeeImage && ctl.Trash != nil {
		ctl.Trash.DeleteImages(reqCtx(c), []string{e.EmployeeImage})
	}
	ctl.record(c, activityService.ActionDeleted, &e, map[string]any{"building_id": e.BuildingID})
	return helper.JsonDeleted(c, "employee deleted", fiber.Map{"id": id})
}
