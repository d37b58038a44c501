package controller

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/features/trash/model"
	"campusmap_backend/internals/features/trash/service"
	helper "campusmap_backend/internals/helpers"
)

type TrashController struct {
	DB      *gorm.DB
	Service *service.TrashService
}

func NewTrashController(db *gorm.DB, svc *service.TrashService) *TrashController {
	return &TrashController{DB: db, Service: svc}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func entryID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid trash id")
	}
	return uint(id), nil
}

// GET /api/trash?type=map|building|room
func (ctl *TrashController) Index(c *fiber.Ctx) error {
	rows, err := ctl.Service.List(reqCtx(c), model.ItemType(c.Query("type")))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "trash", rows, nil)
}

// GET /api/trash/buildings
func (ctl *TrashController) Buildings(c *fiber.Ctx) error {
	rows, err := ctl.Service.Buildings(reqCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "trashed buildings", rows, nil)
}

// GET /api/trash/maps
func (ctl *TrashController) Maps(c *fiber.Ctx) error {
	rows, err := ctl.Service.Maps(reqCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "trashed maps", rows, nil)
}

// GET /api/trash/:id
func (ctl *TrashController) Show(c *fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	e, err := ctl.Service.Get(reqCtx(c), id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "trash entry", e)
}

// POST /api/trash/:id/restore
func (ctl *TrashController) Restore(c *fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	res, err := ctl.Service.Restore(reqCtx(c), id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "item restored", res)
}

// POST /api/trash/:id/purge
func (ctl *TrashController) Purge(c *fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if err := ctl.Service.Purge(reqCtx(c), id, helper.ActorFromCtx(c)); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "item moved to trash", fiber.Map{"id": id})
}

// DELETE /api/trash/:id
func (ctl *TrashController) PermanentDelete(c *fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if err := ctl.Service.PermanentDelete(reqCtx(c), id, helper.ActorFromCtx(c)); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "item permanently deleted", fiber.Map{"id": id})
}

// DELETE /api/trash
func (ctl *TrashController) Empty(c *fiber.Ctx) error {
	n, err := ctl.Service.EmptyTrash(reqCtx(c), helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "trash emptied", fiber.Map{"deleted": n})
}
