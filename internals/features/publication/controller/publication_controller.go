package controller

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/features/publication/service"
	"campusmap_backend/internals/features/publication/snapshot"
	helper "campusmap_backend/internals/helpers"
)

type PublicationController struct {
	DB      *gorm.DB
	Service *service.PublicationService
}

func NewPublicationController(db *gorm.DB, svc *service.PublicationService) *PublicationController {
	return &PublicationController{DB: db, Service: svc}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
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

// target reads :type and :id.
func target(c *fiber.Ctx) (snapshot.Kind, uint, error) {
	kind, err := service.ParseKind(c.Params("type"))
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

// GET /api/publish/status
func (ctl *PublicationController) Status(c *fiber.Ctx) error {
	st, err := ctl.Service.Status(reqCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "publication status", st)
}

// GET /api/publish/unpublished
func (ctl *PublicationController) Unpublished(c *fiber.Ctx) error {
	un, err := ctl.Service.Unpublished(reqCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "unpublished changes", fiber.Map{
		"maps":      un[snapshot.KindMap],
		"buildings": un[snapshot.KindBuilding],
		"rooms":     un[snapshot.KindRoom],
		"employees": un[snapshot.KindEmployee],
	})
}

// GET /api/publish/:type?exclude_deletions=true
func (ctl *PublicationController) ListDirty(c *fiber.Ctx) error {
	kind, err := service.ParseKind(c.Params("type"))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	items, err := ctl.Service.ListDirty(reqCtx(c), kind, service.ListOptions{
		ExcludeDeletions: c.QueryBool("exclude_deletions", false),
	})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if items == nil {
		items = []service.DirtyItem{}
	}
	return helper.JsonList(c, "unpublished "+string(kind)+"s", items, nil)
}

// GET /api/publish/:type/:id
func (ctl *PublicationController) IsDirty(c *fiber.Ctx) error {
	kind, id, err := target(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	dirty, err := ctl.Service.IsDirty(reqCtx(c), kind, id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "publication state", fiber.Map{"type": kind, "id": id, "has_unpublished_changes": dirty})
}

// POST /api/publish/all
func (ctl *PublicationController) PublishAll(c *fiber.Ctx) error {
	res, err := ctl.Service.PublishAll(reqCtx(c), helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "all changes published", fiber.Map{"counts": res, "total": res.Total()})
}

// POST /api/publish/:type
func (ctl *PublicationController) PublishKind(c *fiber.Ctx) error {
	kind, err := service.ParseKind(c.Params("type"))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	res, err := ctl.Service.PublishAllOf(reqCtx(c), kind, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, string(kind)+"s published", fiber.Map{"counts": res, "total": res.Total()})
}

// POST /api/publish/:type/:id
func (ctl *PublicationController) PublishOne(c *fiber.Ctx) error {
	kind, id, err := target(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	res, err := ctl.Service.PublishOne(reqCtx(c), kind, id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	msg := string(kind) + " published"
	if res == service.ResultDeleted {
		msg = string(kind) + " deletion published"
	}
	return helper.JsonOK(c, msg, fiber.Map{"type": kind, "id": id, "action": res})
}

// POST /api/publish/:type/:id/revert
func (ctl *PublicationController) Revert(c *fiber.Ctx) error {
	kind, id, err := target(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	res, err := ctl.Service.RevertOne(reqCtx(c), kind, id, helper.ActorFromCtx(c))
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	msg := string(kind) + " reverted to its published state"
	if res == service.ResultDeleted {
		msg = string(kind) + " was never published and has been deleted"
	}
	return helper.JsonOK(c, msg, fiber.Map{"type": kind, "id": id, "action": res})
}

// POST /api/publish/:type/:id/unpublish
func (ctl *PublicationController) Unpublish(c *fiber.Ctx) error {
	kind, id, err := target(c)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	if err := ctl.Service.Unpublish(reqCtx(c), kind, id, helper.ActorFromCtx(c)); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, string(kind)+" unpublished", fiber.Map{"type": kind, "id": id})
}
