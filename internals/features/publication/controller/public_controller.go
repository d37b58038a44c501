package controller

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/features/publication/service"
	helper "campusmap_backend/internals/helpers"
)

const publicCacheTTL = 5 * time.Minute

// PublicController serves the published state to the map app.
type PublicController struct {
	DB      *gorm.DB
	Service *service.PublicationService
	Cache   cache.PublicCache
}

func NewPublicController(db *gorm.DB, svc *service.PublicationService, c cache.PublicCache) *PublicController {
	if c == nil {
		c = cache.NopCache{}
	}
	return &PublicController{DB: db, Service: svc, Cache: c}
}

// cached serves key from the cache, or renders it with load and stores it.
func (ctl *PublicController) cached(c *fiber.Ctx, key, message string, load func() (any, error)) error {
	ctx := reqCtx(c)
	if b, ok := ctl.Cache.Get(ctx, key); ok {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		c.Set("X-Cache", "HIT")
		return c.Send(b)
	}

	data, err := load()
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	body, err := sonic.Marshal(fiber.Map{"success": true, "message": message, "data": data})
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	ctl.Cache.Set(ctx, key, body, publicCacheTTL)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	c.Set("X-Cache", "MISS")
	return c.Send(body)
}

// GET /api/published/map/active
func (ctl *PublicController) ActiveMap(c *fiber.Ctx) error {
	return ctl.cached(c, cache.KeyActiveMap, "active published map", func() (any, error) {
		return ctl.Service.ActivePublished(reqCtx(c))
	})
}

// GET /api/published/maps
func (ctl *PublicController) Maps(c *fiber.Ctx) error {
	return ctl.cached(c, cache.KeyPublishedMaps, "published maps", func() (any, error) {
		return ctl.Service.PublishedMaps(reqCtx(c))
	})
}

// GET /api/published/buildings?map_id=
func (ctl *PublicController) Buildings(c *fiber.Ctx) error {
	mapID := uint(c.QueryInt("map_id", 0))
	if mapID == 0 {
		view, err := ctl.Service.ActivePublished(reqCtx(c))
		if err != nil {
			return helper.JsonErrorFrom(c, err)
		}
		return helper.JsonList(c, "published buildings", view.Buildings, nil)
	}
	rows, err := ctl.Service.PublishedBuildings(reqCtx(c), mapID)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "published buildings", rows, nil)
}

// GET /api/published/buildings/:id
func (ctl *PublicController) Building(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	b, err := ctl.Service.PublishedBuilding(reqCtx(c), id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "published building", b)
}

// GET /api/published/rooms/building/:buildingId
func (ctl *PublicController) Rooms(c *fiber.Ctx) error {
	id, err := parseID(c, "buildingId")
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	rows, err := ctl.Service.PublishedRooms(reqCtx(c), id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "published rooms", rows, nil)
}

// GET /api/published/employees
// GET /api/published/employees/building/:buildingId
func (ctl *PublicController) Employees(c *fiber.Ctx) error {
	var buildingID *uint
	if c.Params("buildingId") != "" {
		id, err := parseID(c, "buildingId")
		if err != nil {
			return helper.JsonErrorFrom(c, err)
		}
		buildingID = &id
	}
	rows, err := ctl.Service.PublishedEmployees(reqCtx(c), buildingID)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "published employees", rows, nil)
}
