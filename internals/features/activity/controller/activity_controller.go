package controller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"campusmap_backend/internals/features/activity/service"
	helper "campusmap_backend/internals/helpers"
)

type ActivityController struct {
	DB      *gorm.DB
	Service *service.ActivityService
}

func NewActivityController(db *gorm.DB, svc *service.ActivityService) *ActivityController {
	return &ActivityController{DB: db, Service: svc}
}

func reqCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// GET /api/activity-logs?action=&target_type=&user=&page=&per_page=
func (ctl *ActivityController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 200)
	f := service.ListFilter{
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		UserName:   c.Query("user"),
	}

	rows, total, err := ctl.Service.List(reqCtx(c), f, p)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonList(c, "activity logs", rows, helper.BuildPagination(total, p))
}

// DELETE /api/activity-logs?older_than_days=N (no param = everything)
func (ctl *ActivityController) Clear(c *fiber.Ctx) error {
	var cutoff time.Time
	if v := strings.TrimSpace(c.Query("older_than_days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return helper.JsonError(c, fiber.StatusBadRequest, "older_than_days must be a non-negative integer")
		}
		cutoff = time.Now().AddDate(0, 0, -days)
	}

	n, err := ctl.Service.Clear(reqCtx(c), cutoff)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonDeleted(c, "activity logs cleared", fiber.Map{"deleted": n})
}
