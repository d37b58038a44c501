package controller

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	activityService "campusmap_backend/internals/features/activity/service"
	"campusmap_backend/internals/features/users/auth/service"
	helper "campusmap_backend/internals/helpers"
)

type AuthController struct {
	Service  *service.AuthService
	Validate *validator.Validate
	Recorder activityService.Recorder
}

func NewAuthController(svc *service.AuthService, rec activityService.Recorder) *AuthController {
	if rec == nil {
		rec = activityService.NopRecorder{}
	}
	return &AuthController{Service: svc, Validate: helper.NewValidator(), Recorder: rec}
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

func reqCtx(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

// BearerToken returns the raw token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	fields := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return strings.Trim(fields[1], "\"'")
}

// POST /api/auth/login
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonErrorFrom(c, err)
	}

	res, err := ac.Service.Login(reqCtx(c), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
		}
		return helper.JsonErrorFrom(c, err)
	}

	id := res.Admin.ID
	ac.Recorder.Record(reqCtx(c), helper.Actor{
		ID:        &id,
		Name:      res.Admin.Name,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}, activityService.Entry{
		Action:     activityService.ActionLogin,
		TargetType: "admin",
		TargetID:   &id,
		TargetName: res.Admin.Email,
	})
	return helper.JsonOK(c, "login successful", res)
}

// GET /api/auth/me
func (ac *AuthController) Me(c *fiber.Ctx) error {
	id, ok := c.Locals("user_id").(uint)
	if !ok || id == 0 {
		return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	a, err := ac.Service.Me(reqCtx(c), id)
	if err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	return helper.JsonOK(c, "current admin", a)
}

// POST /api/auth/logout
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	tok := BearerToken(c)
	if tok == "" {
		return helper.JsonOK(c, "logout successful", nil)
	}
	if err := ac.Service.Logout(reqCtx(c), tok); err != nil {
		return helper.JsonErrorFrom(c, err)
	}
	actor := helper.ActorFromCtx(c)
	ac.Recorder.Record(reqCtx(c), actor, activityService.Entry{
		Action:     activityService.ActionLogout,
		TargetType: "admin",
		TargetID:   actor.ID,
		TargetName: actor.DisplayName(),
	})
	return helper.JsonOK(c, "logout successful", nil)
}
