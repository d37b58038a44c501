package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/databases/dbtest"
	authService "campusmap_backend/internals/features/users/auth/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	auth := authService.NewAuthService(db, "route-test-secret", time.Hour)
	_, _, err := auth.CreateAdmin(context.Background(), "Dina", "dina@campus.test", "correct horse")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error { return helper.JsonErrorFrom(c, err) },
	})
	SetupRoutes(app, NewDeps(db, helperOSS.NewMemoryImageStore(""), cache.NewMemoryCache(), auth))
	return &harness{t: t, app: app}
}

func (h *harness) do(method, path string, body any) (*http.Response, envelope) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if h.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (h *harness) ok(method, path string, body any, want int, out any) {
	h.t.Helper()
	resp, env := h.do(method, path, body)
	require.Equal(h.t, want, resp.StatusCode, "%s %s: %s", method, path, env.Message)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(env.Data, out))
	}
}

func (h *harness) login() {
	h.t.Helper()
	var res struct {
		Token string `json:"access_token"`
	}
	h.ok("POST", "/api/auth/login", fiber.Map{"email": "dina@campus.test", "password": "correct horse"}, fiber.StatusOK, &res)
	require.NotEmpty(h.t, res.Token)
	h.token = res.Token
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do("GET", "/api/map", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	h.token = "garbage"
	resp, _ = h.do("GET", "/api/map", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	h.token = ""
	resp, _ = h.do("POST", "/api/auth/login", fiber.Map{"email": "dina@campus.test", "password": "wrong horse"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// public surface needs no token
	resp, _ = h.do("GET", "/api/published/maps", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = h.do("GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	h.login()

	var me struct {
		Email string `json:"email"`
	}
	h.ok("GET", "/api/auth/me", nil, fiber.StatusOK, &me)
	assert.Equal(t, "dina@campus.test", me.Email)

	h.ok("POST", "/api/auth/logout", nil, fiber.StatusOK, nil)
	resp, env := h.do("GET", "/api/auth/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, env.Message, "blacklisted")
}

func TestDraftPublishDeleteFlow(t *testing.T) {
	h := newHarness(t)
	h.login()

	var m struct {
		ID       uint `json:"id"`
		IsActive bool `json:"is_active"`
	}
	h.ok("POST", "/api/map", fiber.Map{
		"name": "Main campus", "image_path": "images/maps/main.webp", "width": 1200, "height": 800, "is_active": true,
	}, fiber.StatusCreated, &m)
	assert.True(t, m.IsActive)

	type building struct {
		ID                    uint   `json:"id"`
		MapID                 uint   `json:"map_id"`
		BuildingName          string `json:"building_name"`
		IsPublished           bool   `json:"is_published"`
		HasUnpublishedChanges bool   `json:"has_unpublished_changes"`
		Employees             []struct {
			EmployeeName string `json:"employee_name"`
		} `json:"employees"`
	}
	var b building
	h.ok("POST", "/api/buildings", fiber.Map{
		"building_name": "Library",
		"x_coordinate":  10, "y_coordinate": 20, "width": 30, "height": 40,
		"employees": []fiber.Map{{"employee_name": "Ana"}},
	}, fiber.StatusCreated, &b)
	assert.Equal(t, m.ID, b.MapID)
	assert.True(t, b.HasUnpublishedChanges)
	require.Len(t, b.Employees, 1)

	// nothing is live before the first publish
	resp, _ := h.do("GET", "/api/published/map/active", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var status struct {
		Total int `json:"total"`
	}
	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, &status)
	assert.Equal(t, 3, status.Total)

	type published struct {
		ID        uint `json:"id"`
		Buildings []struct {
			ID           uint   `json:"id"`
			BuildingName string `json:"building_name"`
		} `json:"buildings"`
	}
	var live published
	h.ok("GET", "/api/published/map/active", nil, fiber.StatusOK, &live)
	assert.Equal(t, m.ID, live.ID)
	require.Len(t, live.Buildings, 1)
	assert.Equal(t, "Library", live.Buildings[0].BuildingName)

	// draft edits stay out of the public app until published
	h.ok("PUT", fmt.Sprintf("/api/buildings/%d", b.ID), fiber.Map{"building_name": "Main Library"}, fiber.StatusOK, &b)
	assert.True(t, b.HasUnpublishedChanges)
	assert.True(t, b.IsPublished)

	var dirty []struct {
		ID         uint   `json:"id"`
		ChangeType string `json:"change_type"`
	}
	h.ok("GET", "/api/publish/building", nil, fiber.StatusOK, &dirty)
	require.Len(t, dirty, 1)
	assert.Equal(t, b.ID, dirty[0].ID)

	h.ok("GET", "/api/published/map/active", nil, fiber.StatusOK, &live)
	assert.Equal(t, "Library", live.Buildings[0].BuildingName)

	h.ok("POST", fmt.Sprintf("/api/publish/building/%d", b.ID), nil, fiber.StatusOK, nil)
	h.ok("GET", "/api/published/map/active", nil, fiber.StatusOK, &live)
	assert.Equal(t, "Main Library", live.Buildings[0].BuildingName)

	// deletion is staged, then finalized by publishing
	h.ok("DELETE", fmt.Sprintf("/api/buildings/%d", b.ID), nil, fiber.StatusOK, nil)
	var trash []struct {
		OriginalID uint   `json:"original_id"`
		State      string `json:"state"`
	}
	h.ok("GET", "/api/trash", nil, fiber.StatusOK, &trash)
	require.Len(t, trash, 1)
	assert.Equal(t, "pending_deletion", trash[0].State)

	h.ok("GET", "/api/published/map/active", nil, fiber.StatusOK, &live)
	assert.Empty(t, live.Buildings)

	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)
	h.ok("GET", "/api/trash", nil, fiber.StatusOK, &trash)
	require.Len(t, trash, 1)
	assert.Equal(t, "trashed", trash[0].State)

	resp, _ = h.do("GET", fmt.Sprintf("/api/buildings/%d", b.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var logs []struct {
		Action string `json:"action"`
	}
	h.ok("GET", "/api/activity-logs?per_page=100", nil, fiber.StatusOK, &logs)
	assert.NotEmpty(t, logs)
}

func TestPublicResponsesAreCached(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.ok("POST", "/api/map", fiber.Map{"name": "Main", "image_path": "images/maps/main.webp", "width": 10, "height": 10, "is_active": true}, fiber.StatusCreated, nil)
	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)

	resp, _ := h.do("GET", "/api/published/maps", nil)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	resp, _ = h.do("GET", "/api/published/maps", nil)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	h.ok("POST", "/api/map", fiber.Map{"name": "North", "image_path": "images/maps/north.webp", "width": 10, "height": 10}, fiber.StatusCreated, nil)
	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)

	var maps []struct {
		Name string `json:"name"`
	}
	resp, env := h.do("GET", "/api/published/maps", nil)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	require.NoError(t, json.Unmarshal(env.Data, &maps))
	assert.Len(t, maps, 2)
}

func TestValidationAndConflictStatuses(t *testing.T) {
	h := newHarness(t)
	h.login()

	resp, _ := h.do("POST", "/api/map", fiber.Map{"name": ""})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = h.do("POST", "/api/buildings", fiber.Map{"building_name": "Orphan"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var m struct {
		ID uint `json:"id"`
	}
	h.ok("POST", "/api/map", fiber.Map{"name": "Main", "image_path": "images/maps/main.webp", "width": 10, "height": 10}, fiber.StatusCreated, &m)
	h.ok("DELETE", fmt.Sprintf("/api/map/%d", m.ID), nil, fiber.StatusOK, nil)

	resp, _ = h.do("POST", fmt.Sprintf("/api/map/%d/activate", m.ID), nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = h.do("POST", "/api/publish/widget/1", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = h.do("GET", "/api/map/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStatsCountsDraftsAndTrash(t *testing.T) {
	h := newHarness(t)
	h.login()

	var m struct {
		ID uint `json:"id"`
	}
	h.ok("POST", "/api/map", fiber.Map{"name": "Main", "image_path": "images/maps/main.webp", "width": 10, "height": 10, "is_active": true}, fiber.StatusCreated, &m)
	var b struct {
		ID uint `json:"id"`
	}
	h.ok("POST", "/api/buildings", fiber.Map{"building_name": "Library"}, fiber.StatusCreated, &b)
	h.ok("POST", "/api/buildings", fiber.Map{"building_name": "Gym"}, fiber.StatusCreated, nil)
	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)
	h.ok("DELETE", fmt.Sprintf("/api/buildings/%d", b.ID), nil, fiber.StatusOK, nil)

	type kind struct {
		Total     int64 `json:"total"`
		Published int64 `json:"published"`
		Draft     int64 `json:"draft"`
		Pending   int64 `json:"pending_deletion"`
	}
	var st struct {
		Maps      kind `json:"maps"`
		Buildings kind `json:"buildings"`
		Trash     struct {
			Pending int64 `json:"pending_deletion"`
			Trashed int64 `json:"trashed"`
		} `json:"trash"`
	}
	h.ok("GET", "/api/stats", nil, fiber.StatusOK, &st)
	assert.Equal(t, kind{Total: 1, Published: 1}, st.Maps)
	assert.Equal(t, kind{Total: 2, Published: 2, Pending: 1}, st.Buildings)
	assert.Equal(t, int64(1), st.Trash.Pending)
	assert.Zero(t, st.Trash.Trashed)

	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)
	h.ok("GET", "/api/stats", nil, fiber.StatusOK, &st)
	assert.Equal(t, int64(1), st.Buildings.Total)
	assert.Zero(t, st.Trash.Pending)
	assert.Equal(t, int64(1), st.Trash.Trashed)
}
