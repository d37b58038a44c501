package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multipartDo sends fields plus an optional PNG under fileField.
func (h *harness) multipartDo(method, path string, fields map[string]string, fileField string) (int, envelope) {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, "hall.png")
		require.NoError(h.t, err)
		require.NoError(h.t, png.Encode(fw, image.NewRGBA(image.Rect(0, 0, 64, 32))))
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+h.token)
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	var env envelope
	require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (h *harness) seedBuilding() uint {
	h.t.Helper()
	h.ok("POST", "/api/map", fiber.Map{"name": "Main", "image_path": "images/maps/main.webp", "width": 100, "height": 100, "is_active": true}, fiber.StatusCreated, nil)
	var b struct {
		ID uint `json:"id"`
	}
	h.ok("POST", "/api/buildings", fiber.Map{"building_name": "Library"}, fiber.StatusCreated, &b)
	return b.ID
}

func TestRoomLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()
	bid := h.seedBuilding()
	fields := map[string]string{"building_id": fmt.Sprint(bid), "name": "Reading hall"}

	code, env := h.multipartDo("POST", "/api/rooms", fields, "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, code, env.Message)

	code, env = h.multipartDo("POST", "/api/rooms", map[string]string{"building_id": "999", "name": "Ghost"}, "panorama_image")
	assert.Equal(t, fiber.StatusUnprocessableEntity, code, env.Message)

	code, env = h.multipartDo("POST", "/api/rooms", fields, "panorama_image")
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	var room struct {
		ID           uint   `json:"id"`
		PanoramaURL  string `json:"panorama_url"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.NotEmpty(t, room.PanoramaURL)
	assert.NotEmpty(t, room.ThumbnailURL)

	type publicRoom struct {
		Name string `json:"name"`
	}
	var rooms []publicRoom
	path := fmt.Sprintf("/api/published/rooms/building/%d", bid)
	h.ok("GET", path, nil, fiber.StatusOK, &rooms)
	assert.Empty(t, rooms)

	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)
	h.ok("GET", path, nil, fiber.StatusOK, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Reading hall", rooms[0].Name)

	// an edit keeps serving the published snapshot
	h.ok("PUT", fmt.Sprintf("/api/rooms/%d", room.ID), fiber.Map{"name": "Quiet hall"}, fiber.StatusOK, nil)
	h.ok("GET", path, nil, fiber.StatusOK, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Reading hall", rooms[0].Name)

	// revert brings the draft back to the published name
	h.ok("POST", fmt.Sprintf("/api/publish/room/%d/revert", room.ID), nil, fiber.StatusOK, nil)
	var got struct {
		Name string `json:"name"`
	}
	h.ok("GET", fmt.Sprintf("/api/rooms/%d", room.ID), nil, fiber.StatusOK, &got)
	assert.Equal(t, "Reading hall", got.Name)

	h.ok("DELETE", fmt.Sprintf("/api/rooms/%d", room.ID), nil, fiber.StatusOK, nil)
	h.ok("GET", path, nil, fiber.StatusOK, &rooms)
	assert.Empty(t, rooms)

	var list []struct {
		ID uint `json:"id"`
	}
	h.ok("GET", fmt.Sprintf("/api/buildings/%d/rooms?with_pending=true", bid), nil, fiber.StatusOK, &list)
	assert.Len(t, list, 1)
}

func TestEmployeeLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()
	bid := h.seedBuilding()

	resp, _ := h.do("POST", "/api/employees", fiber.Map{"building_id": 999, "employee_name": "Ghost"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = h.do("POST", "/api/employees", fiber.Map{"building_id": bid, "employee_name": "Ana", "email": "not-an-email"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	type employee struct {
		ID                    uint   `json:"id"`
		EmployeeName          string `json:"employee_name"`
		EmployeeImage         string `json:"employee_image"`
		IsPublished           bool   `json:"is_published"`
		HasUnpublishedChanges bool   `json:"has_unpublished_changes"`
	}
	var ana, budi employee
	h.ok("POST", "/api/employees", fiber.Map{"building_id": bid, "employee_name": "ana"}, fiber.StatusCreated, &ana)
	h.ok("POST", "/api/employees", fiber.Map{"building_id": bid, "employee_name": "Budi"}, fiber.StatusCreated, &budi)
	assert.True(t, ana.HasUnpublishedChanges)
	assert.Equal(t, "images/employees/default-profile-icon.png", ana.EmployeeImage)

	var list []employee
	h.ok("GET", fmt.Sprintf("/api/employees/building/%d", bid), nil, fiber.StatusOK, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "ana", list[0].EmployeeName)

	h.ok("POST", "/api/publish/all", nil, fiber.StatusOK, nil)
	var public []employee
	h.ok("GET", fmt.Sprintf("/api/published/employees/building/%d", bid), nil, fiber.StatusOK, &public)
	assert.Len(t, public, 2)

	h.ok("PUT", fmt.Sprintf("/api/employees/%d", ana.ID), fiber.Map{"employee_name": "Ana Maria"}, fiber.StatusOK, &ana)
	assert.True(t, ana.HasUnpublishedChanges)
	assert.True(t, ana.IsPublished)

	h.ok("DELETE", fmt.Sprintf("/api/employees/%d", budi.ID), nil, fiber.StatusOK, nil)
	resp, _ = h.do("GET", fmt.Sprintf("/api/employees/%d", budi.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
