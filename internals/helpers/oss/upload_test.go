package helper

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fileHeader builds a multipart header the way a parsed request would carry it.
func fileHeader(t *testing.T, field, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	require.Len(t, form.File[field], 1)
	return form.File[field][0]
}

func TestMemoryImageStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryImageStore("https://cdn.example.com/")

	_, err := s.Store(ctx, " ", []byte("x"), "image/webp")
	assert.Error(t, err)

	ref, err := s.Store(ctx, "images/maps/a.webp", []byte("x"), "image/webp")
	require.NoError(t, err)
	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/images/maps/a.webp", s.PublicURL(ref))
	assert.Empty(t, s.PublicURL(""))

	require.NoError(t, s.Delete(ctx, ref))
	ok, _ = s.Exists(ctx, ref)
	assert.False(t, ok)
	assert.Empty(t, s.Keys())

	assert.Equal(t, "/images/x.webp", NewMemoryImageStore("").PublicURL("images/x.webp"))
}

func TestNewImageStoreDrivers(t *testing.T) {
	s, err := NewImageStore(Config{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryImageStore{}, s)

	_, err = NewImageStore(Config{Driver: "ftp"})
	assert.Error(t, err)
}

func TestBuildObjectKey(t *testing.T) {
	key := BuildObjectKey("/images/buildings/", "Main Hall_01.PNG", ".webp")
	assert.True(t, strings.HasPrefix(key, "images/buildings/main-hall-01_"), key)
	assert.True(t, strings.HasSuffix(key, ".webp"), key)

	assert.True(t, strings.HasPrefix(BuildObjectKey(DirMaps, "???.png", ".webp"), "images/maps/file_"))
}

func TestStoreUploadConvertsToWebP(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryImageStore("")

	ref, err := StoreUpload(ctx, s, DirBuildings, fileHeader(t, "image", "library.png", pngBytes(t, 64, 48)), DefaultWebPOptions)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, DirBuildings+"/library_"))
	assert.True(t, strings.HasSuffix(ref, ".webp"))
	assert.Equal(t, []string{ref}, s.Keys())
}

func TestStoreUploadRejectsNonImage(t *testing.T) {
	s := NewMemoryImageStore("")
	_, err := StoreUpload(context.Background(), s, DirMaps, fileHeader(t, "image", "notes.txt", []byte("hello")), DefaultWebPOptions)
	assert.Error(t, err)
	assert.Empty(t, s.Keys())
}

func TestStorePanoramaWritesThumbnail(t *testing.T) {
	s := NewMemoryImageStore("")
	pano, thumb, err := StorePanorama(context.Background(), s, fileHeader(t, "panorama_image", "hall.png", pngBytes(t, 400, 200)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pano, DirRooms+"/hall_"))
	assert.True(t, strings.HasPrefix(thumb, DirThumbs+"/thumb-"))
	assert.ElementsMatch(t, []string{pano, thumb}, s.Keys())
}

func TestDownscaleKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	out := downscaleIfNeeded(img, 100, 100)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	assert.Same(t, img, downscaleIfNeeded(img, 1000, 1000))
}
