package helper

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const MaxUploadSize = int64(20 * 1024 * 1024)

// Upload directories
const (
	DirMaps      = "images/maps"
	DirBuildings = "images/buildings"
	DirEmployees = "images/employees"
	DirRooms     = "images/rooms"
	DirThumbs    = "images/rooms/thumbnails"
)

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh == nil {
		return nil, errors.New("nil file header")
	}
	if fh.Size > MaxUploadSize {
		return nil, errors.Errorf("file too large (%d bytes)", fh.Size)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
}

// FormFile returns the uploaded file under field, or nil when the request
// carries none.
func FormFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}

// BuildObjectKey returns dir/<slug>_<timestamp>_<rand>.<ext>.
func BuildObjectKey(dir, filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s%s", strings.Trim(dir, "/"), slugify(base), ts, randHex(3), ext)
}

// StoreUpload re-encodes an uploaded image to webp and stores it under dir.
// Files that are not decodable images are rejected.
func StoreUpload(ctx context.Context, store ImageStore, dir string, fh *multipart.FileHeader, opts WebPOptions) (string, error) {
	all, err := readUpload(fh)
	if err != nil {
		return "", err
	}
	data, err := ConvertToWebP(all, fh.Filename, opts)
	if err != nil {
		return "", errors.Wrap(err, "convert image")
	}
	return store.Store(ctx, BuildObjectKey(dir, fh.Filename, ".webp"), data, "image/webp")
}

// StorePanorama stores a 360° image and a generated thumbnail.
func StorePanorama(ctx context.Context, store ImageStore, fh *multipart.FileHeader) (panorama, thumbnail string, err error) {
	all, err := readUpload(fh)
	if err != nil {
		return "", "", err
	}
	data, err := ConvertToWebP(all, fh.Filename, PanoramaWebPOptions)
	if err != nil {
		return "", "", errors.Wrap(err, "convert panorama")
	}
	thumb, err := Thumbnail(all, fh.Filename, ThumbnailWidth, ThumbnailHeight)
	if err != nil {
		return "", "", errors.Wrap(err, "thumbnail")
	}

	panorama, err = store.Store(ctx, BuildObjectKey(DirRooms, fh.Filename, ".webp"), data, "image/webp")
	if err != nil {
		return "", "", err
	}
	thumbnail, err = store.Store(ctx, BuildObjectKey(DirThumbs, "thumb_"+uuid.NewString()[:8], ".webp"), thumb, "image/webp")
	if err != nil {
		_ = store.Delete(ctx, panorama)
		return "", "", err
	}
	return panorama, thumbnail, nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return "file"
	}
	return s
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
