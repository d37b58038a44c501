package helper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
)

// OSSImageStore stores images in an Aliyun OSS bucket.
type OSSImageStore struct {
	Client     *oss.Client
	Bucket     *oss.Bucket
	Endpoint   string
	BucketName string
	Prefix     string
	PublicBase string
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return ep
	}
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		ep = "https://" + ep
	}
	return strings.TrimRight(ep, "/")
}

func NewOSSImageStore(cfg Config) (*OSSImageStore, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("ALI_OSS_* env is incomplete")
	}
	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "oss client")
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "oss bucket")
	}
	return &OSSImageStore{
		Client:     client,
		Bucket:     bucket,
		Endpoint:   endpoint,
		BucketName: cfg.Bucket,
		Prefix:     strings.Trim(cfg.Prefix, "/"),
		PublicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}, nil
}

func (s *OSSImageStore) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.Prefix == "" || strings.HasPrefix(key, s.Prefix+"/") {
		return key
	}
	return s.Prefix + "/" + key
}

func (s *OSSImageStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k := s.objectKey(key)
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if strings.HasPrefix(contentType, "image/") {
		opts = append(opts, oss.CacheControl("public, max-age=31536000, immutable"))
	}
	if err := s.Bucket.PutObject(k, bytes.NewReader(data), opts...); err != nil {
		return "", errors.Wrapf(err, "put object %s", k)
	}
	return k, nil
}

func (s *OSSImageStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := s.Bucket.DeleteObject(s.objectKey(ref), oss.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *OSSImageStore) Exists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	return s.Bucket.IsObjectExist(s.objectKey(ref), oss.WithContext(ctx))
}

func (s *OSSImageStore) PublicURL(ref string) string {
	if ref == "" {
		return ""
	}
	if s.PublicBase != "" {
		return s.PublicBase + "/" + ref
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.Endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.BucketName, end, ref)
}

func isNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == 404
	}
	return false
}
