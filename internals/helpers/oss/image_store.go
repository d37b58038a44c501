package helper

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ImageStore is the object storage behind every image reference saved on a
// map, building, employee or room. A ref is an object key.
type ImageStore interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	PublicURL(ref string) string
}

// Config selects and configures an ImageStore.
type Config struct {
	Driver     string // oss|memory
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Prefix     string
	PublicBase string
}

func NewImageStore(cfg Config) (ImageStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "oss":
		return NewOSSImageStore(cfg)
	case "memory":
		return NewMemoryImageStore(cfg.PublicBase), nil
	default:
		return nil, errors.Errorf("unknown image store driver %q", cfg.Driver)
	}
}

// MemoryImageStore keeps objects in process memory. Used by tests and local runs.
type MemoryImageStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	base    string
}

func NewMemoryImageStore(publicBase string) *MemoryImageStore {
	return &MemoryImageStore{objects: map[string][]byte{}, base: strings.TrimRight(publicBase, "/")}
}

func (m *MemoryImageStore) Store(_ context.Context, key string, data []byte, _ string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty object key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *MemoryImageStore) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *MemoryImageStore) Exists(_ context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[ref]
	return ok, nil
}

func (m *MemoryImageStore) PublicURL(ref string) string {
	if ref == "" {
		return ""
	}
	if m.base == "" {
		return "/" + ref
	}
	return m.base + "/" + ref
}

// Keys lists stored object keys.
func (m *MemoryImageStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
