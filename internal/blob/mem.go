package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/retrosync/retrosync/internal/syncerr"
)

type memObject struct {
	data []byte
	info ObjectInfo
}

// MemStore is an in-process Store. It backs the test suites and the `--store memory` dry-run mode.
type MemStore struct {
	objects map[string]*memObject
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string]*memObject),
		now:     time.Now,
	}
}

// SetClock overrides the time source used to stamp LastModified on puts.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetLastModified rewrites the timestamp of an existing object.
func (m *MemStore) SetLastModified(key string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return false
	}
	obj.info.LastModified = t
	return true
}

// Bytes returns a copy of the stored contents.
func (m *MemStore) Bytes(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemStore) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncerr.Network("put", params.Key, err)
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, syncerr.Network("put", params.Key, err)
	}
	if params.Size > 0 && int64(len(data)) != params.Size {
		return nil, syncerr.Network("put", params.Key, fmt.Errorf("short body: got %d want %d", len(data), params.Size))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	etag := fmt.Sprintf("%x", md5.Sum(data))
	m.objects[params.Key] = &memObject{
		data: data,
		info: ObjectInfo{
			Key:          params.Key,
			ETag:         etag,
			Hash:         params.Hash,
			Size:         int64(len(data)),
			LastModified: now,
		},
	}

	return &PutObjectResponse{
		Key:          params.Key,
		ETag:         etag,
		Size:         int64(len(data)),
		LastModified: now,
	}, nil
}

func (m *MemStore) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncerr.Network("get", key, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, syncerr.NotFound("get", key)
	}

	return &GetObjectResponse{
		Body:         io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
		ETag:         obj.info.ETag,
		Hash:         obj.info.Hash,
		Size:         obj.info.Size,
		LastModified: obj.info.LastModified,
	}, nil
}

func (m *MemStore) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncerr.Network("head", key, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, syncerr.NotFound("head", key)
	}
	info := obj.info
	return &info, nil
}

// ListObjects returns objects under prefix ordered by key. Like S3 listings, entries carry no hash.
func (m *MemStore) ListObjects(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncerr.Network("list", prefix, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make([]*ObjectInfo, 0, len(m.objects))
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		info := obj.info
		info.Hash = ""
		objects = append(objects, &info)
	}

	slices.SortFunc(objects, func(a, b *ObjectInfo) int {
		return strings.Compare(a.Key, b.Key)
	})
	return objects, nil
}

var _ Store = (*MemStore)(nil)
