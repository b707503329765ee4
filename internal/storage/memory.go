package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryObject is an object held by MemoryStorage.
type MemoryObject struct {
	Data        []byte
	ContentType string
	Public      bool
}

// MemoryStorage keeps objects in a map. Used for local runs and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	bucket    string
	publicURL string
	objects   map[string]*MemoryObject
}

func NewMemoryStorage(bucket, publicURL string) *MemoryStorage {
	if bucket == "" {
		bucket = "local"
	}
	if publicURL == "" {
		publicURL = "memory://" + bucket
	}
	return &MemoryStorage{
		bucket:    bucket,
		publicURL: publicURL,
		objects:   make(map[string]*MemoryObject),
	}
}

func (m *MemoryStorage) EnsureBucket(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &MemoryObject{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (m *MemoryStorage) MakePublic(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object %s not found", key)
	}
	obj.Public = true
	return nil
}

func (m *MemoryStorage) PublicURL(key string) string {
	return joinURL(m.publicURL, key)
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) Bucket() string {
	return m.bucket
}

// Object returns a copy of the stored object.
func (m *MemoryStorage) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return MemoryObject{}, false
	}
	return *obj, true
}

// Len reports how many objects are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
