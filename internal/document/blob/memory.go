package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"docflow/internal/document/ports"
	"docflow/pkg/platform/sentinel"
)

type object struct {
	data     []byte
	mimeType string
}

// Memory keeps blobs in process. Signed URLs use the memory:// scheme and
// are only meaningful to tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

var _ ports.BlobStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object), now: time.Now}
}

func (m *Memory) Put(_ context.Context, name, mimeType string, size int64, r io.Reader) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if size >= 0 && n != size {
		return "", fmt.Errorf("read %s: got %d bytes, want %d", name, n, size)
	}
	path := ObjectName(name, m.now())
	m.mu.Lock()
	m.objects[path] = object{data: buf.Bytes(), mimeType: mimeType}
	m.mu.Unlock()
	return path, nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.objects, path)
	m.mu.Unlock()
	return nil
}

func (m *Memory) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s: %w", path, sentinel.ErrNotFound)
	}
	u := url.URL{
		Scheme:   "memory",
		Path:     "/" + path,
		RawQuery: url.Values{"expires": {strconv.FormatInt(m.now().Add(ttl).Unix(), 10)}}.Encode(),
	}
	return u.String(), nil
}

// Get returns a copy of a stored blob.
func (m *Memory) Get(path string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.mimeType, true
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
