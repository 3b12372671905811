package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// BlobStore keeps archived batch payloads in memory and hands out memory:// URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	contentType string
	data        []byte
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]object)}
}

// PutObject stores a copy of data under path. Existing objects are overwritten.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{contentType: contentType, data: byteData}
	return "memory://" + path, nil
}

// Object returns a copy of the payload stored under path.
func (s *BlobStore) Object(path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Paths lists stored object paths in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
