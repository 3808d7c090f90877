package storage

import (
	"context"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu         sync.RWMutex
	objects    map[string][]byte
	types      map[string]string
	publicBase string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{
		objects:    make(map[string][]byte),
		types:      make(map[string]string),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[key] = buf
	s.types[key] = contentType
	s.mu.Unlock()

	return s.publicBase + "/" + key, nil
}

// Get returns a copy of the stored object.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, s.types[key], true
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
