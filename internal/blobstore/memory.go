package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process blob store for tests.
type Memory struct {
	mu     sync.RWMutex
	bucket string
	blobs  map[string][]byte
}

// NewMemory creates an empty in-memory blob store.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, blobs: make(map[string][]byte)}
}

func (s *Memory) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Memory) Bucket() string {
	return s.bucket
}

// Delete removes a blob. Tests use it to simulate staging loss.
func (s *Memory) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
}

// Len returns the number of stored blobs.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
