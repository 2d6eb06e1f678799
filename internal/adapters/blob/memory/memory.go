// Package memory es el blob store in-memory para dev y tests.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"medpal/internal/ports/blob"
)

type entry struct {
	data     []byte
	mimeType string
}

type Store struct {
	mu    sync.RWMutex
	blobs map[string]entry
}

func New() *Store {
	return &Store{
		blobs: make(map[string]entry),
	}
}

func (s *Store) Save(ctx context.Context, key, mimeType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = entry{data: data, mimeType: mimeType}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.blobs[key]
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(e.data)), e.mimeType, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return blob.ErrNotFound
	}
	delete(s.blobs, key)
	return nil
}
