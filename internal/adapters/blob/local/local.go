// Package local guarda blobs en el filesystem, un archivo por key.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"medpal/internal/ports/blob"
)

type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Save escribe el blob como <key><ext>. Una key tiene a lo sumo un blob:
// se borran primero las variantes con otra extensión.
func (s *Store) Save(ctx context.Context, key, mimeType string, r io.Reader) error {
	if err := s.removeVariants(key); err != nil {
		return err
	}

	path, err := s.safeJoin(key + mimeTypeToExt(mimeType))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close blob file: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	path, ok, err := s.find(key)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", blob.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", blob.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open blob: %w", err)
	}
	return f, extToMimeType(path), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	path, ok, err := s.find(key)
	if err != nil {
		return err
	}
	if !ok {
		return blob.ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return blob.ErrNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *Store) find(key string) (string, bool, error) {
	if _, err := s.safeJoin(key); err != nil {
		return "", false, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return "", false, fmt.Errorf("failed to read blob directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == key {
			return filepath.Join(s.basePath, name), true, nil
		}
	}
	return "", false, nil
}

func (s *Store) removeVariants(key string) error {
	path, ok, err := s.find(key)
	if err != nil {
		return err
	}
	if ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace blob: %w", err)
		}
	}
	return nil
}

// safeJoin resuelve key relativo a basePath y rechaza path traversal.
func (s *Store) safeJoin(key string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, key))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func mimeTypeToExt(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func extToMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
