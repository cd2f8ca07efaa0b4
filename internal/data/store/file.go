// Package store persists the namespace index blob. The json driver keeps it
// as a plain file, the sqlite driver keeps it in a single-row table.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"nsresolve/internal/core/config"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/shared/util"
)

// FileStore writes the blob to one file, replacing it atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("index path %q is a directory, expected file", cleanPath)
	}
	return &FileStore{path: cleanPath}, nil
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read index %q: %w", s.path, err)
	}
	return data, nil
}

func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write index %q: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Open returns the BlobStore configured by driver.
func Open(driver, path string, opts SQLiteOptions) (ports.BlobStore, error) {
	switch driver {
	case "", config.DriverJSON:
		return NewFileStore(path)
	case config.DriverSQLite:
		return OpenSQLite(path, opts)
	default:
		return nil, fmt.Errorf("unsupported index driver %q", driver)
	}
}
