package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/macrolens/shelfprice/internal/domain"
)

const fileSuffix = "_cache.json"

// FileStore keeps one JSON file per key in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates the cache directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileSuffix)
}

// Get reads the file for key. A missing file is a cache miss.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}

// Set writes through a temporary file and renames it into place,
// so concurrent readers see either the old or the new entry.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}
