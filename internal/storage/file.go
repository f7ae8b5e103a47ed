package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBlobs stores each snapshot as a file under a single data directory.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a truncated snapshot behind.
type FileBlobs struct {
	dir string
	mu  sync.Mutex
}

func NewFileBlobs(dir string) (*FileBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("FileBlobs: cannot create dir %s: %w", dir, err)
	}
	return &FileBlobs{dir: dir}, nil
}

func (f *FileBlobs) Load(_ context.Context, key string) ([]byte, bool, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("FileBlobs.Load: %w", err)
	}
	return data, true, nil
}

func (f *FileBlobs) Save(_ context.Context, key string, data []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("FileBlobs.Save: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("FileBlobs.Save: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("FileBlobs.Save: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("FileBlobs.Save: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("FileBlobs.Save: rename: %w", err)
	}
	return nil
}

func (f *FileBlobs) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("FileBlobs: invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}
