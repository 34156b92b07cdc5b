package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStore writes invoices under a directory on local disk. The pointer
// is the path relative to that directory.
type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) (*LocalFileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}
	return &LocalFileStore{root: root}, nil
}

// resolve keeps pointers inside root and returns the full and root-relative paths.
func (s *LocalFileStore) resolve(key string) (string, string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	rel := strings.TrimPrefix(clean, string(filepath.Separator))
	if rel == "" || rel == "." {
		return "", "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.root, rel), filepath.ToSlash(rel), nil
}

func (s *LocalFileStore) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	path, rel, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	// Write then rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return rel, nil
}

func (s *LocalFileStore) Open(_ context.Context, pointer string) (io.ReadCloser, error) {
	path, _, err := s.resolve(pointer)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", pointer, ErrNotStored)
		}
		return nil, fmt.Errorf("failed to open %s: %w", pointer, err)
	}
	return f, nil
}
