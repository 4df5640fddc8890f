package sink

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore writes part files to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  normalizePrefix(prefix),
	}, nil
}

// Write stores data at key atomically using temp file + rename.
func (s *LocalStore) Write(ctx context.Context, key string, data []byte) error {
	path := s.fullPath(key)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}

	return nil
}

// List returns all keys under the given prefix, in sorted order.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := filepath.Join(s.baseDir, filepath.FromSlash(s.prefix))

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object at key. Empty parent directories are left in
// place; they carry no meaning for readers.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + s.fullPath(key)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(s.prefix+key))
}
