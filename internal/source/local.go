package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalSource reads record files from the local filesystem.
type LocalSource struct {
	basePath     string
	catalogGlob  string
	activityGlob string
}

// NewLocalSource creates a new local filesystem source rooted at basePath.
func NewLocalSource(basePath, catalogGlob, activityGlob string) (*LocalSource, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid local path %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local path %s is not a directory", basePath)
	}

	return &LocalSource{
		basePath:     basePath,
		catalogGlob:  catalogGlob,
		activityGlob: activityGlob,
	}, nil
}

// StreamCatalog implements RecordSource.
func (s *LocalSource) StreamCatalog(ctx context.Context) (<-chan CatalogRecord, <-chan error) {
	return streamDataset[CatalogRecord](ctx, s, s.catalogGlob, "catalog")
}

// StreamActivity implements RecordSource.
func (s *LocalSource) StreamActivity(ctx context.Context) (<-chan ActivityRecord, <-chan error) {
	return streamDataset[ActivityRecord](ctx, s, s.activityGlob, "activity")
}

// Close is a no-op for local sources.
func (s *LocalSource) Close() error {
	return nil
}

// keys walks the base directory and returns slash-separated relative paths
// matching the glob, in sorted order.
func (s *LocalSource) keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if matchKey(pattern, rel) {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.basePath, err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *LocalSource) open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.basePath, filepath.FromSlash(key)))
}

func (s *LocalSource) location() string {
	return s.basePath
}
