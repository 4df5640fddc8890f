// Package source loads raw catalog and activity records from local or
// object storage. Files are selected by glob pattern and parsed as one JSON
// object per line; .gz files are decompressed transparently.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tunelake/lakehouse-etl/internal/metrics"
)

// ErrNoMatchingFiles is returned when a glob pattern selects no files.
var ErrNoMatchingFiles = errors.New("glob matched no files")

// RecordSource streams raw records for the two input datasets.
type RecordSource interface {
	// StreamCatalog streams catalog records selected by the catalog glob.
	StreamCatalog(ctx context.Context) (<-chan CatalogRecord, <-chan error)

	// StreamActivity streams activity records selected by the activity glob.
	StreamActivity(ctx context.Context) (<-chan ActivityRecord, <-chan error)

	// Close releases any resources held by the source.
	Close() error
}

// Config configures a record source.
type Config struct {
	Mode string // "local" | "s3" | "gcs"

	// Local filesystem
	LocalPath string

	// Object storage
	Bucket     string
	Prefix     string
	S3Endpoint string
	S3Region   string

	// Glob patterns relative to LocalPath / Prefix.
	CatalogGlob  string
	ActivityGlob string
}

// NewRecordSource creates a record source based on configuration.
func NewRecordSource(cfg Config) (RecordSource, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalSource(cfg.LocalPath, cfg.CatalogGlob, cfg.ActivityGlob)
	case "s3", "gcs":
		return NewBlobSource(cfg)
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Mode)
	}
}

// lister abstracts key listing and object opening over the backends.
type lister interface {
	keys(ctx context.Context, pattern string) ([]string, error)
	open(ctx context.Context, key string) (io.ReadCloser, error)
	location() string
}

// normalizePrefix ensures a non-empty object-storage prefix carries its
// trailing slash so that prefix+key concatenation always lands on a path
// boundary.
func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// matchKey matches a key against the glob, treating a trailing .gz as
// transparent so compressed drops of the same layout are picked up.
func matchKey(pattern, key string) bool {
	if ok, err := doublestar.Match(pattern, key); err == nil && ok {
		return true
	}
	if strings.HasSuffix(key, ".gz") {
		if ok, err := doublestar.Match(pattern, strings.TrimSuffix(key, ".gz")); err == nil && ok {
			return true
		}
	}
	return false
}

// streamDataset streams all records matching pattern from src.
// A listing failure, an empty match, or a parse failure is sent on the
// error channel and terminates the stream.
func streamDataset[T any](ctx context.Context, src lister, pattern, dataset string) (<-chan T, <-chan error) {
	recCh := make(chan T, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		keys, err := src.keys(ctx, pattern)
		if err != nil {
			if m := metrics.Get(); m != nil {
				m.IncSourceErrors(dataset)
			}
			errCh <- fmt.Errorf("list %s files: %w", dataset, err)
			return
		}
		if len(keys) == 0 {
			if m := metrics.Get(); m != nil {
				m.IncSourceErrors(dataset)
			}
			errCh <- fmt.Errorf("%w: %s under %s", ErrNoMatchingFiles, pattern, src.location())
			return
		}

		total := 0
		for _, key := range keys {
			r, err := src.open(ctx, key)
			if err != nil {
				if m := metrics.Get(); m != nil {
					m.IncSourceErrors(dataset)
				}
				errCh <- fmt.Errorf("open %s: %w", key, err)
				return
			}

			n, err := decodeLines(ctx, key, r, recCh)
			r.Close()
			total += n
			if err != nil {
				if m := metrics.Get(); m != nil {
					m.IncSourceErrors(dataset)
				}
				errCh <- fmt.Errorf("read %s: %w", key, err)
				return
			}
		}

		if m := metrics.Get(); m != nil {
			m.AddRecordsRead(dataset, float64(total))
		}
	}()

	return recCh, errCh
}
