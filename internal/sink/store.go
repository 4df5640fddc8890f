// Package sink writes derived tables as partitioned parquet to local or
// object storage. Table writes are unconditional full overwrites; there is
// no append or merge semantics.
package sink

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore abstracts byte-level storage for table part files and
// manifests. Keys are slash-separated paths relative to the store's root.
type ObjectStore interface {
	// Write stores data at key, replacing any existing object.
	Write(ctx context.Context, key string, data []byte) error

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "s3" | "gcs"

	// Local filesystem
	LocalDir string

	// Object storage (s3 also works for B2, R2, MinIO)
	Bucket     string
	S3Endpoint string
	S3Region   string

	// Common path prefix within the bucket or local dir.
	Prefix string
}

// normalizePrefix ensures a non-empty prefix carries its trailing slash so
// that prefix+key concatenation always lands on a path boundary.
func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// NewObjectStore creates a storage backend based on configuration.
func NewObjectStore(cfg Config) (ObjectStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for s3 backend")
		}
		return NewS3Store(cfg.Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for gcs backend")
		}
		return NewGCSStore(cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
