package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// BlobSource reads record files from S3-compatible or GCS object storage.
type BlobSource struct {
	bucket       *blob.Bucket
	uri          string
	prefix       string
	catalogGlob  string
	activityGlob string
}

// NewBlobSource opens the configured bucket.
// The s3 mode also works with B2, R2, and MinIO via a custom endpoint.
func NewBlobSource(cfg Config) (*BlobSource, error) {
	ctx := context.Background()

	var bucketURL string
	switch cfg.Mode {
	case "s3":
		bucketURL = fmt.Sprintf("s3://%s", cfg.Bucket)
		params := url.Values{}
		if cfg.S3Region != "" {
			params.Set("region", cfg.S3Region)
		}
		if cfg.S3Endpoint != "" {
			params.Set("endpoint", cfg.S3Endpoint)
			params.Set("s3ForcePathStyle", "true")
		}
		if len(params) > 0 {
			bucketURL = bucketURL + "?" + params.Encode()
		}
	case "gcs":
		bucketURL = fmt.Sprintf("gs://%s", cfg.Bucket)
	default:
		return nil, fmt.Errorf("unsupported blob source mode: %s", cfg.Mode)
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}

	return &BlobSource{
		bucket:       bucket,
		uri:          bucketURL,
		prefix:       normalizePrefix(cfg.Prefix),
		catalogGlob:  cfg.CatalogGlob,
		activityGlob: cfg.ActivityGlob,
	}, nil
}

// StreamCatalog implements RecordSource.
func (s *BlobSource) StreamCatalog(ctx context.Context) (<-chan CatalogRecord, <-chan error) {
	return streamDataset[CatalogRecord](ctx, s, s.catalogGlob, "catalog")
}

// StreamActivity implements RecordSource.
func (s *BlobSource) StreamActivity(ctx context.Context) (<-chan ActivityRecord, <-chan error) {
	return streamDataset[ActivityRecord](ctx, s, s.activityGlob, "activity")
}

// Close releases the bucket connection.
func (s *BlobSource) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// keys lists the bucket under the configured prefix and returns keys
// (relative to the prefix) matching the glob, in sorted order.
func (s *BlobSource) keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.uri, err)
		}
		if obj.IsDir {
			continue
		}

		rel := strings.TrimPrefix(obj.Key, s.prefix)
		if matchKey(pattern, rel) {
			keys = append(keys, rel)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *BlobSource) open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.bucket.NewReader(ctx, s.prefix+key, nil)
}

func (s *BlobSource) location() string {
	return s.uri
}
