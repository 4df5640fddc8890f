package sink

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

// BlobStore writes part files to object storage through gocloud.dev.
type BlobStore struct {
	bucket *blob.Bucket
	scheme string
	name   string
	prefix string
}

// NewS3Store creates a store backed by S3-compatible object storage.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func NewS3Store(bucketName, prefix, endpoint, region string) (*BlobStore, error) {
	bucketURL := fmt.Sprintf("s3://%s", bucketName)

	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL = bucketURL + "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}

	return &BlobStore{bucket: bucket, scheme: "s3", name: bucketName, prefix: normalizePrefix(prefix)}, nil
}

// NewGCSStore creates a store backed by Google Cloud Storage.
func NewGCSStore(bucketName, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(context.Background(), fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}

	return &BlobStore{bucket: bucket, scheme: "gs", name: bucketName, prefix: normalizePrefix(prefix)}, nil
}

// Write stores data at key.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	path := s.prefix + key

	w, err := s.bucket.NewWriter(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", path, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", path, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", path, err)
	}

	return nil
}

// List returns all keys under the given prefix, in sorted order.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix + prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, s.prefix))
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object at key.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, s.prefix+key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s%s", s.scheme, s.name, s.prefix, key)
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
