package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/preprintworks/dissemination/internal/metrics"
)

// GCSStore implements Store against a Google Cloud Storage bucket. Keys
// are flat strings; prefix listing is the only traversal mechanism.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed store. The bucket name is the store
// root and must not itself contain a path component. Credentials come
// from the environment (ADC).
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if strings.Contains(bucket, "/") {
		return nil, fmt.Errorf("gcs bucket %q must not contain a path component", bucket)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Stat returns the object at key, or absent when GCS reports no such
// object.
func (s *GCSStore) Stat(ctx context.Context, key string) (*Object, bool, error) {
	start := time.Now()
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			metrics.RecordStoreOperation("gcs", "stat", time.Since(start), true)
			return nil, false, nil
		}
		metrics.RecordStoreOperation("gcs", "stat", time.Since(start), false)
		return nil, false, fmt.Errorf("gcs attrs %s: %w", key, err)
	}
	metrics.RecordStoreOperation("gcs", "stat", time.Since(start), true)
	return s.object(attrs), true, nil
}

// List queries the bucket for every object under prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	start := time.Now()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []*Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			metrics.RecordStoreOperation("gcs", "list", time.Since(start), false)
			return nil, fmt.Errorf("gcs list %s: %w", prefix, err)
		}
		objects = append(objects, s.object(attrs))
	}
	metrics.RecordStoreOperation("gcs", "list", time.Since(start), true)
	return objects, nil
}

func (s *GCSStore) object(attrs *storage.ObjectAttrs) *Object {
	handle := s.client.Bucket(s.bucket).Object(attrs.Name)
	return &Object{
		Name:               attrs.Name,
		Size:               attrs.Size,
		ETag:               attrs.Etag,
		LastModified:       attrs.Updated,
		ContentEncoding:    attrs.ContentEncoding,
		ContentDisposition: attrs.ContentDisposition,
		ContentLanguage:    attrs.ContentLanguage,
		CacheControl:       attrs.CacheControl,
		open: func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
			if length <= 0 {
				length = -1
			}
			r, err := handle.NewRangeReader(ctx, offset, length)
			if err != nil {
				return nil, fmt.Errorf("gcs read %s: %w", attrs.Name, err)
			}
			return r, nil
		},
	}
}

// HealthCheck verifies the bucket is reachable.
func (s *GCSStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Type returns "gcs".
func (s *GCSStore) Type() string { return "gcs" }

// Close closes the GCS client.
func (s *GCSStore) Close() error { return s.client.Close() }
