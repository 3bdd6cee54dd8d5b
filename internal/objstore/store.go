// Package objstore defines the Store interface over a backing object
// store and provides Google Cloud Storage, S3-compatible and local
// filesystem implementations.
//
// Implementations are read-only: the dissemination service never mutates
// storage. A Store is constructed once at process start and is safe for
// unsynchronized concurrent use.
package objstore

import (
	"context"
	"io"
	"time"
)

// Object is a read-only handle to one stored byte sequence. It is
// constructed fresh per lookup and never cached across requests.
type Object struct {
	// Name is the backend-native key, relative to the store root.
	Name string

	Size         int64
	ETag         string
	LastModified time.Time

	// Optional backend metadata passed through to response headers.
	ContentEncoding    string
	ContentDisposition string
	ContentLanguage    string
	CacheControl       string

	open func(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// Open returns a reader over the object's bytes starting at offset.
// length <= 0 reads through the end of the object.
func (o *Object) Open(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return o.open(ctx, offset, length)
}

// Store is the capability set the resolution logic needs from a backend.
// Absence of a key is a normal return value, never an error; errors are
// reserved for transport and backend failures.
type Store interface {
	// Stat returns the object at key, or (nil, false, nil) when no such
	// object exists.
	Stat(ctx context.Context, key string) (*Object, bool, error)

	// List returns every object whose key starts with prefix. The result
	// is finite and re-queried on every call; ordering is
	// backend-defined.
	List(ctx context.Context, prefix string) ([]*Object, error)

	// HealthCheck verifies the backend is reachable. nil means healthy.
	HealthCheck(ctx context.Context) error

	// Type returns the backend type identifier ("gcs", "s3", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
