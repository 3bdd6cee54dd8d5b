package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/preprintworks/dissemination/internal/metrics"
)

// LocalStore implements Store against a directory tree. Keys map to paths
// under a fixed root; prefix listing is a filename glob on the parent
// directory, so callers see the same traversal primitive as on a cloud
// backend.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local filesystem store rooted at root. The root
// must name an existing directory; it is normalized to carry a trailing
// separator so key joining is purely concatenative.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat local root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local root %s is not a directory", root)
	}
	if !strings.HasSuffix(root, string(os.PathSeparator)) {
		root += string(os.PathSeparator)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) fullPath(key string) string {
	return s.root + filepath.FromSlash(key)
}

// Stat returns the object at key, or absent for missing files.
func (s *LocalStore) Stat(_ context.Context, key string) (*Object, bool, error) {
	start := time.Now()
	info, err := os.Stat(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			metrics.RecordStoreOperation("local", "stat", time.Since(start), true)
			return nil, false, nil
		}
		metrics.RecordStoreOperation("local", "stat", time.Since(start), false)
		return nil, false, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		metrics.RecordStoreOperation("local", "stat", time.Since(start), true)
		return nil, false, nil
	}
	metrics.RecordStoreOperation("local", "stat", time.Since(start), true)
	return s.object(key, info), true, nil
}

// List globs the parent directory for entries matching prefix.
func (s *LocalStore) List(_ context.Context, prefix string) ([]*Object, error) {
	start := time.Now()
	pattern := s.fullPath(prefix) + "*"
	matches, err := filepath.Glob(pattern)
	if err != nil {
		metrics.RecordStoreOperation("local", "list", time.Since(start), false)
		return nil, fmt.Errorf("glob %s: %w", prefix, err)
	}

	objects := make([]*Object, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		key := filepath.ToSlash(strings.TrimPrefix(match, s.root))
		objects = append(objects, s.object(key, info))
	}
	metrics.RecordStoreOperation("local", "list", time.Since(start), true)
	return objects, nil
}

func (s *LocalStore) object(key string, info os.FileInfo) *Object {
	path := s.fullPath(key)
	return &Object{
		Name:         key,
		Size:         info.Size(),
		// Plain files carry no revision token; fabricate a stable
		// placeholder from size and mtime.
		ETag:         fmt.Sprintf("%x-%x", info.Size(), info.ModTime().UnixNano()),
		LastModified: info.ModTime().UTC(),
		open: func(_ context.Context, offset, length int64) (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", key, err)
			}
			if offset > 0 {
				if _, err := f.Seek(offset, io.SeekStart); err != nil {
					f.Close()
					return nil, fmt.Errorf("seek %s: %w", key, err)
				}
			}
			if length > 0 {
				return &limitedReadCloser{
					Reader: io.LimitReader(f, length),
					Closer: f,
				}, nil
			}
			return f, nil
		},
	}
}

// HealthCheck verifies the root directory is still readable.
func (s *LocalStore) HealthCheck(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("local root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local root %s is not a directory", s.root)
	}
	return nil
}

// Type returns "local".
func (s *LocalStore) Type() string { return "local" }

// Close is a no-op for local stores.
func (s *LocalStore) Close() error { return nil }

// limitedReadCloser wraps a LimitReader with a separate Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
