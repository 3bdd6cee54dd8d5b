package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
	"github.com/preprintworks/dissemination/internal/objstore"
)

// seedStore creates a local store whose tree contains the given keys,
// each holding a few bytes of content.
func seedStore(t *testing.T, keys ...string) objstore.Store {
	t.Helper()
	root := t.TempDir()
	for _, key := range keys {
		path := filepath.Join(root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}
	store, err := objstore.NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func mustParse(t *testing.T, s string) identifier.Identifier {
	t.Helper()
	id, err := identifier.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return id
}

func resolveOne(t *testing.T, store objstore.Store, idStr string) Resolution {
	t.Helper()
	res, err := NewResolver(store).Resolve(context.Background(), format.PDF, mustParse(t, idStr))
	if err != nil {
		t.Fatalf("Resolve(%s): %v", idStr, err)
	}
	return res
}

// Old-style paper present only in the rendered cache.
func TestResolve_RenderedCacheOldStyle(t *testing.T) {
	store := seedStore(t, "rendered-cache/acc-phys/pdf/9502/9502001v1.pdf")

	res := resolveOne(t, store, "acc-phys/9502001v1")
	if res.Disposition != Found {
		t.Fatalf("disposition: got %v", res.Disposition)
	}
	if !strings.HasSuffix(res.Object.Name, "acc-phys/pdf/9502/9502001v1.pdf") {
		t.Errorf("object name: got %q", res.Object.Name)
	}
}

// Modern paper with two PDF-only versions: the unversioned request hits
// the current snapshot, the superseded version hits the archive.
func TestResolve_CurrentAndArchived(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1208/1208.6335v1.pdf",
		"current/arxiv/papers/1208/1208.6335.pdf",
	)

	res := resolveOne(t, store, "1208.6335")
	if res.Disposition != Found {
		t.Fatalf("unversioned disposition: got %v", res.Disposition)
	}
	if !strings.HasSuffix(res.Object.Name, "current/arxiv/papers/1208/1208.6335.pdf") {
		t.Errorf("unversioned object: got %q", res.Object.Name)
	}
	if res.Version != 2 {
		t.Errorf("resolved version: got %d, want 2", res.Version)
	}

	resV1 := resolveOne(t, store, "1208.6335v1")
	if resV1.Disposition != Found {
		t.Fatalf("v1 disposition: got %v", resV1.Disposition)
	}
	if !strings.HasSuffix(resV1.Object.Name, "archive/arxiv/papers/1208/1208.6335v1.pdf") {
		t.Errorf("v1 object: got %q", resV1.Object.Name)
	}
	if !strings.Contains(resV1.Object.Name, "1208.6335") || !strings.Contains(resV1.Object.Name, "v1") {
		t.Errorf("archived object name must carry stem and version: %q", resV1.Object.Name)
	}
}

// The explicitly-requested current version may be served from the
// versionless current snapshot.
func TestResolve_ExplicitCurrentVersionFromSnapshot(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1208/1208.6335v1.pdf",
		"current/arxiv/papers/1208/1208.6335.pdf",
	)

	res := resolveOne(t, store, "1208.6335v2")
	if res.Disposition != Found {
		t.Fatalf("disposition: got %v", res.Disposition)
	}
	if !strings.HasSuffix(res.Object.Name, "current/arxiv/papers/1208/1208.6335.pdf") {
		t.Errorf("object: got %q", res.Object.Name)
	}
}

// A version with no retained source at all is withdrawn.
func TestResolve_Withdrawn(t *testing.T) {
	store := seedStore(t, "archive/arxiv/papers/0911/0911.3270v1.pdf")

	res := resolveOne(t, store, "0911.3270v2")
	if res.Disposition != Withdrawn {
		t.Fatalf("disposition: got %v, want Withdrawn", res.Disposition)
	}
	if res.Object != nil {
		t.Error("withdrawn resolution must not carry an object")
	}
}

// A superseded version with no archived source is withdrawn too.
func TestResolve_WithdrawnSupersededVersion(t *testing.T) {
	store := seedStore(t, "archive/hep-ph/papers/0511/0511005v2.pdf")

	res := resolveOne(t, store, "hep-ph/0511005v1")
	if res.Disposition != Withdrawn {
		t.Fatalf("disposition: got %v, want Withdrawn", res.Disposition)
	}
}

func TestResolve_ArticleNotFound(t *testing.T) {
	store := seedStore(t)

	res := resolveOne(t, store, "0712.9999")
	if res.Disposition != ArticleNotFound {
		t.Fatalf("disposition: got %v, want ArticleNotFound", res.Disposition)
	}
}

func TestResolve_VersionNotFound(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1208/1208.6335v1.pdf",
		"current/arxiv/papers/1208/1208.6335.pdf",
	)

	res := resolveOne(t, store, "1208.6335v3")
	if res.Disposition != VersionNotFound {
		t.Fatalf("disposition: got %v, want VersionNotFound", res.Disposition)
	}
}

// An article whose source exists but whose artifact is missing is an
// operational inconsistency, not a plain miss.
func TestResolve_Unavailable(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1501/1501.0001v1.pdf",
		"current/arxiv/papers/1501/1501.0001.tar.gz",
	)

	res := resolveOne(t, store, "1501.0001")
	if res.Disposition != Unavailable {
		t.Fatalf("disposition: got %v, want Unavailable", res.Disposition)
	}
}

// Version selection is numeric: v10 beats v9.
func TestResolve_NumericVersionSelection(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1208/1208.6335v9.pdf",
		"archive/arxiv/papers/1208/1208.6335v10.pdf",
		"current/arxiv/papers/1208/1208.6335.pdf",
	)

	res := resolveOne(t, store, "1208.6335")
	if res.Version != 11 {
		t.Errorf("resolved version: got %d, want 11", res.Version)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	store := seedStore(t,
		"archive/arxiv/papers/1208/1208.6335v1.pdf",
		"current/arxiv/papers/1208/1208.6335.pdf",
	)

	first := resolveOne(t, store, "1208.6335")
	second := resolveOne(t, store, "1208.6335")
	if first.Disposition != second.Disposition {
		t.Errorf("dispositions differ: %v vs %v", first.Disposition, second.Disposition)
	}
	if first.Object.Name != second.Object.Name {
		t.Errorf("object names differ: %q vs %q", first.Object.Name, second.Object.Name)
	}
}

// failingStore injects a backend failure on every call.
type failingStore struct {
	err error
}

func (s *failingStore) Stat(context.Context, string) (*objstore.Object, bool, error) {
	return nil, false, s.err
}
func (s *failingStore) List(context.Context, string) ([]*objstore.Object, error) {
	return nil, s.err
}
func (s *failingStore) HealthCheck(context.Context) error { return s.err }
func (s *failingStore) Type() string                      { return "failing" }
func (s *failingStore) Close() error                      { return nil }

// Backend failures must propagate, never be classified as a miss.
func TestResolve_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("backend timeout")
	r := NewResolver(&failingStore{err: boom})

	_, err := r.Resolve(context.Background(), format.PDF, mustParse(t, "1208.6335"))
	if !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want wrapped backend error", err)
	}

	_, err = r.Resolve(context.Background(), format.PDF, mustParse(t, "1208.6335v1"))
	if !errors.Is(err, boom) {
		t.Fatalf("versioned err: got %v, want wrapped backend error", err)
	}
}

func TestResolve_CancellationPropagates(t *testing.T) {
	r := NewResolver(&failingStore{err: context.Canceled})

	_, err := r.Resolve(context.Background(), format.PDF, mustParse(t, "1208.6335"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v, want context.Canceled", err)
	}
}

func TestVersionFromKey(t *testing.T) {
	cases := []struct {
		key  string
		want int
	}{
		{"archive/arxiv/papers/1208/1208.6335v2.pdf", 2},
		{"archive/arxiv/papers/1208/1208.6335v10.tar.gz", 10},
		{"rendered-cache/hep-ph/pdf/0511/0511005v3.pdf", 3},
		{"current/arxiv/papers/1208/1208.6335.pdf", 0},
		{"garbage", 0},
	}
	for _, c := range cases {
		if got := versionFromKey(c.key); got != c.want {
			t.Errorf("versionFromKey(%q): got %d, want %d", c.key, got, c.want)
		}
	}
}
