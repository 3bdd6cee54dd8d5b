package invalidate

import (
	"reflect"
	"testing"
)

func TestMapKey_RenderedCache(t *testing.T) {
	id, paths, ok := MapKey("rendered-cache/hep-ph/pdf/0511/0511005v2.pdf")
	if !ok {
		t.Fatal("key should map to an article")
	}
	if id.IDv() != "hep-ph/0511005v2" {
		t.Errorf("identifier: got %q, want %q", id.IDv(), "hep-ph/0511005v2")
	}
	want := []string{"/pdf/hep-ph/0511005v2", "/pdf/hep-ph/0511005"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths: got %v, want %v", paths, want)
	}
}

func TestMapKey_RenderedHTMLAddsSlashVariants(t *testing.T) {
	_, paths, ok := MapKey("rendered-cache/arxiv/html/1208/1208.6335v2.html.gz")
	if !ok {
		t.Fatal("key should map to an article")
	}
	want := []string{
		"/html/1208.6335v2",
		"/html/1208.6335",
		"/html/1208.6335v2/",
		"/html/1208.6335/",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths: got %v, want %v", paths, want)
	}
}

func TestMapKey_CurrentSource(t *testing.T) {
	id, paths, ok := MapKey("current/arxiv/papers/1208/1208.6335.tar.gz")
	if !ok {
		t.Fatal("key should map to an article")
	}
	if id.ID != "1208.6335" {
		t.Errorf("identifier: got %q", id.ID)
	}
	if id.HasVersion() {
		t.Error("current-layout key must not carry a version")
	}
	want := []string{"/pdf/1208.6335", "/src/1208.6335"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths: got %v, want %v", paths, want)
	}
}

func TestMapKey_ArchivedSource(t *testing.T) {
	id, paths, ok := MapKey("archive/hep-ph/papers/0511/0511005v1.tar.gz")
	if !ok {
		t.Fatal("key should map to an article")
	}
	if id.IDv() != "hep-ph/0511005v1" {
		t.Errorf("identifier: got %q", id.IDv())
	}
	want := []string{
		"/pdf/hep-ph/0511005v1", "/pdf/hep-ph/0511005",
		"/src/hep-ph/0511005v1", "/src/hep-ph/0511005",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths: got %v, want %v", paths, want)
	}
}

func TestMapKey_NonArticleKeys(t *testing.T) {
	keys := []string{
		"rendered-cache/hep-ph/pdf/0511/index.html",
		"rendered-cache/hep-ph/tex/0511/0511005v2.pdf", // unknown format segment
		"current/arxiv/papers/1208/listing.txt",
		"archive/hep-ph/papers/0511/checksums.md5",
		"logs/access/2023-03-08.log",
		"current/arxiv/1208.6335.pdf", // missing papers/ level
		"",
	}
	for _, key := range keys {
		if _, _, ok := MapKey(key); ok {
			t.Errorf("key %q should not map to an article", key)
		}
	}
}

func TestMapKey_ModernIDInOldStyleDirs(t *testing.T) {
	// The arxiv subject directory holds modern identifiers; the subject
	// never becomes part of the identifier itself.
	id, _, ok := MapKey("archive/arxiv/papers/1208/1208.6335v3.pdf")
	if !ok {
		t.Fatal("key should map to an article")
	}
	if id.IDv() != "1208.6335v3" {
		t.Errorf("identifier: got %q, want %q", id.IDv(), "1208.6335v3")
	}
}
