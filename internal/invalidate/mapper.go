// Package invalidate reacts to storage-change events: it maps a raw
// storage key to the CDN paths whose cached copies the change makes
// stale, and issues retrying purge calls for them.
package invalidate

import (
	"regexp"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
)

var (
	renderedKeyRe = regexp.MustCompile(`^rendered-cache/([a-z-]+)/([a-z]+)/([0-9]{4})/([^/]+)$`)
	currentKeyRe  = regexp.MustCompile(`^current/([a-z-]+)/papers/([0-9]{4})/([^/]+)$`)
	archiveKeyRe  = regexp.MustCompile(`^archive/([a-z-]+)/papers/([0-9]{4})/([^/]+)$`)

	// stemRe splits a basename (extension already stripped) into the
	// paper filename and an optional vN suffix.
	stemRe = regexp.MustCompile(`^([0-9]{4}\.[0-9]{4,5}|[0-9]{7})(?:v([0-9]+))?$`)
)

// knownExtensions are the storage file endings recognized when
// stripping a key's basename, longest match first.
var knownExtensions = []string{
	".tar.gz", ".ps.gz", ".dvi.gz", ".html.gz", ".pdf", ".abs", ".gz",
}

// MapKey extracts the paper identifier from a storage key and computes
// the CDN paths to purge for it. Keys that do not name a paper artifact
// return ok == false; most storage changes are unrelated to papers and
// that is not an error.
func MapKey(key string) (identifier.Identifier, []string, bool) {
	if m := renderedKeyRe.FindStringSubmatch(key); m != nil {
		f, ok := format.FromRoute(m[2])
		if !ok {
			return identifier.Identifier{}, nil, false
		}
		id, ok := identifierFrom(m[1], m[4])
		if !ok {
			return identifier.Identifier{}, nil, false
		}
		return id, formatPaths(f, id), true
	}

	if m := currentKeyRe.FindStringSubmatch(key); m != nil {
		id, ok := identifierFrom(m[1], m[3])
		if !ok {
			return identifier.Identifier{}, nil, false
		}
		return id, sourcePaths(id), true
	}

	if m := archiveKeyRe.FindStringSubmatch(key); m != nil {
		id, ok := identifierFrom(m[1], m[3])
		if !ok {
			return identifier.Identifier{}, nil, false
		}
		return id, sourcePaths(id), true
	}

	return identifier.Identifier{}, nil, false
}

// identifierFrom rebuilds an identifier from the key's subject directory
// and basename, delegating validation to the identifier parser.
func identifierFrom(subject, basename string) (identifier.Identifier, bool) {
	stem := basename
	for _, ext := range knownExtensions {
		if len(stem) > len(ext) && stem[len(stem)-len(ext):] == ext {
			stem = stem[:len(stem)-len(ext)]
			break
		}
	}

	m := stemRe.FindStringSubmatch(stem)
	if m == nil {
		return identifier.Identifier{}, false
	}

	s := m[1]
	if m[2] != "" {
		s += "v" + m[2]
	}
	if subject != "arxiv" {
		s = subject + "/" + s
	}

	id, err := identifier.Parse(s)
	if err != nil {
		return identifier.Identifier{}, false
	}
	return id, true
}

// formatPaths returns the public paths for one format of one paper.
// Both the versioned and unversioned URL are included since either may
// be cached; HTML bundles additionally get trailing-slash variants,
// which CDNs cache as distinct keys.
func formatPaths(f format.Format, id identifier.Identifier) []string {
	seg := "/" + f.String() + "/"
	paths := make([]string, 0, 4)
	if id.HasVersion() {
		paths = append(paths, seg+id.IDv())
	}
	paths = append(paths, seg+id.ID)
	if f == format.HTML {
		for _, p := range paths {
			paths = append(paths, p+"/")
		}
	}
	return paths
}

// sourcePaths covers a change to a submitted source file: the source
// download itself and the PDF disseminated from it.
func sourcePaths(id identifier.Identifier) []string {
	paths := formatPaths(format.PDF, id)
	return append(paths, formatPaths(format.Source, id)...)
}
