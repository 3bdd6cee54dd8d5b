// Package paths builds storage keys for the three legacy storage layouts.
//
// All builders are pure; keys are relative to the store root (the store
// owns the bucket or directory root). The layouts are:
//
//   - rendered-cache: artifacts compiled from typesettable source,
//     version-complete, all versions flat in one directory.
//   - current-snapshot: the latest version only of directly-submitted
//     formats, no version suffix in the filename.
//   - versioned-archive: every superseded directly-submitted version,
//     one file per version.
package paths

import (
	"fmt"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
)

// Subject returns the storage subject directory for an identifier: the
// legacy archive for old-style identifiers, the unified "arxiv" namespace
// otherwise.
func Subject(id identifier.Identifier) string {
	if id.OldStyle {
		return id.Archive
	}
	return "arxiv"
}

// RenderedCache returns the rendered-cache key for one version of a paper:
// rendered-cache/{subject}/{format}/{yymm}/{filename}v{version}{ext}
func RenderedCache(f format.Format, id identifier.Identifier, version int) string {
	return fmt.Sprintf("rendered-cache/%s/%s/%s/%sv%d%s",
		Subject(id), f, id.YearMonth, id.Filename, version, f.Ext())
}

// Current returns the current-snapshot key, which carries no version:
// current/{subject}/papers/{yymm}/{filename}{ext}
func Current(f format.Format, id identifier.Identifier) string {
	return fmt.Sprintf("current/%s/papers/%s/%s%s",
		Subject(id), id.YearMonth, id.Filename, f.Ext())
}

// Versioned returns the versioned-archive key for a superseded version:
// archive/{subject}/papers/{yymm}/{filename}v{version}{ext}
func Versioned(f format.Format, id identifier.Identifier, version int) string {
	return fmt.Sprintf("archive/%s/papers/%s/%sv%d%s",
		Subject(id), id.YearMonth, id.Filename, version, f.Ext())
}

// VersionedPrefix returns the listing prefix covering every
// versioned-archive entry for a paper, any format: the "vN" suffix and
// extension are left open for the backend to enumerate.
func VersionedPrefix(id identifier.Identifier) string {
	return fmt.Sprintf("archive/%s/papers/%s/%sv",
		Subject(id), id.YearMonth, id.Filename)
}

// CurrentSourcePrefix returns the listing prefix for the current
// version's sibling source files (the submitted originals living next to
// the current snapshot).
func CurrentSourcePrefix(id identifier.Identifier) string {
	return fmt.Sprintf("current/%s/papers/%s/%s.",
		Subject(id), id.YearMonth, id.Filename)
}

// VersionedSourcePrefix returns the listing prefix for a superseded
// version's sibling source files in the versioned archive.
func VersionedSourcePrefix(id identifier.Identifier, version int) string {
	return fmt.Sprintf("archive/%s/papers/%s/%sv%d.",
		Subject(id), id.YearMonth, id.Filename, version)
}
