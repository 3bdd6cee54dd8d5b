// Package identifier provides the paper identifier value type used across
// the dissemination service.
//
// Two grammars exist: the pre-2007 form "archive/NNNNNNN" (e.g.
// "hep-ph/0511005") where the subject archive is part of the identifier,
// and the modern form "YYMM.NNNNN" (e.g. "1208.6335") under the unified
// namespace. Either may carry a "vN" version suffix.
package identifier

import (
	"fmt"
	"regexp"
	"strconv"
)

// Identifier is an immutable, already-validated paper identifier.
// Version == 0 means "unspecified" (the current version is implied).
type Identifier struct {
	// ID is the unversioned identifier ("hep-ph/0511005", "1208.6335").
	ID string

	// Archive is the legacy subject archive ("hep-ph"); empty for modern
	// identifiers.
	Archive string

	// OldStyle is true for pre-2007 "archive/NNNNNNN" identifiers.
	OldStyle bool

	// YearMonth is the 4-digit YYMM directory-sharding bucket.
	YearMonth string

	// Filename is the bare stem used in storage keys: the 7-digit number
	// for old-style identifiers, the full "YYMM.NNNNN" for modern ones.
	Filename string

	// Version is the requested version, 0 when unspecified.
	Version int
}

// HasVersion reports whether the identifier carries an explicit version.
func (id Identifier) HasVersion() bool { return id.Version > 0 }

// IDv returns the versioned identifier string ("{id}v{version}"). For an
// unversioned identifier it returns the same as ID.
func (id Identifier) IDv() string {
	if !id.HasVersion() {
		return id.ID
	}
	return fmt.Sprintf("%sv%d", id.ID, id.Version)
}

// WithVersion returns a copy of the identifier carrying the given version.
func (id Identifier) WithVersion(v int) Identifier {
	id.Version = v
	return id
}

// WithoutVersion returns a copy of the identifier with no version.
func (id Identifier) WithoutVersion() Identifier {
	id.Version = 0
	return id
}

func (id Identifier) String() string { return id.IDv() }

var (
	oldStyleRe = regexp.MustCompile(`^([a-z-]+(?:\.[A-Z]{2})?)/(([0-9]{2})(0[1-9]|1[0-2])([0-9]{3}))(v([0-9]+))?$`)
	modernRe   = regexp.MustCompile(`^(([0-9]{2})(0[1-9]|1[0-2])\.([0-9]{4,5}))(v([0-9]+))?$`)
)

// Parse validates and decomposes an identifier string in either grammar.
func Parse(s string) (Identifier, error) {
	if m := modernRe.FindStringSubmatch(s); m != nil {
		id := Identifier{
			ID:        m[1],
			YearMonth: m[2] + m[3],
			Filename:  m[1],
		}
		if m[6] != "" {
			v, err := strconv.Atoi(m[6])
			if err != nil || v < 1 {
				return Identifier{}, fmt.Errorf("identifier %q: bad version", s)
			}
			id.Version = v
		}
		return id, nil
	}

	if m := oldStyleRe.FindStringSubmatch(s); m != nil {
		id := Identifier{
			ID:        m[1] + "/" + m[2],
			Archive:   m[1],
			OldStyle:  true,
			YearMonth: m[3] + m[4],
			Filename:  m[2],
		}
		if m[7] != "" {
			v, err := strconv.Atoi(m[7])
			if err != nil || v < 1 {
				return Identifier{}, fmt.Errorf("identifier %q: bad version", s)
			}
			id.Version = v
		}
		return id, nil
	}

	return Identifier{}, fmt.Errorf("identifier %q: unrecognized form", s)
}
