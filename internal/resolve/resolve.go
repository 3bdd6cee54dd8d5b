// Package resolve maps a paper identifier and format to a stored
// artifact, classifying every miss into a precise reason.
//
// Artifacts live under three incompatible legacy layouts (see the paths
// package). The current version number is never stored explicitly: it is
// inferred on every resolution from the versioned-archive directory
// contents, which only ever hold superseded versions.
package resolve

import (
	"context"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/metrics"
	"github.com/preprintworks/dissemination/internal/objstore"
	"github.com/preprintworks/dissemination/internal/paths"
)

// Disposition classifies the outcome of a resolution.
type Disposition int

const (
	// Found means Resolution.Object holds the artifact.
	Found Disposition = iota
	// ArticleNotFound means no such paper exists in storage.
	ArticleNotFound
	// VersionNotFound means the paper exists but the requested version
	// number is out of range. Only reachable for explicit version
	// requests.
	VersionNotFound
	// Withdrawn means the version exists but no source was ever
	// retained for it, so no artifact can exist.
	Withdrawn
	// Unavailable means storage state says the version should exist but
	// no artifact does. An operational inconsistency, surfaced
	// distinctly from a plain miss.
	Unavailable
)

func (d Disposition) String() string {
	switch d {
	case Found:
		return "found"
	case ArticleNotFound:
		return "article_not_found"
	case VersionNotFound:
		return "version_not_found"
	case Withdrawn:
		return "withdrawn"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of one resolve call: exactly one of Object
// (Disposition == Found) or a miss classification.
type Resolution struct {
	Disposition Disposition
	Object      *objstore.Object

	// Version is the concrete version the Object represents when the
	// request was unversioned.
	Version int
}

// Resolver locates stored artifacts. It keeps no per-request state and
// is safe for concurrent use.
type Resolver struct {
	store    objstore.Store
	detector *WithdrawalDetector
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store objstore.Store) *Resolver {
	return &Resolver{
		store:    store,
		detector: NewWithdrawalDetector(store),
	}
}

// Resolve maps (format, identifier) to an artifact or a classified miss.
// Backend transport failures and context cancellation are returned as
// errors, never folded into a miss disposition.
func (r *Resolver) Resolve(ctx context.Context, f format.Format, id identifier.Identifier) (Resolution, error) {
	var res Resolution
	var err error
	if id.HasVersion() {
		res, err = r.resolveVersioned(ctx, f, id)
	} else {
		res, err = r.resolveCurrent(ctx, f, id)
	}
	if err != nil {
		return Resolution{}, err
	}
	metrics.RecordResolution(res.Disposition.String())
	return res, nil
}

func (r *Resolver) resolveCurrent(ctx context.Context, f format.Format, id identifier.Identifier) (Resolution, error) {
	current, exists, err := r.currentVersion(ctx, f, id)
	if err != nil {
		return Resolution{}, err
	}
	if !exists {
		return Resolution{Disposition: ArticleNotFound}, nil
	}

	// Rendered artifacts cover the majority of papers; check that
	// layout first.
	if obj, ok, err := r.store.Stat(ctx, paths.RenderedCache(f, id, current)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Disposition: Found, Object: obj, Version: current}, nil
	}

	if obj, ok, err := r.store.Stat(ctx, paths.Current(f, id)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Disposition: Found, Object: obj, Version: current}, nil
	}

	return r.classifyMiss(ctx, id, current, current)
}

func (r *Resolver) resolveVersioned(ctx context.Context, f format.Format, id identifier.Identifier) (Resolution, error) {
	v := id.Version

	// The rendered cache is version-complete, so it answers for any
	// version, current or not.
	if obj, ok, err := r.store.Stat(ctx, paths.RenderedCache(f, id, v)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Disposition: Found, Object: obj, Version: v}, nil
	}

	if obj, ok, err := r.store.Stat(ctx, paths.Versioned(f, id, v)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Disposition: Found, Object: obj, Version: v}, nil
	}

	current, exists, err := r.currentVersion(ctx, f, id)
	if err != nil {
		return Resolution{}, err
	}
	if !exists {
		return Resolution{Disposition: ArticleNotFound}, nil
	}
	if v > current {
		return Resolution{Disposition: VersionNotFound}, nil
	}

	// The current snapshot carries no version in its filename. Any
	// superseded version would have been answered from the archive
	// above, so a hit here can only be the current version.
	if obj, ok, err := r.store.Stat(ctx, paths.Current(f, id)); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Disposition: Found, Object: obj, Version: v}, nil
	}

	return r.classifyMiss(ctx, id, v, current)
}

// classifyMiss distinguishes a withdrawn version from an artifact that
// should exist but does not.
func (r *Resolver) classifyMiss(ctx context.Context, id identifier.Identifier, version, current int) (Resolution, error) {
	withdrawn, err := r.detector.IsWithdrawn(ctx, id, version, current)
	if err != nil {
		return Resolution{}, err
	}
	if withdrawn {
		return Resolution{Disposition: Withdrawn}, nil
	}
	logging.Warn("artifact unexpectedly missing",
		zap.String("paper", id.IDv()),
		zap.Int("version", version),
		zap.Int("current", current))
	return Resolution{Disposition: Unavailable}, nil
}

// currentVersion infers the live version number from the
// versioned-archive directory: the archive holds only superseded
// versions, so the live one is the highest archived number plus one. A
// paper with no archived versions is probed at the current snapshot;
// existing there means version 1, existing nowhere means no such paper.
func (r *Resolver) currentVersion(ctx context.Context, f format.Format, id identifier.Identifier) (int, bool, error) {
	highest, any, err := highestArchivedVersion(ctx, r.store, id)
	if err != nil {
		return 0, false, err
	}
	if any {
		return highest + 1, true, nil
	}

	_, ok, err := r.store.Stat(ctx, paths.Current(f, id))
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 1, true, nil
	}
	return 0, false, nil
}

var versionSuffixRe = regexp.MustCompile(`v([0-9]+)\.[^/]*$`)

// versionFromKey extracts the numeric vN suffix from a storage key,
// returning 0 when none parses.
func versionFromKey(name string) int {
	m := versionSuffixRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

// highestArchivedVersion lists the versioned-archive entries for a paper
// and returns the highest version number found. Selection is numeric,
// not lexical: v10 sorts above v9.
func highestArchivedVersion(ctx context.Context, store objstore.Store, id identifier.Identifier) (int, bool, error) {
	entries, err := store.List(ctx, paths.VersionedPrefix(id))
	if err != nil {
		return 0, false, err
	}
	if len(entries) == 0 {
		return 0, false, nil
	}
	highest := 0
	for _, entry := range entries {
		if v := versionFromKey(entry.Name); v > highest {
			highest = v
		}
	}
	return highest, true, nil
}
