package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/identifier"
	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/objstore"
	"github.com/preprintworks/dissemination/internal/paths"
)

// sourceExtensions are the file endings a submitted source can carry. A
// version with none of these next to it was withdrawn.
var sourceExtensions = []string{
	".tar.gz", ".pdf", ".ps.gz", ".gz", ".dvi.gz", ".html.gz",
}

// listSanityLimit bounds how many sibling-source entries one paper
// version can plausibly have. Listings beyond it indicate a storage
// anomaly and are treated as withdrawn rather than risking runaway
// downstream work.
const listSanityLimit = 16

// WithdrawalDetector decides whether a specific version of a paper was
// withdrawn, i.e. no submitted source for it exists in storage.
type WithdrawalDetector struct {
	store objstore.Store
}

// NewWithdrawalDetector creates a detector over the given store.
func NewWithdrawalDetector(store objstore.Store) *WithdrawalDetector {
	return &WithdrawalDetector{store: store}
}

// IsWithdrawn reports whether the given version has no submitted source.
// knownCurrent is the already-derived current version number, or 0 to
// re-derive it here; the current version's sources live under the
// current snapshot while superseded versions keep theirs in the
// versioned archive.
func (d *WithdrawalDetector) IsWithdrawn(ctx context.Context, id identifier.Identifier, version, knownCurrent int) (bool, error) {
	current := knownCurrent
	if current == 0 {
		highest, any, err := highestArchivedVersion(ctx, d.store, id)
		if err != nil {
			return false, err
		}
		if any {
			current = highest + 1
		} else {
			current = 1
		}
	}

	var prefix string
	if version == current {
		prefix = paths.CurrentSourcePrefix(id)
	} else {
		prefix = paths.VersionedSourcePrefix(id, version)
	}

	entries, err := d.store.List(ctx, prefix)
	if err != nil {
		return false, err
	}

	if len(entries) > listSanityLimit {
		logging.Warn("implausibly large source listing, treating version as withdrawn",
			zap.String("paper", id.ID),
			zap.Int("version", version),
			zap.String("prefix", prefix),
			zap.Int("entries", len(entries)))
		return true, nil
	}

	for _, entry := range entries {
		for _, ext := range sourceExtensions {
			if strings.HasSuffix(entry.Name, ext) {
				return false, nil
			}
		}
	}
	return true, nil
}
