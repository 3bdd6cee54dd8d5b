// Package stream turns resolved artifacts into HTTP responses with
// byte-range, conditional-request and cache-header semantics.
package stream

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/metrics"
	"github.com/preprintworks/dissemination/internal/resolve"
)

// Config holds streaming policy knobs.
type Config struct {
	// VersionedMaxAge is the Cache-Control max-age for versioned
	// requests; a version's bytes never change once it exists.
	VersionedMaxAge time.Duration

	// ChunkThreshold is the object size above which Content-Length is
	// omitted and the body sent chunked. Some runtime/platform
	// combinations cap responses that declare a length.
	ChunkThreshold int64

	// PublishLocation is the repository's operating timezone used by
	// the next-publish Expires heuristic for unversioned requests.
	PublishLocation *time.Location
}

// DefaultConfig returns the production policy: a 7-day horizon for
// immutable versioned artifacts and a 256 MiB chunking threshold.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		VersionedMaxAge: 7 * 24 * time.Hour,
		ChunkThreshold:  256 << 20,
		PublishLocation: loc,
	}
}

// Streamer writes artifact responses. It never mutates storage and
// keeps no per-request state.
type Streamer struct {
	cfg Config
	now func() time.Time
}

// New creates a Streamer with the given policy.
func New(cfg Config) *Streamer {
	if cfg.PublishLocation == nil {
		cfg.PublishLocation = time.UTC
	}
	return &Streamer{cfg: cfg, now: time.Now}
}

// Respond writes the HTTP response for a resolution. Misses map to 404
// (not-found variants, withdrawn) or 500 (unavailable); hits are served
// with range, conditional and caching semantics.
func (s *Streamer) Respond(w http.ResponseWriter, r *http.Request, f format.Format, id identifier.Identifier, res resolve.Resolution) {
	switch res.Disposition {
	case resolve.ArticleNotFound:
		http.Error(w, "no such article", http.StatusNotFound)
		return
	case resolve.VersionNotFound:
		http.Error(w, "no such version", http.StatusNotFound)
		return
	case resolve.Withdrawn:
		// Withdrawal is permanent; let caches hold the notice.
		w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(s.cfg.VersionedMaxAge.Seconds())))
		http.Error(w, "version withdrawn", http.StatusNotFound)
		return
	case resolve.Unavailable:
		w.Header().Set("Cache-Control", "no-cache")
		http.Error(w, "article temporarily unavailable", http.StatusInternalServerError)
		return
	}

	obj := res.Object
	etag := `"` + obj.ETag + `"`

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("ETag", etag)
	h.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	h.Set("Content-Type", f.MIMEType())

	if obj.ContentEncoding != "" {
		h.Set("Content-Encoding", obj.ContentEncoding)
	} else if enc := f.ContentEncoding(); enc != "" {
		h.Set("Content-Encoding", enc)
	}
	if obj.ContentDisposition != "" {
		h.Set("Content-Disposition", obj.ContentDisposition)
	}
	if obj.ContentLanguage != "" {
		h.Set("Content-Language", obj.ContentLanguage)
	}

	switch {
	case obj.CacheControl != "":
		h.Set("Cache-Control", obj.CacheControl)
	case id.HasVersion():
		h.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(s.cfg.VersionedMaxAge.Seconds())))
	default:
		// The current artifact can only change at a publish event.
		h.Set("Expires", NextPublish(s.now(), s.cfg.PublishLocation).UTC().Format(http.TimeFormat))
	}

	// Conditional short-circuits run before any byte stream is opened.
	if notModified(r, etag, obj.LastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	offset, length, hasRange := parseRangeHeader(r.Header.Get("Range"), obj.Size)

	if hasRange {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, obj.Size))
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	} else if obj.Size <= s.cfg.ChunkThreshold {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}

	// HEAD responses come from metadata alone.
	if r.Method == http.MethodHead {
		if hasRange {
			w.WriteHeader(http.StatusPartialContent)
		}
		return
	}

	reader, err := obj.Open(r.Context(), offset, length)
	if err != nil {
		metrics.RecordArtifactDownload(0, false)
		logging.Error("artifact open failed",
			zap.String("object", obj.Name), zap.Error(err))
		http.Error(w, "artifact read failed", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	if hasRange {
		w.WriteHeader(http.StatusPartialContent)
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		logging.Warn("artifact transfer error",
			zap.String("object", obj.Name), zap.Error(err))
	}
	metrics.RecordArtifactDownload(n, err == nil)
}

// notModified evaluates If-None-Match, falling back to
// If-Modified-Since only when no entity tag was offered (RFC 7232 §6).
func notModified(r *http.Request, etag string, lastModified time.Time) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		for _, candidate := range strings.Split(inm, ",") {
			candidate = strings.TrimSpace(candidate)
			candidate = strings.TrimPrefix(candidate, "W/")
			if candidate == "*" || candidate == etag {
				return true
			}
		}
		return false
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		since, err := http.ParseTime(ims)
		if err == nil && !lastModified.Truncate(time.Second).After(since) {
			return true
		}
	}
	return false
}

var rangeRegex = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// parseRangeHeader parses a single-range Range header. Absent, malformed
// or multi-range headers yield the full body. The returned window is
// clamped to the object size.
func parseRangeHeader(rangeHeader string, totalSize int64) (offset, length int64, hasRange bool) {
	if rangeHeader == "" || totalSize == 0 {
		return 0, totalSize, false
	}

	matches := rangeRegex.FindStringSubmatch(rangeHeader)
	if matches == nil {
		return 0, totalSize, false
	}

	startStr, endStr := matches[1], matches[2]
	if startStr == "" && endStr == "" {
		return 0, totalSize, false
	}

	// Suffix form: bytes=-N is the final N bytes.
	if startStr == "" {
		suffix, _ := strconv.ParseInt(endStr, 10, 64)
		offset = totalSize - suffix
		if offset < 0 {
			offset = 0
		}
		return offset, totalSize - offset, true
	}

	offset, _ = strconv.ParseInt(startStr, 10, 64)
	if offset >= totalSize {
		return 0, totalSize, false
	}

	if endStr != "" {
		end, _ := strconv.ParseInt(endStr, 10, 64)
		if end < offset {
			return 0, totalSize, false
		}
		length = end - offset + 1
	} else {
		length = totalSize - offset
	}

	if offset+length > totalSize {
		length = totalSize - offset
	}
	return offset, length, true
}
