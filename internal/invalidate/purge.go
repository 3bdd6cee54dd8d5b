package invalidate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/metrics"
	"github.com/preprintworks/dissemination/internal/retry"
)

// rateLimitMarker is the body substring the CDN returns when a purge is
// rejected for rate limiting. Those rejections are transient.
const rateLimitMarker = "Rate limit exceeded"

// PurgerConfig configures CDN purge behavior.
type PurgerConfig struct {
	// Endpoint is the CDN base URL; purge paths are appended to it.
	Endpoint string

	// SoftPurge marks purged content stale instead of evicting it, so
	// the CDN can keep serving while it revalidates.
	SoftPurge bool

	// EventTimeout bounds the handling of one storage-change event
	// across all of its purge paths.
	EventTimeout time.Duration

	Retry retry.Config
}

// DefaultPurgerConfig returns the production purge policy.
func DefaultPurgerConfig(endpoint string) PurgerConfig {
	return PurgerConfig{
		Endpoint:     endpoint,
		SoftPurge:    true,
		EventTimeout: 30 * time.Second,
		Retry:        retry.DefaultConfig(),
	}
}

// Purger invalidates CDN cache entries for changed artifacts.
type Purger struct {
	cfg    PurgerConfig
	client *http.Client
}

// NewPurger creates a Purger. A nil client uses a default with a
// per-call timeout.
func NewPurger(cfg PurgerConfig, client *http.Client) *Purger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Purger{cfg: cfg, client: client}
}

// HandleEvent processes one storage-change event. Keys that do not name
// a paper artifact are ignored. A failed purge of one path is logged
// and does not stop the remaining paths; the object store is the source
// of truth and an over-retained CDN entry expires on its own.
func (p *Purger) HandleEvent(ctx context.Context, key string) {
	id, paths, ok := MapKey(key)
	if !ok {
		logging.Debug("storage event ignored", zap.String("key", key))
		return
	}

	metrics.RecordPurgeEvent()
	logging.Info("storage event mapped",
		zap.String("key", key),
		zap.String("paper", id.IDv()),
		zap.Strings("paths", paths))

	ctx, cancel := context.WithTimeout(ctx, p.cfg.EventTimeout)
	defer cancel()

	for _, path := range paths {
		if err := p.Purge(ctx, path); err != nil {
			metrics.RecordPurge(false)
			logging.Error("cdn purge failed",
				zap.String("path", path),
				zap.String("paper", id.IDv()),
				zap.Error(err))
			continue
		}
		metrics.RecordPurge(true)
	}
}

// Purge issues one PURGE call for a CDN path, retrying transport
// failures and rate-limit rejections with backoff. Other CDN rejections
// fail immediately; retrying a 403 only burns the rate budget.
func (p *Purger) Purge(ctx context.Context, path string) error {
	return retry.Do(ctx, p.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "PURGE", p.cfg.Endpoint+path, nil)
		if err != nil {
			return err
		}
		if p.cfg.SoftPurge {
			req.Header.Set("Fastly-Soft-Purge", "1")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return retry.Retryable(fmt.Errorf("purge %s: %w", path, err))
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(body), rateLimitMarker) {
			return retry.Retryable(fmt.Errorf("purge %s: rate limited (status %d)", path, resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			return retry.Retryable(fmt.Errorf("purge %s: cdn error %d", path, resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("purge %s: rejected with status %d", path, resp.StatusCode)
		}
		return nil
	})
}
