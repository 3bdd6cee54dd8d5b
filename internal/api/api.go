// Package api wires the HTTP surface: artifact routes, health and
// storage-change notifications.
package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/preprintworks/dissemination/internal/format"
	"github.com/preprintworks/dissemination/internal/identifier"
	"github.com/preprintworks/dissemination/internal/invalidate"
	"github.com/preprintworks/dissemination/internal/logging"
	"github.com/preprintworks/dissemination/internal/metrics"
	"github.com/preprintworks/dissemination/internal/objstore"
	"github.com/preprintworks/dissemination/internal/resolve"
	"github.com/preprintworks/dissemination/internal/stream"
)

// Server handles artifact dissemination requests.
type Server struct {
	store    objstore.Store
	resolver *resolve.Resolver
	streamer *stream.Streamer
	purger   *invalidate.Purger // nil when CDN invalidation is disabled
}

// New creates a Server. purger may be nil.
func New(store objstore.Store, streamer *stream.Streamer, purger *invalidate.Purger) *Server {
	return &Server{
		store:    store,
		resolver: resolve.NewResolver(store),
		streamer: streamer,
		purger:   purger,
	}
}

// Handler returns the routed handler with logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, f := range []format.Format{format.PDF, format.PS, format.HTML, format.Source} {
		pattern := "/" + f.String() + "/{id...}"
		mux.HandleFunc("GET "+pattern, s.artifactHandler(f))
		mux.HandleFunc("HEAD "+pattern, s.artifactHandler(f))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /notify", s.handleNotify)

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) artifactHandler(f format.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("id")
		id, err := identifier.Parse(raw)
		if err != nil {
			http.Error(w, "invalid article identifier", http.StatusBadRequest)
			return
		}

		res, err := s.resolver.Resolve(r.Context(), f, id)
		if err != nil {
			if r.Context().Err() != nil {
				// Client went away; nothing useful to write.
				return
			}
			logging.WithContext(r.Context()).Error("resolution failed",
				zap.String("id", id.IDv()),
				zap.String("format", f.String()),
				zap.Error(err))
			http.Error(w, "storage backend error", http.StatusBadGateway)
			return
		}

		s.streamer.Respond(w, r, f, id, res)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		logging.WithContext(r.Context()).Error("health check failed",
			zap.String("backend", s.store.Type()),
			zap.Error(err))
		http.Error(w, "storage backend unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

// notifyRequest is the storage-change event payload.
type notifyRequest struct {
	Keys []string `json:"keys"`
}

// handleNotify accepts storage-change events and fans them out to CDN
// purges. Purge failures are logged, never surfaced to the notifier;
// the response acknowledges receipt only.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid notification payload", http.StatusBadRequest)
		return
	}
	if len(req.Keys) == 0 {
		http.Error(w, "no keys in notification", http.StatusBadRequest)
		return
	}

	if s.purger != nil {
		for _, key := range req.Keys {
			s.purger.HandleEvent(r.Context(), key)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"received": len(req.Keys)})
}
