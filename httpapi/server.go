// Package httpapi exposes Guardian's snapshot and control surface over
// HTTP: a chi router serving the latest posture/verdict snapshot, trust
// decisions, and the reset protocol. Grounded on the chi router shape of
// Tutu-Engine-tutuengine/internal/api/server.go (routed groups, JSON
// helpers, Recoverer/RequestID middleware), retargeted to Guardian's
// model.Snapshot and control operations.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hostguardian/guardian/model"
)

// Core is the subset of *guardian.Guardian the HTTP surface needs. Declared
// here (rather than importing the guardian package's concrete type) so the
// two packages don't form an import cycle if guardian ever needs to mount
// httpapi directly.
type Core interface {
	Snapshot() (model.Snapshot, bool)
	MarkTrusted(name string)
	MarkDangerous(name string)
	MarkIgnored(name string)
	AcknowledgePrompt(commandID, decision string) error
	Reset() error
}

// Server is Guardian's HTTP control surface.
type Server struct {
	core           Core
	logger         *zap.Logger
	metricsHandler http.Handler
}

// NewServer creates a Server. metricsHandler may be nil to omit /metrics.
func NewServer(core Core, logger *zap.Logger, metricsHandler http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{core: core, logger: logger, metricsHandler: metricsHandler}
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Route("/control", func(r chi.Router) {
			r.Post("/trust/{name}", s.handleMark(s.core.MarkTrusted))
			r.Post("/dangerous/{name}", s.handleMark(s.core.MarkDangerous))
			r.Post("/ignore/{name}", s.handleMark(s.core.MarkIgnored))
			r.Post("/acknowledge/{command_id}", s.handleAcknowledge)
			r.Post("/reset", s.handleReset)
		})
	})

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.core.Snapshot()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot published yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMark(fn func(name string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing name"})
			return
		}
		fn(name)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "name": name})
	}
}

// handleAcknowledge resolves an outstanding confirmation request. The
// command's decision ("approve" or "deny") is passed as a query parameter
// since, unlike the trust/dangerous/ignore routes, this one carries a
// second piece of caller input beyond the path segment.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "command_id")
	decision := r.URL.Query().Get("decision")
	if commandID == "" || decision == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing command_id or decision"})
		return
	}
	if err := s.core.AcknowledgePrompt(commandID, decision); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "command_id": commandID, "decision": decision})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Reset(); err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
