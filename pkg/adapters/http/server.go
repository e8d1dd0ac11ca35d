package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weftworks/weft/pkg/domain"
)

// Engine defines the surface the admin server needs from the engine.
type Engine interface {
	Post(ctx context.Context, ev *domain.Event) error
	Snapshot() []domain.ThredSnapshot
	NumThreds() int
	Gatherer() prometheus.Gatherer
}

// Server is the HTTP admin surface: health, thred inspection, metrics
// and local event injection. It is read-mostly; mutation happens
// through the event queue like everywhere else.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler creates the admin HTTP handler.
func NewHandler(engine Engine, logger *slog.Logger) http.Handler {
	s := &Server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.health)
	r.Get("/threds", s.threds)
	r.Post("/events", s.postEvent)
	if g := engine.Gatherer(); g != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"threds": s.engine.NumThreds(),
	})
}

func (s *Server) threds(w http.ResponseWriter, _ *http.Request) {
	snaps := s.engine.Snapshot()
	if snaps == nil {
		snaps = []domain.ThredSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// postEvent injects an event into the inbound queue. The response only
// confirms enqueueing; matching happens asynchronously.
func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		s.logger.Warn("rejected event body", "err", err)
		return
	}
	if ev.ID == "" || ev.Type == "" {
		http.Error(w, "event requires id and type", http.StatusBadRequest)
		return
	}

	if err := s.engine.Post(r.Context(), &ev); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		s.logger.Error("failed to enqueue event", "event", ev.ID, "err", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": ev.ID})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
