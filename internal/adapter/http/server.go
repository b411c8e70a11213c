package adapthttp

import (
	"context"
	"log"
	"net/http"
	"time"

	"focusblock/internal/app"

	"github.com/gorilla/mux"
)

// RecorderStatser reports activity recorder counters for the health check.
type RecorderStatser interface {
	Stats() app.RecorderStats
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	sessions *app.SessionService
	activity *app.ActivityService
	stats    *app.StatsService
	auth     *app.AuthService
	recorder RecorderStatser
	store    Pinger

	production     bool
	allowedOrigins map[string]bool
	forwardAuth    bool
}

// Option configures a Server.
type Option func(*Server)

// WithProduction hides internal error details and restricts CORS to the
// allowed origins.
func WithProduction(on bool) Option {
	return func(s *Server) {
		s.production = on
	}
}

// WithAllowedOrigins sets the origins accepted in production.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o != "" {
				s.allowedOrigins[o] = true
			}
		}
	}
}

// WithForwardAuth trusts Remote-User / Remote-Groups headers from an
// authenticating reverse proxy.
func WithForwardAuth(on bool) Option {
	return func(s *Server) {
		s.forwardAuth = on
	}
}

// WithRecorderStats exposes recorder counters on /api/health.
func WithRecorderStats(r RecorderStatser) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithStoreCheck makes /api/health ping the store and report 503 when it
// is unreachable.
func WithStoreCheck(p Pinger) Option {
	return func(s *Server) {
		s.store = p
	}
}

// New creates a Server wired to the given application services.
func New(sessions *app.SessionService, activity *app.ActivityService, stats *app.StatsService, auth *app.AuthService, opts ...Option) *Server {
	s := &Server{
		sessions:       sessions,
		activity:       activity,
		stats:          stats,
		auth:           auth,
		allowedOrigins: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	authed.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	authed.HandleFunc("/sessions/{id}/start", s.handleStartSession).Methods(http.MethodPut)
	authed.HandleFunc("/sessions/{id}/complete", s.handleCompleteSession).Methods(http.MethodPut)
	authed.HandleFunc("/sessions/{id}/cancel", s.handleCancelSession).Methods(http.MethodPut)
	authed.HandleFunc("/sessions/{id}/schedule", s.handleScheduleSession).Methods(http.MethodPut)

	authed.HandleFunc("/stats", s.handleRecentStats).Methods(http.MethodGet)
	authed.HandleFunc("/stats/blocked", s.handleRecordBlocked).Methods(http.MethodPost)

	authed.HandleFunc("/activity", s.handleListActivity).Methods(http.MethodGet)

	return withNoCache(s.loggingMiddleware(s.corsMiddleware(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := envelope{Success: true, Message: "Server is running"}
	if s.recorder != nil {
		resp.Data = map[string]any{"activity": s.recorder.Stats()}
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.Printf("health: store ping: %v", err)
			resp.Success = false
			resp.Message = ""
			resp.Error = &errorBody{Message: "Database unavailable"}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
