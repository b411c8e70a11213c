package adapthttp

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"focusblock/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

// identityFrom returns the authenticated caller stored by authMiddleware.
func identityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityContextKey).(domain.Identity)
	return id
}

// authMiddleware validates bearer tokens and, when trusted, forward auth
// headers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check for forward auth header first
		if s.forwardAuth {
			if remoteUser := r.Header.Get("Remote-User"); remoteUser != "" {
				id, err := s.auth.ValidateForwardAuth(remoteUser, r.Header.Get("Remote-Groups"))
				if err == nil {
					ctx := context.WithValue(r.Context(), identityContextKey, id)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
		}

		id, err := s.auth.ValidateToken(r.Context(), bearerToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware writes one access log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// corsMiddleware answers preflight requests and sets CORS headers for
// accepted origins. Outside production every origin is accepted.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (!s.production || s.allowedOrigins[origin]) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
