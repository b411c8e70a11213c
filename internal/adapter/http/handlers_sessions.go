package adapthttp

import (
	"context"
	"net/http"

	"focusblock/internal/app"
	"focusblock/internal/domain"

	"github.com/gorilla/mux"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body app.CreateSessionInput
	if err := parseJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Create(r.Context(), identityFrom(r.Context()), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sess, "")
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	result, err := s.sessions.List(r.Context(), identityFrom(r.Context()), app.ListSessionsInput{
		Page:   page,
		Limit:  limit,
		Owner:  q.Get("userId"),
		Status: q.Get("status"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result.Data, Pagination: &result.Pagination})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess, "")
}

type sessionAction func(ctx context.Context, actor domain.Identity, id string) (*domain.FocusSession, error)

// handleTransition serves the start/complete/cancel endpoints, which share
// one shape.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, action sessionAction, message string) {
	sess, err := action(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess, message)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.sessions.Start, "Session started successfully")
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.sessions.Complete, "Session completed successfully")
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.sessions.Cancel, "Session cancelled successfully")
}

func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledStart string `json:"scheduledStart"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Schedule(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"], body.ScheduledStart)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess, "Session scheduled successfully")
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), identityFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Session deleted successfully"})
}
