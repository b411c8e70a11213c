package adapthttp

import (
	"net/http"

	"focusblock/internal/app"
)

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
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
	result, err := s.activity.List(r.Context(), identityFrom(r.Context()), app.ListActivityInput{
		Page:       page,
		Limit:      limit,
		User:       q.Get("userId"),
		ResourceID: q.Get("resourceId"),
		Action:     q.Get("action"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: result.Data, Pagination: &result.Pagination})
}
