package adapthttp

import "net/http"

func (s *Server) handleRecentStats(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.stats.Recent(r.Context(), identityFrom(r.Context()), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items, "")
}

func (s *Server) handleRecordBlocked(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.stats.RecordBlocked(r.Context(), identityFrom(r.Context()), body.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st, "")
}
