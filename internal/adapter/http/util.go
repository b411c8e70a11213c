package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"focusblock/internal/app"
)

// envelope is the JSON body of every API response.
type envelope struct {
	Success    bool            `json:"success"`
	Data       any             `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *app.Pagination `json:"pagination,omitempty"`
	Error      *errorBody      `json:"error,omitempty"`
}

type errorBody struct {
	Message string           `json:"message"`
	Errors  []app.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeFailure(w http.ResponseWriter, status int, message string, fields []app.FieldError) {
	writeJSON(w, status, envelope{Error: &errorBody{Message: message, Errors: fields}})
}

// writeError maps an application error to its HTTP status. Unclassified
// errors are logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		writeFailure(w, statusForKind(appErr.Kind), appErr.Message, appErr.Fields)
		return
	}

	log.Printf("error: %s %s: %v", r.Method, r.URL.Path, err)
	msg := err.Error()
	if s.production {
		msg = "Internal Server Error"
	}
	writeFailure(w, http.StatusInternalServerError, msg, nil)
}

func statusForKind(k app.Kind) int {
	switch k {
	case app.KindValidation:
		return http.StatusBadRequest
	case app.KindUnauthorized:
		return http.StatusUnauthorized
	case app.KindForbidden:
		return http.StatusForbidden
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &app.Error{Kind: app.KindValidation, Message: fmt.Sprintf("invalid json: %v", err), Cause: err}
	}
	return nil
}

// intQuery returns nil when key is absent and a validation error when it is
// present but not an integer. Range checks belong to the services.
func intQuery(r *http.Request, key string) (*int, error) {
	if !r.URL.Query().Has(key) {
		return nil, nil
	}
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		msg := key + " must be an integer"
		return nil, &app.Error{
			Kind:    app.KindValidation,
			Message: msg,
			Fields:  []app.FieldError{{Field: key, Message: msg}},
			Cause:   err,
		}
	}
	return &n, nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
