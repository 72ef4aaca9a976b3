package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/workday/generic"
)

// writeServiceError maps a service error to its HTTP status. Unknown
// errors become 500 without leaking their text.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		stateErr   *generic.InvalidStateError
		sessionErr *generic.ConcurrentSessionError
		emptyErr   *generic.EmptyRangeError
		rangeErr   *generic.InvalidRangeError
		validErr   *generic.ValidationError
	)
	switch {
	case errors.Is(err, generic.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
	case errors.Is(err, generic.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &sessionErr):
		writeError(w, http.StatusConflict, "concurrent_session", err.Error(), map[string]string{
			"open_session_id": sessionErr.OpenSessionID,
			"work_date":       dateOrEmpty(sessionErr.WorkDate),
		})
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, "invalid_state", err.Error(), map[string]string{
			"entity": stateErr.Entity,
			"id":     stateErr.ID,
			"state":  stateErr.State,
			"action": stateErr.Action,
		})
	case errors.As(err, &emptyErr):
		writeError(w, http.StatusUnprocessableEntity, "empty_range", err.Error(), map[string]string{
			"start": emptyErr.Start.String(),
			"end":   emptyErr.End.String(),
		})
	case errors.As(err, &rangeErr):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
	case errors.As(err, &validErr):
		writeError(w, http.StatusBadRequest, "validation", err.Error(), map[string]string{"field": validErr.Field})
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err.Error(), nil)
	case errors.Is(err, generic.ErrConcurrentModification):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "concurrent_modification", err.Error(), nil)
	case generic.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "storage", "storage temporarily unavailable", nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func dateOrEmpty(d generic.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// badRequest reports a malformed body or query parameter.
func badRequest(w http.ResponseWriter, message string, err error) {
	var details any
	if err != nil {
		details = err.Error()
	}
	writeError(w, http.StatusBadRequest, "invalid_request", message, details)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
