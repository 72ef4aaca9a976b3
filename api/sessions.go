/*
sessions.go - HTTP API handlers for the time clock

ENDPOINTS:
  GET    /api/employees/{id}/session                  Open session (reconciles)
  POST   /api/employees/{id}/session/check            Live status on focus regain
  POST   /api/employees/{id}/sessions                 Start a session
  GET    /api/employees/{id}/sessions?date=           Sessions on a work date
  GET    /api/employees/{id}/sessions?from=&to=       Sessions in a range
  GET    /api/employees/{id}/attendance/summary       Monthly summary and stipend
  POST   /api/sessions/{id}/pause                     Pause
  POST   /api/sessions/{id}/resume                    Resume
  POST   /api/sessions/{id}/finish                    Finish with a note
  PUT    /api/sessions/{id}                           Correct (HR)
  DELETE /api/sessions/{id}?confirm=true              Delete (HR)
  GET    /api/attendance/export?from=&to=             Spreadsheet export (HR)
  POST   /api/attendance/close-stale                  Run the auto-close sweep (HR)

SEE ALSO:
  - attendance/service.go: State machine and reconciliation
  - scheduler.go: Periodic auto-close sweep
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
)

func sessionParam(r *http.Request) attendance.SessionID {
	return attendance.SessionID(chi.URLParam(r, "id"))
}

// GetOpenSession returns the open session or null. A session left open
// on an earlier date is closed as a side effect.
func (h *Handler) GetOpenSession(w http.ResponseWriter, r *http.Request) {
	open, err := h.Attendance.ListOpenSession(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if open == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*open))
}

func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	check, err := h.Attendance.CheckSession(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dto := SessionCheckDTO{
		Status:         string(check.Status),
		ElapsedSeconds: int64(check.Elapsed / time.Second),
		At:             formatTime(check.At),
	}
	if check.Session != nil {
		s := toSessionDTO(*check.Session)
		dto.Session = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Attendance.Start(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(*sess))
}

// ListSessions serves ?date= for one work date or ?from=&to= for a range.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	var (
		sessions []attendance.Session
		err      error
	)
	if r.URL.Query().Has("date") {
		var date generic.Date
		if date, err = queryDate(r, "date"); err == nil {
			sessions, err = h.Attendance.ListForDate(r.Context(), actor(r), employeeParam(r), date)
		}
	} else {
		var from, to generic.Date
		if from, err = queryDate(r, "from"); err == nil {
			if to, err = queryDate(r, "to"); err == nil {
				sessions, err = h.Attendance.ListRange(r.Context(), actor(r), employeeParam(r), from, to)
			}
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		h.fail(w, r, &generic.ValidationError{Field: "year", Message: "expected an integer"})
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		h.fail(w, r, &generic.ValidationError{Field: "month", Message: "expected 1-12"})
		return
	}
	summary, err := h.Attendance.MonthlySummary(r.Context(), actor(r), employeeParam(r), year, time.Month(month))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlySummaryDTO(*summary))
}

func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Attendance.Pause(r.Context(), actor(r), sessionParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Attendance.Resume(r.Context(), actor(r), sessionParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

func (h *Handler) FinishSession(w http.ResponseWriter, r *http.Request) {
	var req FinishSessionRequest
	if err := decode(r, &req, true); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	sess, err := h.Attendance.Finish(r.Context(), actor(r), sessionParam(r), req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

func (h *Handler) CorrectSession(w http.ResponseWriter, r *http.Request) {
	var req CorrectSessionRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	sess, err := h.Attendance.Correct(r.Context(), actor(r), sessionParam(r), req.toCorrection())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.Attendance.Delete(r.Context(), actor(r), sessionParam(r), confirm); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAttendance streams the xlsx workbook as an attachment.
func (h *Handler) ExportAttendance(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	buf, filename, err := h.Attendance.ExportXLSX(r.Context(), actor(r), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *Handler) CloseStaleSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.Attendance.CloseStaleSessions(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"closed": n})
}
