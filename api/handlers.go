/*
handlers.go - HTTP API handlers for leave and employees

PURPOSE:
  Exposes the leave lifecycle, the balance ledger, employee provisioning
  and the holiday calendar over REST. Handlers parse HTTP input, call one
  service method with the authenticated actor, and serialize the result.
  All authorization decisions are made by the services.

ENDPOINTS:
  Employees:
    GET    /api/employees                                List employees (HR)
    POST   /api/employees                                Provision employee (HR)
    GET    /api/employees/{id}                           Get employee
    GET    /api/employees/{id}/balance                   Vacation balance
    GET    /api/employees/{id}/balance/transactions      Ledger history
    POST   /api/employees/{id}/balance/adjustments       Manual adjustment (HR)

  Leave requests:
    GET    /api/employees/{id}/leave-requests            Employee's requests
    POST   /api/employees/{id}/leave-requests            Create request
    GET    /api/employees/{id}/leave-requests.ics        Approved leave feed
    GET    /api/leave-requests?state=pending             Review queue
    GET    /api/leave-requests/{id}                      Get request
    PUT    /api/leave-requests/{id}                      Edit pending request
    DELETE /api/leave-requests/{id}                      Withdraw pending request
    POST   /api/leave-requests/{id}/approve              Approve (HR)
    POST   /api/leave-requests/{id}/reject               Reject (HR)
    POST   /api/leave-requests/{id}/request-cancellation Ask to cancel approved leave
    POST   /api/leave-requests/{id}/finalize-cancellation Decide on cancellation (HR)
    POST   /api/leave-requests/{id}/cancel               Cancel directly
    PUT    /api/leave-requests/{id}/attachment           Attach document

  Calendar:
    GET    /api/holidays/{year}                          Holidays as JSON
    GET    /api/holidays/{year}.ics                      Holidays as iCalendar
    GET    /api/business-days?start=&end=                Count business days

ERROR HANDLING:
  Service errors are mapped to status codes in errors.go.

SEE ALSO:
  - sessions.go: Attendance handlers
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/calendar"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Leave      *timeoff.Service
	Attendance *attendance.Service
	Calendar   *calendar.Calendar
	Clock      generic.Clock
	Logger     *zap.Logger
}

func NewHandler(leave *timeoff.Service, att *attendance.Service, cal *calendar.Calendar, clock generic.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Leave: leave, Attendance: att, Calendar: cal, Clock: clock, Logger: logger}
}

// actor is the caller set by Authenticate. Without one the zero Actor is
// returned and the service rejects the call as unauthenticated.
func actor(r *http.Request) generic.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func employeeParam(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(chi.URLParam(r, "id"))
}

// fail writes err and logs the ones that are not the caller's fault.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	expected := generic.IsClientError(err) ||
		generic.IsNotFound(err) ||
		errors.Is(err, generic.ErrUnauthenticated) ||
		errors.Is(err, generic.ErrForbidden) ||
		errors.Is(err, generic.ErrConcurrentModification)
	if !expected {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeServiceError(w, err)
}

// decode reads a JSON body. An empty body leaves v untouched when
// optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func queryDate(r *http.Request, key string) (generic.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return generic.Date{}, &generic.ValidationError{Field: key, Message: "required"}
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return generic.Date{}, &generic.ValidationError{Field: key, Message: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Leave.Employees(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Leave.Employee(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee provisions an employee with an opening vacation balance.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	opening := generic.NewAmountFromInt(0, generic.UnitDays)
	if req.OpeningBalance != "" {
		var err error
		if opening, err = generic.ParseAmount(req.OpeningBalance, generic.UnitDays); err != nil {
			badRequest(w, "Invalid opening_balance", err)
			return
		}
	}

	emp, err := h.Leave.ProvisionEmployee(r.Context(), actor(r), timeoff.NewEmployee{
		ID:             generic.EmployeeID(req.ID),
		Name:           req.Name,
		Email:          req.Email,
		Role:           generic.Role(req.Role),
		HireDate:       req.HireDate,
		OpeningBalance: opening,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*emp))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := employeeParam(r)
	bal, err := h.Leave.Balance(r.Context(), actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID: string(id),
		Available:  bal.Value.String(),
		Unit:       string(generic.UnitDays),
	})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Leave.Transactions(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	delta, err := generic.ParseAmount(req.Delta, generic.UnitDays)
	if err != nil {
		badRequest(w, "Invalid delta", err)
		return
	}

	tx, err := h.Leave.AdjustBalance(r.Context(), actor(r), employeeParam(r), delta, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bal, err := h.Leave.Balance(r.Context(), actor(r), tx.EmployeeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx, bal))
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// parseStates reads ?state=a,b into a filter.
func parseStates(r *http.Request) ([]timeoff.State, error) {
	raw := r.URL.Query().Get("state")
	if raw == "" {
		return nil, nil
	}
	var states []timeoff.State
	for _, part := range strings.Split(raw, ",") {
		st := timeoff.State(strings.TrimSpace(part))
		if !st.Valid() {
			return nil, &generic.ValidationError{Field: "state", Message: "unknown state " + string(st)}
		}
		states = append(states, st)
	}
	return states, nil
}

func (h *Handler) listLeaveRequests(w http.ResponseWriter, r *http.Request, employeeID generic.EmployeeID) {
	states, err := parseStates(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	requests, err := h.Leave.List(r.Context(), actor(r), timeoff.Filter{EmployeeID: employeeID, States: states})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// ListLeaveRequests is the review queue. HR sees everyone, employees
// see their own requests.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	h.listLeaveRequests(w, r, generic.EmployeeID(r.URL.Query().Get("employee_id")))
}

func (h *Handler) ListEmployeeLeaveRequests(w http.ResponseWriter, r *http.Request) {
	h.listLeaveRequests(w, r, employeeParam(r))
}

func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	created, err := h.Leave.Create(r.Context(), actor(r), timeoff.CreateInput{
		EmployeeID:    employeeParam(r),
		Kind:          timeoff.Kind(req.Kind),
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsPartialDay:  req.IsPartialDay,
		PartialStart:  req.PartialStart,
		PartialEnd:    req.PartialEnd,
		Note:          req.Note,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Leave.Get(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

func (h *Handler) EditLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req EditLeaveRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	edited, err := h.Leave.EditPending(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id")), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*edited))
}

func (h *Handler) WithdrawLeaveRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Leave.Withdraw(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewStep func(ctx context.Context, actor generic.Actor, id timeoff.RequestID, note string) (*timeoff.Request, error)

// review runs a transition that takes an optional note.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, step reviewStep) {
	var req ReviewRequest
	if err := decode(r, &req, true); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	updated, err := step(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id")), req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Leave.Approve)
}

func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Leave.Reject)
}

func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Leave.RequestCancellation)
}

func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Leave.Cancel)
}

func (h *Handler) FinalizeCancellation(w http.ResponseWriter, r *http.Request) {
	var req FinalizeCancellationRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	updated, err := h.Leave.FinalizeCancellation(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id")), req.Accept, req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

func (h *Handler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	var req AttachmentRequest
	if err := decode(r, &req, false); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	updated, err := h.Leave.AttachDocument(r.Context(), actor(r), timeoff.RequestID(chi.URLParam(r, "id")), req.AttachmentRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

func (h *Handler) LeaveCalendar(w http.ResponseWriter, r *http.Request) {
	feed, err := h.Leave.CalendarFeed(r.Context(), actor(r), employeeParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCalendar(w, feed)
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays serves /holidays/{year} as JSON and /holidays/{year}.ics
// as an iCalendar feed.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	raw, asICS := strings.CutSuffix(chi.URLParam(r, "year"), ".ics")
	year, err := calendar.ParseYear(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if asICS {
		feed, err := h.Calendar.ICS(year, h.Clock.Now())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeCalendar(w, feed)
		return
	}

	holidays, err := h.Calendar.Holidays(year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(holidays))
}

func (h *Handler) CountBusinessDays(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.Calendar.CountBusinessDays(start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BusinessDaysDTO{Start: start.String(), End: end.String(), BusinessDays: n})
}

func writeCalendar(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}
