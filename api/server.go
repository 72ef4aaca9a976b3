/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind a proxy
  3. RequestLogger: One zap line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. Timeout:       Cancels the request context after RequestTimeout
  6. CORS:          Cross-origin requests for the frontend
  7. Authenticate:  Bearer token to actor, on /api only

ROUTE GROUPS:
  /health               Liveness probe (public)
  /api/employees/*      Employees, balances, leave and sessions per employee
  /api/leave-requests/* Leave lifecycle
  /api/sessions/*       Time clock transitions and HR corrections
  /api/attendance/*     Export and auto-close sweep
  /api/holidays/*       Holiday calendar
  /api/business-days    Business day counting

SEE ALSO:
  - handlers.go, sessions.go: Handler implementations
  - middleware.go: Authentication and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/workday/auth"
)

// RequestTimeout bounds every API request.
const RequestTimeout = 30 * time.Second

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, tokens *auth.Manager, allowOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(tokens))

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)

				r.Get("/balance", h.GetBalance)
				r.Get("/balance/transactions", h.GetTransactions)
				r.Post("/balance/adjustments", h.CreateAdjustment)

				r.Get("/leave-requests", h.ListEmployeeLeaveRequests)
				r.Post("/leave-requests", h.CreateLeaveRequest)
				r.Get("/leave-requests.ics", h.LeaveCalendar)

				r.Get("/session", h.GetOpenSession)
				r.Post("/session/check", h.CheckSession)
				r.Get("/sessions", h.ListSessions)
				r.Post("/sessions", h.StartSession)
				r.Get("/attendance/summary", h.MonthlySummary)
			})
		})

		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetLeaveRequest)
				r.Put("/", h.EditLeaveRequest)
				r.Delete("/", h.WithdrawLeaveRequest)
				r.Post("/approve", h.ApproveLeaveRequest)
				r.Post("/reject", h.RejectLeaveRequest)
				r.Post("/request-cancellation", h.RequestCancellation)
				r.Post("/finalize-cancellation", h.FinalizeCancellation)
				r.Post("/cancel", h.CancelLeaveRequest)
				r.Put("/attachment", h.AttachDocument)
			})
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Put("/", h.CorrectSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/pause", h.PauseSession)
			r.Post("/resume", h.ResumeSession)
			r.Post("/finish", h.FinishSession)
		})

		r.Get("/attendance/export", h.ExportAttendance)
		r.Post("/attendance/close-stale", h.CloseStaleSessions)

		r.Get("/holidays/{year}", h.ListHolidays)
		r.Get("/business-days", h.CountBusinessDays)
	})

	return r
}
