/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employees:   EmployeeDTO, CreateEmployeeRequest
  Balance:     BalanceDTO, TransactionDTO, AdjustBalanceRequest
  Leave:       LeaveRequestDTO, CreateLeaveRequest, EditLeaveRequest,
               ReviewRequest, FinalizeCancellationRequest, AttachmentRequest
  Attendance:  SessionDTO, SessionCheckDTO, FinishSessionRequest,
               CorrectSessionRequest, MonthlySummaryDTO
  Calendar:    HolidayDTO, BusinessDaysDTO

VALIDATION:
  Validation is done by the services, not in DTOs. Dates are YYYY-MM-DD,
  instants are RFC 3339, amounts are decimal strings.

SEE ALSO:
  - handlers.go, sessions.go: Use these types
*/
package api

import (
	"time"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/calendar"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	HireDate  string `json:"hire_date"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Role           string       `json:"role"`
	HireDate       generic.Date `json:"hire_date"`
	OpeningBalance string       `json:"opening_balance"`
}

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		Role:      string(e.Role),
		HireDate:  e.HireDate.String(),
		CreatedAt: formatTime(e.CreatedAt),
	}
}

// =============================================================================
// BALANCE
// =============================================================================

type BalanceDTO struct {
	EmployeeID string `json:"employee_id"`
	Available  string `json:"available"`
	Unit       string `json:"unit"`
}

type TransactionDTO struct {
	ID          string `json:"id"`
	Delta       string `json:"delta"`
	Unit        string `json:"unit"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
	// Balance is the running total after this transaction.
	Balance string `json:"balance"`
}

type AdjustBalanceRequest struct {
	Delta  string `json:"delta"`
	Reason string `json:"reason"`
}

func toTransactionDTO(tx generic.Transaction, running generic.Amount) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		Delta:       tx.Delta.Value.String(),
		Unit:        string(tx.Delta.Unit),
		Type:        string(tx.Type),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		CreatedBy:   string(tx.CreatedBy),
		CreatedAt:   formatTime(tx.CreatedAt),
		Balance:     running.Value.String(),
	}
}

// toTransactionDTOs attaches the running balance to each entry in ledger order.
func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	running := generic.NewAmountFromInt(0, generic.UnitDays)
	for _, tx := range txs {
		running = running.Add(tx.Delta)
		dtos = append(dtos, toTransactionDTO(tx, running))
	}
	return dtos
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveRequestDTO struct {
	ID                   string  `json:"id"`
	EmployeeID           string  `json:"employee_id"`
	Kind                 string  `json:"kind"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	IsPartialDay         bool    `json:"is_partial_day"`
	PartialStart         string  `json:"partial_start,omitempty"`
	PartialEnd           string  `json:"partial_end,omitempty"`
	Note                 string  `json:"note,omitempty"`
	AttachmentRef        string  `json:"attachment_ref,omitempty"`
	State                string  `json:"state"`
	BusinessDaysConsumed int     `json:"business_days_consumed"`
	ReviewedBy           string  `json:"reviewed_by,omitempty"`
	ReviewedAt           *string `json:"reviewed_at,omitempty"`
	ReviewNote           string  `json:"review_note,omitempty"`
	CreatedBy            string  `json:"created_by"`
	Version              int     `json:"version"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

type CreateLeaveRequest struct {
	Kind          string       `json:"kind"`
	StartDate     generic.Date `json:"start_date"`
	EndDate       generic.Date `json:"end_date"`
	IsPartialDay  bool         `json:"is_partial_day"`
	PartialStart  string       `json:"partial_start"`
	PartialEnd    string       `json:"partial_end"`
	Note          string       `json:"note"`
	AttachmentRef string       `json:"attachment_ref"`
}

// EditLeaveRequest carries only the fields to change.
type EditLeaveRequest struct {
	Kind          *string       `json:"kind"`
	StartDate     *generic.Date `json:"start_date"`
	EndDate       *generic.Date `json:"end_date"`
	IsPartialDay  *bool         `json:"is_partial_day"`
	PartialStart  *string       `json:"partial_start"`
	PartialEnd    *string       `json:"partial_end"`
	Note          *string       `json:"note"`
	AttachmentRef *string       `json:"attachment_ref"`
}

func (e EditLeaveRequest) toInput() timeoff.EditInput {
	in := timeoff.EditInput{
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		IsPartialDay:  e.IsPartialDay,
		PartialStart:  e.PartialStart,
		PartialEnd:    e.PartialEnd,
		Note:          e.Note,
		AttachmentRef: e.AttachmentRef,
	}
	if e.Kind != nil {
		k := timeoff.Kind(*e.Kind)
		in.Kind = &k
	}
	return in
}

// ReviewRequest is the optional note on approve, reject, cancel and
// cancellation requests.
type ReviewRequest struct {
	Note string `json:"note"`
}

type FinalizeCancellationRequest struct {
	Accept bool   `json:"accept"`
	Note   string `json:"note"`
}

type AttachmentRequest struct {
	AttachmentRef string `json:"attachment_ref"`
}

func toLeaveRequestDTO(r timeoff.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:                   string(r.ID),
		EmployeeID:           string(r.EmployeeID),
		Kind:                 string(r.Kind),
		StartDate:            r.StartDate.String(),
		EndDate:              r.EndDate.String(),
		IsPartialDay:         r.IsPartialDay,
		PartialStart:         r.PartialStart,
		PartialEnd:           r.PartialEnd,
		Note:                 r.Note,
		AttachmentRef:        r.AttachmentRef,
		State:                string(r.State),
		BusinessDaysConsumed: r.BusinessDaysConsumed,
		ReviewedBy:           string(r.ReviewedBy),
		ReviewedAt:           formatTimePtr(r.ReviewedAt),
		ReviewNote:           r.ReviewNote,
		CreatedBy:            string(r.CreatedBy),
		Version:              r.Version,
		CreatedAt:            formatTime(r.CreatedAt),
		UpdatedAt:            formatTime(r.UpdatedAt),
	}
}

func toLeaveRequestDTOs(rs []timeoff.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type SessionDTO struct {
	ID                      string  `json:"id"`
	EmployeeID              string  `json:"employee_id"`
	WorkDate                string  `json:"work_date"`
	Status                  string  `json:"status"`
	StartTime               string  `json:"start_time"`
	EndTime                 *string `json:"end_time,omitempty"`
	PauseStartTime          *string `json:"pause_start_time,omitempty"`
	AccumulatedPauseSeconds int64   `json:"accumulated_pause_seconds"`
	ClosingNote             string  `json:"closing_note,omitempty"`
	CorrectionReason        string  `json:"correction_reason,omitempty"`
	CorrectedBy             string  `json:"corrected_by,omitempty"`
	CorrectedAt             *string `json:"corrected_at,omitempty"`
	Version                 int     `json:"version"`
}

type SessionCheckDTO struct {
	Session        *SessionDTO `json:"session"`
	Status         string      `json:"status"`
	ElapsedSeconds int64       `json:"elapsed_seconds"`
	At             string      `json:"at"`
}

type FinishSessionRequest struct {
	Note string `json:"note"`
}

// CorrectSessionRequest overwrites the given fields. Instants are RFC 3339.
type CorrectSessionRequest struct {
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	PauseMinutes *int64     `json:"pause_minutes"`
	ClosingNote  *string    `json:"closing_note"`
	Reason       string     `json:"reason"`
}

func (c CorrectSessionRequest) toCorrection() attendance.Correction {
	return attendance.Correction{
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		PauseMinutes: c.PauseMinutes,
		ClosingNote:  c.ClosingNote,
		Reason:       c.Reason,
	}
}

func toSessionDTO(s attendance.Session) SessionDTO {
	return SessionDTO{
		ID:                      string(s.ID),
		EmployeeID:              string(s.EmployeeID),
		WorkDate:                s.WorkDate.String(),
		Status:                  string(s.Status()),
		StartTime:               formatTime(s.StartTime),
		EndTime:                 formatTimePtr(s.EndTime),
		PauseStartTime:          formatTimePtr(s.PauseStartTime),
		AccumulatedPauseSeconds: s.AccumulatedPauseSeconds,
		ClosingNote:             s.ClosingNote,
		CorrectionReason:        s.CorrectionReason,
		CorrectedBy:             string(s.CorrectedBy),
		CorrectedAt:             formatTimePtr(s.CorrectedAt),
		Version:                 s.Version,
	}
}

func toSessionDTOs(ss []attendance.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(ss))
	for i, s := range ss {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

type DaySummaryDTO struct {
	Date          string `json:"date"`
	Sessions      int    `json:"sessions"`
	WorkedSeconds int64  `json:"worked_seconds"`
	Qualifies     bool   `json:"qualifies"`
}

type MonthlySummaryDTO struct {
	EmployeeID         string          `json:"employee_id"`
	Year               int             `json:"year"`
	Month              int             `json:"month"`
	Days               []DaySummaryDTO `json:"days"`
	TotalWorkedSeconds int64           `json:"total_worked_seconds"`
	DaysWorked         int             `json:"days_worked"`
	DailyStipend       string          `json:"daily_stipend"`
	Stipend            string          `json:"stipend"`
}

func toMonthlySummaryDTO(m attendance.MonthlySummary) MonthlySummaryDTO {
	days := make([]DaySummaryDTO, len(m.Days))
	for i, d := range m.Days {
		days[i] = DaySummaryDTO{
			Date:          d.Date.String(),
			Sessions:      d.Sessions,
			WorkedSeconds: d.WorkedSeconds,
			Qualifies:     d.Qualifies,
		}
	}
	return MonthlySummaryDTO{
		EmployeeID:         string(m.EmployeeID),
		Year:               m.Year,
		Month:              int(m.Month),
		Days:               days,
		TotalWorkedSeconds: m.TotalWorkedSeconds,
		DaysWorked:         m.DaysWorked,
		DailyStipend:       m.DailyStipend.StringFixed(2),
		Stipend:            m.Stipend.StringFixed(2),
	}
}

// =============================================================================
// CALENDAR
// =============================================================================

type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

func toHolidayDTOs(hs []calendar.Holiday) []HolidayDTO {
	dtos := make([]HolidayDTO, len(hs))
	for i, h := range hs {
		dtos[i] = HolidayDTO{Date: h.Date().String(), Name: h.Name}
	}
	return dtos
}

type BusinessDaysDTO struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	BusinessDays int    `json:"business_days"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
