// Package timeoff implements the leave request lifecycle: creation,
// review, cancellation and the balance effects of each transition.
package timeoff

import (
	"time"

	"github.com/warp/workday/generic"
)

// =============================================================================
// LEAVE KIND
// =============================================================================

type Kind string

const (
	KindVacation              Kind = "vacation"
	KindFamilyCare            Kind = "family_care"
	KindPersonal              Kind = "personal"
	KindUnexcusedAbsence      Kind = "unexcused_absence"
	KindSickLeave             Kind = "sick_leave"
	KindMarriage              Kind = "marriage"
	KindStudyLeave            Kind = "study_leave"
	KindParentalLeave         Kind = "parental_leave"
	KindUnpaidLeave           Kind = "unpaid_leave"
	KindBereavement           Kind = "bereavement"
	KindExamLeave             Kind = "exam_leave"
	KindPublicOfficeCandidacy Kind = "public_office_candidacy"
)

// Kinds lists every accepted kind in display order.
var Kinds = []Kind{
	KindVacation, KindFamilyCare, KindPersonal, KindUnexcusedAbsence,
	KindSickLeave, KindMarriage, KindStudyLeave, KindParentalLeave,
	KindUnpaidLeave, KindBereavement, KindExamLeave, KindPublicOfficeCandidacy,
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DebitsBalance reports whether approved requests of this kind are paid
// out of the vacation balance. Only vacation is.
func (k Kind) DebitsBalance() bool { return k == KindVacation }

// =============================================================================
// REQUEST STATE
// =============================================================================

type State string

const (
	StatePending               State = "pending"
	StateApproved              State = "approved"
	StateRejected              State = "rejected"
	StateCancellationRequested State = "cancellation_requested"
	StateCancelled             State = "cancelled"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected, StateCancellationRequested, StateCancelled:
		return true
	}
	return false
}

func (s State) Terminal() bool { return s == StateRejected || s == StateCancelled }

// =============================================================================
// REQUEST
// =============================================================================

type RequestID string

const timeOfDayLayout = "15:04"

type Request struct {
	ID         RequestID
	EmployeeID generic.EmployeeID
	Kind       Kind
	StartDate  generic.Date
	EndDate    generic.Date

	// Partial-day requests cover a single date between two clock times.
	IsPartialDay bool
	PartialStart string // HH:MM
	PartialEnd   string // HH:MM

	Note          string
	AttachmentRef string

	State State

	// BusinessDaysConsumed is computed when the request is first approved
	// and kept from then on, even if the holiday calendar changes.
	BusinessDaysConsumed int
	EverApproved         bool

	ReviewedBy generic.EmployeeID
	ReviewedAt *time.Time
	ReviewNote string

	CreatedBy generic.EmployeeID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// consumesBalance is true for requests whose approval debits the balance.
func (r *Request) consumesBalance() bool {
	return r.Kind.DebitsBalance() && !r.IsPartialDay
}

// HoldsBalance reports whether the request's debit is currently applied.
func (r *Request) HoldsBalance() bool {
	return r.EverApproved && r.consumesBalance() && r.BusinessDaysConsumed > 0 &&
		(r.State == StateApproved || r.State == StateCancellationRequested)
}

func (r *Request) consumedAmount() generic.Amount {
	return generic.NewAmountFromInt(r.BusinessDaysConsumed, generic.UnitDays)
}

// BalanceEffect is what a transition did to the leave balance.
type BalanceEffect struct {
	Transaction *generic.Transaction
}

func (e BalanceEffect) Applied() bool { return e.Transaction != nil }
