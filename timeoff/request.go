/*
request.go - Leave request lifecycle

PURPOSE:
  Drives a leave request from creation to a terminal state and applies
  the balance effect of each transition through the ledger.

STATE MACHINE:
  ┌─────────┐  approve   ┌──────────┐  request-cancel  ┌────────────────────────┐
  │ pending │ ─────────▶ │ approved │ ───────────────▶ │ cancellation_requested │
  └─────────┘            └──────────┘ ◀─────────────── └────────────────────────┘
    │     │                   │        reinstate (HR)            │
    │     │ reject            │ cancel (HR)                      │ finalize (HR)
    │     ▼                   ▼                                  ▼
    │  rejected          cancelled ◀─────────────────────────────┘
    │ cancel / withdraw
    ▼
  cancelled

BALANCE EFFECTS:
  - First approval of a full-day vacation request debits the business
    days in its range and caches the count on the request.
  - Cancelling a request that holds a debit credits the cached count back.
  - Reinstatement keeps the original debit; nothing is applied twice.
  - Partial-day requests and non-vacation kinds never touch the balance.

ATOMICITY:
  Each transition runs in one storage transaction: read the request,
  check the state, write the request with compare-and-set on its
  version, then append the ledger entry. A failure anywhere rolls back
  both writes. Two racing approvals cannot both pass the version check.

SEE ALSO:
  - ledger.go: Balance queries and HR adjustments
  - generic/ledger.go: The ledger itself
*/
package timeoff

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/workday/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store    Store
	Tx       generic.Transactor
	Calendar generic.BusinessDayCounter
	Clock    generic.Clock
	Logger   *zap.Logger
}

func NewService(store Store, tx generic.Transactor, cal generic.BusinessDayCounter, clock generic.Clock, logger *zap.Logger) *Service {
	if tx == nil {
		tx = generic.NoopTransactor{}
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Tx: tx, Calendar: cal, Clock: clock, Logger: logger}
}

func (s *Service) ledger() generic.Ledger { return generic.NewLedger(s.Store, s.Clock) }

func (s *Service) now() time.Time { return s.Clock.Now().Truncate(time.Microsecond) }

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the fields of a new request.
type CreateInput struct {
	EmployeeID    generic.EmployeeID
	Kind          Kind
	StartDate     generic.Date
	EndDate       generic.Date
	IsPartialDay  bool
	PartialStart  string
	PartialEnd    string
	Note          string
	AttachmentRef string
}

// Create records a new request. Employees create pending requests for
// themselves; HR creating on someone else's behalf records the request
// as already approved and debits the balance in the same transaction.
func (s *Service) Create(ctx context.Context, actor generic.Actor, in CreateInput) (*Request, error) {
	if err := authorizeFor(actor, in.EmployeeID); err != nil {
		return nil, err
	}
	days, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEmployee(ctx, in.EmployeeID); err != nil {
		return nil, generic.WrapStorage("load employee", err)
	}

	now := s.now()
	r := Request{
		ID:            RequestID(uuid.NewString()),
		EmployeeID:    in.EmployeeID,
		Kind:          in.Kind,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		IsPartialDay:  in.IsPartialDay,
		PartialStart:  in.PartialStart,
		PartialEnd:    in.PartialEnd,
		Note:          strings.TrimSpace(in.Note),
		AttachmentRef: strings.TrimSpace(in.AttachmentRef),
		State:         StatePending,
		CreatedBy:     actor.EmployeeID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	onBehalf := actor.IsHR() && actor.EmployeeID != in.EmployeeID
	if onBehalf {
		r.State = StateApproved
		r.EverApproved = true
		r.BusinessDaysConsumed = billableDays(&r, days)
		r.ReviewedBy = actor.EmployeeID
		r.ReviewedAt = &now
	}

	var effect BalanceEffect
	err = s.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Store.CreateRequest(ctx, r); err != nil {
			return generic.WrapStorage("create leave request", err)
		}
		if r.HoldsBalance() {
			tx, err := s.ledger().Debit(ctx, r.EmployeeID, r.consumedAmount(), generic.Reference{
				RequestID: string(r.ID),
				Reason:    "vacation recorded by HR",
				Actor:     actor.EmployeeID,
			})
			if err != nil {
				return err
			}
			effect.Transaction = &tx
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("leave request created",
		zap.String("request_id", string(r.ID)),
		zap.String("employee_id", string(r.EmployeeID)),
		zap.String("kind", string(r.Kind)),
		zap.String("state", string(r.State)),
		zap.Bool("on_behalf", onBehalf),
	)
	s.logBalanceEffect(&r, effect, "debit")
	return &r, nil
}

// validate checks the request shape and returns the business-day count.
func (s *Service) validate(in CreateInput) (int, error) {
	if !in.Kind.Valid() {
		return 0, &generic.ValidationError{Field: "kind", Message: "unknown leave kind " + string(in.Kind)}
	}
	if in.StartDate.IsZero() {
		return 0, &generic.ValidationError{Field: "start_date", Message: "required"}
	}
	if in.EndDate.IsZero() {
		return 0, &generic.ValidationError{Field: "end_date", Message: "required"}
	}
	if in.EndDate.Before(in.StartDate) {
		return 0, &generic.InvalidRangeError{Start: in.StartDate, End: in.EndDate}
	}

	if in.IsPartialDay {
		if !in.EndDate.Equal(in.StartDate) {
			return 0, &generic.ValidationError{Field: "end_date", Message: "a partial-day request covers a single date"}
		}
		from, err := time.Parse(timeOfDayLayout, in.PartialStart)
		if err != nil {
			return 0, &generic.ValidationError{Field: "partial_start", Message: "expected HH:MM"}
		}
		to, err := time.Parse(timeOfDayLayout, in.PartialEnd)
		if err != nil {
			return 0, &generic.ValidationError{Field: "partial_end", Message: "expected HH:MM"}
		}
		if !from.Before(to) {
			return 0, &generic.ValidationError{Field: "partial_end", Message: "must be after partial_start"}
		}
	} else if in.PartialStart != "" || in.PartialEnd != "" {
		return 0, &generic.ValidationError{Field: "partial_start", Message: "only allowed on partial-day requests"}
	}

	days, err := s.Calendar.CountBusinessDays(in.StartDate, in.EndDate)
	if err != nil {
		return 0, err
	}
	if days == 0 && !in.IsPartialDay {
		return 0, &generic.EmptyRangeError{Start: in.StartDate, End: in.EndDate}
	}
	return days, nil
}

// billableDays is the count cached at approval: zero for partial days.
func billableDays(r *Request, businessDays int) int {
	if r.IsPartialDay {
		return 0
	}
	return businessDays
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// transition loads the request inside a transaction, lets step mutate it
// and writes it back with compare-and-set. step may append to the ledger
// through the context it receives.
func (s *Service) transition(
	ctx context.Context,
	id RequestID,
	step func(ctx context.Context, r *Request) (BalanceEffect, error),
) (*Request, BalanceEffect, error) {
	var (
		out    *Request
		effect BalanceEffect
	)
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.Store.GetRequest(ctx, id)
		if err != nil {
			return generic.WrapStorage("load leave request", err)
		}
		// Update first so that a failed ledger write below rolls it back.
		pending := *r
		eff, err := step(ctx, &pending)
		if err != nil {
			return err
		}
		pending.UpdatedAt = s.now()
		if err := s.Store.UpdateRequest(ctx, &pending); err != nil {
			return generic.WrapStorage("update leave request", err)
		}
		if eff.Transaction != nil {
			tx, err := s.applyLedger(ctx, &pending, eff.Transaction)
			if err != nil {
				return err
			}
			eff.Transaction = &tx
		}
		out, effect = &pending, eff
		return nil
	})
	if err != nil {
		return nil, BalanceEffect{}, err
	}
	return out, effect, nil
}

// applyLedger turns a planned transaction into a ledger write.
func (s *Service) applyLedger(ctx context.Context, r *Request, planned *generic.Transaction) (generic.Transaction, error) {
	ref := generic.Reference{RequestID: string(r.ID), Reason: planned.Reason, Actor: planned.CreatedBy}
	if planned.Type == generic.TxConsumption {
		return s.ledger().Debit(ctx, r.EmployeeID, planned.Delta, ref)
	}
	return s.ledger().Credit(ctx, r.EmployeeID, planned.Delta, ref)
}

func plan(typ generic.TransactionType, r *Request, reason string, actor generic.Actor) BalanceEffect {
	return BalanceEffect{Transaction: &generic.Transaction{
		EmployeeID: r.EmployeeID,
		Delta:      r.consumedAmount(),
		Type:       typ,
		Reason:     reason,
		CreatedBy:  actor.EmployeeID,
	}}
}

func invalidState(r *Request, action string) error {
	return &generic.InvalidStateError{Entity: "leave_request", ID: string(r.ID), State: string(r.State), Action: action}
}

func (s *Service) review(r *Request, actor generic.Actor, note string) {
	now := s.now()
	r.ReviewedBy = actor.EmployeeID
	r.ReviewedAt = &now
	r.ReviewNote = strings.TrimSpace(note)
}

// Approve approves a pending request, or reinstates one whose
// cancellation was requested. HR only.
func (s *Service) Approve(ctx context.Context, actor generic.Actor, id RequestID, note string) (*Request, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	r, effect, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		switch r.State {
		case StatePending:
			days, err := s.Calendar.CountBusinessDays(r.StartDate, r.EndDate)
			if err != nil {
				return BalanceEffect{}, err
			}
			r.State = StateApproved
			r.EverApproved = true
			r.BusinessDaysConsumed = billableDays(r, days)
			s.review(r, actor, note)
			if r.HoldsBalance() {
				return plan(generic.TxConsumption, r, "vacation approved", actor), nil
			}
			return BalanceEffect{}, nil
		case StateCancellationRequested:
			// The original debit was never reversed.
			r.State = StateApproved
			s.review(r, actor, note)
			return BalanceEffect{}, nil
		default:
			return BalanceEffect{}, invalidState(r, "approve")
		}
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(r, "approve", actor)
	s.logBalanceEffect(r, effect, "debit")
	return r, nil
}

// Reject rejects a pending request. HR only. No balance effect.
func (s *Service) Reject(ctx context.Context, actor generic.Actor, id RequestID, reason string) (*Request, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	r, _, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if r.State != StatePending {
			return BalanceEffect{}, invalidState(r, "reject")
		}
		r.State = StateRejected
		s.review(r, actor, reason)
		return BalanceEffect{}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(r, "reject", actor)
	return r, nil
}

// RequestCancellation asks HR to cancel an approved request. Owner only.
func (s *Service) RequestCancellation(ctx context.Context, actor generic.Actor, id RequestID, reason string) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	r, _, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if r.EmployeeID != actor.EmployeeID {
			return BalanceEffect{}, generic.ErrForbidden
		}
		if r.State != StateApproved {
			return BalanceEffect{}, invalidState(r, "request cancellation of")
		}
		r.State = StateCancellationRequested
		if reason = strings.TrimSpace(reason); reason != "" {
			r.ReviewNote = reason
		}
		return BalanceEffect{}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(r, "request_cancellation", actor)
	return r, nil
}

// FinalizeCancellation resolves a cancellation request. accept=true
// cancels and credits any held debit; accept=false reinstates approval.
func (s *Service) FinalizeCancellation(ctx context.Context, actor generic.Actor, id RequestID, accept bool, note string) (*Request, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	r, effect, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if r.State != StateCancellationRequested {
			return BalanceEffect{}, invalidState(r, "finalize cancellation of")
		}
		if !accept {
			r.State = StateApproved
			s.review(r, actor, note)
			return BalanceEffect{}, nil
		}
		held := r.HoldsBalance()
		r.State = StateCancelled
		s.review(r, actor, note)
		if held {
			return plan(generic.TxReversal, r, "vacation cancelled", actor), nil
		}
		return BalanceEffect{}, nil
	})
	if err != nil {
		return nil, err
	}
	action := "reinstate"
	if accept {
		action = "finalize_cancellation"
	}
	s.logTransition(r, action, actor)
	s.logBalanceEffect(r, effect, "credit")
	return r, nil
}

// Cancel cancels directly. The owner or HR may cancel a pending request;
// only HR may cancel an approved one (crediting the balance back).
func (s *Service) Cancel(ctx context.Context, actor generic.Actor, id RequestID, reason string) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	r, effect, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if !actor.CanActFor(r.EmployeeID) {
			return BalanceEffect{}, generic.ErrForbidden
		}
		switch r.State {
		case StatePending:
			r.State = StateCancelled
			r.ReviewNote = strings.TrimSpace(reason)
			return BalanceEffect{}, nil
		case StateApproved, StateCancellationRequested:
			if !actor.IsHR() {
				return BalanceEffect{}, invalidState(r, "cancel")
			}
			held := r.HoldsBalance()
			r.State = StateCancelled
			s.review(r, actor, reason)
			if held {
				return plan(generic.TxReversal, r, "vacation cancelled by HR", actor), nil
			}
			return BalanceEffect{}, nil
		default:
			return BalanceEffect{}, invalidState(r, "cancel")
		}
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(r, "cancel", actor)
	s.logBalanceEffect(r, effect, "credit")
	return r, nil
}

// EditInput holds the fields an owner may change while pending. Nil
// fields keep their current value.
type EditInput struct {
	Kind          *Kind
	StartDate     *generic.Date
	EndDate       *generic.Date
	IsPartialDay  *bool
	PartialStart  *string
	PartialEnd    *string
	Note          *string
	AttachmentRef *string
}

// EditPending resubmits a pending request. Review fields are reset.
func (s *Service) EditPending(ctx context.Context, actor generic.Actor, id RequestID, in EditInput) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	r, _, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if r.EmployeeID != actor.EmployeeID {
			return BalanceEffect{}, generic.ErrForbidden
		}
		if r.State != StatePending {
			return BalanceEffect{}, invalidState(r, "edit")
		}

		next := CreateInput{
			EmployeeID: r.EmployeeID, Kind: r.Kind, StartDate: r.StartDate, EndDate: r.EndDate,
			IsPartialDay: r.IsPartialDay, PartialStart: r.PartialStart, PartialEnd: r.PartialEnd,
			Note: r.Note, AttachmentRef: r.AttachmentRef,
		}
		if in.Kind != nil {
			next.Kind = *in.Kind
		}
		if in.StartDate != nil {
			next.StartDate = *in.StartDate
		}
		if in.EndDate != nil {
			next.EndDate = *in.EndDate
		}
		if in.IsPartialDay != nil {
			next.IsPartialDay = *in.IsPartialDay
			if !next.IsPartialDay {
				next.PartialStart, next.PartialEnd = "", ""
			}
		}
		if in.PartialStart != nil {
			next.PartialStart = *in.PartialStart
		}
		if in.PartialEnd != nil {
			next.PartialEnd = *in.PartialEnd
		}
		if in.Note != nil {
			next.Note = strings.TrimSpace(*in.Note)
		}
		if in.AttachmentRef != nil {
			next.AttachmentRef = strings.TrimSpace(*in.AttachmentRef)
		}
		if _, err := s.validate(next); err != nil {
			return BalanceEffect{}, err
		}

		r.Kind, r.StartDate, r.EndDate = next.Kind, next.StartDate, next.EndDate
		r.IsPartialDay, r.PartialStart, r.PartialEnd = next.IsPartialDay, next.PartialStart, next.PartialEnd
		r.Note, r.AttachmentRef = next.Note, next.AttachmentRef
		r.ReviewedBy, r.ReviewedAt, r.ReviewNote = "", nil, ""
		return BalanceEffect{}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(r, "edit", actor)
	return r, nil
}

// AttachDocument sets or replaces the attachment in any state.
func (s *Service) AttachDocument(ctx context.Context, actor generic.Actor, id RequestID, ref string) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &generic.ValidationError{Field: "attachment_ref", Message: "required"}
	}
	r, _, err := s.transition(ctx, id, func(ctx context.Context, r *Request) (BalanceEffect, error) {
		if !actor.CanActFor(r.EmployeeID) {
			return BalanceEffect{}, generic.ErrForbidden
		}
		r.AttachmentRef = ref
		return BalanceEffect{}, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Withdraw hard-deletes a pending request. Owner only.
func (s *Service) Withdraw(ctx context.Context, actor generic.Actor, id RequestID) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	return s.Tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.Store.GetRequest(ctx, id)
		if err != nil {
			return generic.WrapStorage("load leave request", err)
		}
		if r.EmployeeID != actor.EmployeeID {
			return generic.ErrForbidden
		}
		if r.State != StatePending {
			return invalidState(r, "withdraw")
		}
		if err := s.Store.DeleteRequest(ctx, id, r.Version); err != nil {
			return generic.WrapStorage("delete leave request", err)
		}
		s.Logger.Info("leave request withdrawn",
			zap.String("request_id", string(id)),
			zap.String("employee_id", string(r.EmployeeID)))
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, actor generic.Actor, id RequestID) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	r, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, generic.WrapStorage("load leave request", err)
	}
	if !actor.CanActFor(r.EmployeeID) {
		return nil, generic.ErrForbidden
	}
	return r, nil
}

// List returns requests matching f. Non-HR actors only see their own.
func (s *Service) List(ctx context.Context, actor generic.Actor, f Filter) ([]Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !actor.IsHR() {
		if f.EmployeeID != "" && f.EmployeeID != actor.EmployeeID {
			return nil, generic.ErrForbidden
		}
		f.EmployeeID = actor.EmployeeID
	}
	out, err := s.Store.ListRequests(ctx, f)
	if err != nil {
		return nil, generic.WrapStorage("list leave requests", err)
	}
	return out, nil
}

// =============================================================================
// AUTHORIZATION & LOGGING
// =============================================================================

func authorizeFor(actor generic.Actor, owner generic.EmployeeID) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if owner == "" {
		return &generic.ValidationError{Field: "employee_id", Message: "required"}
	}
	if !actor.CanActFor(owner) {
		return generic.ErrForbidden
	}
	return nil
}

func requireHR(actor generic.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !actor.IsHR() {
		return generic.ErrForbidden
	}
	return nil
}

func (s *Service) logTransition(r *Request, action string, actor generic.Actor) {
	s.Logger.Info("leave request "+action,
		zap.String("request_id", string(r.ID)),
		zap.String("employee_id", string(r.EmployeeID)),
		zap.String("actor", string(actor.EmployeeID)),
		zap.String("state", string(r.State)),
	)
}

func (s *Service) logBalanceEffect(r *Request, effect BalanceEffect, direction string) {
	if !effect.Applied() {
		return
	}
	s.Logger.Info("leave balance "+direction,
		zap.String("request_id", string(r.ID)),
		zap.String("employee_id", string(r.EmployeeID)),
		zap.String("transaction_id", string(effect.Transaction.ID)),
		zap.String("delta", effect.Transaction.Delta.Value.String()),
	)
}
