/*
service.go - Time clock operations

PURPOSE:
  Start, pause, resume and finish work sessions, reconcile sessions
  left open overnight, and let HR correct or delete recorded sessions.

STATE MACHINE (derived from timestamps):
  stopped ──start──▶ running ──pause──▶ paused
                       │   ◀──resume──    │
                       └──finish──▶ stopped ◀──finish──┘

ONE OPEN SESSION:
  An employee has at most one session without an end time. Start checks
  inside the transaction and the store backs it with a unique index, so
  two concurrent starts cannot both succeed.

RECONCILIATION:
  A session still open after its work date is closed at the last second
  of that date by ListOpenSession and CheckSession. Start never does this
  implicitly: a client that sees ConcurrentSessionError re-reads the open
  session first.

SEE ALSO:
  - history.go: Listings and the monthly summary
  - export.go: Spreadsheet export
*/
package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/workday/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store    Store
	Tx       generic.Transactor
	Clock    generic.Clock
	Logger   *zap.Logger
	Location *time.Location

	// DailyStipend is paid per day whose worked time reaches MinWorkedMinutes.
	DailyStipend     decimal.Decimal
	MinWorkedMinutes int
}

// Options carries the configurable parts of the service.
type Options struct {
	Location         *time.Location
	DailyStipend     decimal.Decimal
	MinWorkedMinutes int
}

func NewService(store Store, tx generic.Transactor, clock generic.Clock, logger *zap.Logger, opts Options) *Service {
	if tx == nil {
		tx = generic.NoopTransactor{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if clock == nil {
		clock = generic.SystemClock{Location: opts.Location}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:            store,
		Tx:               tx,
		Clock:            clock,
		Logger:           logger,
		Location:         opts.Location,
		DailyStipend:     opts.DailyStipend,
		MinWorkedMinutes: opts.MinWorkedMinutes,
	}
}

// now is second-resolution civil time in the service location.
func (s *Service) now() time.Time { return s.Clock.Now().In(s.Location).Truncate(time.Second) }

func (s *Service) today() generic.Date { return generic.DateOf(s.now()) }

// =============================================================================
// OPEN SESSION & RECONCILIATION
// =============================================================================

// ListOpenSession returns the employee's open session, or nil. A session
// left open on an earlier date is auto-closed first and nil is returned.
func (s *Service) ListOpenSession(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) (*Session, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return nil, err
	}

	var (
		open   *Session
		closed *Session
	)
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.Store.OpenSession(ctx, employeeID)
		if err != nil {
			return generic.WrapStorage("load open session", err)
		}
		if sess == nil {
			return nil
		}
		if !sess.WorkDate.Before(s.today()) {
			open = sess
			return nil
		}
		s.autoClose(sess)
		if err := s.Store.UpdateSession(ctx, sess); err != nil {
			return generic.WrapStorage("auto-close session", err)
		}
		closed = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closed != nil {
		s.Logger.Warn("session auto-closed",
			zap.String("session_id", string(closed.ID)),
			zap.String("employee_id", string(closed.EmployeeID)),
			zap.String("work_date", closed.WorkDate.String()),
			zap.Time("end_time", *closed.EndTime),
			zap.Int64("pause_seconds", closed.AccumulatedPauseSeconds),
		)
	}
	return open, nil
}

// autoClose ends sess at the last second of its work date.
func (s *Service) autoClose(sess *Session) {
	end := sess.WorkDate.EndOfDay(s.Location)
	if end.Before(sess.StartTime) {
		end = sess.StartTime
	}
	if sess.PauseStartTime != nil && sess.PauseStartTime.After(end) {
		sess.PauseStartTime = &end
	}
	sess.foldPause(end)
	sess.EndTime = &end
	if note := strings.TrimSpace(sess.ClosingNote); note != "" {
		sess.ClosingNote = note + "\n" + AutoCloseNote
	} else {
		sess.ClosingNote = AutoCloseNote
	}
	sess.UpdatedAt = s.now()
}

// SessionCheck is the open session with its worked time at check time.
type SessionCheck struct {
	Session *Session
	Status  Status
	Elapsed time.Duration
	At      time.Time
}

// CheckSession reconciles like ListOpenSession and reports the live
// worked time. Clients call it when they regain focus.
func (s *Service) CheckSession(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) (SessionCheck, error) {
	open, err := s.ListOpenSession(ctx, actor, employeeID)
	if err != nil {
		return SessionCheck{}, err
	}
	now := s.now()
	if open == nil {
		return SessionCheck{Status: StatusStopped, At: now}, nil
	}
	return SessionCheck{Session: open, Status: open.Status(), Elapsed: open.Elapsed(now), At: now}, nil
}

// CloseStaleSessions runs the ListOpenSession reconciliation for every
// employee and returns how many sessions were auto-closed. HR only.
func (s *Service) CloseStaleSessions(ctx context.Context, actor generic.Actor) (int, error) {
	if err := requireHR(actor); err != nil {
		return 0, err
	}
	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return 0, generic.WrapStorage("list employees", err)
	}

	closed := 0
	for _, e := range employees {
		before, err := s.Store.OpenSession(ctx, e.ID)
		if err != nil {
			return closed, generic.WrapStorage("load open session", err)
		}
		if before == nil {
			continue
		}
		open, err := s.ListOpenSession(ctx, actor, e.ID)
		if err != nil {
			return closed, err
		}
		if open == nil {
			closed++
		}
	}
	return closed, nil
}

// =============================================================================
// CLOCK OPERATIONS
// =============================================================================

// Start opens a new running session for today.
func (s *Service) Start(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) (*Session, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, generic.WrapStorage("load employee", err)
	}

	now := s.now()
	sess := Session{
		ID:         SessionID(uuid.NewString()),
		EmployeeID: employeeID,
		WorkDate:   generic.DateOf(now),
		StartTime:  now,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		open, err := s.Store.OpenSession(ctx, employeeID)
		if err != nil {
			return generic.WrapStorage("load open session", err)
		}
		if open != nil {
			return &generic.ConcurrentSessionError{
				EmployeeID:    employeeID,
				OpenSessionID: string(open.ID),
				WorkDate:      open.WorkDate,
			}
		}
		return generic.WrapStorage("create session", s.Store.CreateSession(ctx, sess))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("session started",
		zap.String("session_id", string(sess.ID)),
		zap.String("employee_id", string(employeeID)),
		zap.String("work_date", sess.WorkDate.String()),
	)
	return &sess, nil
}

// update loads a session, checks ownership, applies step and writes it
// back with compare-and-set.
func (s *Service) update(ctx context.Context, actor generic.Actor, id SessionID, step func(sess *Session, now time.Time) error) (*Session, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var out *Session
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.Store.GetSession(ctx, id)
		if err != nil {
			return generic.WrapStorage("load session", err)
		}
		if !actor.CanActFor(sess.EmployeeID) {
			return generic.ErrForbidden
		}
		now := s.now()
		if err := step(sess, now); err != nil {
			return err
		}
		sess.UpdatedAt = now
		if err := s.Store.UpdateSession(ctx, sess); err != nil {
			return generic.WrapStorage("update session", err)
		}
		out = sess
		return nil
	})
	return out, err
}

func invalidState(sess *Session, action string) error {
	return &generic.InvalidStateError{Entity: "time_session", ID: string(sess.ID), State: string(sess.Status()), Action: action}
}

// Pause is valid only while running.
func (s *Service) Pause(ctx context.Context, actor generic.Actor, id SessionID) (*Session, error) {
	sess, err := s.update(ctx, actor, id, func(sess *Session, now time.Time) error {
		if sess.Status() != StatusRunning {
			return invalidState(sess, "pause")
		}
		sess.PauseStartTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("session paused", zap.String("session_id", string(id)))
	return sess, nil
}

// Resume is valid only while paused. The pause length is added in whole seconds.
func (s *Service) Resume(ctx context.Context, actor generic.Actor, id SessionID) (*Session, error) {
	sess, err := s.update(ctx, actor, id, func(sess *Session, now time.Time) error {
		if sess.Status() != StatusPaused {
			return invalidState(sess, "resume")
		}
		sess.foldPause(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("session resumed",
		zap.String("session_id", string(id)),
		zap.Int64("pause_seconds", sess.AccumulatedPauseSeconds))
	return sess, nil
}

// Finish closes a running or paused session. A closing note is required.
func (s *Service) Finish(ctx context.Context, actor generic.Actor, id SessionID, note string) (*Session, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &generic.ValidationError{Field: "closing_note", Message: "a closing note is required to finish a session"}
	}
	sess, err := s.update(ctx, actor, id, func(sess *Session, now time.Time) error {
		if sess.Status() == StatusStopped {
			return invalidState(sess, "finish")
		}
		sess.foldPause(now)
		sess.EndTime = &now
		sess.ClosingNote = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("session finished",
		zap.String("session_id", string(sess.ID)),
		zap.String("employee_id", string(sess.EmployeeID)),
		zap.Duration("worked", sess.Elapsed(*sess.EndTime)),
	)
	return sess, nil
}

// =============================================================================
// HR OPERATIONS
// =============================================================================

// Correction overwrites recorded values. Nil fields are left unchanged.
type Correction struct {
	StartTime    *time.Time
	EndTime      *time.Time
	PauseMinutes *int64
	ClosingNote  *string
	Reason       string
}

// Correct rewrites a session directly, bypassing the clock state machine.
func (s *Service) Correct(ctx context.Context, actor generic.Actor, id SessionID, c Correction) (*Session, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		return nil, &generic.ValidationError{Field: "correction_reason", Message: "a reason is required to correct a session"}
	}
	if c.PauseMinutes != nil && *c.PauseMinutes < 0 {
		return nil, &generic.ValidationError{Field: "pause_minutes", Message: "cannot be negative"}
	}

	sess, err := s.update(ctx, actor, id, func(sess *Session, now time.Time) error {
		closing := sess.EndTime == nil && c.EndTime != nil

		if c.StartTime != nil {
			start := c.StartTime.In(s.Location).Truncate(time.Second)
			sess.StartTime = start
			sess.WorkDate = generic.DateOf(start)
		}
		if c.PauseMinutes != nil {
			sess.AccumulatedPauseSeconds = *c.PauseMinutes * 60
			if closing {
				sess.PauseStartTime = nil
			}
		}
		if c.EndTime != nil {
			end := c.EndTime.In(s.Location).Truncate(time.Second)
			if closing {
				sess.foldPause(end)
			}
			sess.EndTime = &end
		}
		if c.ClosingNote != nil {
			sess.ClosingNote = strings.TrimSpace(*c.ClosingNote)
		}

		if sess.EndTime != nil {
			if !sess.EndTime.After(sess.StartTime) {
				return &generic.ValidationError{Field: "end_time", Message: "must be after start_time"}
			}
			if sess.ClosingNote == "" {
				return &generic.ValidationError{Field: "closing_note", Message: "a closed session needs a closing note"}
			}
		}

		sess.CorrectionReason = reason
		sess.CorrectedBy = actor.EmployeeID
		sess.CorrectedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("session corrected",
		zap.String("session_id", string(sess.ID)),
		zap.String("employee_id", string(sess.EmployeeID)),
		zap.String("corrected_by", string(actor.EmployeeID)),
		zap.String("reason", reason),
	)
	return sess, nil
}

// Delete hard-deletes a session. HR only, and only when confirmed.
func (s *Service) Delete(ctx context.Context, actor generic.Actor, id SessionID, confirm bool) error {
	if err := requireHR(actor); err != nil {
		return err
	}
	if !confirm {
		return &generic.ValidationError{Field: "confirm", Message: "deleting a session must be confirmed"}
	}

	var deleted *Session
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.Store.GetSession(ctx, id)
		if err != nil {
			return generic.WrapStorage("load session", err)
		}
		if err := s.Store.DeleteSession(ctx, id); err != nil {
			return generic.WrapStorage("delete session", err)
		}
		deleted = sess
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Warn("session deleted",
		zap.String("session_id", string(id)),
		zap.String("employee_id", string(deleted.EmployeeID)),
		zap.String("work_date", deleted.WorkDate.String()),
		zap.String("deleted_by", string(actor.EmployeeID)),
	)
	return nil
}

// =============================================================================
// AUTHORIZATION
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
