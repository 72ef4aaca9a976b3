// Package attendance implements the time clock: one work session per
// employee at a time, with pauses, clock-out notes, stale-session
// reconciliation and HR corrections.
package attendance

import (
	"time"

	"github.com/warp/workday/generic"
)

type SessionID string

// Status is derived from the session's timestamps, never stored.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// AutoCloseNote is written on sessions closed by reconciliation.
const AutoCloseNote = "auto-closed: no clock-out recorded"

type Session struct {
	ID         SessionID
	EmployeeID generic.EmployeeID
	WorkDate   generic.Date

	StartTime      time.Time
	EndTime        *time.Time
	PauseStartTime *time.Time

	// AccumulatedPauseSeconds never decreases while the session is open.
	AccumulatedPauseSeconds int64

	ClosingNote string

	CorrectionReason string
	CorrectedBy      generic.EmployeeID
	CorrectedAt      *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) Open() bool { return s.EndTime == nil }

func (s *Session) Status() Status {
	switch {
	case s.EndTime != nil:
		return StatusStopped
	case s.PauseStartTime != nil:
		return StatusPaused
	default:
		return StatusRunning
	}
}

// Elapsed is the worked time as of now: wall time since start, frozen at
// the pause start while paused and at the end once stopped, minus the
// accumulated pauses. Never negative.
func (s *Session) Elapsed(now time.Time) time.Duration {
	until := now
	switch {
	case s.EndTime != nil:
		until = *s.EndTime
	case s.PauseStartTime != nil:
		until = *s.PauseStartTime
	}
	worked := until.Sub(s.StartTime) - time.Duration(s.AccumulatedPauseSeconds)*time.Second
	if worked < 0 {
		return 0
	}
	return worked
}

// foldPause adds the open pause, if any, to the accumulated total.
func (s *Session) foldPause(now time.Time) {
	if s.PauseStartTime == nil {
		return
	}
	s.AccumulatedPauseSeconds += pauseSeconds(*s.PauseStartTime, now)
	s.PauseStartTime = nil
}

func pauseSeconds(from, to time.Time) int64 {
	secs := int64(to.Sub(from) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
