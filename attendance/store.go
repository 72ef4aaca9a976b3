package attendance

import (
	"context"

	"github.com/warp/workday/generic"
)

// SessionFilter narrows ListSessions. Zero values match everything.
type SessionFilter struct {
	EmployeeID generic.EmployeeID
	From       generic.Date // inclusive, on WorkDate
	To         generic.Date // inclusive, on WorkDate
	ClosedOnly bool
}

type SessionStore interface {
	// CreateSession fails with a ConcurrentSessionError when the employee
	// already has an open session.
	CreateSession(ctx context.Context, s Session) error

	// GetSession returns generic.ErrNotFound for unknown ids.
	GetSession(ctx context.Context, id SessionID) (*Session, error)

	// OpenSession returns the employee's open session, or nil.
	OpenSession(ctx context.Context, employeeID generic.EmployeeID) (*Session, error)

	// UpdateSession is a compare-and-set on s.Version and increments it.
	UpdateSession(ctx context.Context, s *Session) error

	DeleteSession(ctx context.Context, id SessionID) error

	// ListSessions orders by start time.
	ListSessions(ctx context.Context, f SessionFilter) ([]Session, error)
}

// Store is everything the time clock reads and writes.
type Store interface {
	generic.EmployeeStore
	SessionStore
}
