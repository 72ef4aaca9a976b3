package timeoff

import (
	"context"

	"github.com/warp/workday/generic"
)

// Filter narrows ListRequests. Zero values match everything.
type Filter struct {
	EmployeeID generic.EmployeeID
	States     []State
	// Overlapping keeps requests intersecting [From, To] when both are set.
	From generic.Date
	To   generic.Date
}

// RequestStore persists leave requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r Request) error

	// GetRequest returns generic.ErrNotFound for unknown ids.
	GetRequest(ctx context.Context, id RequestID) (*Request, error)

	// UpdateRequest is a compare-and-set: it writes r only if the stored
	// version equals r.Version, then increments r.Version. A mismatch
	// yields a StorageError wrapping ErrConcurrentModification.
	UpdateRequest(ctx context.Context, r *Request) error

	// DeleteRequest removes the request if its version still matches.
	DeleteRequest(ctx context.Context, id RequestID, version int) error

	ListRequests(ctx context.Context, f Filter) ([]Request, error)
}

// Store is everything the leave lifecycle reads and writes.
type Store interface {
	generic.Store
	generic.EmployeeStore
	RequestStore
}
