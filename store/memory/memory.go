// Package memory provides an in-memory Store for tests and local demos.
// It implements every store interface of the service.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu   sync.Mutex
	data state
}

type state struct {
	employees    map[generic.EmployeeID]generic.Employee
	transactions map[generic.EmployeeID][]generic.Transaction
	requests     map[timeoff.RequestID]timeoff.Request
	sessions     map[attendance.SessionID]attendance.Session
}

var (
	_ timeoff.Store      = (*Store)(nil)
	_ attendance.Store   = (*Store)(nil)
	_ generic.Transactor = (*Store)(nil)
)

func New() *Store {
	return &Store{data: state{
		employees:    make(map[generic.EmployeeID]generic.Employee),
		transactions: make(map[generic.EmployeeID][]generic.Transaction),
		requests:     make(map[timeoff.RequestID]timeoff.Request),
		sessions:     make(map[attendance.SessionID]attendance.Session),
	}}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txKey struct{}

// WithTx holds the store lock for the whole of fn and restores a snapshot
// if fn fails. Calls made with the returned context skip locking.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store lock unless ctx already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st state) clone() state {
	out := state{
		employees:    make(map[generic.EmployeeID]generic.Employee, len(st.employees)),
		transactions: make(map[generic.EmployeeID][]generic.Transaction, len(st.transactions)),
		requests:     make(map[timeoff.RequestID]timeoff.Request, len(st.requests)),
		sessions:     make(map[attendance.SessionID]attendance.Session, len(st.sessions)),
	}
	for k, v := range st.employees {
		out.employees[k] = v
	}
	for k, v := range st.transactions {
		out.transactions[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range st.requests {
		out.requests[k] = v
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	return out
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	defer s.lock(ctx)()
	s.data.employees[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	defer s.lock(ctx)()
	e, ok := s.data.employees[id]
	if !ok {
		return nil, generic.NotFound("employee", string(id))
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	defer s.lock(ctx)()
	out := make([]generic.Employee, 0, len(s.data.employees))
	for _, e := range s.data.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Append adds a transaction. Append-only.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	defer s.lock(ctx)()
	s.data.transactions[tx.EmployeeID] = append(s.data.transactions[tx.EmployeeID], tx)
	return nil
}

func (s *Store) Load(ctx context.Context, employeeID generic.EmployeeID) ([]generic.Transaction, error) {
	defer s.lock(ctx)()
	txs := s.data.transactions[employeeID]
	out := make([]generic.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r timeoff.Request) error {
	defer s.lock(ctx)()
	s.data.requests[r.ID] = r
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id timeoff.RequestID) (*timeoff.Request, error) {
	defer s.lock(ctx)()
	r, ok := s.data.requests[id]
	if !ok {
		return nil, generic.NotFound("leave request", string(id))
	}
	return &r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *timeoff.Request) error {
	defer s.lock(ctx)()
	current, ok := s.data.requests[r.ID]
	if !ok {
		return generic.NotFound("leave request", string(r.ID))
	}
	if current.Version != r.Version {
		return &generic.StorageError{Op: "update leave request", Err: generic.ErrConcurrentModification}
	}
	r.Version++
	s.data.requests[r.ID] = *r
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id timeoff.RequestID, version int) error {
	defer s.lock(ctx)()
	current, ok := s.data.requests[id]
	if !ok {
		return generic.NotFound("leave request", string(id))
	}
	if current.Version != version {
		return &generic.StorageError{Op: "delete leave request", Err: generic.ErrConcurrentModification}
	}
	delete(s.data.requests, id)
	return nil
}

func (s *Store) ListRequests(ctx context.Context, f timeoff.Filter) ([]timeoff.Request, error) {
	defer s.lock(ctx)()
	var out []timeoff.Request
	for _, r := range s.data.requests {
		if matchRequest(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matchRequest(r timeoff.Request, f timeoff.Filter) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, st := range f.States {
			if r.State == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && r.EndDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.StartDate.After(f.To) {
		return false
	}
	return true
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Store) CreateSession(ctx context.Context, sess attendance.Session) error {
	defer s.lock(ctx)()
	if sess.EndTime == nil {
		if open := s.openLocked(sess.EmployeeID); open != nil {
			return &generic.ConcurrentSessionError{
				EmployeeID:    sess.EmployeeID,
				OpenSessionID: string(open.ID),
				WorkDate:      open.WorkDate,
			}
		}
	}
	s.data.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(ctx context.Context, id attendance.SessionID) (*attendance.Session, error) {
	defer s.lock(ctx)()
	sess, ok := s.data.sessions[id]
	if !ok {
		return nil, generic.NotFound("session", string(id))
	}
	return &sess, nil
}

func (s *Store) OpenSession(ctx context.Context, employeeID generic.EmployeeID) (*attendance.Session, error) {
	defer s.lock(ctx)()
	return s.openLocked(employeeID), nil
}

func (s *Store) openLocked(employeeID generic.EmployeeID) *attendance.Session {
	for _, sess := range s.data.sessions {
		if sess.EmployeeID == employeeID && sess.Open() {
			return &sess
		}
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *attendance.Session) error {
	defer s.lock(ctx)()
	current, ok := s.data.sessions[sess.ID]
	if !ok {
		return generic.NotFound("session", string(sess.ID))
	}
	if current.Version != sess.Version {
		return &generic.StorageError{Op: "update session", Err: generic.ErrConcurrentModification}
	}
	sess.Version++
	s.data.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id attendance.SessionID) error {
	defer s.lock(ctx)()
	if _, ok := s.data.sessions[id]; !ok {
		return generic.NotFound("session", string(id))
	}
	delete(s.data.sessions, id)
	return nil
}

func (s *Store) ListSessions(ctx context.Context, f attendance.SessionFilter) ([]attendance.Session, error) {
	defer s.lock(ctx)()
	var out []attendance.Session
	for _, sess := range s.data.sessions {
		if f.EmployeeID != "" && sess.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.From.IsZero() && sess.WorkDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && sess.WorkDate.After(f.To) {
			continue
		}
		if f.ClosedOnly && sess.Open() {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}
