/*
store.go - Persistence interfaces for the ledger and employee records

PURPOSE:
  Defines the interface between the shared kernel and the database.
  Domain packages (timeoff, attendance) declare their own record stores
  and embed these, so one concrete store can serve every package.

KEY INTERFACES:
  Store:         Ledger transaction persistence (append, load)
  EmployeeStore: Employee identity and role lookups
  Transactor:    Atomic units of work spanning several stores

APPEND-ONLY CONTRACT:
  The ledger Store has no Update and no Delete. A wrong debit is fixed
  by a reversal or an adjustment, and both rows stay in history.

IMPLEMENTATIONS:
  - store/sqlite: database/sql + go-sqlite3
  - store/memory: in-memory, for unit tests

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// Store handles persistence of ledger transactions.
type Store interface {
	// Append persists a transaction. This is the ONLY ledger write.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions of an employee ordered by creation time.
	Load(ctx context.Context, employeeID EmployeeID) ([]Transaction, error)
}

// EmployeeStore persists employee identities.
type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error

	// GetEmployee returns ErrNotFound when the id is unknown.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	ListEmployees(ctx context.Context) ([]Employee, error)
}

// Transactor runs a unit of work inside one storage transaction. The
// transaction travels in the context handed to fn; every store method
// called with that context joins it. Nested calls reuse the outer
// transaction.
type Transactor interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopTransactor runs fn directly. Only for stores without transactions.
type NoopTransactor struct{}

func (NoopTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
