/*
Package generic provides the shared kernel used by the leave and attendance domains.

PURPOSE:
  Holds the types every other package agrees on: civil dates, clocks,
  leave-day amounts, employee identities and the actor that performs a
  write. The leave balance ledger also lives here because both the leave
  lifecycle and HR overrides write through it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A signed quantity of leave days (decimal, never float)
  - Transaction: An immutable ledger entry recording a balance change
  - Employee: Identity, display name and role
  - Actor: Who is performing an operation (used for authorization)

DESIGN PRINCIPLES:
  1. Immutability: Ledger transactions are never modified, only offset
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Type Safety: Strong typing for IDs prevents mixing employee/request IDs

USAGE:
  days := generic.NewAmountFromInt(5, generic.UnitDays)
  tx := generic.Transaction{
      EmployeeID: "emp-123",
      Delta:      days.Neg(),
      Type:       generic.TxConsumption,
  }

SEE ALSO:
  - ledger.go: Balance mutations (debit/credit/adjust)
  - time.go: Date and Clock
  - errors.go: Error taxonomy
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity of leave
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// ParseAmount parses a decimal string such as "22" or "1.5".
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &ValidationError{Field: "amount", Message: "not a decimal number: " + s}
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() + " " + string(a.Unit) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type TransactionID string

// =============================================================================
// EMPLOYEE & ACTOR
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// CanManage reports whether the role carries the HR capability.
func (r Role) CanManage() bool { return r == RoleHR || r == RoleAdmin }

type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	Role      Role
	HireDate  Date
	CreatedAt time.Time
}

// Actor is the authenticated caller of a write operation.
type Actor struct {
	EmployeeID EmployeeID
	Role       Role
}

// SystemActor attributes writes the service performs on its own (auto-close).
var SystemActor = Actor{EmployeeID: "system", Role: RoleAdmin}

// Validate rejects calls that cannot be attributed to anyone.
func (a Actor) Validate() error {
	if a.EmployeeID == "" || !a.Role.Valid() {
		return ErrUnauthenticated
	}
	return nil
}

func (a Actor) IsHR() bool { return a.Role.CanManage() }

// CanActFor reports whether the actor may operate on the employee's records.
func (a Actor) CanActFor(owner EmployeeID) bool {
	return a.EmployeeID == owner || a.IsHR()
}

// =============================================================================
// TRANSACTION - Atomic change to a leave balance
// =============================================================================

type TransactionType string

const (
	TxGrant       TransactionType = "grant"       // Opening balance or yearly entitlement
	TxConsumption TransactionType = "consumption" // Approved vacation
	TxReversal    TransactionType = "reversal"    // Cancelled vacation credited back
	TxAdjustment  TransactionType = "adjustment"  // HR override
)

type Transaction struct {
	ID          TransactionID
	EmployeeID  EmployeeID
	Delta       Amount
	Type        TransactionType
	ReferenceID string // leave request id, empty for grants/adjustments
	Reason      string

	CreatedBy EmployeeID
	CreatedAt time.Time
}
