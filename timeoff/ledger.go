/*
ledger.go - Balance queries and HR overrides

PURPOSE:
  Read side of the leave ledger plus the one write that does not come
  from a request transition: the HR adjustment.

VISIBILITY:
  Employees see their own balance and history. HR sees everyone's.

SEE ALSO:
  - generic/ledger.go: Append-only ledger
  - request.go: Debits and credits tied to requests
*/
package timeoff

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/workday/generic"
)

// Balance returns the current vacation balance in days. Negative values
// are valid: leave taken in advance.
func (s *Service) Balance(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) (generic.Amount, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return generic.Amount{}, err
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return generic.Amount{}, generic.WrapStorage("load employee", err)
	}
	return s.ledger().Balance(ctx, employeeID)
}

// Transactions returns the ledger history, oldest first.
func (s *Service) Transactions(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID) ([]generic.Transaction, error) {
	if err := authorizeFor(actor, employeeID); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, generic.WrapStorage("load employee", err)
	}
	return s.ledger().Transactions(ctx, employeeID)
}

// AdjustBalance appends a signed HR correction.
func (s *Service) AdjustBalance(ctx context.Context, actor generic.Actor, employeeID generic.EmployeeID, delta generic.Amount, reason string) (generic.Transaction, error) {
	if err := requireHR(actor); err != nil {
		return generic.Transaction{}, err
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return generic.Transaction{}, generic.WrapStorage("load employee", err)
	}

	var tx generic.Transaction
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		tx, err = s.ledger().Adjust(ctx, employeeID, delta, generic.Reference{
			Reason: strings.TrimSpace(reason),
			Actor:  actor.EmployeeID,
		})
		return err
	})
	if err != nil {
		return generic.Transaction{}, err
	}

	s.Logger.Info("leave balance adjusted",
		zap.String("employee_id", string(employeeID)),
		zap.String("actor", string(actor.EmployeeID)),
		zap.String("transaction_id", string(tx.ID)),
		zap.String("delta", delta.Value.String()),
		zap.String("reason", tx.Reason),
	)
	return tx, nil
}
