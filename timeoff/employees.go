package timeoff

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/workday/generic"
)

// NewEmployee describes an employee to provision.
type NewEmployee struct {
	ID             generic.EmployeeID // generated when empty
	Name           string
	Email          string
	Role           generic.Role
	HireDate       generic.Date
	OpeningBalance generic.Amount
}

// ProvisionEmployee creates the employee and grants the opening balance
// in one transaction. HR only.
func (s *Service) ProvisionEmployee(ctx context.Context, actor generic.Actor, in NewEmployee) (*generic.Employee, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, &generic.ValidationError{Field: "name", Message: "required"}
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, &generic.ValidationError{Field: "email", Message: "not a valid address"}
		}
	}
	if in.Role == "" {
		in.Role = generic.RoleEmployee
	}
	if !in.Role.Valid() {
		return nil, &generic.ValidationError{Field: "role", Message: "unknown role " + string(in.Role)}
	}
	if in.OpeningBalance.IsNegative() {
		return nil, &generic.ValidationError{Field: "opening_balance", Message: "cannot be negative"}
	}
	if in.ID == "" {
		in.ID = generic.EmployeeID(uuid.NewString())
	}
	if in.HireDate.IsZero() {
		in.HireDate = generic.Today(s.Clock)
	}

	emp := generic.Employee{
		ID:        in.ID,
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		HireDate:  in.HireDate,
		CreatedAt: s.now(),
	}
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.Store.SaveEmployee(ctx, emp); err != nil {
			return generic.WrapStorage("save employee", err)
		}
		if in.OpeningBalance.IsZero() {
			return nil
		}
		_, err := s.ledger().Grant(ctx, emp.ID, in.OpeningBalance, generic.Reference{
			Reason: "opening balance",
			Actor:  actor.EmployeeID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("employee provisioned",
		zap.String("employee_id", string(emp.ID)),
		zap.String("role", string(emp.Role)),
		zap.String("opening_balance", in.OpeningBalance.Value.String()),
	)
	return &emp, nil
}

// Employee reads one employee. Employees may only read themselves.
func (s *Service) Employee(ctx context.Context, actor generic.Actor, id generic.EmployeeID) (*generic.Employee, error) {
	if err := authorizeFor(actor, id); err != nil {
		return nil, err
	}
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, generic.WrapStorage("load employee", err)
	}
	return emp, nil
}

// Employees lists everyone. HR only.
func (s *Service) Employees(ctx context.Context, actor generic.Actor) ([]generic.Employee, error) {
	if err := requireHR(actor); err != nil {
		return nil, err
	}
	out, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, generic.WrapStorage("list employees", err)
	}
	return out, nil
}
