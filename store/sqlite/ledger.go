package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/workday/generic"
)

// =============================================================================
// EMPLOYEES (generic.EmployeeStore)
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO employees (id, name, email, role, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			hire_date = excluded.hire_date`,
		e.ID, e.Name, e.Email, e.Role, e.HireDate.String(), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, email, role, hire_date, created_at FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, generic.NotFound("employee", string(id))
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, name, email, role, hire_date, created_at FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []generic.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (generic.Employee, error) {
	var (
		e                   generic.Employee
		hireDate, createdAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &hireDate, &createdAt); err != nil {
		return e, err
	}
	var err error
	if e.HireDate, err = parseDate(hireDate); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	return e, nil
}

// =============================================================================
// LEDGER (generic.Store)
// =============================================================================

// Append adds a transaction to the ledger. There is no update or delete.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO ledger_transactions
		(id, employee_id, delta, unit, tx_type, reference_id, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.EmployeeID,
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		tx.ReferenceID,
		tx.Reason,
		tx.CreatedBy,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// Load returns the employee's transactions in insertion order.
func (s *Store) Load(ctx context.Context, employeeID generic.EmployeeID) ([]generic.Transaction, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, employee_id, delta, unit, tx_type, reference_id, reason, created_by, created_at
		FROM ledger_transactions
		WHERE employee_id = ?
		ORDER BY created_at, rowid`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	var out []generic.Transaction
	for rows.Next() {
		var (
			tx               generic.Transaction
			delta, createdAt string
			unit             generic.Unit
		)
		if err := rows.Scan(&tx.ID, &tx.EmployeeID, &delta, &unit, &tx.Type,
			&tx.ReferenceID, &tx.Reason, &tx.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		if tx.Delta, err = generic.ParseAmount(delta, unit); err != nil {
			return nil, fmt.Errorf("bad delta %q: %w", delta, err)
		}
		if tx.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
