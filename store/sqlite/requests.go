package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

// =============================================================================
// LEAVE REQUESTS (timeoff.RequestStore)
// =============================================================================

const requestColumns = `id, employee_id, kind, start_date, end_date, is_partial_day,
	partial_start, partial_end, note, attachment_ref, state, business_days_consumed,
	ever_approved, reviewed_by, reviewed_at, review_note, created_by, version,
	created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, r timeoff.Request) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO leave_requests (`+requestColumns+`) VALUES (`+placeholders(20)+`)`,
		r.ID, r.EmployeeID, r.Kind, r.StartDate.String(), r.EndDate.String(), boolInt(r.IsPartialDay),
		r.PartialStart, r.PartialEnd, r.Note, r.AttachmentRef, r.State, r.BusinessDaysConsumed,
		boolInt(r.EverApproved), r.ReviewedBy, formatTimePtr(r.ReviewedAt), r.ReviewNote, r.CreatedBy, r.Version,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id timeoff.RequestID) (*timeoff.Request, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, generic.NotFound("leave request", string(id))
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRequest writes r if the stored version still equals r.Version.
func (s *Store) UpdateRequest(ctx context.Context, r *timeoff.Request) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE leave_requests SET
			kind = ?, start_date = ?, end_date = ?, is_partial_day = ?,
			partial_start = ?, partial_end = ?, note = ?, attachment_ref = ?,
			state = ?, business_days_consumed = ?, ever_approved = ?,
			reviewed_by = ?, reviewed_at = ?, review_note = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.Kind, r.StartDate.String(), r.EndDate.String(), boolInt(r.IsPartialDay),
		r.PartialStart, r.PartialEnd, r.Note, r.AttachmentRef,
		r.State, r.BusinessDaysConsumed, boolInt(r.EverApproved),
		r.ReviewedBy, formatTimePtr(r.ReviewedAt), r.ReviewNote,
		formatTime(r.UpdatedAt),
		r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if err := s.checkSwapped(ctx, res, "leave_requests", string(r.ID), "update leave request"); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id timeoff.RequestID, version int) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM leave_requests WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to delete leave request: %w", err)
	}
	return s.checkSwapped(ctx, res, "leave_requests", string(id), "delete leave request")
}

// checkSwapped turns a compare-and-set that touched no row into either
// not-found or a version conflict.
func (s *Store) checkSwapped(ctx context.Context, res sql.Result, table, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.conn(ctx).QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return generic.NotFound(strings.TrimSuffix(table, "s"), id)
	}
	if err != nil {
		return err
	}
	return &generic.StorageError{Op: op, Err: generic.ErrConcurrentModification}
}

// ListRequests orders by start date, then creation.
func (s *Store) ListRequests(ctx context.Context, f timeoff.Filter) ([]timeoff.Request, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if len(f.States) > 0 {
		where = append(where, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, st)
		}
	}
	if !f.From.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, created_at"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	var out []timeoff.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (timeoff.Request, error) {
	var (
		r                     timeoff.Request
		startDate, endDate    string
		partial, everApproved int
		reviewedAt            sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Kind, &startDate, &endDate, &partial,
		&r.PartialStart, &r.PartialEnd, &r.Note, &r.AttachmentRef, &r.State, &r.BusinessDaysConsumed,
		&everApproved, &r.ReviewedBy, &reviewedAt, &r.ReviewNote, &r.CreatedBy, &r.Version,
		&createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.IsPartialDay = partial != 0
	r.EverApproved = everApproved != 0

	if r.StartDate, err = parseDate(startDate); err != nil {
		return r, err
	}
	if r.EndDate, err = parseDate(endDate); err != nil {
		return r, err
	}
	if r.ReviewedAt, err = parseTimePtr(reviewedAt); err != nil {
		return r, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}
