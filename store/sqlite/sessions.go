package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
)

// =============================================================================
// TIME SESSIONS (attendance.SessionStore)
// =============================================================================

const sessionColumns = `id, employee_id, work_date, start_time, end_time, pause_start_time,
	accumulated_pause_seconds, closing_note, correction_reason, corrected_by, corrected_at,
	version, created_at, updated_at`

// CreateSession relies on idx_time_sessions_one_open to reject a second
// open session, including one inserted by a concurrent transaction.
func (s *Store) CreateSession(ctx context.Context, sess attendance.Session) error {
	opCtx, cancel := s.op(ctx)
	defer cancel()

	_, err := s.conn(opCtx).ExecContext(opCtx,
		`INSERT INTO time_sessions (`+sessionColumns+`) VALUES (`+placeholders(14)+`)`,
		sess.ID, sess.EmployeeID, sess.WorkDate.String(), formatTime(sess.StartTime),
		formatTimePtr(sess.EndTime), formatTimePtr(sess.PauseStartTime),
		sess.AccumulatedPauseSeconds, sess.ClosingNote, sess.CorrectionReason, sess.CorrectedBy,
		formatTimePtr(sess.CorrectedAt), sess.Version, formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err == nil {
		return nil
	}
	if !isUniqueConstraintError(err) || !strings.Contains(err.Error(), "time_sessions.employee_id") {
		return fmt.Errorf("failed to create session: %w", err)
	}

	concErr := &generic.ConcurrentSessionError{EmployeeID: sess.EmployeeID}
	if open, lookupErr := s.OpenSession(ctx, sess.EmployeeID); lookupErr == nil && open != nil {
		concErr.OpenSessionID = string(open.ID)
		concErr.WorkDate = open.WorkDate
	}
	return concErr
}

func (s *Store) GetSession(ctx context.Context, id attendance.SessionID) (*attendance.Session, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM time_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, generic.NotFound("session", string(id))
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) OpenSession(ctx context.Context, employeeID generic.EmployeeID) (*attendance.Session, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM time_sessions WHERE employee_id = ? AND end_time IS NULL`, employeeID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSession writes sess if the stored version still equals sess.Version.
func (s *Store) UpdateSession(ctx context.Context, sess *attendance.Session) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE time_sessions SET
			work_date = ?, start_time = ?, end_time = ?, pause_start_time = ?,
			accumulated_pause_seconds = ?, closing_note = ?,
			correction_reason = ?, corrected_by = ?, corrected_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		sess.WorkDate.String(), formatTime(sess.StartTime), formatTimePtr(sess.EndTime), formatTimePtr(sess.PauseStartTime),
		sess.AccumulatedPauseSeconds, sess.ClosingNote,
		sess.CorrectionReason, sess.CorrectedBy, formatTimePtr(sess.CorrectedAt),
		formatTime(sess.UpdatedAt),
		sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := s.checkSwapped(ctx, res, "time_sessions", string(sess.ID), "update session"); err != nil {
		return err
	}
	sess.Version++
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id attendance.SessionID) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM time_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NotFound("session", string(id))
	}
	return nil
}

// ListSessions orders by start time.
func (s *Store) ListSessions(ctx context.Context, f attendance.SessionFilter) ([]attendance.Session, error) {
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
	if !f.From.IsZero() {
		where = append(where, "work_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "work_date <= ?")
		args = append(args, f.To.String())
	}
	if f.ClosedOnly {
		where = append(where, "end_time IS NOT NULL")
	}

	query := `SELECT ` + sessionColumns + ` FROM time_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []attendance.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row scanner) (attendance.Session, error) {
	var (
		sess                           attendance.Session
		workDate, startTime            string
		endTime, pauseStart, corrected sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(&sess.ID, &sess.EmployeeID, &workDate, &startTime, &endTime, &pauseStart,
		&sess.AccumulatedPauseSeconds, &sess.ClosingNote, &sess.CorrectionReason, &sess.CorrectedBy, &corrected,
		&sess.Version, &createdAt, &updatedAt)
	if err != nil {
		return sess, err
	}

	if sess.WorkDate, err = parseDate(workDate); err != nil {
		return sess, err
	}
	if sess.StartTime, err = parseTime(startTime); err != nil {
		return sess, err
	}
	if sess.EndTime, err = parseTimePtr(endTime); err != nil {
		return sess, err
	}
	if sess.PauseStartTime, err = parseTimePtr(pauseStart); err != nil {
		return sess, err
	}
	if sess.CorrectedAt, err = parseTimePtr(corrected); err != nil {
		return sess, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return sess, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return sess, err
	}
	return sess, nil
}
