/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  One Store serves the ledger, employees, leave requests and time
  sessions, so a single database transaction can span all of them.

INTERFACES IMPLEMENTED:
  generic.Store:         Ledger transactions (append-only)
  generic.EmployeeStore: Employee records
  generic.Transactor:    WithTx, transaction carried in the context
  timeoff.RequestStore:  Leave requests (compare-and-set on version)
  attendance.SessionStore: Time sessions (compare-and-set on version)

KEY TABLES:
  employees, ledger_transactions, leave_requests, time_sessions

INVARIANTS BACKED BY THE SCHEMA:
  - idx_time_sessions_one_open: at most one session per employee with
    end_time NULL
  - ledger_transactions triggers abort any UPDATE or DELETE

TRANSACTIONS:
  WithTx begins a transaction and stores it in the context. Every method
  called with that context runs on the transaction; calls without it run
  on the pool. Writers take the database lock at BEGIN (_txlock=immediate)
  and wait up to the busy timeout for it.

MIGRATION:
  Versioned SQL under migrations/ is embedded and applied by
  golang-migrate on New().

USAGE:
  store, err := sqlite.New("./data/workday.db", sqlite.WithOpTimeout(3*time.Second))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/memory: In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/workday/attendance"
	"github.com/warp/workday/generic"
	"github.com/warp/workday/timeoff"
)

var (
	_ timeoff.Store      = (*Store)(nil)
	_ attendance.Store   = (*Store)(nil)
	_ generic.Transactor = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

type options struct {
	opTimeout     time.Duration
	busyTimeoutMS int
}

type Option func(*options)

// WithOpTimeout bounds every single storage call.
func WithOpTimeout(d time.Duration) Option { return func(o *options) { o.opTimeout = d } }

// WithBusyTimeout sets how long a writer waits for the database lock.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeoutMS = ms } }

// New opens the database at path and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(path string, opts ...Option) (*Store, error) {
	o := options{opTimeout: 5 * time.Second, busyTimeoutMS: 5000}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", path, o.busyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, opTimeout: o.opTimeout}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txKey struct{}

type txHandle struct {
	owner *Store
	tx    *sql.Tx
}

// WithTx runs fn in a database transaction. Nested calls join the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &generic.StorageError{Op: "begin transaction", Err: err}
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, txHandle{owner: s, tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, &generic.StorageError{Op: "rollback", Err: rbErr})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &generic.StorageError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

func (s *Store) txFrom(ctx context.Context) (*sql.Tx, bool) {
	h, ok := ctx.Value(txKey{}).(txHandle)
	if !ok || h.owner != s {
		return nil, false
	}
	return h.tx, true
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) queryer {
	if tx, ok := s.txFrom(ctx); ok {
		return tx
	}
	return s.db
}

// op derives the per-call deadline.
func (s *Store) op(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(s string) (generic.Date, error) {
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return d, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
