package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Querier is satisfied by *sql.DB, *sql.Tx and traced wrappers around them.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Dialect selects placeholder style and schema for a driver.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Name is the OpenTelemetry db.system value for the dialect.
func (d Dialect) Name() string {
	if d == DialectPostgres {
		return "postgresql"
	}
	return "sqlite"
}

// Rebind converts ? placeholders to the dialect's style.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// QueryWrapper decorates every Querier the store hands to repositories.
type QueryWrapper func(q Querier) Querier

// Store groups the repositories over one connection or transaction.
type Store struct {
	db      *sql.DB
	q       Querier
	dialect Dialect
	wrap    QueryWrapper
	inTx    bool
}

// NewStore creates a store over db. wrap may be nil.
func NewStore(db *sql.DB, dialect Dialect, wrap QueryWrapper) *Store {
	s := &Store{db: db, dialect: dialect, wrap: wrap}
	s.q = s.wrapQuerier(db)
	return s
}

func (s *Store) wrapQuerier(q Querier) Querier {
	if s.wrap == nil {
		return q
	}
	return s.wrap(q)
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn with a store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{db: s.db, q: s.wrapQuerier(tx), dialect: s.dialect, wrap: s.wrap, inTx: true}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Measurements returns the measurement repository
func (s *Store) Measurements() MeasurementStore {
	return &MeasurementRepository{q: s.q, d: s.dialect}
}

// Jobs returns the job repository
func (s *Store) Jobs() JobStore {
	return &JobRepository{q: s.q, d: s.dialect}
}

// Expenses returns the expense repository
func (s *Store) Expenses() ExpenseStore {
	return &ExpenseRepository{q: s.q, d: s.dialect}
}

// Payments returns the payment repository
func (s *Store) Payments() PaymentStore {
	return &PaymentRepository{q: s.q, d: s.dialect}
}

// SyncLogs returns the sync log repository
func (s *Store) SyncLogs() SyncLogStore {
	return &SyncLogRepository{q: s.q, d: s.dialect}
}

// Tracking returns the tracking point repository
func (s *Store) Tracking() TrackingStore {
	return &TrackingRepository{q: s.q, d: s.dialect}
}

// Counters returns the sync counter repository
func (s *Store) Counters() SyncCounterStore {
	return &SyncCounterRepository{q: s.q, d: s.dialect}
}

// nullIfEmpty stores empty strings as NULL so unique indexes ignore them.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
