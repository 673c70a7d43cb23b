package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const expenseColumns = `id, organization_id, created_by, offline_id, job_id, category,
	amount, currency, description, expense_date, sync_status, version, created_at, updated_at`

// ExpenseRepository implements ExpenseStore
type ExpenseRepository struct {
	q Querier
	d Dialect
}

// GetByID retrieves an expense inside an organization
func (r *ExpenseRepository) GetByID(ctx context.Context, orgID, id string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE organization_id = ? AND id = ?`
	return r.scanExpense(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, id))
}

// FindByOfflineID retrieves the expense a client created under offlineID
func (r *ExpenseRepository) FindByOfflineID(ctx context.Context, orgID, offlineID string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE organization_id = ? AND offline_id = ?`
	return r.scanExpense(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, offlineID))
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		e.ID,
		e.OrganizationID,
		e.CreatedBy,
		nullIfEmpty(e.OfflineID),
		e.JobID,
		e.Category,
		e.Amount,
		e.Currency,
		e.Description,
		e.ExpenseDate.UTC(),
		e.SyncStatus,
		e.Version,
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	return err
}

// Update overwrites an expense if it has not changed since expectedUpdatedAt
func (r *ExpenseRepository) Update(ctx context.Context, e *models.Expense, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE expenses SET
			job_id = ?, category = ?, amount = ?, currency = ?, description = ?,
			expense_date = ?, sync_status = ?, version = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND updated_at = ?
	`
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		e.JobID,
		e.Category,
		e.Amount,
		e.Currency,
		e.Description,
		e.ExpenseDate.UTC(),
		e.SyncStatus,
		e.Version,
		e.UpdatedAt.UTC(),
		e.OrganizationID,
		e.ID,
		expectedUpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ListUpdatedSince returns expenses changed after the cursor
func (r *ExpenseRepository) ListUpdatedSince(ctx context.Context, orgID string, since time.Time, sinceVersion *int64) ([]*models.Expense, error) {
	query, args := changedSince(`SELECT `+expenseColumns+` FROM expenses`, orgID, since, sinceVersion)
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpenseFields(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) scanExpense(row *sql.Row) (*models.Expense, error) {
	e, err := scanExpenseFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func scanExpenseFields(s rowScanner) (*models.Expense, error) {
	var e models.Expense
	var offlineID sql.NullString

	err := s.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.CreatedBy,
		&offlineID,
		&e.JobID,
		&e.Category,
		&e.Amount,
		&e.Currency,
		&e.Description,
		&e.ExpenseDate,
		&e.SyncStatus,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.OfflineID = offlineID.String
	e.ExpenseDate = e.ExpenseDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
