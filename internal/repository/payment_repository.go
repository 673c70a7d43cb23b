package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const paymentColumns = `id, organization_id, created_by, offline_id, job_id, customer_id,
	amount, currency, method, reference, paid_at, sync_status, version, created_at, updated_at`

// PaymentRepository implements PaymentStore
type PaymentRepository struct {
	q Querier
	d Dialect
}

// GetByID retrieves a payment inside an organization
func (r *PaymentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE organization_id = ? AND id = ?`
	return r.scanPayment(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, id))
}

// FindByOfflineID retrieves the payment a client created under offlineID
func (r *PaymentRepository) FindByOfflineID(ctx context.Context, orgID, offlineID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE organization_id = ? AND offline_id = ?`
	return r.scanPayment(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, offlineID))
}

// Create inserts a new payment
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		p.ID,
		p.OrganizationID,
		p.CreatedBy,
		nullIfEmpty(p.OfflineID),
		p.JobID,
		p.CustomerID,
		p.Amount,
		p.Currency,
		p.Method,
		p.Reference,
		p.PaidAt.UTC(),
		p.SyncStatus,
		p.Version,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return err
}

// Update overwrites a payment if it has not changed since expectedUpdatedAt
func (r *PaymentRepository) Update(ctx context.Context, p *models.Payment, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE payments SET
			job_id = ?, customer_id = ?, amount = ?, currency = ?, method = ?,
			reference = ?, paid_at = ?, sync_status = ?, version = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND updated_at = ?
	`
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		p.JobID,
		p.CustomerID,
		p.Amount,
		p.Currency,
		p.Method,
		p.Reference,
		p.PaidAt.UTC(),
		p.SyncStatus,
		p.Version,
		p.UpdatedAt.UTC(),
		p.OrganizationID,
		p.ID,
		expectedUpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ListUpdatedSince returns payments changed after the cursor
func (r *PaymentRepository) ListUpdatedSince(ctx context.Context, orgID string, since time.Time, sinceVersion *int64) ([]*models.Payment, error) {
	query, args := changedSince(`SELECT `+paymentColumns+` FROM payments`, orgID, since, sinceVersion)
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPaymentFields(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) scanPayment(row *sql.Row) (*models.Payment, error) {
	p, err := scanPaymentFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPaymentFields(s rowScanner) (*models.Payment, error) {
	var p models.Payment
	var offlineID sql.NullString

	err := s.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.CreatedBy,
		&offlineID,
		&p.JobID,
		&p.CustomerID,
		&p.Amount,
		&p.Currency,
		&p.Method,
		&p.Reference,
		&p.PaidAt,
		&p.SyncStatus,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.OfflineID = offlineID.String
	p.PaidAt = p.PaidAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
