package models

import (
	"math"
	"strings"
	"time"
)

// Expense is a cost recorded against the organization, optionally tied to a job.
type Expense struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	CreatedBy      string    `json:"created_by"`
	OfflineID      string    `json:"offline_id,omitempty"`
	JobID          *string   `json:"job_id,omitempty"`
	Category       string    `json:"category"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Description    string    `json:"description,omitempty"`
	ExpenseDate    time.Time `json:"expense_date"`
	SyncStatus     string    `json:"sync_status"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (e *Expense) SyncRef() SyncRef {
	return SyncRef{ID: e.ID, OrganizationID: e.OrganizationID, OfflineID: e.OfflineID, UpdatedAt: e.UpdatedAt, Version: e.Version}
}

// DefaultCurrency is used when a client omits the currency code.
const DefaultCurrency = "USD"

// ExpensePayload is the client-owned part of an expense carried in a sync item.
type ExpensePayload struct {
	JobID       *string   `json:"job_id"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	ExpenseDate time.Time `json:"expense_date"`
}

// Validate normalizes the payload and reports every invalid field.
func (p *ExpensePayload) Validate() error {
	verr := &ValidationError{}
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	if p.Category == "" {
		verr.Add("category", "is required")
	}
	if p.Amount <= 0 || math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
		verr.Add("amount", "must be a positive number")
	}
	p.Currency = normalizeCurrency(p.Currency, verr)
	if p.ExpenseDate.IsZero() {
		verr.Add("expense_date", "is required")
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}

// ApplyTo overwrites the client-owned fields of e.
func (p *ExpensePayload) ApplyTo(e *Expense) {
	e.JobID = p.JobID
	e.Category = p.Category
	e.Amount = roundMoney(p.Amount)
	e.Currency = p.Currency
	e.Description = p.Description
	e.ExpenseDate = NormalizeTime(p.ExpenseDate)
}

func normalizeCurrency(code string, verr *ValidationError) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	if len(code) != 3 {
		verr.Add("currency", "must be a 3-letter ISO 4217 code")
	}
	return code
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
