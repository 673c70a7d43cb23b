package models

import (
	"math"
	"strings"
	"time"
)

// Payment method values
const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodCheque       = "cheque"
	PaymentMethodOther        = "other"
)

// Payment is money received from a customer, optionally against a job.
type Payment struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	CreatedBy      string    `json:"created_by"`
	OfflineID      string    `json:"offline_id,omitempty"`
	JobID          *string   `json:"job_id,omitempty"`
	CustomerID     *string   `json:"customer_id,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Method         string    `json:"method"`
	Reference      string    `json:"reference,omitempty"`
	PaidAt         time.Time `json:"paid_at"`
	SyncStatus     string    `json:"sync_status"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *Payment) SyncRef() SyncRef {
	return SyncRef{ID: p.ID, OrganizationID: p.OrganizationID, OfflineID: p.OfflineID, UpdatedAt: p.UpdatedAt, Version: p.Version}
}

// PaymentPayload is the client-owned part of a payment carried in a sync item.
type PaymentPayload struct {
	JobID      *string   `json:"job_id"`
	CustomerID *string   `json:"customer_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference"`
	PaidAt     time.Time `json:"paid_at"`
}

// Validate normalizes the payload and reports every invalid field.
func (p *PaymentPayload) Validate() error {
	verr := &ValidationError{}
	if p.Amount <= 0 || math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
		verr.Add("amount", "must be a positive number")
	}
	p.Currency = normalizeCurrency(p.Currency, verr)
	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	if p.Method == "" {
		p.Method = PaymentMethodCash
	}
	switch p.Method {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney, PaymentMethodCheque, PaymentMethodOther:
	default:
		verr.Add("method", "must be one of cash, bank_transfer, mobile_money, cheque, other")
	}
	if p.PaidAt.IsZero() {
		verr.Add("paid_at", "is required")
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}

// ApplyTo overwrites the client-owned fields of pay.
func (p *PaymentPayload) ApplyTo(pay *Payment) {
	pay.JobID = p.JobID
	pay.CustomerID = p.CustomerID
	pay.Amount = roundMoney(p.Amount)
	pay.Currency = p.Currency
	pay.Method = p.Method
	pay.Reference = strings.TrimSpace(p.Reference)
	pay.PaidAt = NormalizeTime(p.PaidAt)
}
