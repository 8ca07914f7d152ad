package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ColInvoiceID   = "invoice_id"
	ColAmount      = "amount"
	ColInvoiceDate = "invoice_date"
	ColDueDate     = "due_date"
	ColDelayDays   = "delay_days"
)

type Invoice struct {
	ID          string          `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	InvoiceDate time.Time       `json:"invoice_date" validate:"required"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
	DelayDays   *float64        `json:"delay_days,omitempty"`
}

type AnalysisResult struct {
	InvoiceID              string  `json:"invoice_id,omitempty"`
	PredictedDelay         int     `json:"predicted_delay"`
	RiskScore              float64 `json:"risk_score"`
	OptimalPaymentTermDays int     `json:"optimal_payment_term_days"`
}

type Decision struct {
	InvoiceID       string         `json:"invoice_id"`
	Analysis        AnalysisResult `json:"analysis"`
	PaymentTermDays int            `json:"payment_term_days"`
	RiskScore       float64        `json:"risk_score"`
	AppliedRules    []string       `json:"applied_rules"`
	Notes           map[string]any `json:"notes,omitempty"`
	DecidedAt       time.Time      `json:"decided_at"`
}
