package domain

import "time"

// Budget is a priced treatment plan for a patient. It defines the scope
// over which "amount paid" is summed when gating a lab order.
type Budget struct {
	ID         string       `json:"id"`
	PatientID  string       `json:"patient_id"`
	TotalCents int64        `json:"total_cents"`
	Status     BudgetStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type BudgetStatus string

const (
	BudgetStatusDraft     BudgetStatus = "draft"
	BudgetStatusApproved  BudgetStatus = "approved"
	BudgetStatusCompleted BudgetStatus = "completed"
	BudgetStatusCancelled BudgetStatus = "cancelled"
)
