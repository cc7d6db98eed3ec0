package domain

import "time"

// LabOrder represents work to be dispatched to a third-party lab.
// Dispatch is gated on the patient having paid at least the estimated
// lab cost against the associated budget.
type LabOrder struct {
	ID                 string         `json:"id"`
	PatientID          string         `json:"patient_id"`
	BudgetID           string         `json:"budget_id"`
	LabName            string         `json:"lab_name"`
	Description        string         `json:"description"`
	EstimatedCostCents int64          `json:"estimated_cost_cents"`
	Status             LabOrderStatus `json:"status"`
	RetryCount         int            `json:"retry_count"`
	LastError          string         `json:"last_error"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type LabOrderStatus string

const (
	LabOrderStatusDraft       LabOrderStatus = "draft"
	LabOrderStatusQueued      LabOrderStatus = "queued"
	LabOrderStatusDispatching LabOrderStatus = "dispatching"
	LabOrderStatusSent        LabOrderStatus = "sent"
	LabOrderStatusBlocked     LabOrderStatus = "blocked"
	LabOrderStatusFailed      LabOrderStatus = "failed"
)

// Dispatchable reports whether the order is in a state the dispatch
// worker may pick up.
func (o *LabOrder) Dispatchable() bool {
	return o.Status == LabOrderStatusQueued || o.Status == LabOrderStatusBlocked
}
