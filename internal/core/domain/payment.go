package domain

import "time"

// Payment represents a single payment applied against a budget.
// Amounts are integer minor units (cents) to avoid float drift.
type Payment struct {
	ID          string        `json:"id"`
	PatientID   string        `json:"patient_id"`
	BudgetID    string        `json:"budget_id"`
	AmountCents int64         `json:"amount_cents"`
	Method      PaymentMethod `json:"method"`
	Status      PaymentStatus `json:"status"`
	PaidAt      time.Time     `json:"paid_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentStatusSettled PaymentStatus = "settled"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusVoided  PaymentStatus = "voided"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodPix      PaymentMethod = "pix"
)

// CountsTowardPaid reports whether the payment contributes to the
// "amount paid" total used by the lab-order gate. Only settled money
// counts; pending and voided payments do not.
func (p *Payment) CountsTowardPaid() bool {
	return p.Status == PaymentStatusSettled
}
