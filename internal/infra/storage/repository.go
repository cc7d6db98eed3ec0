package storage

import (
	"context"
	"errors"

	"github.com/clinicops/receivables/internal/core/domain"
)

var (
	// ErrBudgetNotFound is returned when a budget doesn't exist
	ErrBudgetNotFound = errors.New("budget not found")

	// ErrLabOrderNotFound is returned when a lab order doesn't exist
	ErrLabOrderNotFound = errors.New("lab order not found")
)

// LedgerRepository handles payment storage operations
type LedgerRepository interface {
	// PaidTotal returns the sum in cents of settled payments for a
	// patient scoped to a budget. Pending and voided payments are
	// excluded.
	PaidTotal(ctx context.Context, patientID, budgetID string) (int64, error)

	// RecordPayment saves a payment
	RecordPayment(ctx context.Context, payment *domain.Payment) error

	// ListByBudget retrieves all payments for a patient+budget pair
	ListByBudget(ctx context.Context, patientID, budgetID string) ([]*domain.Payment, error)
}

// BudgetRepository handles budget storage operations
type BudgetRepository interface {
	// Get retrieves a budget by ID
	Get(ctx context.Context, id string) (*domain.Budget, error)

	// Save saves/updates a budget
	Save(ctx context.Context, budget *domain.Budget) error

	// UpdateStatus updates budget status
	UpdateStatus(ctx context.Context, id string, status domain.BudgetStatus) error
}

// LabOrderRepository handles lab order storage operations
type LabOrderRepository interface {
	// Save saves a lab order
	Save(ctx context.Context, order *domain.LabOrder) error

	// Get retrieves a lab order by ID
	Get(ctx context.Context, id string) (*domain.LabOrder, error)

	// UpdateStatus updates order status
	UpdateStatus(ctx context.Context, id string, status domain.LabOrderStatus) error

	// MarkFailed records a terminal dispatch failure
	MarkFailed(ctx context.Context, id string, errorMsg string) error

	// IncrementRetry increments the dispatch retry count
	IncrementRetry(ctx context.Context, id string, errorMsg string) error

	// ListPending retrieves orders awaiting dispatch
	ListPending(ctx context.Context) ([]*domain.LabOrder, error)

	// Count returns the count of orders in a given status
	Count(ctx context.Context, status domain.LabOrderStatus) (int, error)
}
