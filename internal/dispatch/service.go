package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage"
)

// Service creates lab orders and places them on the dispatch queue.
type Service struct {
	orders  storage.LabOrderRepository
	budgets storage.BudgetRepository
	queue   Queue
	log     *slog.Logger
}

// NewService creates a new dispatch service.
func NewService(orders storage.LabOrderRepository, budgets storage.BudgetRepository, queue Queue) *Service {
	return &Service{
		orders:  orders,
		budgets: budgets,
		queue:   queue,
		log:     slog.Default().With("component", "dispatch"),
	}
}

// CreateOrderInput holds the caller-supplied fields of a new lab order.
type CreateOrderInput struct {
	PatientID          string
	BudgetID           string
	LabName            string
	Description        string
	EstimatedCostCents int64
}

// CreateOrder persists a new lab order and queues it for dispatch. The
// payment gate is not consulted here: the worker runs it at dispatch
// time, which is the only check that matters.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.LabOrder, error) {
	if in.PatientID == "" || in.BudgetID == "" {
		return nil, fmt.Errorf("patient and budget are required")
	}

	budget, err := s.budgets.Get(ctx, in.BudgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	if budget.PatientID != in.PatientID {
		return nil, fmt.Errorf("budget %s does not belong to patient %s", in.BudgetID, in.PatientID)
	}
	if budget.Status != domain.BudgetStatusApproved {
		return nil, fmt.Errorf("budget %s is %s, only approved budgets accept lab orders", in.BudgetID, budget.Status)
	}

	now := time.Now()
	order := &domain.LabOrder{
		ID:                 uuid.New().String(),
		PatientID:          in.PatientID,
		BudgetID:           in.BudgetID,
		LabName:            in.LabName,
		Description:        in.Description,
		EstimatedCostCents: in.EstimatedCostCents,
		Status:             domain.LabOrderStatusQueued,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save lab order: %w", err)
	}

	if err := s.queue.Push(ctx, order, now); err != nil {
		return nil, fmt.Errorf("failed to queue lab order: %w", err)
	}

	s.log.Info("Lab order queued", "order", order.ID, "patient", order.PatientID)
	return order, nil
}
