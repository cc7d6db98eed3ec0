package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage/memory"
)

func newServiceFixture(t *testing.T) (*Service, *fakeQueue, *memory.LabOrderRepo, *memory.BudgetRepo) {
	t.Helper()
	store := memory.NewMemoryStorage()
	orders := memory.NewLabOrderRepo(store)
	budgets := memory.NewBudgetRepo(store)
	queue := &fakeQueue{}
	return NewService(orders, budgets, queue), queue, orders, budgets
}

func approvedBudget(t *testing.T, budgets *memory.BudgetRepo, id, patientID string) {
	t.Helper()
	err := budgets.Save(context.Background(), &domain.Budget{
		ID:         id,
		PatientID:  patientID,
		TotalCents: 250000,
		Status:     domain.BudgetStatusApproved,
	})
	if err != nil {
		t.Fatalf("Failed to save budget: %v", err)
	}
}

func TestCreateOrder_QueuesOrder(t *testing.T) {
	svc, queue, orders, budgets := newServiceFixture(t)
	approvedBudget(t, budgets, "b1", "p1")

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		PatientID:          "p1",
		BudgetID:           "b1",
		LabName:            "crown-works",
		EstimatedCostCents: 80000,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ID == "" {
		t.Error("Expected generated order ID")
	}
	if order.Status != domain.LabOrderStatusQueued {
		t.Errorf("Expected status queued, got %s", order.Status)
	}

	saved, err := orders.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Order not persisted: %v", err)
	}
	if saved.EstimatedCostCents != 80000 {
		t.Errorf("Expected estimated cost 80000, got %d", saved.EstimatedCostCents)
	}
	if queue.pushed != 1 {
		t.Errorf("Expected 1 queue push, got %d", queue.pushed)
	}
}

func TestCreateOrder_RejectsUnapprovedBudget(t *testing.T) {
	svc, queue, _, budgets := newServiceFixture(t)
	err := budgets.Save(context.Background(), &domain.Budget{
		ID:        "b1",
		PatientID: "p1",
		Status:    domain.BudgetStatusDraft,
	})
	if err != nil {
		t.Fatalf("Failed to save budget: %v", err)
	}

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		PatientID: "p1",
		BudgetID:  "b1",
		LabName:   "crown-works",
	})
	if err == nil {
		t.Fatal("Expected error for draft budget")
	}
	if !strings.Contains(err.Error(), "approved") {
		t.Errorf("Expected budget-status error, got %v", err)
	}
	if queue.pushed != 0 {
		t.Error("Rejected order must not be queued")
	}
}

func TestCreateOrder_RejectsForeignBudget(t *testing.T) {
	svc, _, _, budgets := newServiceFixture(t)
	approvedBudget(t, budgets, "b1", "someone-else")

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		PatientID: "p1",
		BudgetID:  "b1",
		LabName:   "crown-works",
	})
	if err == nil {
		t.Fatal("Expected error for foreign budget")
	}
}

func TestCreateOrder_RejectsMissingBudget(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		PatientID: "p1",
		BudgetID:  "nope",
		LabName:   "crown-works",
	})
	if err == nil {
		t.Fatal("Expected error for missing budget")
	}
}
