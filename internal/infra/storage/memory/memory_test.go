package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage"
)

func TestLedgerRepo_PaidTotalCountsOnlySettled(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewLedgerRepo(store)
	ctx := context.Background()

	payments := []*domain.Payment{
		{ID: "1", PatientID: "p1", BudgetID: "b1", AmountCents: 30000, Status: domain.PaymentStatusSettled},
		{ID: "2", PatientID: "p1", BudgetID: "b1", AmountCents: 20000, Status: domain.PaymentStatusSettled},
		{ID: "3", PatientID: "p1", BudgetID: "b1", AmountCents: 50000, Status: domain.PaymentStatusPending},
		{ID: "4", PatientID: "p1", BudgetID: "b1", AmountCents: 10000, Status: domain.PaymentStatusVoided},
		{ID: "5", PatientID: "p1", BudgetID: "b2", AmountCents: 99900, Status: domain.PaymentStatusSettled},
		{ID: "6", PatientID: "p2", BudgetID: "b1", AmountCents: 11100, Status: domain.PaymentStatusSettled},
	}
	for _, p := range payments {
		if err := repo.RecordPayment(ctx, p); err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
	}

	total, err := repo.PaidTotal(ctx, "p1", "b1")
	if err != nil {
		t.Fatalf("PaidTotal failed: %v", err)
	}
	// Only the two settled payments scoped to p1/b1 count.
	if total != 50000 {
		t.Errorf("Expected 50000, got %d", total)
	}
}

func TestLabOrderRepo_Lifecycle(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewLabOrderRepo(store)
	ctx := context.Background()

	order := &domain.LabOrder{
		ID:        "o1",
		PatientID: "p1",
		BudgetID:  "b1",
		Status:    domain.LabOrderStatusQueued,
	}
	if err := repo.Save(ctx, order); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pending, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending order, got %d", len(pending))
	}

	if err := repo.IncrementRetry(ctx, "o1", "send failed"); err != nil {
		t.Fatalf("IncrementRetry failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "o1", "gave up"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, err := repo.Get(ctx, "o1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.LabOrderStatusFailed {
		t.Errorf("Expected status failed, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", got.RetryCount)
	}
	if got.LastError != "gave up" {
		t.Errorf("Expected last error 'gave up', got %q", got.LastError)
	}

	count, err := repo.Count(ctx, domain.LabOrderStatusFailed)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 failed order, got %d", count)
	}
}

func TestLabOrderRepo_NotFound(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewLabOrderRepo(store)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrLabOrderNotFound) {
		t.Errorf("Expected ErrLabOrderNotFound, got %v", err)
	}

	err = repo.UpdateStatus(context.Background(), "missing", domain.LabOrderStatusSent)
	if !errors.Is(err, storage.ErrLabOrderNotFound) {
		t.Errorf("Expected ErrLabOrderNotFound, got %v", err)
	}
}

func TestLedgerRepo_IsolatedCopies(t *testing.T) {
	store := NewMemoryStorage()
	repo := NewLedgerRepo(store)
	ctx := context.Background()

	p := &domain.Payment{ID: "1", PatientID: "p1", BudgetID: "b1", AmountCents: 1000, Status: domain.PaymentStatusSettled}
	if err := repo.RecordPayment(ctx, p); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	// Mutating the caller's struct after recording must not affect the store.
	p.AmountCents = 9999999

	total, err := repo.PaidTotal(ctx, "p1", "b1")
	if err != nil {
		t.Fatalf("PaidTotal failed: %v", err)
	}
	if total != 1000 {
		t.Errorf("Expected 1000, got %d", total)
	}
}
