package memory

import (
	"context"
	"sync"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage"
)

type MemoryStorage struct {
	payments  map[string]*domain.Payment
	budgets   map[string]*domain.Budget
	labOrders map[string]*domain.LabOrder
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		payments:  make(map[string]*domain.Payment),
		budgets:   make(map[string]*domain.Budget),
		labOrders: make(map[string]*domain.LabOrder),
	}
}

// -----------------------------------------------------------------------------
// Ledger Repository
// -----------------------------------------------------------------------------

type LedgerRepo struct {
	store *MemoryStorage
}

func NewLedgerRepo(store *MemoryStorage) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) PaidTotal(ctx context.Context, patientID, budgetID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var total int64
	for _, p := range r.store.payments {
		if p.PatientID == patientID && p.BudgetID == budgetID && p.CountsTowardPaid() {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (r *LedgerRepo) RecordPayment(ctx context.Context, p *domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *p
	r.store.payments[p.ID] = &cp
	return nil
}

func (r *LedgerRepo) ListByBudget(ctx context.Context, patientID, budgetID string) ([]*domain.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range r.store.payments {
		if p.PatientID == patientID && p.BudgetID == budgetID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Budget Repository
// -----------------------------------------------------------------------------

type BudgetRepo struct {
	store *MemoryStorage
}

func NewBudgetRepo(store *MemoryStorage) *BudgetRepo {
	return &BudgetRepo{store: store}
}

func (r *BudgetRepo) Get(ctx context.Context, id string) (*domain.Budget, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.budgets[id]
	if !ok {
		return nil, storage.ErrBudgetNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *BudgetRepo) Save(ctx context.Context, b *domain.Budget) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *b
	r.store.budgets[b.ID] = &cp
	return nil
}

func (r *BudgetRepo) UpdateStatus(ctx context.Context, id string, status domain.BudgetStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.budgets[id]
	if !ok {
		return storage.ErrBudgetNotFound
	}
	b.Status = status
	return nil
}

// -----------------------------------------------------------------------------
// Lab Order Repository
// -----------------------------------------------------------------------------

type LabOrderRepo struct {
	store *MemoryStorage
}

func NewLabOrderRepo(store *MemoryStorage) *LabOrderRepo {
	return &LabOrderRepo{store: store}
}

func (r *LabOrderRepo) Save(ctx context.Context, o *domain.LabOrder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *o
	r.store.labOrders[o.ID] = &cp
	return nil
}

func (r *LabOrderRepo) Get(ctx context.Context, id string) (*domain.LabOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	o, ok := r.store.labOrders[id]
	if !ok {
		return nil, storage.ErrLabOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *LabOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.LabOrderStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.labOrders[id]
	if !ok {
		return storage.ErrLabOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *LabOrderRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.labOrders[id]
	if !ok {
		return storage.ErrLabOrderNotFound
	}
	o.Status = domain.LabOrderStatusFailed
	o.LastError = errorMsg
	return nil
}

func (r *LabOrderRepo) IncrementRetry(ctx context.Context, id string, errorMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.labOrders[id]
	if !ok {
		return storage.ErrLabOrderNotFound
	}
	o.RetryCount++
	o.LastError = errorMsg
	return nil
}

func (r *LabOrderRepo) ListPending(ctx context.Context) ([]*domain.LabOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.LabOrder
	for _, o := range r.store.labOrders {
		if o.Dispatchable() {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *LabOrderRepo) Count(ctx context.Context, status domain.LabOrderStatus) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, o := range r.store.labOrders {
		if o.Status == status {
			count++
		}
	}
	return count, nil
}
