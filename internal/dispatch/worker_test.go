package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/gate"
	"github.com/clinicops/receivables/internal/infra/storage/memory"
	"github.com/clinicops/receivables/internal/retry"
)

// fakeQueue is an in-memory Queue for tests.
type fakeQueue struct {
	mu     sync.Mutex
	items  []*domain.LabOrder
	pushed int
}

func (q *fakeQueue) Push(ctx context.Context, order *domain.LabOrder, readyAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, order)
	q.pushed++
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context) (*domain.LabOrder, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false, nil
	}
	order := q.items[0]
	q.items = q.items[1:]
	return order, true, nil
}

func (q *fakeQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// fakeLabClient records sends and can fail a configured number of times.
type fakeLabClient struct {
	mu       sync.Mutex
	sent     []string
	failWith error
}

func (c *fakeLabClient) Send(ctx context.Context, order *domain.LabOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.sent = append(c.sent, order.ID)
	return nil
}

type fixture struct {
	worker *Worker
	queue  *fakeQueue
	labCli *fakeLabClient
	store  *memory.MemoryStorage
	ledger *memory.LedgerRepo
	orders *memory.LabOrderRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	ledger := memory.NewLedgerRepo(store)
	orders := memory.NewLabOrderRepo(store)
	queue := &fakeQueue{}
	labCli := &fakeLabClient{}

	opts := retry.Options{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	checker := gate.NewChecker(ledger, opts)
	worker := NewWorker(WorkerConfig{MaxSendRetries: 2}, queue, checker, orders, labCli, opts)

	return &fixture{
		worker: worker,
		queue:  queue,
		labCli: labCli,
		store:  store,
		ledger: ledger,
		orders: orders,
	}
}

func (f *fixture) addOrder(t *testing.T, id string, costCents int64) *domain.LabOrder {
	t.Helper()
	order := &domain.LabOrder{
		ID:                 id,
		PatientID:          "p1",
		BudgetID:           "b1",
		LabName:            "prosthetics-lab",
		EstimatedCostCents: costCents,
		Status:             domain.LabOrderStatusQueued,
	}
	if err := f.orders.Save(context.Background(), order); err != nil {
		t.Fatalf("Failed to save order: %v", err)
	}
	return order
}

func (f *fixture) pay(t *testing.T, amountCents int64) {
	t.Helper()
	err := f.ledger.RecordPayment(context.Background(), &domain.Payment{
		ID:          "pay-" + time.Now().String(),
		PatientID:   "p1",
		BudgetID:    "b1",
		AmountCents: amountCents,
		Status:      domain.PaymentStatusSettled,
	})
	if err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}
}

func TestProcessOrder_AllowedOrderIsSent(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100000)
	order := f.addOrder(t, "o1", 100000)

	if err := f.worker.processOrder(context.Background(), order); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}

	got, err := f.orders.Get(context.Background(), "o1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.LabOrderStatusSent {
		t.Errorf("Expected status sent, got %s", got.Status)
	}
	if len(f.labCli.sent) != 1 {
		t.Errorf("Expected 1 send, got %d", len(f.labCli.sent))
	}
}

func TestProcessOrder_BlockedOrderIsRequeued(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 40000)
	order := f.addOrder(t, "o1", 100000)

	if err := f.worker.processOrder(context.Background(), order); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}

	got, _ := f.orders.Get(context.Background(), "o1")
	if got.Status != domain.LabOrderStatusBlocked {
		t.Errorf("Expected status blocked, got %s", got.Status)
	}
	if f.queue.pushed != 1 {
		t.Errorf("Expected blocked order requeued once, got %d pushes", f.queue.pushed)
	}
	if len(f.labCli.sent) != 0 {
		t.Error("Blocked order must never reach the lab")
	}
}

func TestProcessOrder_GateReRunAtDispatchTime(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 40000)
	order := f.addOrder(t, "o1", 100000)

	// First pass: blocked.
	if err := f.worker.processOrder(context.Background(), order); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}
	if len(f.labCli.sent) != 0 {
		t.Fatal("Expected no send while blocked")
	}

	// Patient pays the remainder; the re-queued order now passes.
	f.pay(t, 60000)
	requeued, found, err := f.queue.Pop(context.Background())
	if err != nil || !found {
		t.Fatalf("Expected requeued order, found=%v err=%v", found, err)
	}
	if err := f.worker.processOrder(context.Background(), requeued); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}

	got, _ := f.orders.Get(context.Background(), "o1")
	if got.Status != domain.LabOrderStatusSent {
		t.Errorf("Expected status sent after payment, got %s", got.Status)
	}
}

func TestProcessOrder_SendFailureRetriesThenFails(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100000)
	f.labCli.failWith = errors.New("lab endpoint rejected order: 422")

	order := f.addOrder(t, "o1", 100000)

	// First failure: requeued with retry count 1.
	if err := f.worker.processOrder(context.Background(), order); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}
	got, _ := f.orders.Get(context.Background(), "o1")
	if got.Status != domain.LabOrderStatusQueued {
		t.Errorf("Expected status queued after first failure, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", got.RetryCount)
	}

	// Second failure hits MaxSendRetries: terminal.
	requeued, found, _ := f.queue.Pop(context.Background())
	if !found {
		t.Fatal("Expected requeued order")
	}
	if err := f.worker.processOrder(context.Background(), requeued); err != nil {
		t.Fatalf("processOrder failed: %v", err)
	}
	got, _ = f.orders.Get(context.Background(), "o1")
	if got.Status != domain.LabOrderStatusFailed {
		t.Errorf("Expected status failed, got %s", got.Status)
	}
	if got.LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestWorker_RunDrainsQueue(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100000)
	order := f.addOrder(t, "o1", 50000)
	if err := f.queue.Push(context.Background(), order, time.Now()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		got, _ := f.orders.Get(context.Background(), "o1")
		if got.Status == domain.LabOrderStatusSent {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Worker did not dispatch the order in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker did not stop after cancellation")
	}
}
