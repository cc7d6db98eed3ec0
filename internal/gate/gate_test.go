package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clinicops/receivables/internal/retry"
)

// fakeLedger serves paid totals from a map and can fail on demand.
type fakeLedger struct {
	totals   map[string]int64
	failWith error
	failures int // fail this many calls, then succeed
	calls    int
}

func (f *fakeLedger) PaidTotal(ctx context.Context, patientID, budgetID string) (int64, error) {
	f.calls++
	if f.failWith != nil && (f.failures == 0 || f.calls <= f.failures) {
		return 0, f.failWith
	}
	return f.totals[patientID+"/"+budgetID], nil
}

func testOpts() retry.Options {
	return retry.Options{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func TestCanSendLabOrder_InclusiveBoundary(t *testing.T) {
	ledger := &fakeLedger{totals: map[string]int64{"p1/b1": 100000}}
	checker := NewChecker(ledger, testOpts())

	// Paid exactly equals the estimate: allowed.
	status, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if !status.Allowed {
		t.Error("Expected allowed at exact boundary")
	}
	if status.Reason != "" {
		t.Errorf("Expected empty reason when allowed, got %q", status.Reason)
	}

	// One cent short: blocked.
	status, err = checker.CanSendLabOrder(context.Background(), "p1", "b1", 100001)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if status.Allowed {
		t.Error("Expected blocked one cent short of the estimate")
	}
	if status.ShortfallCents() != 1 {
		t.Errorf("Expected shortfall of 1 cent, got %d", status.ShortfallCents())
	}
}

func TestCanSendLabOrder_BlockedReasonStatesShortfall(t *testing.T) {
	// Estimated 1000.00, paid 600.00: reason must state the missing 400.00.
	ledger := &fakeLedger{totals: map[string]int64{"p1/b1": 60000}}
	checker := NewChecker(ledger, testOpts())

	status, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if status.Allowed {
		t.Fatal("Expected blocked")
	}
	if status.AmountPaidCents != 60000 {
		t.Errorf("Expected amount paid 60000, got %d", status.AmountPaidCents)
	}
	if status.AmountNeededCents != 100000 {
		t.Errorf("Expected amount needed 100000, got %d", status.AmountNeededCents)
	}
	if !strings.Contains(status.Reason, "400.00") {
		t.Errorf("Expected reason to state shortfall 400.00, got %q", status.Reason)
	}
}

func TestCanSendLabOrder_Deterministic(t *testing.T) {
	ledger := &fakeLedger{totals: map[string]int64{"p1/b1": 50000}}
	checker := NewChecker(ledger, testOpts())

	first, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 80000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	second, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 80000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected identical results, got %+v vs %+v", first, second)
	}
}

func TestCanSendLabOrder_ReflectsLedgerUpdates(t *testing.T) {
	ledger := &fakeLedger{totals: map[string]int64{"p1/b1": 60000}}
	checker := NewChecker(ledger, testOpts())

	status, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if status.Allowed {
		t.Fatal("Expected blocked before the new payment")
	}

	// A payment lands between the two checks.
	ledger.totals["p1/b1"] = 100000

	status, err = checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if !status.Allowed {
		t.Error("Expected allowed after the new payment")
	}
}

func TestCanSendLabOrder_ZeroCostTriviallyAllowed(t *testing.T) {
	ledger := &fakeLedger{}
	checker := NewChecker(ledger, testOpts())

	status, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 0)
	if err != nil {
		t.Fatalf("CanSendLabOrder failed: %v", err)
	}
	if !status.Allowed {
		t.Error("Expected zero-cost order to be trivially allowed")
	}
	if ledger.calls != 0 {
		t.Errorf("Expected no ledger read for zero-cost order, got %d calls", ledger.calls)
	}
}

func TestCanSendLabOrder_LedgerErrorIsNotBlocked(t *testing.T) {
	// A ledger that is down is an error, never a blocked result:
	// conflating the two would freeze lab orders through an outage.
	ledger := &fakeLedger{failWith: errors.New("budget does not exist")}
	checker := NewChecker(ledger, testOpts())

	_, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err == nil {
		t.Fatal("Expected error from failing ledger")
	}
	if ledger.calls != 1 {
		t.Errorf("Expected logic error not to be retried, got %d calls", ledger.calls)
	}
}

func TestCanSendLabOrder_TransientLedgerErrorRetried(t *testing.T) {
	ledger := &fakeLedger{
		totals:   map[string]int64{"p1/b1": 100000},
		failWith: errors.New("connection reset by peer"),
		failures: 2,
	}
	checker := NewChecker(ledger, testOpts())

	status, err := checker.CanSendLabOrder(context.Background(), "p1", "b1", 100000)
	if err != nil {
		t.Fatalf("Expected recovery after transient failures, got %v", err)
	}
	if !status.Allowed {
		t.Error("Expected allowed after retry recovery")
	}
	if ledger.calls != 3 {
		t.Errorf("Expected 3 ledger calls (2 failures + 1 success), got %d", ledger.calls)
	}
}
