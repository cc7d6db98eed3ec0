package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicops/receivables/internal/observability/metrics"
	"github.com/clinicops/receivables/internal/retry"
)

// LedgerReader is the ledger capability the gate depends on. The gate
// never touches the backing store directly.
type LedgerReader interface {
	PaidTotal(ctx context.Context, patientID, budgetID string) (int64, error)
}

// PaymentLockStatus is the decision record for a single gate check.
// It reflects ledger state at the instant of the call and must be
// recomputed before every dispatch; it is never cached.
type PaymentLockStatus struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	AmountPaidCents   int64  `json:"amount_paid_cents"`
	AmountNeededCents int64  `json:"amount_needed_cents"`
}

// ShortfallCents is the remaining amount the patient must pay before
// the order may be sent. Derived from the two stored amounts so the
// caller never has to re-query to display it.
func (s PaymentLockStatus) ShortfallCents() int64 {
	if s.AmountPaidCents >= s.AmountNeededCents {
		return 0
	}
	return s.AmountNeededCents - s.AmountPaidCents
}

// Checker gates lab-order dispatch on the patient's payment state.
type Checker struct {
	ledger    LedgerReader
	retryOpts retry.Options
	log       *slog.Logger
}

// NewChecker creates a gate checker over the given ledger.
func NewChecker(ledger LedgerReader, retryOpts retry.Options) *Checker {
	return &Checker{
		ledger:    ledger,
		retryOpts: retryOpts,
		log:       slog.Default().With("component", "gate"),
	}
}

// CanSendLabOrder decides whether a lab order may be dispatched given
// the estimated third-party cost. A blocked outcome is a normal result,
// not an error; the returned error is non-nil only when the ledger
// could not be read after retries.
//
// A non-positive estimate is trivially allowed: there is no third-party
// exposure to protect against.
func (c *Checker) CanSendLabOrder(ctx context.Context, patientID, budgetID string, estimatedCostCents int64) (PaymentLockStatus, error) {
	if estimatedCostCents <= 0 {
		status := PaymentLockStatus{
			Allowed:           true,
			AmountNeededCents: estimatedCostCents,
		}
		metrics.GateChecks.WithLabelValues("allowed").Inc()
		return status, nil
	}

	start := time.Now()
	paid, err := retry.Do(ctx, func(ctx context.Context) (int64, error) {
		return c.ledger.PaidTotal(ctx, patientID, budgetID)
	}, c.retryOpts)
	metrics.LedgerQueryLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GateCheckErrors.Inc()
		c.log.Error("Failed to read paid total",
			"patient", patientID, "budget", budgetID, "error", err)
		return PaymentLockStatus{}, fmt.Errorf("failed to read paid total: %w", err)
	}

	status := PaymentLockStatus{
		Allowed:           paid >= estimatedCostCents,
		AmountPaidCents:   paid,
		AmountNeededCents: estimatedCostCents,
	}

	if status.Allowed {
		metrics.GateChecks.WithLabelValues("allowed").Inc()
		return status, nil
	}

	status.Reason = fmt.Sprintf(
		"payment of %s still required before sending to lab (paid %s of %s)",
		formatCents(status.ShortfallCents()),
		formatCents(paid),
		formatCents(estimatedCostCents),
	)
	metrics.GateChecks.WithLabelValues("blocked").Inc()
	c.log.Debug("Lab order blocked",
		"patient", patientID, "budget", budgetID,
		"paid_cents", paid, "needed_cents", estimatedCostCents)
	return status, nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
