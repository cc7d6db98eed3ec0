package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/gate"
	"github.com/clinicops/receivables/internal/infra/lab"
	"github.com/clinicops/receivables/internal/infra/storage"
	"github.com/clinicops/receivables/internal/observability/metrics"
	"github.com/clinicops/receivables/internal/retry"
)

// Queue is the dispatch queue the worker drains.
type Queue interface {
	Push(ctx context.Context, order *domain.LabOrder, readyAt time.Time) error
	Pop(ctx context.Context) (*domain.LabOrder, bool, error)
	Depth(ctx context.Context) (int64, error)
}

// WorkerConfig holds configuration for the dispatch worker.
type WorkerConfig struct {
	EmptySleep      time.Duration // Sleep when queue empty (default: 5s)
	BlockedRequeue  time.Duration // Re-check delay for blocked orders (default: 5m)
	FailedRequeue   time.Duration // Re-queue delay after a failed send (default: 1m)
	MaxSendRetries  int           // Queue-level re-queues before giving up (default: 5)
	DispatchTimeout time.Duration // Max time per order (default: 2m)
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		EmptySleep:      5 * time.Second,
		BlockedRequeue:  5 * time.Minute,
		FailedRequeue:   1 * time.Minute,
		MaxSendRetries:  5,
		DispatchTimeout: 2 * time.Minute,
	}
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	d := DefaultConfig()
	if c.EmptySleep <= 0 {
		c.EmptySleep = d.EmptySleep
	}
	if c.BlockedRequeue <= 0 {
		c.BlockedRequeue = d.BlockedRequeue
	}
	if c.FailedRequeue <= 0 {
		c.FailedRequeue = d.FailedRequeue
	}
	if c.MaxSendRetries <= 0 {
		c.MaxSendRetries = d.MaxSendRetries
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = d.DispatchTimeout
	}
	return c
}

// Worker drains the dispatch queue, re-evaluating the payment gate for
// each order at the moment of dispatch. The gate decision made when the
// order was queued is never trusted: the ledger may have changed since.
type Worker struct {
	cfg       WorkerConfig
	queue     Queue
	checker   *gate.Checker
	orders    storage.LabOrderRepository
	labClient lab.Client
	retryOpts retry.Options
	log       *slog.Logger
}

// NewWorker creates a new dispatch worker.
func NewWorker(
	cfg WorkerConfig,
	queue Queue,
	checker *gate.Checker,
	orders storage.LabOrderRepository,
	labClient lab.Client,
	retryOpts retry.Options,
) *Worker {
	return &Worker{
		cfg:       cfg.withDefaults(),
		queue:     queue,
		checker:   checker,
		orders:    orders,
		labClient: labClient,
		retryOpts: retryOpts,
		log:       slog.Default().With("component", "dispatch"),
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting dispatch worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Dispatch worker stopped")
			return nil
		default:
		}

		if depth, err := w.queue.Depth(ctx); err == nil {
			metrics.DispatchQueueDepth.Set(float64(depth))
		}

		order, found, err := w.queue.Pop(ctx)
		if err != nil {
			w.log.Error("Failed to pop order", "error", err)
			sleep(ctx, w.cfg.EmptySleep)
			continue
		}
		if !found {
			sleep(ctx, w.cfg.EmptySleep)
			continue
		}

		if err := w.processOrder(ctx, order); err != nil {
			w.log.Error("Failed to process order", "order", order.ID, "error", err)
		}
	}
}

func (w *Worker) processOrder(ctx context.Context, order *domain.LabOrder) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.DispatchTimeout)
	defer cancel()

	if err := w.orders.UpdateStatus(ctx, order.ID, domain.LabOrderStatusDispatching); err != nil {
		return err
	}

	// Live gate check at dispatch time.
	status, err := w.checker.CanSendLabOrder(ctx, order.PatientID, order.BudgetID, order.EstimatedCostCents)
	if err != nil {
		// Could not verify payment status. This is not "blocked":
		// requeue and keep the order dispatchable.
		metrics.Dispatches.WithLabelValues("unverified").Inc()
		w.log.Warn("Could not verify payment status", "order", order.ID, "error", err)
		if err := w.orders.UpdateStatus(ctx, order.ID, domain.LabOrderStatusQueued); err != nil {
			return err
		}
		return w.queue.Push(ctx, order, time.Now().Add(w.cfg.FailedRequeue))
	}

	if !status.Allowed {
		metrics.Dispatches.WithLabelValues("blocked").Inc()
		w.log.Info("Order blocked by payment gate",
			"order", order.ID,
			"shortfall_cents", status.ShortfallCents())
		if err := w.orders.UpdateStatus(ctx, order.ID, domain.LabOrderStatusBlocked); err != nil {
			return err
		}
		return w.queue.Push(ctx, order, time.Now().Add(w.cfg.BlockedRequeue))
	}

	_, err = retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.labClient.Send(ctx, order)
	}, w.retryOpts)
	if err != nil {
		return w.handleSendFailure(ctx, order, err)
	}

	metrics.Dispatches.WithLabelValues("sent").Inc()
	w.log.Info("Order sent to lab", "order", order.ID, "lab", order.LabName)
	return w.orders.UpdateStatus(ctx, order.ID, domain.LabOrderStatusSent)
}

func (w *Worker) handleSendFailure(ctx context.Context, order *domain.LabOrder, sendErr error) error {
	if err := w.orders.IncrementRetry(ctx, order.ID, sendErr.Error()); err != nil {
		return err
	}
	order.RetryCount++
	order.LastError = sendErr.Error()

	if order.RetryCount >= w.cfg.MaxSendRetries {
		metrics.Dispatches.WithLabelValues("failed").Inc()
		w.log.Error("Order failed permanently", "order", order.ID, "error", sendErr)
		return w.orders.MarkFailed(ctx, order.ID, sendErr.Error())
	}

	metrics.Dispatches.WithLabelValues("retried").Inc()
	if err := w.orders.UpdateStatus(ctx, order.ID, domain.LabOrderStatusQueued); err != nil {
		return err
	}
	return w.queue.Push(ctx, order, time.Now().Add(w.cfg.FailedRequeue))
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
