package health

import (
	"context"
	"sync"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage"
)

// Pinger checks reachability of an infrastructure dependency.
type Pinger interface {
	Health(ctx context.Context) error
}

// DepthReader reports dispatch queue depth.
type DepthReader interface {
	Depth(ctx context.Context) (int64, error)
}

// Monitor aggregates health status from the service's dependencies.
type Monitor struct {
	db         Pinger
	redis      Pinger
	queue      DepthReader
	orders     storage.LabOrderRepository
	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Any dependency may be nil
// when the service runs without it (memory mode, no dispatcher).
func NewMonitor(db, redis Pinger, queue DepthReader, orders storage.LabOrderRepository) *Monitor {
	return &Monitor{
		db:     db,
		redis:  redis,
		queue:  queue,
		orders: orders,
	}
}

// CheckHealth performs a health check across all dependencies.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering dependencies
	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Components != nil {
		return m.lastReport
	}

	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]Status),
	}

	if m.db != nil {
		report.Components["database"] = pingStatus(ctx, m.db)
	}
	if m.redis != nil {
		report.Components["redis"] = pingStatus(ctx, m.redis)
	}

	if m.queue != nil {
		if depth, err := m.queue.Depth(ctx); err == nil {
			report.QueueDepth = depth
		}
	}
	if m.orders != nil {
		if count, err := m.orders.Count(ctx, domain.LabOrderStatusFailed); err == nil {
			report.FailedCount = count
			if count > 0 {
				report.Components["dispatch"] = StatusDegraded
			}
		}
	}

	// Aggregate status (worst case wins)
	for _, s := range report.Components {
		if s == StatusCritical {
			report.Status = StatusCritical
			break
		}
		if s == StatusDegraded && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func pingStatus(ctx context.Context, p Pinger) Status {
	if err := p.Health(ctx); err != nil {
		return StatusCritical
	}
	return StatusHealthy
}
