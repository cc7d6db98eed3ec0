package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/infra/storage"
)

// LabOrderRepo implements storage.LabOrderRepository using PostgreSQL.
type LabOrderRepo struct {
	db *DB
}

// NewLabOrderRepo creates a new PostgreSQL lab order repository.
func NewLabOrderRepo(db *DB) *LabOrderRepo {
	return &LabOrderRepo{db: db}
}

type labOrderRow struct {
	ID                 string    `db:"id"`
	PatientID          string    `db:"patient_id"`
	BudgetID           string    `db:"budget_id"`
	LabName            string    `db:"lab_name"`
	Description        string    `db:"description"`
	EstimatedCostCents int64     `db:"estimated_cost_cents"`
	Status             string    `db:"status"`
	RetryCount         int       `db:"retry_count"`
	LastError          string    `db:"last_error"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r labOrderRow) toDomain() *domain.LabOrder {
	return &domain.LabOrder{
		ID:                 r.ID,
		PatientID:          r.PatientID,
		BudgetID:           r.BudgetID,
		LabName:            r.LabName,
		Description:        r.Description,
		EstimatedCostCents: r.EstimatedCostCents,
		Status:             domain.LabOrderStatus(r.Status),
		RetryCount:         r.RetryCount,
		LastError:          r.LastError,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

const labOrderColumns = `id, patient_id, budget_id, lab_name, description,
	estimated_cost_cents, status, retry_count, last_error, created_at, updated_at`

// Save saves a lab order.
func (r *LabOrderRepo) Save(ctx context.Context, o *domain.LabOrder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lab_orders (`+labOrderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   retry_count = EXCLUDED.retry_count,
		   last_error = EXCLUDED.last_error,
		   updated_at = EXCLUDED.updated_at`,
		o.ID, o.PatientID, o.BudgetID, o.LabName, o.Description,
		o.EstimatedCostCents, string(o.Status), o.RetryCount, o.LastError,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lab order: %w", err)
	}
	return nil
}

// Get retrieves a lab order by ID.
func (r *LabOrderRepo) Get(ctx context.Context, id string) (*domain.LabOrder, error) {
	var row labOrderRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+labOrderColumns+` FROM lab_orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrLabOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab order: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateStatus updates order status.
func (r *LabOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.LabOrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lab_orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update lab order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrLabOrderNotFound
	}
	return nil
}

// MarkFailed records a terminal dispatch failure.
func (r *LabOrderRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE lab_orders SET status = $2, last_error = $3, updated_at = NOW() WHERE id = $1`,
		id, string(domain.LabOrderStatusFailed), errorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark lab order failed: %w", err)
	}
	return nil
}

// IncrementRetry increments the dispatch retry count.
func (r *LabOrderRepo) IncrementRetry(ctx context.Context, id string, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE lab_orders
		 SET retry_count = retry_count + 1, last_error = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, errorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return nil
}

// ListPending retrieves orders awaiting dispatch.
func (r *LabOrderRepo) ListPending(ctx context.Context) ([]*domain.LabOrder, error) {
	var rows []labOrderRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+labOrderColumns+` FROM lab_orders
		 WHERE status IN ($1, $2)
		 ORDER BY created_at`,
		string(domain.LabOrderStatusQueued), string(domain.LabOrderStatusBlocked),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending lab orders: %w", err)
	}

	orders := make([]*domain.LabOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	return orders, nil
}

// Count returns the count of orders in a given status.
func (r *LabOrderRepo) Count(ctx context.Context, status domain.LabOrderStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lab_orders WHERE status = $1`, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count lab orders: %w", err)
	}
	return count, nil
}
