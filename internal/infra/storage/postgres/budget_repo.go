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

// BudgetRepo implements storage.BudgetRepository using PostgreSQL.
type BudgetRepo struct {
	db *DB
}

// NewBudgetRepo creates a new PostgreSQL budget repository.
func NewBudgetRepo(db *DB) *BudgetRepo {
	return &BudgetRepo{db: db}
}

type budgetRow struct {
	ID         string    `db:"id"`
	PatientID  string    `db:"patient_id"`
	TotalCents int64     `db:"total_cents"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Get retrieves a budget by ID.
func (r *BudgetRepo) Get(ctx context.Context, id string) (*domain.Budget, error) {
	var row budgetRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, patient_id, total_cents, status, created_at, updated_at
		 FROM budgets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	return &domain.Budget{
		ID:         row.ID,
		PatientID:  row.PatientID,
		TotalCents: row.TotalCents,
		Status:     domain.BudgetStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// Save saves/updates a budget.
func (r *BudgetRepo) Save(ctx context.Context, b *domain.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, patient_id, total_cents, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   total_cents = EXCLUDED.total_cents,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		b.ID, b.PatientID, b.TotalCents, string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// UpdateStatus updates budget status.
func (r *BudgetRepo) UpdateStatus(ctx context.Context, id string, status domain.BudgetStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update budget status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrBudgetNotFound
	}
	return nil
}
