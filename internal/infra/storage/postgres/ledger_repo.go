package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
)

// LedgerRepo implements storage.LedgerRepository using PostgreSQL.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new PostgreSQL ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

type paymentRow struct {
	ID          string    `db:"id"`
	PatientID   string    `db:"patient_id"`
	BudgetID    string    `db:"budget_id"`
	AmountCents int64     `db:"amount_cents"`
	Method      string    `db:"method"`
	Status      string    `db:"status"`
	PaidAt      time.Time `db:"paid_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r paymentRow) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:          r.ID,
		PatientID:   r.PatientID,
		BudgetID:    r.BudgetID,
		AmountCents: r.AmountCents,
		Method:      domain.PaymentMethod(r.Method),
		Status:      domain.PaymentStatus(r.Status),
		PaidAt:      r.PaidAt,
		CreatedAt:   r.CreatedAt,
	}
}

// PaidTotal sums settled payments for a patient scoped to a budget.
func (r *LedgerRepo) PaidTotal(ctx context.Context, patientID, budgetID string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM payments
		 WHERE patient_id = $1 AND budget_id = $2 AND status = $3`,
		patientID, budgetID, string(domain.PaymentStatusSettled),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

// RecordPayment saves a payment to the database.
func (r *LedgerRepo) RecordPayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, patient_id, budget_id, amount_cents, method, status, paid_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.PatientID, p.BudgetID, p.AmountCents,
		string(p.Method), string(p.Status), p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// ListByBudget retrieves all payments for a patient+budget pair.
func (r *LedgerRepo) ListByBudget(ctx context.Context, patientID, budgetID string) ([]*domain.Payment, error) {
	var rows []paymentRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, patient_id, budget_id, amount_cents, method, status, paid_at, created_at
		 FROM payments
		 WHERE patient_id = $1 AND budget_id = $2
		 ORDER BY paid_at`,
		patientID, budgetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*domain.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toDomain())
	}
	return payments, nil
}
