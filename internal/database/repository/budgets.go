package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerchat/internal/domain"
)

// BudgetRepo handles per-category budgets. Category matching is
// case-insensitive through the column collation.
type BudgetRepo struct {
	db DBTX
}

func NewBudgetRepo(db DBTX) *BudgetRepo { return &BudgetRepo{db: db} }

func (r *BudgetRepo) AllBudgets(ctx context.Context) ([]domain.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, category, amount FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	var out []domain.Budget
	for rows.Next() {
		var b domain.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BudgetByCategory returns nil when no budget is set for category.
func (r *BudgetRepo) BudgetByCategory(ctx context.Context, category string) (*domain.Budget, error) {
	var b domain.Budget
	err := r.db.QueryRowContext(ctx, `SELECT id, category, amount FROM budgets WHERE category = ?`, category).
		Scan(&b.ID, &b.Category, &b.Amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("budget %s: %w", category, err)
	}
	return &b, nil
}

// UpsertBudget creates or replaces the budget for category.
func (r *BudgetRepo) UpsertBudget(ctx context.Context, category string, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO budgets(category, amount, updated_at)
	VALUES(?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(category) DO UPDATE SET
	 amount=excluded.amount,
	 updated_at=CURRENT_TIMESTAMP;
	`, category, amount)
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", category, err)
	}
	return nil
}

// DeleteBudget reports whether a budget existed for category.
func (r *BudgetRepo) DeleteBudget(ctx context.Context, category string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE category = ?`, category)
	if err != nil {
		return false, fmt.Errorf("delete budget %s: %w", category, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every budget and returns how many were removed.
func (r *BudgetRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets`)
	if err != nil {
		return 0, fmt.Errorf("delete budgets: %w", err)
	}
	return res.RowsAffected()
}
