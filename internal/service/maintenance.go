package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerchat/internal/database"
	"github.com/jask/ledgerchat/internal/database/repository"
)

// MaintenanceService houses destructive actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
}

// ResetResult counts the rows Reset removed.
type ResetResult struct {
	Budgets      int64
	Transactions int64
	Statements   int64
}

// Reset wipes budgets, transactions and statements. Categories and the
// schema stay so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) (ResetResult, error) {
	var res ResetResult
	if s.DB == nil {
		return res, fmt.Errorf("maintenance: db not configured")
	}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if res.Budgets, err = repository.NewBudgetRepo(tx).DeleteAll(ctx); err != nil {
			return err
		}
		if res.Transactions, err = repository.NewTransactionRepo(tx).DeleteAll(ctx); err != nil {
			return err
		}
		res.Statements, err = repository.NewStatementRepo(tx).DeleteAll(ctx)
		return err
	})
	if err != nil {
		return ResetResult{}, err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return res, nil
}
