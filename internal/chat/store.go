package chat

import (
	"context"

	"github.com/jask/ledgerchat/internal/domain"
)

// Transaction aliases the ledger row so callers of this package rarely need domain.
type Transaction = domain.Transaction

// Store is the read/write surface the assistant needs from the ledger.
// Lookups that find nothing return nil, nil.
type Store interface {
	TransactionsByCategory(ctx context.Context, category string) ([]Transaction, error)
	TransactionsByType(ctx context.Context, txType string) ([]Transaction, error)
	SearchTransactions(ctx context.Context, term string) ([]Transaction, error)
	TransactionsInDateRange(ctx context.Context, start, end string) ([]Transaction, error)
	TransactionsByStatement(ctx context.Context, statementNumber string) ([]Transaction, error)
	AllTransactions(ctx context.Context, limit int) ([]Transaction, error)
	AllCategories(ctx context.Context) ([]string, error)
	CategorySummaryForStatement(ctx context.Context, statementNumber string) ([]domain.CategorySummary, error)
	LatestStatement(ctx context.Context) (*domain.Statement, error)

	AllBudgets(ctx context.Context) ([]domain.Budget, error)
	BudgetByCategory(ctx context.Context, category string) (*domain.Budget, error)
	UpsertBudget(ctx context.Context, category string, amount float64) error
	DeleteBudget(ctx context.Context, category string) (bool, error)
}
