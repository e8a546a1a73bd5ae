package repository

import "context"

// Store bundles the repositories the chat engine reads from. It satisfies
// chat.Store.
type Store struct {
	*TransactionRepo
	*StatementRepo
	*BudgetRepo
	Categories *CategoryRepo
}

func NewStore(db DBTX) *Store {
	return &Store{
		TransactionRepo: NewTransactionRepo(db),
		StatementRepo:   NewStatementRepo(db),
		BudgetRepo:      NewBudgetRepo(db),
		Categories:      NewCategoryRepo(db),
	}
}

func (s *Store) AllCategories(ctx context.Context) ([]string, error) {
	return s.Categories.AllCategories(ctx)
}
