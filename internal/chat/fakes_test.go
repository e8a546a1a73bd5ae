package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
)

// fakeStore is an in-memory Store that records every call as "Method:arg".
type fakeStore struct {
	mu sync.Mutex

	categories  []string
	byCategory  map[string][]Transaction
	credits     []Transaction
	search      func(term string) []Transaction
	inRange     []Transaction
	byStatement map[string][]Transaction
	all         []Transaction
	summary     []domain.CategorySummary
	latest      *domain.Statement
	budgets     []domain.Budget
	failWith    error

	calls   []string
	upserts []domain.Budget
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories:  []string{"groceries", "fuel", "salary"},
		byCategory:  map[string][]Transaction{},
		byStatement: map[string][]Transaction{},
	}
}

func (f *fakeStore) record(method string, arg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%v", method, arg))
	return f.failWith
}

func (f *fakeStore) called(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, method+":") {
			out = append(out, strings.TrimPrefix(c, method+":"))
		}
	}
	return out
}

func (f *fakeStore) searches() []string { return f.called("SearchTransactions") }

func (f *fakeStore) TransactionsByCategory(_ context.Context, category string) ([]Transaction, error) {
	if err := f.record("TransactionsByCategory", category); err != nil {
		return nil, err
	}
	return f.byCategory[category], nil
}

func (f *fakeStore) TransactionsByType(_ context.Context, txType string) ([]Transaction, error) {
	if err := f.record("TransactionsByType", txType); err != nil {
		return nil, err
	}
	if txType == domain.Credit {
		return f.credits, nil
	}
	return nil, nil
}

func (f *fakeStore) SearchTransactions(_ context.Context, term string) ([]Transaction, error) {
	if err := f.record("SearchTransactions", term); err != nil {
		return nil, err
	}
	if f.search == nil {
		return nil, nil
	}
	return f.search(term), nil
}

func (f *fakeStore) TransactionsInDateRange(_ context.Context, start, end string) ([]Transaction, error) {
	if err := f.record("TransactionsInDateRange", start+".."+end); err != nil {
		return nil, err
	}
	return f.inRange, nil
}

func (f *fakeStore) TransactionsByStatement(_ context.Context, number string) ([]Transaction, error) {
	if err := f.record("TransactionsByStatement", number); err != nil {
		return nil, err
	}
	return f.byStatement[number], nil
}

func (f *fakeStore) AllTransactions(_ context.Context, limit int) ([]Transaction, error) {
	if err := f.record("AllTransactions", limit); err != nil {
		return nil, err
	}
	return f.all, nil
}

func (f *fakeStore) AllCategories(context.Context) ([]string, error) {
	if err := f.record("AllCategories", ""); err != nil {
		return nil, err
	}
	return f.categories, nil
}

func (f *fakeStore) CategorySummaryForStatement(_ context.Context, number string) ([]domain.CategorySummary, error) {
	if err := f.record("CategorySummaryForStatement", number); err != nil {
		return nil, err
	}
	return f.summary, nil
}

func (f *fakeStore) LatestStatement(context.Context) (*domain.Statement, error) {
	if err := f.record("LatestStatement", ""); err != nil {
		return nil, err
	}
	return f.latest, nil
}

func (f *fakeStore) AllBudgets(context.Context) ([]domain.Budget, error) {
	if err := f.record("AllBudgets", ""); err != nil {
		return nil, err
	}
	return f.budgets, nil
}

func (f *fakeStore) BudgetByCategory(_ context.Context, category string) (*domain.Budget, error) {
	if err := f.record("BudgetByCategory", category); err != nil {
		return nil, err
	}
	for _, b := range f.budgets {
		if strings.EqualFold(b.Category, category) {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, category string, amount float64) error {
	if err := f.record("UpsertBudget", category); err != nil {
		return err
	}
	f.upserts = append(f.upserts, domain.Budget{Category: category, Amount: amount})
	for i, b := range f.budgets {
		if strings.EqualFold(b.Category, category) {
			f.budgets[i].Amount = amount
			return nil
		}
	}
	f.budgets = append(f.budgets, domain.Budget{Category: category, Amount: amount})
	return nil
}

func (f *fakeStore) DeleteBudget(_ context.Context, category string) (bool, error) {
	if err := f.record("DeleteBudget", category); err != nil {
		return false, err
	}
	for i, b := range f.budgets {
		if strings.EqualFold(b.Category, category) {
			f.budgets = append(f.budgets[:i], f.budgets[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// fakeCompleter returns reply (or err) and keeps every request.
type fakeCompleter struct {
	mu       sync.Mutex
	reply    func(req llm.CompletionRequest) (llm.CompletionResponse, error)
	requests []llm.CompletionRequest
}

func replyWith(text string) *fakeCompleter {
	return &fakeCompleter{reply: func(llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: text, Usage: &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
	}}
}

func failWith(err error) *fakeCompleter {
	return &fakeCompleter{reply: func(llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, err
	}}
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func tx(date, desc string, amount float64, category, kind string) Transaction {
	return Transaction{Date: date, Description: desc, Amount: amount, Category: category, Type: kind}
}
