package chat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerchat/internal/domain"
)

// NoMatchesContext is the whole context when nothing relevant was found.
const NoMatchesContext = "No matching transactions found in the database."

const (
	contextTransactionLimit = 15
	descriptionWidth        = 50
)

// ContextBuilder renders the facts handed to the completion model.
type ContextBuilder struct {
	store Store
	limit int
}

// NewContextBuilder returns a builder that reads budgets from store.
func NewContextBuilder(store Store) *ContextBuilder {
	return &ContextBuilder{store: store, limit: contextTransactionLimit}
}

// Build renders txs plus any budget or price facts the query asks about.
func (b *ContextBuilder) Build(ctx context.Context, txs []Transaction, query string) (string, error) {
	lower := strings.ToLower(query)
	budgetQuery := isBudgetQuery(lower)
	if len(txs) == 0 && !budgetQuery {
		return NoMatchesContext, nil
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Found %d potentially relevant transactions.", len(txs)))

	if budgetQuery {
		block, err := b.budgetBlock(ctx, lower)
		if err != nil {
			return "", err
		}
		parts = append(parts, block...)
	}

	if isPriceQuery(lower) {
		if msg, ok := DetectPriceChange(txs); ok {
			parts = append(parts, ">>> "+msg+" <<<")
		} else {
			parts = append(parts, ">>> NO PRICE CHANGE DETECTED <<<")
		}
	}

	if len(txs) > 0 {
		sorted := make([]Transaction, len(txs))
		copy(sorted, txs)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

		parts = append(parts, "", "Relevant transactions:")
		for i, t := range sorted {
			if i == b.limit {
				break
			}
			parts = append(parts, transactionLine(t))
		}
		if len(sorted) > b.limit {
			parts = append(parts, fmt.Sprintf("... and %d more transactions", len(sorted)-b.limit))
		}
		if !wantsMostRecent(lower) {
			parts = append(parts, "", totalsLine(txs))
		}
	}
	return strings.Join(parts, "\n"), nil
}

func transactionLine(t Transaction) string {
	desc := t.Description
	if r := []rune(desc); len(r) > descriptionWidth {
		desc = string(r[:descriptionWidth])
	}
	line := fmt.Sprintf("- %s: %s", t.Date, desc)
	if t.RecipientOrPayer != "" {
		line += " (" + t.RecipientOrPayer + ")"
	}
	return line + fmt.Sprintf(" | %s %s | %s", FormatRand(t.Amount), t.Kind(), t.CategoryName())
}

// totalsLine pre-computes payment and deposit totals over every transaction,
// not just the rendered ones.
func totalsLine(txs []Transaction) string {
	var debits, credits int
	debitSum, creditSum := decimal.Zero, decimal.Zero
	for _, t := range txs {
		amt := decimal.NewFromFloat(math.Abs(t.Amount))
		if t.Kind() == domain.Debit {
			debits++
			debitSum = debitSum.Add(amt)
		} else {
			credits++
			creditSum = creditSum.Add(amt)
		}
	}
	return fmt.Sprintf(">>> %d PAYMENTS TOTALING: %s | %d DEPOSITS TOTALING: %s <<<",
		debits, FormatRand(debitSum.InexactFloat64()), credits, FormatRand(creditSum.InexactFloat64()))
}

func (b *ContextBuilder) budgetBlock(ctx context.Context, lower string) ([]string, error) {
	budgets, err := b.store.AllBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	var out []string

	categories, err := b.store.AllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if named := mentionsCategory(lower, categories); named != "" && !hasBudget(budgets, named) {
		out = append(out, fmt.Sprintf("NOTE: No budget is set for %s.", displayCategory(named)))
	}
	if len(budgets) == 0 {
		return append(out, "No budgets have been set."), nil
	}

	tracker := newSpendTracker(b.store)
	actual, err := tracker.actuals(ctx, budgets)
	if err != nil {
		return nil, err
	}
	report := EvaluateBudgets(budgets, actual)

	out = append(out, "", fmt.Sprintf("Budget status (%s):", tracker.statementLabel()))
	for _, l := range report.Lines {
		out = append(out, fmt.Sprintf("- %s: %s spent of %s budget, %s (%s)",
			l.Category, FormatRand(l.Spent), FormatRand(l.Budget), remainingPhrase(l.Remaining), l.Status()))
	}
	out = append(out, fmt.Sprintf("TOTAL: %s spent of %s budget, %s (%s)",
		FormatRand(report.TotalSpent), FormatRand(report.TotalBudgeted), remainingPhrase(report.TotalRemaining), report.Status()))
	return out, nil
}

func hasBudget(budgets []domain.Budget, category string) bool {
	for _, b := range budgets {
		if strings.EqualFold(b.Category, category) {
			return true
		}
	}
	return false
}
