package chat

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerchat/internal/domain"
)

// BudgetLine is one evaluated budget.
type BudgetLine struct {
	Category   string  `json:"category"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// Over reports whether spending has passed the budget.
func (l BudgetLine) Over() bool { return l.Percentage > 100 }

// Status is "OVER BUDGET" or "NN% used".
func (l BudgetLine) Status() string {
	return budgetStatus(l.Percentage)
}

// BudgetReport is the evaluated budget list plus the overall totals.
type BudgetReport struct {
	Lines           []BudgetLine `json:"items"`
	TotalBudgeted   float64      `json:"total_budgeted"`
	TotalSpent      float64      `json:"total_spent"`
	TotalRemaining  float64      `json:"total_remaining"`
	TotalPercentage float64      `json:"total_percentage"`
	// Period names the spend window, e.g. "Latest statement: #287".
	Period string `json:"period,omitempty"`
}

func (r BudgetReport) Status() string { return budgetStatus(r.TotalPercentage) }

func budgetStatus(pct float64) string {
	if pct > 100 {
		return "OVER BUDGET"
	}
	return fmt.Sprintf("%.0f%% used", pct)
}

// EvaluateBudgets combines budgets with actual spend keyed by category
// (matched case-insensitively).
func EvaluateBudgets(budgets []domain.Budget, actual map[string]float64) BudgetReport {
	spentBy := make(map[string]decimal.Decimal, len(actual))
	for k, v := range actual {
		key := strings.ToLower(k)
		spentBy[key] = spentBy[key].Add(decimal.NewFromFloat(math.Abs(v)))
	}

	var report BudgetReport
	totalBudget, totalSpent := decimal.Zero, decimal.Zero
	for _, b := range budgets {
		amount := decimal.NewFromFloat(b.Amount)
		spent := spentBy[strings.ToLower(b.Category)]
		report.Lines = append(report.Lines, BudgetLine{
			Category:   b.Category,
			Budget:     b.Amount,
			Spent:      spent.InexactFloat64(),
			Remaining:  amount.Sub(spent).InexactFloat64(),
			Percentage: percentage(spent, amount),
		})
		totalBudget = totalBudget.Add(amount)
		totalSpent = totalSpent.Add(spent)
	}
	report.TotalBudgeted = totalBudget.InexactFloat64()
	report.TotalSpent = totalSpent.InexactFloat64()
	report.TotalRemaining = totalBudget.Sub(totalSpent).InexactFloat64()
	report.TotalPercentage = percentage(totalSpent, totalBudget)
	return report
}

var hundred = decimal.NewFromInt(100)

func percentage(spent, amount decimal.Decimal) float64 {
	if amount.Sign() <= 0 {
		return 0
	}
	return spent.Div(amount).Mul(hundred).InexactFloat64()
}

// remainingPhrase renders "R1,000.00 remaining" or "R615.00 over".
func remainingPhrase(remaining float64) string {
	if remaining < 0 {
		return FormatRand(remaining) + " over"
	}
	return FormatRand(remaining) + " remaining"
}

// spendTracker resolves actual category spend for the current period: the
// latest statement's category summary, or all-time debits when no statement exists.
type spendTracker struct {
	store   Store
	latest  *domain.Statement
	summary map[string]float64
	loaded  bool
}

func newSpendTracker(store Store) *spendTracker {
	return &spendTracker{store: store}
}

func (s *spendTracker) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	latest, err := s.store.LatestStatement(ctx)
	if err != nil {
		return fmt.Errorf("latest statement: %w", err)
	}
	s.latest = latest
	if latest != nil {
		rows, err := s.store.CategorySummaryForStatement(ctx, latest.StatementNumber)
		if err != nil {
			return fmt.Errorf("category summary: %w", err)
		}
		s.summary = make(map[string]float64, len(rows))
		for _, r := range rows {
			s.summary[strings.ToLower(r.Category)] += math.Abs(r.TotalDebits)
		}
	}
	s.loaded = true
	return nil
}

func (s *spendTracker) spent(ctx context.Context, category string) (float64, error) {
	if err := s.load(ctx); err != nil {
		return 0, err
	}
	if s.latest != nil {
		return s.summary[strings.ToLower(category)], nil
	}
	txs, err := s.store.TransactionsByCategory(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("transactions for %s: %w", category, err)
	}
	total := decimal.Zero
	for _, t := range txs {
		if t.Kind() == domain.Debit {
			total = total.Add(decimal.NewFromFloat(math.Abs(t.Amount)))
		}
	}
	return total.InexactFloat64(), nil
}

func (s *spendTracker) actuals(ctx context.Context, budgets []domain.Budget) (map[string]float64, error) {
	out := make(map[string]float64, len(budgets))
	for _, b := range budgets {
		v, err := s.spent(ctx, b.Category)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(b.Category)] = v
	}
	return out, nil
}

// SummarizeBudgets evaluates every stored budget against the latest
// statement's spend, or all transactions when no statement exists.
func SummarizeBudgets(ctx context.Context, store Store) (BudgetReport, error) {
	budgets, err := store.AllBudgets(ctx)
	if err != nil {
		return BudgetReport{}, fmt.Errorf("budgets: %w", err)
	}
	tracker := newSpendTracker(store)
	actual, err := tracker.actuals(ctx, budgets)
	if err != nil {
		return BudgetReport{}, err
	}
	report := EvaluateBudgets(budgets, actual)
	report.Period = tracker.statementLabel()
	return report, nil
}

// debits returns the category's debit rows for the current period.
func (s *spendTracker) debits(ctx context.Context, category string) ([]Transaction, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	var rows []Transaction
	var err error
	if s.latest != nil {
		rows, err = s.store.TransactionsByStatement(ctx, s.latest.StatementNumber)
	} else {
		rows, err = s.store.TransactionsByCategory(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("budget transactions: %w", err)
	}
	var out []Transaction
	for _, t := range rows {
		if strings.EqualFold(t.Category, category) && t.Kind() == domain.Debit {
			out = append(out, t)
		}
	}
	return out, nil
}

// statementLabel is "Latest statement: #287" or "All transactions".
func (s *spendTracker) statementLabel() string {
	if s.latest != nil && s.latest.StatementNumber != "" {
		return "Latest statement: #" + s.latest.StatementNumber
	}
	return "All transactions"
}

func displayCategory(c string) string {
	return strings.ReplaceAll(strings.ToLower(c), "_", " ")
}

// categoryBudgetSentence is the deterministic answer for one category.
func categoryBudgetSentence(line BudgetLine) string {
	name := displayCategory(line.Category)
	if line.Over() {
		return fmt.Sprintf("You are OVER BUDGET on %s: you've spent %s of your %s budget (%s, %.0f%% used).",
			name, FormatRand(line.Spent), FormatRand(line.Budget), remainingPhrase(line.Remaining), line.Percentage)
	}
	return fmt.Sprintf("You've spent %s of your %s %s budget, %s (%s).",
		FormatRand(line.Spent), FormatRand(line.Budget), name, remainingPhrase(line.Remaining), line.Status())
}

// overallBudgetSentence summarises every budget.
func overallBudgetSentence(report BudgetReport) string {
	var b strings.Builder
	if report.TotalPercentage > 100 {
		fmt.Fprintf(&b, "You are OVER BUDGET overall: you've spent %s of your %s total budget (%s).",
			FormatRand(report.TotalSpent), FormatRand(report.TotalBudgeted), remainingPhrase(report.TotalRemaining))
	} else {
		fmt.Fprintf(&b, "Across %d budgets you've spent %s of %s, %s (%s).",
			len(report.Lines), FormatRand(report.TotalSpent), FormatRand(report.TotalBudgeted),
			remainingPhrase(report.TotalRemaining), report.Status())
	}
	for _, l := range report.Lines {
		fmt.Fprintf(&b, "\n- %s: %s of %s, %s (%s)",
			displayCategory(l.Category), FormatRand(l.Spent), FormatRand(l.Budget), remainingPhrase(l.Remaining), l.Status())
	}
	return b.String()
}
