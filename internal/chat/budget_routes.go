package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jask/ledgerchat/internal/domain"
)

type budgetPattern struct {
	re       *regexp.Regexp
	category int
	amount   int
}

const (
	setVerbs   = `(?:add|set|update|change)`
	amountExpr = `r?\s*(\d[\d,]*(?:\.\d+)?)`
	// one to three words
	categoryLzy = `([a-z][a-z_]*(?:\s[a-z][a-z_]*){0,2}?)`
	categoryEnd = `([a-z][a-z_]*(?:\s[a-z][a-z_]*){0,2})`
)

var (
	setBudgetPatterns = []budgetPattern{
		// set groceries budget to R5,000
		{regexp.MustCompile(`\b` + setVerbs + `\s+(?:(?:my|the|a|an)\s+)?` + categoryLzy + `\s+budget\s+(?:to|of|at|as|=)?\s*` + amountExpr), 1, 2},
		// set budget for groceries to 5000
		{regexp.MustCompile(`\b` + setVerbs + `\s+(?:(?:my|the|a|an)\s+)?budget\s+(?:for|on)\s+` + categoryLzy + `\s+(?:to|of|at|as|=)\s*` + amountExpr), 1, 2},
		// set a R5000 budget for groceries
		{regexp.MustCompile(`\b` + setVerbs + `\s+(?:(?:a|an)\s+)?` + amountExpr + `\s+budget\s+(?:for|on)\s+` + categoryEnd + `\b`), 2, 1},
		// set a R5000 groceries budget
		{regexp.MustCompile(`\b` + setVerbs + `\s+(?:(?:a|an)\s+)?` + amountExpr + `\s+` + categoryLzy + `\s+budget\b`), 2, 1},
	}
	deleteBudgetPatterns = []budgetPattern{
		{re: regexp.MustCompile(`\b(?:delete|remove|clear)\s+(?:(?:my|the)\s+)?` + categoryLzy + `\s+budget\b`), category: 1},
		{re: regexp.MustCompile(`\b(?:delete|remove|clear)\s+(?:(?:my|the)\s+)?budget\s+(?:for|on)\s+` + categoryEnd + `\b`), category: 1},
	}
	// looseSetBudget catches set requests whose amount is not a number. Only
	// queries that open with the verb count, so questions about a budget do not.
	looseSetBudget = regexp.MustCompile(`^\s*(?:(?:please|can you|could you)\s+)?` + setVerbs + `\b.*\bbudget\b\s*(?:to|of|at|as|=)\s*(\S+)`)
)

type budgetCommand struct {
	delete   bool
	category string
	amount   float64
	badInput string
}

func parseBudgetCommand(lower string) (budgetCommand, bool) {
	for _, p := range deleteBudgetPatterns {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			return budgetCommand{delete: true, category: strings.TrimSpace(m[p.category])}, true
		}
	}
	for _, p := range setBudgetPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		cmd := budgetCommand{category: strings.TrimSpace(m[p.category])}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[p.amount], ",", ""), 64)
		if err != nil || amount < 0 {
			cmd.badInput = m[p.amount]
		}
		cmd.amount = amount
		return cmd, true
	}
	if m := looseSetBudget.FindStringSubmatch(lower); m != nil {
		return budgetCommand{badInput: m[1]}, true
	}
	return budgetCommand{}, false
}

// resolveCategory finds the stored category the user named, comparing
// case-insensitively and treating spaces as underscores.
func resolveCategory(named string, categories []string) string {
	underscored := strings.ReplaceAll(named, " ", "_")
	for _, c := range categories {
		if strings.EqualFold(c, named) || strings.EqualFold(c, underscored) {
			return c
		}
	}
	return ""
}

func (a *Assistant) updateBudget(ctx context.Context, t *turn) (Reply, bool, error) {
	cmd, ok := parseBudgetCommand(t.lower)
	if !ok {
		return Reply{}, false, nil
	}
	t.session.LastTransactions = nil

	text, err := a.applyBudgetCommand(ctx, cmd)
	if err != nil {
		return Reply{}, false, err
	}
	a.recordExchange(t.session, t.query, text)
	return Reply{Text: text}, true, nil
}

func (a *Assistant) applyBudgetCommand(ctx context.Context, cmd budgetCommand) (string, error) {
	if cmd.badInput != "" {
		return fmt.Sprintf("I couldn't read %q as a budget amount. Try something like \"set groceries budget to R5000\".", cmd.badInput), nil
	}

	categories, err := a.store.AllCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("categories: %w", err)
	}
	stored := resolveCategory(cmd.category, categories)
	if stored == "" {
		return fmt.Sprintf("I couldn't find a category called %q. Available categories: %s.",
			cmd.category, strings.Join(categories, ", ")), nil
	}
	category := strings.ToLower(stored)

	if cmd.delete {
		deleted, err := a.store.DeleteBudget(ctx, category)
		if err != nil {
			return "", fmt.Errorf("delete budget: %w", err)
		}
		if !deleted {
			return fmt.Sprintf("No budget found for %s.", displayCategory(category)), nil
		}
		return fmt.Sprintf("Budget for %s deleted.", displayCategory(category)), nil
	}

	if err := a.store.UpsertBudget(ctx, category, cmd.amount); err != nil {
		return "", fmt.Errorf("upsert budget: %w", err)
	}
	spent, err := newSpendTracker(a.store).spent(ctx, category)
	if err != nil {
		return "", err
	}
	line := EvaluateBudgets(
		[]domain.Budget{{Category: category, Amount: cmd.amount}},
		map[string]float64{category: spent},
	).Lines[0]
	return fmt.Sprintf("Budget for %s set to %s. You've spent %s so far this period, %s (%s).",
		displayCategory(category), FormatRand(cmd.amount), FormatRand(spent), remainingPhrase(line.Remaining), line.Status()), nil
}

func (a *Assistant) answerBudget(ctx context.Context, t *turn) (Reply, bool, error) {
	if !isBudgetQuery(t.lower) {
		return Reply{}, false, nil
	}
	budgets, err := a.store.AllBudgets(ctx)
	if err != nil {
		return Reply{}, false, fmt.Errorf("budgets: %w", err)
	}
	if len(budgets) == 0 {
		return Reply{}, false, nil
	}
	categories, err := a.store.AllCategories(ctx)
	if err != nil {
		return Reply{}, false, fmt.Errorf("categories: %w", err)
	}

	tracker := newSpendTracker(a.store)
	var text string
	var txs []Transaction
	if named := mentionsCategory(t.lower, categories); named != "" {
		budget, err := a.store.BudgetByCategory(ctx, strings.ToLower(named))
		if err != nil {
			return Reply{}, false, fmt.Errorf("budget for %s: %w", named, err)
		}
		if budget == nil {
			text = fmt.Sprintf("You don't have a budget set for %s.", displayCategory(named))
		} else {
			spent, err := tracker.spent(ctx, named)
			if err != nil {
				return Reply{}, false, err
			}
			line := EvaluateBudgets([]domain.Budget{*budget}, map[string]float64{budget.Category: spent}).Lines[0]
			text = categoryBudgetSentence(line)
			if txs, err = tracker.debits(ctx, named); err != nil {
				return Reply{}, false, err
			}
		}
	} else {
		actual, err := tracker.actuals(ctx, budgets)
		if err != nil {
			return Reply{}, false, err
		}
		text = overallBudgetSentence(EvaluateBudgets(budgets, actual))
	}

	t.session.LastTransactions = txs
	t.session.LastQuery = t.query
	a.recordExchange(t.session, t.query, text)
	return Reply{Text: text, Transactions: txs}, true, nil
}
