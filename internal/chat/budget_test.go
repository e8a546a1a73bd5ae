package chat

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerchat/internal/domain"
)

func TestFormatRand(t *testing.T) {
	require.Equal(t, "R10,000.00", FormatRand(10000))
	require.Equal(t, "R99.99", FormatRand(99.99))
	require.Equal(t, "R500.00", FormatRand(-500))
	require.Equal(t, "R0.00", FormatRand(0))
	require.Equal(t, "R1,234,567.89", FormatRand(1234567.891))
}

func TestEvaluateBudgets(t *testing.T) {
	report := EvaluateBudgets(
		[]domain.Budget{{Category: "groceries", Amount: 5000}, {Category: "Medical", Amount: 8000}},
		map[string]float64{"groceries": 4500, "medical": -8615},
	)
	require.Len(t, report.Lines, 2)

	groceries := report.Lines[0]
	require.Equal(t, 500.0, groceries.Remaining)
	require.InDelta(t, 90, groceries.Percentage, 0.0001)
	require.Equal(t, "90% used", groceries.Status())

	medical := report.Lines[1]
	require.Equal(t, 8615.0, medical.Spent)
	require.Equal(t, -615.0, medical.Remaining)
	require.True(t, medical.Over())
	require.Equal(t, "OVER BUDGET", medical.Status())

	require.Equal(t, 13000.0, report.TotalBudgeted)
	require.Equal(t, 13115.0, report.TotalSpent)
	require.Equal(t, "OVER BUDGET", report.Status())
}

func TestEvaluateBudgetsZeroAmount(t *testing.T) {
	for _, spent := range []float64{0, 1, 1e9, -42} {
		report := EvaluateBudgets([]domain.Budget{{Category: "fun", Amount: 0}}, map[string]float64{"fun": spent})
		pct := report.Lines[0].Percentage
		require.Zero(t, pct)
		require.False(t, math.IsNaN(pct))
		require.Zero(t, report.TotalPercentage)
	}
}

func TestEvaluateBudgetsMissingActual(t *testing.T) {
	report := EvaluateBudgets([]domain.Budget{{Category: "fuel", Amount: 2000}}, nil)
	require.Equal(t, 2000.0, report.Lines[0].Remaining)
	require.Equal(t, "0% used", report.Lines[0].Status())
}

func TestSpendTrackerFallsBackToAllTimeDebits(t *testing.T) {
	store := newFakeStore()
	store.byCategory["fuel"] = []Transaction{
		tx("2025-01-01", "Shell", -500, "fuel", "debit"),
		tx("2025-01-05", "Shell refund", 100, "fuel", "credit"),
		tx("2025-02-01", "Engen", -250.5, "fuel", "debit"),
	}

	spent, err := newSpendTracker(store).spent(context.Background(), "fuel")
	require.NoError(t, err)
	require.Equal(t, 750.5, spent)
	require.Empty(t, store.called("CategorySummaryForStatement"))
}

func TestSpendTrackerUsesLatestStatement(t *testing.T) {
	store := newFakeStore()
	store.latest = &domain.Statement{StatementNumber: "287"}
	store.summary = []domain.CategorySummary{{Category: "Fuel", TotalDebits: -1200}}

	tracker := newSpendTracker(store)
	spent, err := tracker.spent(context.Background(), "fuel")
	require.NoError(t, err)
	require.Equal(t, 1200.0, spent)
	require.Equal(t, "Latest statement: #287", tracker.statementLabel())
	require.Equal(t, []string{"287"}, store.called("CategorySummaryForStatement"))
}

func TestSummarizeBudgets(t *testing.T) {
	store := newFakeStore()
	store.latest = &domain.Statement{StatementNumber: "287"}
	store.budgets = []domain.Budget{{Category: "fuel", Amount: 1000}, {Category: "groceries", Amount: 4000}}
	store.summary = []domain.CategorySummary{
		{Category: "fuel", TotalDebits: -1200},
		{Category: "groceries", TotalDebits: -1000},
	}

	report, err := SummarizeBudgets(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, "Latest statement: #287", report.Period)
	require.Len(t, report.Lines, 2)
	require.True(t, report.Lines[0].Over())
	require.Equal(t, 2200.0, report.TotalSpent)
	require.Equal(t, 2800.0, report.TotalRemaining)
}
