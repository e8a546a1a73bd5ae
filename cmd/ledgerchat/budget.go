package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/ledgerchat/internal/chat"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage per-category budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <amount>",
	Short: "Create or replace a budget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := strings.ToLower(strings.TrimSpace(args[0]))
		amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(args[1], "R"), ",", ""), 64)
		if err != nil || amount < 0 {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.UpsertBudget(cmd.Context(), category, amount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Budget for %s set to %s.\n", category, chat.FormatRand(amount))
		return nil
	},
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show budgets against spending on the latest statement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := chat.SummarizeBudgets(cmd.Context(), e.store)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(report.Lines) == 0 {
			fmt.Fprintln(out, "No budgets set.")
			return nil
		}
		if report.Period != "" {
			fmt.Fprintf(out, "Period: %s\n", report.Period)
		}
		for _, l := range report.Lines {
			fmt.Fprintf(out, "- %s: %s spent of %s (%s)\n",
				l.Category, chat.FormatRand(l.Spent), chat.FormatRand(l.Budget), l.Status())
		}
		fmt.Fprintf(out, "TOTAL: %s spent of %s (%s)\n",
			chat.FormatRand(report.TotalSpent), chat.FormatRand(report.TotalBudgeted), report.Status())
		return nil
	},
}

var budgetDeleteCmd = &cobra.Command{
	Use:   "delete <category>",
	Short: "Remove a budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		deleted, err := e.store.DeleteBudget(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no budget found for category: %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed the %s budget.\n", args[0])
		return nil
	},
}

func init() {
	budgetCmd.AddCommand(budgetSetCmd, budgetListCmd, budgetDeleteCmd)
	rootCmd.AddCommand(budgetCmd)
}
