package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/service"
)

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import a statement CSV export",
	Long: `Import a header-less CSV with columns date,description,amount[,balance[,reference]].
Negative amounts are debits. A file that was already imported is skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, _ := cmd.Flags().GetString("statement")
		date, _ := cmd.Flags().GetString("date")
		account, _ := cmd.Flags().GetString("account")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		svc := &service.IngestService{DB: e.db, Log: e.log}
		res, err := svc.ImportFile(cmd.Context(), args[0], service.StatementMeta{
			Filename:        filepath.Base(args[0]),
			StatementNumber: number,
			StatementDate:   date,
			AccountNumber:   account,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.AlreadyImported {
			fmt.Fprintf(out, "%s was already imported, skipping.\n", filepath.Base(args[0]))
			return nil
		}
		fmt.Fprintf(out, "Imported %d transactions, skipped %d duplicates.\n", res.Imported, res.Skipped)
		for _, lineErr := range res.Errors {
			fmt.Fprintf(out, "  %v\n", lineErr)
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Categorise transactions that have no category yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		completer, err := e.completer()
		if err != nil {
			return err
		}

		svc := &service.CategorizerService{
			Transactions: e.store.TransactionRepo,
			Categories:   e.store.Categories,
			Provider:     completer,
			Log:          e.log,
		}
		res, err := svc.ClassifyPending(cmd.Context(), limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Classified %d transactions (%d fell back to other).\n", res.Classified, res.Fallbacks)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Statements:   %s\n", humanize.Comma(int64(s.TotalStatements)))
		fmt.Fprintf(out, "Transactions: %s\n", humanize.Comma(int64(s.TotalTransactions)))
		fmt.Fprintf(out, "Categories:   %s\n", humanize.Comma(int64(s.CategoriesCount)))
		fmt.Fprintf(out, "Debits:       %s\n", chat.FormatRand(s.TotalDebits))
		fmt.Fprintf(out, "Credits:      %s\n", chat.FormatRand(s.TotalCredits))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = 20
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		txs, err := e.store.AllTransactions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(txs) == 0 {
			fmt.Fprintln(out, "No transactions found.")
			return nil
		}
		fmt.Fprintf(out, "Recent transactions (showing %d):\n", len(txs))
		printTransactions(out, txs, 0)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search descriptions, counterparties and raw statement text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		txs, err := e.store.SearchTransactions(cmd.Context(), term)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(txs) == 0 {
			fmt.Fprintf(out, "No transactions matching %q.\n", term)
			return nil
		}
		fmt.Fprintf(out, "Search results for %q (%d found):\n", term, len(txs))
		printTransactions(out, txs, 50)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Show spending per category across all statements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.store.CategorySummary(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(summary) == 0 {
			fmt.Fprintln(out, "No transactions found.")
			return nil
		}
		fmt.Fprintf(out, "%-20s %6s %14s %14s\n", "Category", "Count", "Debits", "Credits")
		for _, cs := range summary {
			name := cs.Category
			if name == "" {
				name = "uncategorized"
			}
			fmt.Fprintf(out, "%-20s %6d %14s %14s\n", name, cs.Count,
				chat.FormatRand(cs.TotalDebits), chat.FormatRand(cs.TotalCredits))
		}
		return nil
	},
}

// printTransactions writes one line per transaction. limit > 0 caps the
// lines and notes how many were left out.
func printTransactions(out io.Writer, txs []domain.Transaction, limit int) {
	for i, t := range txs {
		if limit > 0 && i == limit {
			fmt.Fprintf(out, "  ... and %d more\n", len(txs)-i)
			return
		}
		desc := t.Description
		if r := []rune(desc); len(r) > 40 {
			desc = string(r[:40])
		}
		amount := "+" + chat.FormatRand(t.Amount)
		if t.Kind() == domain.Debit {
			amount = "-" + chat.FormatRand(t.Amount)
		}
		fmt.Fprintf(out, "  %s  %-40s  %14s  %-6s  %s\n", t.Date, desc, amount, t.Kind(), t.CategoryName())
	}
}

func init() {
	importCmd.Flags().String("statement", "", "Statement number, e.g. 287")
	importCmd.Flags().String("date", "", "Statement date (YYYY-MM-DD)")
	importCmd.Flags().String("account", "", "Account number")
	_ = importCmd.MarkFlagRequired("statement")

	classifyCmd.Flags().Int("limit", 0, "Classify at most this many transactions (0 = all)")

	listCmd.Flags().IntP("limit", "n", 20, "Number of transactions to show")

	rootCmd.AddCommand(importCmd, classifyCmd, statsCmd, listCmd, searchCmd, categoriesCmd)
}
