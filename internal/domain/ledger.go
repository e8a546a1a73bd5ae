// Package domain holds the ledger types shared by the store, the chat engine
// and the transports.
package domain

import "strings"

// Transaction types.
const (
	Debit  = "debit"
	Credit = "credit"
)

// FeesCategory is excluded from proper-noun searches and price detection.
const FeesCategory = "fees"

// Transaction is one bank statement line.
type Transaction struct {
	ID               int64    `json:"id"`
	StatementID      int64    `json:"statement_id,omitempty"`
	StatementNumber  string   `json:"statement_number,omitempty"`
	Date             string   `json:"date"`
	Description      string   `json:"description"`
	Amount           float64  `json:"amount"`
	Balance          *float64 `json:"balance,omitempty"`
	Type             string   `json:"transaction_type"`
	Category         string   `json:"category,omitempty"`
	RecipientOrPayer string   `json:"recipient_or_payer,omitempty"`
	Reference        string   `json:"reference,omitempty"`
}

// Kind returns the transaction type, deriving it from the amount sign when unset.
func (t Transaction) Kind() string {
	switch strings.ToLower(t.Type) {
	case Debit:
		return Debit
	case Credit:
		return Credit
	}
	if t.Amount < 0 {
		return Debit
	}
	return Credit
}

// CategoryName returns the category or "uncategorized".
func (t Transaction) CategoryName() string {
	if strings.TrimSpace(t.Category) == "" {
		return "uncategorized"
	}
	return t.Category
}

// IsFee reports whether the transaction belongs to the fees category.
func (t Transaction) IsFee() bool {
	return strings.EqualFold(t.Category, FeesCategory)
}

// Statement is one imported bank statement.
type Statement struct {
	ID              int64  `json:"id"`
	Filename        string `json:"filename"`
	AccountNumber   string `json:"account_number,omitempty"`
	StatementDate   string `json:"statement_date,omitempty"`
	StatementNumber string `json:"statement_number,omitempty"`
}

// Budget is a per-category spending limit.
type Budget struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// CategorySummary aggregates one category within a statement.
type CategorySummary struct {
	Category     string  `json:"category"`
	Count        int     `json:"count"`
	TotalDebits  float64 `json:"total_debits"`
	TotalCredits float64 `json:"total_credits"`
}

// Stats summarises the whole ledger.
type Stats struct {
	TotalStatements   int     `json:"total_statements"`
	TotalTransactions int     `json:"total_transactions"`
	TotalDebits       float64 `json:"total_debits"`
	TotalCredits      float64 `json:"total_credits"`
	CategoriesCount   int     `json:"categories_count"`
}
