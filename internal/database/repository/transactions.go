package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerchat/internal/domain"
)

const selectTransactions = `
SELECT t.id, t.statement_id, COALESCE(s.statement_number, ''), t.date, t.description, t.amount,
 t.balance, t.transaction_type, t.category, t.recipient_or_payer, t.reference
FROM transactions t
JOIN statements s ON t.statement_id = s.id`

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

// Insert stores t and returns its ID. inserted is false when a row with the
// same source hash already exists in the statement.
func (r *TransactionRepo) Insert(ctx context.Context, t TransactionRow) (id int64, inserted bool, err error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO transactions(
	 statement_id, date, description, amount, balance, transaction_type,
	 category, recipient_or_payer, reference, raw_text, source_hash)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.StatementID, t.Date, t.Description, t.Amount, nullFloat(t.Balance), t.Kind(),
		nullString(t.Category), nullString(t.RecipientOrPayer), nullString(t.Reference),
		nullString(t.RawText), nullString(t.SourceHash))
	if err != nil {
		return 0, false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	return id, true, err
}

// UpdateClassification sets the category and counterparty of one transaction.
func (r *TransactionRepo) UpdateClassification(ctx context.Context, id int64, category, recipient string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET category = ?, recipient_or_payer = ? WHERE id = ?`,
		category, nullString(recipient), id)
	if err != nil {
		return fmt.Errorf("classify transaction %d: %w", id, err)
	}
	return nil
}

// Unclassified returns transactions without a category, oldest first.
// limit <= 0 returns all of them.
func (r *TransactionRepo) Unclassified(ctx context.Context, limit int) ([]domain.Transaction, error) {
	q := selectTransactions + ` WHERE t.category IS NULL OR t.category = '' ORDER BY t.date, t.id`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.list(ctx, q, args...)
}

func (r *TransactionRepo) TransactionsByCategory(ctx context.Context, category string) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE t.category = ? COLLATE NOCASE ORDER BY t.date DESC, t.id DESC`, category)
}

func (r *TransactionRepo) TransactionsByType(ctx context.Context, txType string) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE t.transaction_type = ? ORDER BY t.date DESC, t.id DESC`, txType)
}

// SearchTransactions matches term case-insensitively against the
// description, counterparty and raw statement text, newest first.
func (r *TransactionRepo) SearchTransactions(ctx context.Context, term string) ([]domain.Transaction, error) {
	p := likePattern(term)
	return r.list(ctx, selectTransactions+`
	WHERE t.description LIKE ? ESCAPE '\'
	 OR t.recipient_or_payer LIKE ? ESCAPE '\'
	 OR t.raw_text LIKE ? ESCAPE '\'
	ORDER BY t.date DESC, t.id DESC`, p, p, p)
}

// TransactionsInDateRange returns transactions dated start..end inclusive.
func (r *TransactionRepo) TransactionsInDateRange(ctx context.Context, start, end string) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE t.date BETWEEN ? AND ? ORDER BY t.date DESC, t.id DESC`, start, end)
}

func (r *TransactionRepo) TransactionsByStatement(ctx context.Context, number string) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` WHERE s.statement_number = ? ORDER BY t.date DESC, t.id DESC`, number)
}

// AllTransactions returns the newest transactions; limit <= 0 returns all.
func (r *TransactionRepo) AllTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	q := selectTransactions + ` ORDER BY t.date DESC, t.id DESC`
	if limit > 0 {
		return r.list(ctx, q+` LIMIT ?`, limit)
	}
	return r.list(ctx, q)
}

// TransactionPage returns one page of transactions, newest first.
func (r *TransactionRepo) TransactionPage(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	return r.list(ctx, selectTransactions+` ORDER BY t.date DESC, t.id DESC LIMIT ? OFFSET ?`, limit, offset)
}

const selectCategorySummary = `
SELECT COALESCE(t.category, ''),
 COUNT(*),
 COALESCE(SUM(CASE WHEN t.transaction_type = 'debit' THEN t.amount ELSE 0 END), 0) AS total_debits,
 COALESCE(SUM(CASE WHEN t.transaction_type = 'credit' THEN t.amount ELSE 0 END), 0)
FROM transactions t
JOIN statements s ON t.statement_id = s.id`

// CategorySummaryForStatement aggregates debits and credits per category
// for one statement. Debit totals keep their sign.
func (r *TransactionRepo) CategorySummaryForStatement(ctx context.Context, number string) ([]domain.CategorySummary, error) {
	return r.summary(ctx, selectCategorySummary+` WHERE s.statement_number = ? GROUP BY t.category ORDER BY total_debits ASC`, number)
}

// CategorySummary aggregates debits and credits per category across every
// statement, biggest spend first.
func (r *TransactionRepo) CategorySummary(ctx context.Context) ([]domain.CategorySummary, error) {
	return r.summary(ctx, selectCategorySummary+` GROUP BY t.category ORDER BY total_debits ASC`)
}

func (r *TransactionRepo) summary(ctx context.Context, query string, args ...interface{}) ([]domain.CategorySummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()
	var out []domain.CategorySummary
	for rows.Next() {
		var cs domain.CategorySummary
		if err := rows.Scan(&cs.Category, &cs.Count, &cs.TotalDebits, &cs.TotalCredits); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Stats summarises the whole ledger.
func (r *TransactionRepo) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	row := r.db.QueryRowContext(ctx, `
	SELECT
	 (SELECT COUNT(*) FROM statements),
	 COUNT(*),
	 COALESCE(SUM(CASE WHEN transaction_type = 'debit' THEN amount ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN transaction_type = 'credit' THEN amount ELSE 0 END), 0),
	 COUNT(DISTINCT category)
	FROM transactions;
	`)
	if err := row.Scan(&s.TotalStatements, &s.TotalTransactions, &s.TotalDebits, &s.TotalCredits, &s.CategoriesCount); err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

// DeleteAll removes every transaction and returns how many were removed.
func (r *TransactionRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return res.RowsAffected()
}

func (r *TransactionRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var t domain.Transaction
	var balance sql.NullFloat64
	var category, recipient, reference sql.NullString
	if err := row.Scan(&t.ID, &t.StatementID, &t.StatementNumber, &t.Date, &t.Description, &t.Amount,
		&balance, &t.Type, &category, &recipient, &reference); err != nil {
		return domain.Transaction{}, err
	}
	if balance.Valid {
		b := balance.Float64
		t.Balance = &b
	}
	t.Category = category.String
	t.RecipientOrPayer = recipient.String
	t.Reference = reference.String
	return t, nil
}
