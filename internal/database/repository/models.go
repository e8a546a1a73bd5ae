package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/ledgerchat/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can take
// part in a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Category represents a category row.
type Category struct {
	ID        string
	Name      string
	SortOrder int
}

// NewCategory derives a stable ID from the lower-cased name.
func NewCategory(name string, sortOrder int) Category {
	name = strings.TrimSpace(name)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+strings.ToLower(name))).String()
	return Category{ID: id, Name: name, SortOrder: sortOrder}
}

// TransactionRow is a transaction as stored, with the import-only columns.
type TransactionRow struct {
	domain.Transaction
	RawText    string
	SourceHash string
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// likePattern wraps term for a LIKE ... ESCAPE '\' match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
