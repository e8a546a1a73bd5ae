package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerchat/internal/domain"
)

const selectStatements = `SELECT id, filename, COALESCE(account_number, ''), COALESCE(statement_date, ''), COALESCE(statement_number, '') FROM statements`

// StatementRepo handles imported statements.
type StatementRepo struct {
	db DBTX
}

func NewStatementRepo(db DBTX) *StatementRepo { return &StatementRepo{db: db} }

// Insert stores s and returns its ID.
func (r *StatementRepo) Insert(ctx context.Context, s domain.Statement) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO statements(filename, account_number, statement_date, statement_number)
	VALUES(?, ?, ?, ?);
	`, s.Filename, nullString(s.AccountNumber), nullString(s.StatementDate), nullString(s.StatementNumber))
	if err != nil {
		return 0, fmt.Errorf("insert statement %s: %w", s.Filename, err)
	}
	return res.LastInsertId()
}

// GetByFilename returns nil when no statement was imported from filename.
func (r *StatementRepo) GetByFilename(ctx context.Context, filename string) (*domain.Statement, error) {
	return r.one(ctx, selectStatements+` WHERE filename = ?`, filename)
}

// LatestStatement returns the statement with the newest statement date, or
// nil when nothing has been imported.
func (r *StatementRepo) LatestStatement(ctx context.Context) (*domain.Statement, error) {
	return r.one(ctx, selectStatements+` ORDER BY statement_date DESC, id DESC LIMIT 1`)
}

// AllStatements returns every statement, newest first.
func (r *StatementRepo) AllStatements(ctx context.Context) ([]domain.Statement, error) {
	rows, err := r.db.QueryContext(ctx, selectStatements+` ORDER BY statement_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()
	var out []domain.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAll removes every statement and returns how many were removed.
func (r *StatementRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM statements`)
	if err != nil {
		return 0, fmt.Errorf("delete statements: %w", err)
	}
	return res.RowsAffected()
}

func (r *StatementRepo) one(ctx context.Context, query string, args ...interface{}) (*domain.Statement, error) {
	s, err := scanStatement(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func scanStatement(row scanner) (domain.Statement, error) {
	var s domain.Statement
	err := row.Scan(&s.ID, &s.Filename, &s.AccountNumber, &s.StatementDate, &s.StatementNumber)
	return s, err
}
