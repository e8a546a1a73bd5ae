package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(dbPath))
	require.NoError(t, RunMigrations(dbPath))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('statements', 'transactions', 'budgets', 'categories')`).Scan(&n))
	require.Equal(t, 4, n)
}

func TestOpenAndMigrateSeedsCategoriesOnce(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenAndMigrate(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, SeedDefaults(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n))
	require.Equal(t, len(DefaultCategories), n)
	require.NoError(t, db.Close())

	// reopening an existing database must not fail on the applied migration
	db, err = OpenAndMigrate(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSeedDefaultsReportsListError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// no migrations, so the categories table is missing
	db, err := Open(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = SeedDefaults(ctx, db)
	require.ErrorContains(t, err, "list categories")
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := OpenAndMigrate(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO budgets(category, amount) VALUES('fuel', 100)`); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM budgets`).Scan(&n))
	require.Zero(t, n)
}
