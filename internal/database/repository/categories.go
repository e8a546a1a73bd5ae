package repository

import (
	"context"
	"fmt"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, sort_order)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 sort_order=excluded.sort_order;
	`, c.ID, c.Name, c.SortOrder)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.Name, err)
	}
	return nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Names returns the configured label set in display order.
func (r *CategoryRepo) Names(ctx context.Context) ([]string, error) {
	cats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.Name)
	}
	return out, nil
}

// AllCategories returns every known category: the configured labels plus
// any category already used by a transaction. Categories in use come
// first, most used first.
func (r *CategoryRepo) AllCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT MIN(name) FROM (
	 SELECT category AS name, COUNT(*) AS uses FROM transactions
	 WHERE category IS NOT NULL AND category <> ''
	 GROUP BY category
	 UNION ALL
	 SELECT name, 0 FROM categories
	)
	GROUP BY lower(name)
	ORDER BY SUM(uses) DESC, lower(name);
	`)
	if err != nil {
		return nil, fmt.Errorf("all categories: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
