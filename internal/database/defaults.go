package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerchat/internal/database/repository"
)

// DefaultCategories is the label set the classifier chooses from on a new
// database.
var DefaultCategories = []string{
	"doctor",
	"optician",
	"medical",
	"groceries",
	"garden_service",
	"dog_parlour",
	"domestic_worker",
	"home_maintenance",
	"education",
	"fuel",
	"utilities",
	"electricity",
	"insurance",
	"subscriptions",
	"entertainment",
	"savings",
	"transfer",
	"fees",
	"salary",
	"other",
}

// SeedDefaults ensures baseline categories exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	existing, err := catRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for idx, name := range DefaultCategories {
		if err := catRepo.Upsert(ctx, repository.NewCategory(name, idx)); err != nil {
			return err
		}
	}
	return nil
}
