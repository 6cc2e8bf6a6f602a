package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/errors"
)

// SeedCatalogInput contains parameters for SeedCatalog.
type SeedCatalogInput struct {
	Replace bool // overwrite stored items that share a seed id
}

// SeedCatalogOutput contains the result of SeedCatalog.
type SeedCatalogOutput struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// SeedCatalog loads the built-in catalog. Items already stored are left
// alone unless Replace is set.
func SeedCatalog(ctx context.Context, database *sql.DB, input SeedCatalogInput) (*SeedCatalogOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	out := &SeedCatalogOutput{}
	for _, it := range catalog.SeedItems() {
		exists, err := db.ContentExists(ctx, tx, it.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case !exists:
			if err := db.InsertContent(ctx, tx, it); err != nil {
				return nil, err
			}
			out.Inserted++
		case input.Replace:
			if err := db.UpsertContent(ctx, tx, it); err != nil {
				return nil, err
			}
			out.Replaced++
		default:
			out.Skipped++
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	out.Total, err = db.CountContent(ctx, database)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CatalogStats summarises the stored catalog.
func CatalogStats(ctx context.Context, database *sql.DB) (*db.ContentStats, error) {
	return db.GetContentStats(ctx, database)
}
