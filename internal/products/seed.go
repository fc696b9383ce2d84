package products

import (
	"context"

	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
)

// demoCatalog is the starter inventory loaded into empty databases so the
// storefront and enrichment math have something to work with out of the box.
var demoCatalog = []models.Product{
	{
		SKU:         "WIDGET-ALPHA",
		Slug:        "widget-alpha",
		Name:        "Widget Alpha",
		Price:       19.99,
		Cost:        8.50,
		Currency:    "USD",
		Description: "Entry-level demo widget.",
	},
	{
		SKU:         "WIDGET-BETA",
		Slug:        "widget-beta",
		Name:        "Widget Beta",
		Price:       39.99,
		Cost:        16.00,
		Currency:    "USD",
		Description: "Premium demo widget.",
	},
}

// Seed inserts the demo catalog when the products table is empty.
func Seed(ctx context.Context, repo *Repository) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for i := range demoCatalog {
		item := demoCatalog[i]
		if err := repo.Upsert(ctx, &item); err != nil {
			return err
		}
	}
	return nil
}
