package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
)

// Repository persists demo catalog listings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns the catalog ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Product, error) {
	var items []models.Product
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindBySlug loads one listing. A missing slug returns (nil, nil).
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var item models.Product
	err := r.db.WithContext(ctx).First(&item, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Upsert inserts the listing or replaces the mutable columns when the SKU
// already exists.
func (r *Repository) Upsert(ctx context.Context, item *models.Product) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug", "name", "price", "cost", "currency", "description", "image_url", "updated_at",
		}),
	}).Create(item).Error
}

// Delete removes the listing by slug. Deleting an absent slug is a no-op.
func (r *Repository) Delete(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).Where("slug = ?", slug).Delete(&models.Product{}).Error
}

// Count reports the catalog size; seeding uses it to avoid duplicates.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
