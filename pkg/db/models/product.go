package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a demo catalog listing. Purchase events draw their value from
// the configured band, falling back to catalog prices when the band is unset.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string    `gorm:"column:sku;size:64;uniqueIndex"`
	Slug        string    `gorm:"column:slug;size:128;uniqueIndex"`
	Name        string    `gorm:"column:name;size:200;not null"`
	Price       float64   `gorm:"column:price;not null;default:0"`
	Cost        float64   `gorm:"column:cost;not null;default:0"`
	Currency    string    `gorm:"column:currency;size:8;default:USD"`
	Description string    `gorm:"column:description;type:text"`
	ImageURL    string    `gorm:"column:image_url;size:500"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName implements the gorm naming override.
func (Product) TableName() string {
	return "products"
}
