// Package products manages the demo storefront catalog. Purchase enrichment
// reads product cost against price, so the seed data keeps realistic margins.
package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
)

// Service exposes catalog management operations.
type Service interface {
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	GetProduct(ctx context.Context, slug string) (*ProductDTO, error)
	UpsertProduct(ctx context.Context, input UpsertProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, slug string) error
}

// ProductDTO is the API-facing catalog shape.
type ProductDTO struct {
	SKU         string  `json:"sku"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// UpsertProductInput holds the validated payload to create or replace a
// listing.
type UpsertProductInput struct {
	SKU         string  `json:"sku" validate:"required,max=64"`
	Slug        string  `json:"slug" validate:"omitempty,max=128"`
	Name        string  `json:"name" validate:"required,max=200"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url" validate:"omitempty,max=500"`
}

type service struct {
	repo *Repository
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list products")
	}
	out := make([]ProductDTO, 0, len(items))
	for i := range items {
		out = append(out, toDTO(&items[i]))
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, slug string) (*ProductDTO, error) {
	item, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := toDTO(item)
	return &dto, nil
}

func (s *service) UpsertProduct(ctx context.Context, input UpsertProductInput) (*ProductDTO, error) {
	if input.Cost > input.Price {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot exceed price")
	}
	item := &models.Product{
		SKU:         strings.TrimSpace(input.SKU),
		Slug:        slugify(input.Slug, input.Name),
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Cost:        input.Cost,
		Currency:    strings.ToUpper(strings.TrimSpace(input.Currency)),
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}
	if item.Currency == "" {
		item.Currency = "USD"
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to save product")
	}
	dto := toDTO(item)
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, slug string) error {
	if err := s.repo.Delete(ctx, slug); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete product")
	}
	return nil
}

func toDTO(item *models.Product) ProductDTO {
	return ProductDTO{
		SKU:         item.SKU,
		Slug:        item.Slug,
		Name:        item.Name,
		Price:       item.Price,
		Cost:        item.Cost,
		Currency:    item.Currency,
		Description: item.Description,
		ImageURL:    item.ImageURL,
	}
}

func slugify(slug, name string) string {
	s := strings.TrimSpace(slug)
	if s == "" {
		s = name
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ' || r == '_':
			return '-'
		default:
			return -1
		}
	}, s)
	return strings.Trim(s, "-")
}
