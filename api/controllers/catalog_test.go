package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	productsvc "github.com/jdgallegos/beaconshop-backend/internal/products"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
)

type stubProductsService struct {
	items   map[string]productsvc.ProductDTO
	deleted []string
}

func newStubProductsService() *stubProductsService {
	return &stubProductsService{items: map[string]productsvc.ProductDTO{
		"widget-alpha": {SKU: "WIDGET-ALPHA", Slug: "widget-alpha", Name: "Widget Alpha", Price: 19.99, Cost: 8.50, Currency: "USD"},
	}}
}

func (s *stubProductsService) ListProducts(ctx context.Context) ([]productsvc.ProductDTO, error) {
	out := make([]productsvc.ProductDTO, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *stubProductsService) GetProduct(ctx context.Context, slug string) (*productsvc.ProductDTO, error) {
	item, ok := s.items[slug]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &item, nil
}

func (s *stubProductsService) UpsertProduct(ctx context.Context, input productsvc.UpsertProductInput) (*productsvc.ProductDTO, error) {
	if input.Cost > input.Price {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost cannot exceed price")
	}
	item := productsvc.ProductDTO{SKU: input.SKU, Slug: input.Slug, Name: input.Name, Price: input.Price, Cost: input.Cost, Currency: input.Currency}
	s.items[item.Slug] = item
	return &item, nil
}

func (s *stubProductsService) DeleteProduct(ctx context.Context, slug string) error {
	delete(s.items, slug)
	s.deleted = append(s.deleted, slug)
	return nil
}

func withSlug(req *http.Request, slug string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("slug", slug)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestGetCatalogItem(t *testing.T) {
	logg := testLogger()

	t.Run("found", func(t *testing.T) {
		req := withSlug(httptest.NewRequest(http.MethodGet, "/api/public/catalog/widget-alpha", nil), "widget-alpha")
		rec := httptest.NewRecorder()
		GetCatalogItem(newStubProductsService(), logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var envelope struct {
			Data productsvc.ProductDTO `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.SKU != "WIDGET-ALPHA" {
			t.Fatalf("item = %+v", envelope.Data)
		}
	})

	t.Run("missing slug param", func(t *testing.T) {
		req := withSlug(httptest.NewRequest(http.MethodGet, "/api/public/catalog/", nil), "")
		rec := httptest.NewRecorder()
		GetCatalogItem(newStubProductsService(), logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown slug", func(t *testing.T) {
		req := withSlug(httptest.NewRequest(http.MethodGet, "/api/public/catalog/nope", nil), "nope")
		rec := httptest.NewRecorder()
		GetCatalogItem(newStubProductsService(), logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestUpsertCatalogItem(t *testing.T) {
	logg := testLogger()

	t.Run("creates a listing", func(t *testing.T) {
		svc := newStubProductsService()
		req := httptest.NewRequest(http.MethodPut, "/admin/api/catalog",
			strings.NewReader(`{"sku":"WIDGET-GAMMA","slug":"widget-gamma","name":"Widget Gamma","price":59.99,"cost":20,"currency":"USD"}`))
		rec := httptest.NewRecorder()
		UpsertCatalogItem(svc, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if _, ok := svc.items["widget-gamma"]; !ok {
			t.Fatal("listing not stored")
		}
	})

	t.Run("missing sku rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/admin/api/catalog", strings.NewReader(`{"name":"No Sku","price":5}`))
		rec := httptest.NewRecorder()
		UpsertCatalogItem(newStubProductsService(), logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("cost above price rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/admin/api/catalog",
			strings.NewReader(`{"sku":"LOSS-LEADER","name":"Loss Leader","price":5,"cost":10}`))
		rec := httptest.NewRecorder()
		UpsertCatalogItem(newStubProductsService(), logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestDeleteCatalogItem(t *testing.T) {
	svc := newStubProductsService()
	req := withSlug(httptest.NewRequest(http.MethodDelete, "/admin/api/catalog/widget-alpha", nil), "widget-alpha")
	rec := httptest.NewRecorder()
	DeleteCatalogItem(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "widget-alpha" {
		t.Fatalf("deleted = %v", svc.deleted)
	}
}

func TestListCatalog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/public/catalog", nil)
	rec := httptest.NewRecorder()
	ListCatalog(newStubProductsService(), testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data []productsvc.ProductDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("items = %v", envelope.Data)
	}
}
