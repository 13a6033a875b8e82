package service

import (
	"context"
	"fmt"
	"strings"

	"grape-store/internal/models"
	"grape-store/internal/store"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// CatalogService handles product management
type CatalogService struct {
	store  ProductStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store ProductStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ProductRequest is the admin payload for creating or updating a product
type ProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Grade       string `json:"grade"`
	Unit        string `json:"unit"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
	IsActive    *bool  `json:"is_active"`
}

func (r *ProductRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if r.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if r.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	return nil
}

func (r *ProductRequest) apply(p *models.Product) {
	p.Name = strings.TrimSpace(r.Name)
	p.Description = r.Description
	p.Category = r.Category
	p.Grade = r.Grade
	p.Unit = r.Unit
	if p.Unit == "" {
		p.Unit = "kg"
	}
	p.Price = r.Price
	p.Stock = r.Stock
	p.ImageURL = r.ImageURL
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}

// CreateProduct adds a product to the catalog
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{IsActive: true}
	req.apply(product)

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct replaces a product's fields. Existing orders keep their
// snapshotted prices.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(product)

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// DeactivateProduct hides a product from the storefront
func (s *CatalogService) DeactivateProduct(ctx context.Context, id int64) error {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	product.IsActive = false
	return s.store.UpdateProduct(ctx, product)
}

// GetProduct returns a product. Inactive products are only visible to admins.
func (s *CatalogService) GetProduct(ctx context.Context, id int64, includeInactive bool) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive && !includeInactive {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return product, nil
}

// ListProducts lists products matching the filter
func (s *CatalogService) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return s.store.ListProducts(ctx, f)
}
