package services

import (
	"context"
	"strings"

	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/types"
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id int) error
	LockShared(ctx context.Context, q store.Querier, id int) error
}

// ProductService encapsulates product use-cases.
type ProductService struct {
	repo ProductRepository
}

func NewProductService(repo ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) List(ctx context.Context) ([]types.Product, error) {
	return s.repo.List(ctx)
}

func (s *ProductService) Get(ctx context.Context, id int) (types.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, product types.Product) (types.Product, error) {
	product, err := normalizeProduct(product)
	if err != nil {
		return types.Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *ProductService) Update(ctx context.Context, product types.Product) (types.Product, error) {
	product, err := normalizeProduct(product)
	if err != nil {
		return types.Product{}, err
	}
	return s.repo.Update(ctx, product)
}

// Delete removes a product. Its stock row goes with it; log entries stay.
func (s *ProductService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func normalizeProduct(product types.Product) (types.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.Description = strings.TrimSpace(product.Description)
	product.Category = strings.TrimSpace(product.Category)
	if product.Name == "" {
		return types.Product{}, invalid("name", "is required")
	}
	if product.UnitPrice < 0 {
		return types.Product{}, invalid("unit_price", "must not be negative")
	}
	return product, nil
}
