package services

import (
	"fmt"

	"ecommerce-platform/internal/models"
)

// ProductService handles catalog operations
type ProductService struct {
	products ProductRepository
}

// NewProductService creates a new product service
func NewProductService(products ProductRepository) *ProductService {
	return &ProductService{products: products}
}

// CreateProduct creates a new catalog product
func (s *ProductService) CreateProduct(req *models.ProductCreateRequest) (*models.Product, error) {
	product, err := s.products.Create(req)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return product, nil
}

// GetProduct returns a product by id
func (s *ProductService) GetProduct(id int) (*models.Product, error) {
	return s.products.GetByID(id)
}

// GetProductByCode returns a product by its unique code
func (s *ProductService) GetProductByCode(code string) (*models.Product, error) {
	return s.products.GetByCode(code)
}

// ListProducts returns a page of products matching the filters, plus the
// total match count for pagination.
func (s *ProductService) ListProducts(filters models.ProductFilters) ([]*models.Product, int, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.products.Search(filters)
}

// UpdateProduct updates a product's mutable fields. The product code is
// immutable once assigned.
func (s *ProductService) UpdateProduct(id int, req *models.ProductUpdateRequest) (*models.Product, error) {
	product, err := s.products.Update(id, req)
	if err != nil {
		return nil, fmt.Errorf("updating product %d: %w", id, err)
	}
	return product, nil
}

// DeleteProduct removes a product from the catalog. Existing cart lines
// referencing it resolve as unfulfillable at purchase time; existing
// tickets keep their snapshotted title and price.
func (s *ProductService) DeleteProduct(id int) error {
	return s.products.Delete(id)
}
