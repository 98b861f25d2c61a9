package services

import (
	"errors"
	"fmt"

	"ecommerce-platform/internal/models"
)

// CartService handles cart operations
type CartService struct {
	carts    CartRepository
	products ProductRepository
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// CreateCart creates a cart, optionally seeded with items. Seed lines that
// reference unknown products are rejected as a whole.
func (s *CartService) CreateCart(items []models.CartItemInput) (*models.Cart, error) {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		if _, err := s.products.GetByID(item.ProductID); err != nil {
			return nil, fmt.Errorf("seeding cart with product %d: %w", item.ProductID, err)
		}
	}
	return s.carts.Create(items)
}

// GetCart returns a cart with its lines resolved against the catalog
func (s *CartService) GetCart(id int) (*models.Cart, error) {
	return s.carts.GetByID(id)
}

// AddProduct adds quantity units of a product to the cart, merging with an
// existing line for the same product.
func (s *CartService) AddProduct(cartID, productID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrInvalidInput)
	}
	if _, err := s.products.GetByID(productID); err != nil {
		return nil, fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	if err := s.carts.AddProduct(cartID, productID, quantity); err != nil {
		return nil, err
	}
	return s.carts.GetByID(cartID)
}

// UpdateItemQuantity sets the quantity of an existing cart line. A zero
// quantity removes the line.
func (s *CartService) UpdateItemQuantity(cartID, productID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", models.ErrInvalidInput)
	}
	if quantity == 0 {
		return s.RemoveProduct(cartID, productID)
	}
	if err := s.carts.UpdateItemQuantity(cartID, productID, quantity); err != nil {
		return nil, err
	}
	return s.carts.GetByID(cartID)
}

// RemoveProduct removes a product line from the cart. Removing a product
// that is not in the cart is not an error.
func (s *CartService) RemoveProduct(cartID, productID int) (*models.Cart, error) {
	if err := s.carts.RemoveProduct(cartID, productID); err != nil {
		return nil, err
	}
	return s.carts.GetByID(cartID)
}

// ReplaceCart swaps the cart contents for the given items. Every line is
// validated and existence-checked before anything changes.
func (s *CartService) ReplaceCart(cartID int, items []models.CartItemInput) (*models.Cart, error) {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		if _, err := s.products.GetByID(item.ProductID); err != nil {
			return nil, fmt.Errorf("replacing cart %d with product %d: %w", cartID, item.ProductID, err)
		}
	}
	if err := s.carts.ReplaceItems(cartID, items); err != nil {
		return nil, err
	}
	return s.carts.GetByID(cartID)
}

// ClearCart removes every line from the cart, leaving the cart itself in
// place.
func (s *CartService) ClearCart(cartID int) (*models.Cart, error) {
	if err := s.carts.ReplaceItems(cartID, nil); err != nil {
		return nil, err
	}
	return s.carts.GetByID(cartID)
}

// DeleteCart deletes the cart and its lines
func (s *CartService) DeleteCart(cartID int) error {
	return s.carts.Delete(cartID)
}

// ListCarts returns every cart, for administrative inspection
func (s *CartService) ListCarts() ([]*models.Cart, error) {
	return s.carts.List()
}

// UnavailableItems returns the product ids of cart lines that could not be
// fulfilled right now: products gone from the catalog, disabled, or with
// insufficient stock for the requested quantity.
func (s *CartService) UnavailableItems(cartID int) ([]int, error) {
	cart, err := s.carts.GetByID(cartID)
	if err != nil {
		return nil, err
	}

	var unavailable []int
	for _, line := range cart.Items {
		product, err := s.products.GetByID(line.ProductID)
		if err != nil {
			if errors.Is(err, models.ErrProductNotFound) {
				unavailable = append(unavailable, line.ProductID)
				continue
			}
			return nil, err
		}
		if !product.Status || !product.HasStock(line.Quantity) {
			unavailable = append(unavailable, line.ProductID)
		}
	}
	return unavailable, nil
}
