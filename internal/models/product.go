package models

import (
	"errors"
	"strings"
	"time"
)

// Product represents a catalog product
type Product struct {
	ID          int       `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Code        string    `json:"code" db:"code"`
	Category    string    `json:"category" db:"category"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	Status      bool      `json:"status" db:"status"`
	Thumbnail   string    `json:"thumbnail,omitempty" db:"thumbnail"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProductFilters represents filters for product listing
type ProductFilters struct {
	Category string
	Status   *bool
	Limit    int
	Offset   int
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Code        string  `json:"code"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Status      bool    `json:"status"`
	Thumbnail   string  `json:"thumbnail"`
}

// ProductUpdateRequest represents product update data
type ProductUpdateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Status      bool    `json:"status"`
	Thumbnail   string  `json:"thumbnail"`
}

// Validate validates product creation data
func (req *ProductCreateRequest) Validate() error {
	if err := validateProductTitle(req.Title); err != nil {
		return err
	}

	if err := validateProductCode(req.Code); err != nil {
		return err
	}

	if err := validateProductCategory(req.Category); err != nil {
		return err
	}

	if err := validateProductPrice(req.Price); err != nil {
		return err
	}

	if err := validateProductStock(req.Stock); err != nil {
		return err
	}

	return nil
}

// Validate validates product update data
func (req *ProductUpdateRequest) Validate() error {
	if err := validateProductTitle(req.Title); err != nil {
		return err
	}

	if err := validateProductCategory(req.Category); err != nil {
		return err
	}

	if err := validateProductPrice(req.Price); err != nil {
		return err
	}

	if err := validateProductStock(req.Stock); err != nil {
		return err
	}

	return nil
}

// validateProductTitle validates a product title
func validateProductTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("product title is required")
	}

	if len(title) > 200 {
		return errors.New("product title must be less than 200 characters")
	}

	return nil
}

// validateProductCode validates a product code
func validateProductCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("product code is required")
	}

	if len(code) > 64 {
		return errors.New("product code must be less than 64 characters")
	}

	return nil
}

// validateProductCategory validates a product category
func validateProductCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return errors.New("product category is required")
	}

	return nil
}

// validateProductPrice validates a product price
func validateProductPrice(price float64) error {
	if price <= 0 {
		return errors.New("product price must be greater than 0")
	}

	return nil
}

// validateProductStock validates a product stock level
func validateProductStock(stock int) error {
	if stock < 0 {
		return errors.New("product stock cannot be negative")
	}

	return nil
}

// HasStock returns true if at least quantity units are available
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// IsAvailable returns true if the product can be sold
func (p *Product) IsAvailable() bool {
	return p.Status && p.Stock > 0
}
