package models

import (
	"errors"
	"time"
)

// Cart represents a shopping cart
type Cart struct {
	ID        int        `json:"id" db:"id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CartItem represents a line item in a shopping cart. Product is populated
// on reads that join the products table; it may be nil when the product has
// been removed from the catalog.
type CartItem struct {
	ProductID int      `json:"product_id" db:"product_id"`
	Quantity  int      `json:"quantity" db:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// CartItemInput represents a product reference and quantity used to seed or
// rewrite a cart.
type CartItemInput struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Validate validates a cart item input
func (in *CartItemInput) Validate() error {
	if in.ProductID <= 0 {
		return errors.New("product id is required")
	}

	if in.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}

	return nil
}

// IsEmpty returns true if the cart has no line items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the total number of units across all line items
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal returns the cart total priced at the current product prices.
// Items whose product could not be resolved contribute nothing.
func (c *Cart) Subtotal() float64 {
	total := 0.0
	for _, item := range c.Items {
		if item.Product != nil {
			total += item.Product.Price * float64(item.Quantity)
		}
	}
	return total
}
