package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
)

// CartRepository handles shopping cart data operations
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Create creates a new cart, optionally seeded with line items. Seed items
// referencing the same product are merged by summing quantities.
func (r *CartRepository) Create(items []models.CartItemInput) (*models.Cart, error) {
	merged := map[int]int{}
	var order []int
	for _, in := range items {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		if _, seen := merged[in.ProductID]; !seen {
			order = append(order, in.ProductID)
		}
		merged[in.ProductID] += in.Quantity
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cart := &models.Cart{}
	now := time.Now()
	err = tx.QueryRow(
		`INSERT INTO carts (created_at, updated_at) VALUES ($1, $1) RETURNING id, created_at, updated_at`,
		now,
	).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	for _, productID := range order {
		_, err = tx.Exec(
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)`,
			cart.ID, productID, merged[productID],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed cart item: %w", err)
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Quantity: merged[productID]})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart: %w", err)
	}

	return cart, nil
}

// GetByID retrieves a cart with its line items and their current product
// records. Items whose product no longer exists are returned with a nil
// Product so the caller can decide how to treat them.
func (r *CartRepository) GetByID(id int) (*models.Cart, error) {
	cart := &models.Cart{}
	err := r.db.QueryRow(
		`SELECT id, created_at, updated_at FROM carts WHERE id = $1`, id,
	).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	query := `
		SELECT ci.product_id, ci.quantity,
		       p.id, p.title, p.description, p.code, p.category, p.price, p.stock, p.status, p.thumbnail, p.created_at
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id`

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := models.CartItem{}
		var (
			pID          sql.NullInt64
			pTitle       sql.NullString
			pDescription sql.NullString
			pCode        sql.NullString
			pCategory    sql.NullString
			pPrice       sql.NullFloat64
			pStock       sql.NullInt64
			pStatus      sql.NullBool
			pThumbnail   sql.NullString
			pCreatedAt   sql.NullTime
		)
		err := rows.Scan(
			&item.ProductID, &item.Quantity,
			&pID, &pTitle, &pDescription, &pCode, &pCategory, &pPrice, &pStock, &pStatus, &pThumbnail, &pCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		if pID.Valid {
			item.Product = &models.Product{
				ID:          int(pID.Int64),
				Title:       pTitle.String,
				Description: pDescription.String,
				Code:        pCode.String,
				Category:    pCategory.String,
				Price:       pPrice.Float64,
				Stock:       int(pStock.Int64),
				Status:      pStatus.Bool,
				Thumbnail:   pThumbnail.String,
				CreatedAt:   pCreatedAt.Time,
			}
		}
		cart.Items = append(cart.Items, item)
	}

	return cart, rows.Err()
}

// AddProduct adds a product to a cart, merging the quantity into an
// existing line item for the same product if one exists.
func (r *CartRepository) AddProduct(cartID, productID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", models.ErrInvalidInput)
	}

	if err := r.touch(cartID); err != nil {
		return err
	}

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	if _, err := r.db.Exec(query, cartID, productID, quantity); err != nil {
		return fmt.Errorf("failed to add product to cart: %w", err)
	}

	return nil
}

// UpdateItemQuantity sets the quantity of an existing line item
func (r *CartRepository) UpdateItemQuantity(cartID, productID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", models.ErrInvalidInput)
	}

	result, err := r.db.Exec(
		`UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND product_id = $3`,
		quantity, cartID, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return models.ErrProductNotFound
	}

	return r.touch(cartID)
}

// RemoveProduct removes a line item from a cart
func (r *CartRepository) RemoveProduct(cartID, productID int) error {
	result, err := r.db.Exec(
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove product from cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrProductNotFound
	}

	return r.touch(cartID)
}

// ReplaceItems rewrites a cart's line items wholesale. Purchase
// reconciliation uses this to leave only the unfulfilled residue behind.
func (r *CartRepository) ReplaceItems(cartID int, items []models.CartItemInput) error {
	for _, in := range items {
		if err := in.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`, cartID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if !exists {
		return models.ErrCartNotFound
	}

	if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	for _, in := range items {
		_, err := tx.Exec(
			`INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			cartID, in.ProductID, in.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to write cart item: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now(), cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	return tx.Commit()
}

// Delete deletes a cart and its items
func (r *CartRepository) Delete(cartID int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrCartNotFound
	}

	return tx.Commit()
}

// List retrieves all carts with their items (admin use)
func (r *CartRepository) List() ([]*models.Cart, error) {
	rows, err := r.db.Query(`SELECT id, created_at, updated_at FROM carts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer rows.Close()

	var carts []*models.Cart
	byID := map[int]*models.Cart{}
	for rows.Next() {
		cart := &models.Cart{}
		if err := rows.Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart: %w", err)
		}
		carts = append(carts, cart)
		byID[cart.ID] = cart
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.db.Query(`SELECT cart_id, product_id, quantity FROM cart_items ORDER BY cart_id, product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var cartID int
		item := models.CartItem{}
		if err := itemRows.Scan(&cartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		if cart, ok := byID[cartID]; ok {
			cart.Items = append(cart.Items, item)
		}
	}

	return carts, itemRows.Err()
}

// touch bumps a cart's updated_at, failing with ErrCartNotFound if the
// cart does not exist.
func (r *CartRepository) touch(cartID int) error {
	result, err := r.db.Exec(`UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now(), cartID)
	if err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if affected == 0 {
		return models.ErrCartNotFound
	}

	return nil
}
