package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
)

// ProductRepository handles product data operations, including the stock
// ledger used by purchase reconciliation.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, title, description, code, category, price, stock, status, thumbnail, created_at`

// Create creates a new product
func (r *ProductRepository) Create(req *models.ProductCreateRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO products (title, description, code, category, price, stock, status, thumbnail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + productColumns

	product := &models.Product{}
	err := r.db.QueryRow(
		query,
		req.Title,
		req.Description,
		req.Code,
		req.Category,
		req.Price,
		req.Stock,
		req.Status,
		req.Thumbnail,
		time.Now(),
	).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Code,
		&product.Category,
		&product.Price,
		&product.Stock,
		&product.Status,
		&product.Thumbnail,
		&product.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product code %q: %w", req.Code, models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// GetByID retrieves a product by ID
func (r *ProductRepository) GetByID(id int) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product := &models.Product{}
	err := r.db.QueryRow(query, id).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Code,
		&product.Category,
		&product.Price,
		&product.Stock,
		&product.Status,
		&product.Thumbnail,
		&product.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

// GetByCode retrieves a product by its unique code
func (r *ProductRepository) GetByCode(code string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	product := &models.Product{}
	err := r.db.QueryRow(query, code).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Code,
		&product.Category,
		&product.Price,
		&product.Stock,
		&product.Status,
		&product.Thumbnail,
		&product.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product by code: %w", err)
	}

	return product, nil
}

// Search retrieves products matching the given filters
func (r *ProductRepository) Search(filters models.ProductFilters) ([]*models.Product, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.Category != "" {
		argCount++
		whereClause += fmt.Sprintf(" AND category = $%d", argCount)
		args = append(args, filters.Category)
	}

	if filters.Status != nil {
		argCount++
		whereClause += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	countQuery := "SELECT COUNT(*) FROM products " + whereClause
	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	argCount++
	limitClause := fmt.Sprintf(" ORDER BY id LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	limitClause += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, filters.Offset)

	query := "SELECT " + productColumns + " FROM products " + whereClause + limitClause

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product := &models.Product{}
		err := rows.Scan(
			&product.ID,
			&product.Title,
			&product.Description,
			&product.Code,
			&product.Category,
			&product.Price,
			&product.Stock,
			&product.Status,
			&product.Thumbnail,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	return products, total, rows.Err()
}

// Update updates a product's editable fields
func (r *ProductRepository) Update(id int, req *models.ProductUpdateRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE products
		SET title = $1, description = $2, category = $3, price = $4, stock = $5, status = $6, thumbnail = $7
		WHERE id = $8
		RETURNING ` + productColumns

	product := &models.Product{}
	err := r.db.QueryRow(
		query,
		req.Title,
		req.Description,
		req.Category,
		req.Price,
		req.Stock,
		req.Status,
		req.Thumbnail,
		id,
	).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Code,
		&product.Category,
		&product.Price,
		&product.Stock,
		&product.Status,
		&product.Thumbnail,
		&product.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// Delete deletes a product
func (r *ProductRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrProductNotFound
	}

	return nil
}

// AdjustStock atomically applies a signed delta to a product's stock level
// and returns the new level. The update is conditional at the storage layer
// so concurrent debits are linearizable per product: a decrement that would
// take stock below zero affects no rows and returns ErrInsufficientStock.
func (r *ProductRepository) AdjustStock(productID int, delta int) (int, error) {
	query := `
		UPDATE products
		SET stock = stock + $1
		WHERE id = $2 AND stock + $1 >= 0
		RETURNING stock`

	var newStock int
	err := r.db.QueryRow(query, delta, productID).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to adjust stock for product %d: %w", productID, err)
	}

	// No row updated: either the product is gone or the debit would have
	// gone negative. Distinguish the two for the caller.
	var exists bool
	checkErr := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if checkErr != nil {
		return 0, fmt.Errorf("failed to adjust stock for product %d: %w", productID, checkErr)
	}
	if !exists {
		return 0, models.ErrProductNotFound
	}

	return 0, fmt.Errorf("product %d: %w", productID, models.ErrInsufficientStock)
}
