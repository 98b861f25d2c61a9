package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
)

// UserRepository handles user data operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, age, password_hash, role, cart_id, phone, created_at`

// Create creates a new user with the given password hash
func (r *UserRepository) Create(req *models.UserCreateRequest, passwordHash string) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (first_name, last_name, email, age, password_hash, role, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	user := &models.User{}
	err := scanUser(r.db.QueryRow(
		query,
		req.FirstName,
		req.LastName,
		req.Email,
		req.Age,
		passwordHash,
		models.RoleUser,
		req.Phone,
		time.Now(),
	), user)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s already registered: %w", req.Email, models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int) (*models.User, error) {
	user := &models.User{}
	err := scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	user := &models.User{}
	err := scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetByCartID retrieves the user owning the given cart. Purchase
// reconciliation uses this reverse lookup to resolve purchaser identity
// when payment metadata is incomplete.
func (r *UserRepository) GetByCartID(cartID int) (*models.User, error) {
	user := &models.User{}
	err := scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE cart_id = $1`, cartID), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by cart: %w", err)
	}
	return user, nil
}

// SetCart associates a cart with a user
func (r *UserRepository) SetCart(userID, cartID int) error {
	result, err := r.db.Exec(`UPDATE users SET cart_id = $1 WHERE id = $2`, cartID, userID)
	if err != nil {
		return fmt.Errorf("failed to set user cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

func scanUser(row scanner, user *models.User) error {
	var (
		cartID sql.NullInt64
		phone  sql.NullString
		age    sql.NullInt64
	)

	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&age,
		&user.PasswordHash,
		&user.Role,
		&cartID,
		&phone,
		&user.CreatedAt,
	)
	if err != nil {
		return err
	}

	user.Age = int(age.Int64)
	user.Phone = phone.String
	if cartID.Valid {
		id := int(cartID.Int64)
		user.CartID = &id
	}

	return nil
}
