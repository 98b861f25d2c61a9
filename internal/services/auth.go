package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/utils"
)

// AuthService handles user registration and credential checks. Session
// state itself lives in the HTTP layer.
type AuthService struct {
	users UserRepository
	carts CartRepository
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, carts CartRepository) *AuthService {
	return &AuthService{users: users, carts: carts}
}

// Register creates a new user with a hashed password and a fresh empty
// cart attached to the account.
func (s *AuthService) Register(req *models.UserCreateRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Create(req, hash)
	if err != nil {
		return nil, err
	}

	// The cart is attached best-effort: a user without a cart gets one
	// lazily on first add instead.
	if cart, err := s.carts.Create(nil); err == nil {
		if err := s.users.SetCart(user.ID, cart.ID); err == nil {
			user.CartID = &cart.ID
		} else {
			log.Printf("WARN: could not attach cart %d to user %d: %v", cart.ID, user.ID, err)
		}
	} else {
		log.Printf("WARN: could not create cart for user %d: %v", user.ID, err)
	}

	return user, nil
}

// Login checks the credentials and returns the user on success. Unknown
// email and wrong password both come back as ErrUnauthorized so the
// response does not leak which one was wrong.
func (s *AuthService) Login(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// GetUser returns a user by id
func (s *AuthService) GetUser(id int) (*models.User, error) {
	return s.users.GetByID(id)
}

// EnsureCart returns the user's cart id, creating and attaching a cart if
// the user does not have one yet.
func (s *AuthService) EnsureCart(user *models.User) (int, error) {
	if user.CartID != nil {
		return *user.CartID, nil
	}
	cart, err := s.carts.Create(nil)
	if err != nil {
		return 0, fmt.Errorf("creating cart for user %d: %w", user.ID, err)
	}
	if err := s.users.SetCart(user.ID, cart.ID); err != nil {
		return 0, fmt.Errorf("attaching cart %d to user %d: %w", cart.ID, user.ID, err)
	}
	user.CartID = &cart.ID
	return cart.ID, nil
}
