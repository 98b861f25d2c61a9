package services

import (
	"errors"
	"fmt"
	"strconv"

	"ecommerce-platform/internal/models"
)

// ErrCartAlreadyPurchased is returned when a checkout is requested for a
// cart that already produced a ticket.
var ErrCartAlreadyPurchased = errors.New("cart already has a ticket")

// UnavailableItemsError reports cart lines that cannot be fulfilled at
// checkout time.
type UnavailableItemsError struct {
	ProductIDs []int
}

func (e *UnavailableItemsError) Error() string {
	return fmt.Sprintf("%d cart items are unavailable", len(e.ProductIDs))
}

// CheckoutService creates gateway checkout preferences for carts. The
// actual reconciliation happens later, when the gateway's webhook reports
// an approved payment.
type CheckoutService struct {
	carts    *CartService
	tickets  TicketRepository
	products ProductRepository
	gateway  PaymentGateway
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(carts *CartService, tickets TicketRepository, products ProductRepository, gateway PaymentGateway) *CheckoutService {
	return &CheckoutService{carts: carts, tickets: tickets, products: products, gateway: gateway}
}

// CreatePaymentPreference builds a gateway preference for the cart's
// current contents. It refuses when the cart already has a ticket or when
// any line is unavailable, so the buyer never pays for a cart that cannot
// fully reconcile.
func (s *CheckoutService) CreatePaymentPreference(cartID int, buyerEmail string, user *models.User) (*Preference, error) {
	cart, err := s.carts.GetCart(cartID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, fmt.Errorf("cart %d: %w", cartID, models.ErrCartEmpty)
	}

	if prior, err := s.tickets.GetByExternalReference(strconv.Itoa(cartID)); err == nil && len(prior) > 0 {
		return nil, fmt.Errorf("cart %d: %w", cartID, ErrCartAlreadyPurchased)
	}

	unavailable, err := s.carts.UnavailableItems(cartID)
	if err != nil {
		return nil, err
	}
	if len(unavailable) > 0 {
		return nil, &UnavailableItemsError{ProductIDs: unavailable}
	}

	metadata := map[string]string{
		MetadataCartID: strconv.Itoa(cartID),
	}
	if buyerEmail != "" {
		metadata[MetadataBuyerEmail] = buyerEmail
	}
	if user != nil {
		metadata[MetadataUserEmail] = user.Email
		metadata[MetadataUserID] = strconv.Itoa(user.ID)
	}

	req := &PreferenceRequest{
		Items:             make([]PreferenceItem, 0, len(cart.Items)),
		PayerEmail:        buyerEmail,
		ExternalReference: strconv.Itoa(cartID),
		Metadata:          metadata,
	}
	for _, line := range cart.Items {
		if line.Product == nil {
			continue
		}
		req.Items = append(req.Items, PreferenceItem{
			Title:       line.Product.Title,
			Description: line.Product.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.Price,
		})
	}

	pref, err := s.gateway.CreatePreference(req)
	if err != nil {
		return nil, fmt.Errorf("creating preference for cart %d: %w", cartID, err)
	}
	return pref, nil
}
