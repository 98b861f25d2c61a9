package services

import (
	"time"

	"ecommerce-platform/internal/models"
)

// ProductRepository defines the product data layer, including the atomic
// stock adjustment the purchase flow relies on.
type ProductRepository interface {
	Create(req *models.ProductCreateRequest) (*models.Product, error)
	GetByID(id int) (*models.Product, error)
	GetByCode(code string) (*models.Product, error)
	Search(filters models.ProductFilters) ([]*models.Product, int, error)
	Update(id int, req *models.ProductUpdateRequest) (*models.Product, error)
	Delete(id int) error
	AdjustStock(productID, delta int) (int, error)
}

// CartRepository defines the cart data layer
type CartRepository interface {
	Create(items []models.CartItemInput) (*models.Cart, error)
	GetByID(id int) (*models.Cart, error)
	AddProduct(cartID, productID, quantity int) error
	UpdateItemQuantity(cartID, productID, quantity int) error
	RemoveProduct(cartID, productID int) error
	ReplaceItems(cartID int, items []models.CartItemInput) error
	Delete(cartID int) error
	List() ([]*models.Cart, error)
}

// TicketRepository defines the ticket data layer. Tickets are append-only;
// there are no update or delete operations.
type TicketRepository interface {
	Create(req *models.TicketCreateRequest) (*models.Ticket, error)
	GetByID(id int) (*models.Ticket, error)
	GetByCode(code string) (*models.Ticket, error)
	GetByPaymentID(paymentID string) (*models.Ticket, error)
	FindExistingForPayment(paymentID, preferenceID string) (*models.Ticket, error)
	GetByExternalReference(ref string) ([]*models.Ticket, error)
	GetByPurchaser(email string, userID int) ([]*models.Ticket, error)
}

// UserRepository defines the user data layer
type UserRepository interface {
	Create(req *models.UserCreateRequest, passwordHash string) (*models.User, error)
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByCartID(cartID int) (*models.User, error)
	SetCart(userID, cartID int) error
}

// NotificationService delivers purchase confirmations. Calls are
// best-effort: the purchase flow logs failures and never lets them change
// the reconciliation outcome.
type NotificationService interface {
	SendPurchaseConfirmation(email string, ticket *models.Ticket, items []PurchaseItem) error
}

// SMSService delivers purchase notifications over SMS; same best-effort
// contract as NotificationService.
type SMSService interface {
	SendPurchaseSMS(phone string, ticket *models.Ticket) error
}

// PaymentGateway is the external payment provider surface consumed by the
// webhook flow and preference creation.
type PaymentGateway interface {
	GetPayment(id string) (*PaymentConfirmation, error)
	ResolveMerchantOrder(id string) (string, error)
	CreatePreference(req *PreferenceRequest) (*Preference, error)
}

// Payment status values as reported by the gateway. Only an approved
// payment ever triggers reconciliation.
const PaymentStatusApproved = "approved"

// Metadata keys set at preference creation and read back from payment
// confirmations.
const (
	MetadataCartID     = "cart_id"
	MetadataBuyerEmail = "buyer_email"
	MetadataUserEmail  = "user_email"
	MetadataUserID     = "user_id"
)

// PaymentConfirmation is the validated, explicit form of a gateway payment
// record. Handlers validate it at the boundary before the purchase flow
// ever sees it.
type PaymentConfirmation struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	TransactionAmount float64           `json:"transaction_amount"`
	Currency          string            `json:"currency"`
	ExternalReference string            `json:"external_reference"`
	PreferenceID      string            `json:"preference_id"`
	PaymentMethod     string            `json:"payment_method"`
	Installments      int               `json:"installments"`
	DateApproved      *time.Time        `json:"date_approved,omitempty"`
	PayerEmail        string            `json:"payer_email"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ReceiptURL        string            `json:"receipt_url,omitempty"`
}

// Validate checks the fields the purchase flow requires
func (p *PaymentConfirmation) Validate() error {
	if p.ID == "" {
		return models.ErrInvalidInput
	}
	if p.Status == "" {
		return models.ErrInvalidInput
	}
	if p.CartReference() == "" {
		return models.ErrInvalidInput
	}
	return nil
}

// CartReference returns the cart id the payment ties back to, preferring
// the gateway's external_reference over the preference metadata.
func (p *PaymentConfirmation) CartReference() string {
	if p.ExternalReference != "" {
		return p.ExternalReference
	}
	return p.Metadata[MetadataCartID]
}

// IsApproved returns true if the payment reached the approved state
func (p *PaymentConfirmation) IsApproved() bool {
	return p.Status == PaymentStatusApproved
}

// PreferenceRequest describes a checkout preference to create on the
// gateway for a cart's current contents.
type PreferenceRequest struct {
	Items             []PreferenceItem
	PayerEmail        string
	ExternalReference string
	Metadata          map[string]string
}

// PreferenceItem is a single priced line in a checkout preference
type PreferenceItem struct {
	Title       string
	Description string
	Quantity    int
	UnitPrice   float64
	Currency    string
}

// Preference is the gateway's created checkout session
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}
