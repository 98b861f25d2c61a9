package models

import (
	"errors"
	"math"
	"strings"
	"time"
)

// PurchaserUnknown is recorded when no identity could be resolved for a
// gateway payment.
const PurchaserUnknown = "unknown"

// Ticket represents an immutable record of a completed (possibly partial)
// purchase. Once created a ticket is never updated or deleted by normal flow.
type Ticket struct {
	ID               int          `json:"id" db:"id"`
	Code             string       `json:"code" db:"code"`
	PurchaseDatetime time.Time    `json:"purchase_datetime" db:"purchase_datetime"`
	Amount           float64      `json:"amount" db:"amount"`
	Purchaser        string       `json:"purchaser" db:"purchaser"`
	UserID           *int         `json:"user_id,omitempty" db:"user_id"`
	Items            []TicketItem `json:"items"`

	// Payment audit fields, set only for gateway-originated purchases.
	PaymentID         string `json:"payment_id,omitempty" db:"payment_id"`
	PreferenceID      string `json:"preference_id,omitempty" db:"preference_id"`
	ExternalReference string `json:"external_reference,omitempty" db:"external_reference"`
	PaymentStatus     string `json:"payment_status,omitempty" db:"payment_status"`
	Currency          string `json:"currency,omitempty" db:"currency"`
	PaymentMethod     string `json:"payment_method,omitempty" db:"payment_method"`
	Installments      int    `json:"installments,omitempty" db:"installments"`
	PayerEmail        string `json:"payer_email,omitempty" db:"payer_email"`
	ReceiptURL        string `json:"receipt_url,omitempty" db:"receipt_url"`
}

// TicketItem represents a fulfilled line item with the unit price and title
// snapshotted at purchase time.
type TicketItem struct {
	ProductID int     `json:"product_id" db:"product_id"`
	Quantity  int     `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"`
	Title     string  `json:"title" db:"title"`
}

// TicketCreateRequest represents the data needed to mint a ticket
type TicketCreateRequest struct {
	Code             string
	PurchaseDatetime time.Time
	Amount           float64
	Purchaser        string
	UserID           *int
	Items            []TicketItem

	PaymentID         string
	PreferenceID      string
	ExternalReference string
	PaymentStatus     string
	Currency          string
	PaymentMethod     string
	Installments      int
	PayerEmail        string
	ReceiptURL        string
}

// Validate validates ticket creation data
func (req *TicketCreateRequest) Validate() error {
	if strings.TrimSpace(req.Code) == "" {
		return errors.New("ticket code is required")
	}

	if strings.TrimSpace(req.Purchaser) == "" {
		return errors.New("ticket purchaser is required")
	}

	if req.Amount <= 0 {
		return errors.New("ticket amount must be greater than 0")
	}

	if len(req.Items) == 0 {
		return errors.New("ticket must contain at least one item")
	}

	for _, item := range req.Items {
		if item.ProductID <= 0 {
			return errors.New("ticket item product id is required")
		}
		if item.Quantity < 1 {
			return errors.New("ticket item quantity must be at least 1")
		}
	}

	return nil
}

// LineTotal returns the sum of price x quantity over the ticket's own items
func (t *Ticket) LineTotal() float64 {
	total := 0.0
	for _, item := range t.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// AmountMatchesItems reports whether the recorded amount equals the sum of
// the ticket's own line items, within a cent.
func (t *Ticket) AmountMatchesItems() bool {
	return math.Abs(t.Amount-t.LineTotal()) < 0.01
}

// IsPaymentOriginated returns true if the ticket was minted from a gateway
// payment notification rather than a direct purchase.
func (t *Ticket) IsPaymentOriginated() bool {
	return t.PaymentID != ""
}

// BelongsTo reports whether the ticket is owned by the given purchaser
// identity (matching either the purchaser email, payer email, or user id).
func (t *Ticket) BelongsTo(email string, userID int) bool {
	if t.UserID != nil && userID != 0 && *t.UserID == userID {
		return true
	}
	if email != "" && (t.Purchaser == email || t.PayerEmail == email) {
		return true
	}
	return false
}
