package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockPaymentGateway is an in-memory PaymentGateway for development and
// tests. Payments registered on it are returned by GetPayment, and created
// preferences resolve through a fake merchant order.
type MockPaymentGateway struct {
	mu          sync.Mutex
	payments    map[string]*PaymentConfirmation
	preferences map[string]*PreferenceRequest
	orders      map[string]string // merchant order id -> approved payment id
}

// NewMockPaymentGateway creates a new in-memory payment gateway
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{
		payments:    make(map[string]*PaymentConfirmation),
		preferences: make(map[string]*PreferenceRequest),
		orders:      make(map[string]string),
	}
}

// RegisterPayment stores a payment so GetPayment can return it. Returns the
// payment id.
func (g *MockPaymentGateway) RegisterPayment(payment *PaymentConfirmation) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	g.payments[payment.ID] = payment
	return payment.ID
}

// RegisterMerchantOrder maps a merchant order id to an approved payment id
func (g *MockPaymentGateway) RegisterMerchantOrder(orderID, paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[orderID] = paymentID
}

// GetPayment returns a previously registered payment
func (g *MockPaymentGateway) GetPayment(id string) (*PaymentConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[id]
	if !ok {
		return nil, fmt.Errorf("mock gateway: payment %s not found", id)
	}
	return payment, nil
}

// ResolveMerchantOrder returns the approved payment id for a registered
// merchant order, or "" when none is registered.
func (g *MockPaymentGateway) ResolveMerchantOrder(id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders[id], nil
}

// CreatePreference records the preference and returns a fake checkout URL
func (g *MockPaymentGateway) CreatePreference(req *PreferenceRequest) (*Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.New().String()
	g.preferences[id] = req
	log.Printf("Mock Gateway: created preference %s for reference %s (%d items)",
		id, req.ExternalReference, len(req.Items))

	return &Preference{
		ID:               id,
		InitPoint:        fmt.Sprintf("https://mock.gateway.local/checkout/%s", id),
		SandboxInitPoint: fmt.Sprintf("https://mock.gateway.local/sandbox/%s", id),
	}, nil
}

// ApprovePreference simulates the buyer completing checkout: it mints an
// approved payment for the recorded preference and returns it.
func (g *MockPaymentGateway) ApprovePreference(preferenceID string, payerEmail string) (*PaymentConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.preferences[preferenceID]
	if !ok {
		return nil, fmt.Errorf("mock gateway: preference %s not found", preferenceID)
	}

	var total float64
	for _, item := range req.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}

	now := time.Now().UTC()
	payment := &PaymentConfirmation{
		ID:                uuid.New().String(),
		Status:            PaymentStatusApproved,
		TransactionAmount: total,
		ExternalReference: req.ExternalReference,
		PreferenceID:      preferenceID,
		PaymentMethod:     "mock",
		Installments:      1,
		DateApproved:      &now,
		PayerEmail:        payerEmail,
		Metadata:          req.Metadata,
	}
	g.payments[payment.ID] = payment
	return payment, nil
}
