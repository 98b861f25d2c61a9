package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/services"
)

// Test stubs. Embedding the interface keeps the stubs small; only the
// methods a test path reaches are implemented.

type stubProductRepo struct {
	services.ProductRepository
	mu       sync.Mutex
	products map[int]*models.Product
}

func (s *stubProductRepo) GetByID(id int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *stubProductRepo) AdjustStock(productID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, models.ErrInsufficientStock
	}
	p.Stock += delta
	return p.Stock, nil
}

type stubCartRepo struct {
	services.CartRepository
	mu    sync.Mutex
	items map[int][]models.CartItem
}

func (s *stubCartRepo) GetByID(id int) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.items[id]
	if !ok {
		return nil, models.ErrCartNotFound
	}
	return &models.Cart{ID: id, Items: items}, nil
}

func (s *stubCartRepo) ReplaceItems(cartID int, items []models.CartItemInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.CartItem
	for _, in := range items {
		kept = append(kept, models.CartItem{ProductID: in.ProductID, Quantity: in.Quantity})
	}
	s.items[cartID] = kept
	return nil
}

type stubTicketRepo struct {
	services.TicketRepository
	mu      sync.Mutex
	tickets []*models.Ticket
}

func (s *stubTicketRepo) Create(req *models.TicketCreateRequest) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if req.PaymentID != "" && t.PaymentID == req.PaymentID {
			return nil, fmt.Errorf("payment %s already recorded: %w", req.PaymentID, models.ErrDuplicateEntry)
		}
	}
	ticket := &models.Ticket{
		ID:                len(s.tickets) + 1,
		Code:              req.Code,
		Amount:            req.Amount,
		Purchaser:         req.Purchaser,
		PaymentID:         req.PaymentID,
		PreferenceID:      req.PreferenceID,
		ExternalReference: req.ExternalReference,
		Items:             req.Items,
	}
	s.tickets = append(s.tickets, ticket)
	return ticket, nil
}

func (s *stubTicketRepo) GetByPaymentID(paymentID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.PaymentID == paymentID {
			return t, nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (s *stubTicketRepo) FindExistingForPayment(paymentID, preferenceID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.PaymentID == paymentID || (preferenceID != "" && t.PreferenceID == preferenceID) {
			return t, nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (s *stubTicketRepo) GetByExternalReference(ref string) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if t.ExternalReference == ref {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubUserRepo struct {
	services.UserRepository
}

func (s *stubUserRepo) GetByCartID(cartID int) (*models.User, error) {
	return nil, models.ErrUserNotFound
}

type webhookFixture struct {
	gateway *services.MockPaymentGateway
	tickets *stubTicketRepo
	handler *PaymentHandler
}

func newWebhookFixture() *webhookFixture {
	products := &stubProductRepo{products: map[int]*models.Product{
		1: {ID: 1, Title: "Widget", Price: 10.00, Stock: 5, Status: true},
	}}
	carts := &stubCartRepo{items: map[int][]models.CartItem{
		7: {{ProductID: 1, Quantity: 2}},
	}}
	tickets := &stubTicketRepo{}
	gateway := services.NewMockPaymentGateway()

	purchase := services.NewPurchaseService(products, carts, tickets, &stubUserRepo{}, nil, nil, "")
	return &webhookFixture{
		gateway: gateway,
		tickets: tickets,
		handler: NewPaymentHandler(gateway, purchase),
	}
}

func (f *webhookFixture) post(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, url, nil)
	rec := httptest.NewRecorder()
	f.handler.Webhook(rec, req)
	return rec
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Status  string                 `json:"status"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Payload
}

func TestWebhook_ApprovedPayment(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		Status:            "approved",
		TransactionAmount: 20.00,
		ExternalReference: "7",
		PayerEmail:        "payer@example.com",
	})

	rec := f.post(t, "/api/payments/webhook?type=payment&data.id="+paymentID)

	assert.Equal(t, http.StatusOK, rec.Code)
	payload := decodePayload(t, rec)
	assert.Equal(t, true, payload["handled"])
	require.Len(t, f.tickets.tickets, 1)
	assert.Equal(t, paymentID, f.tickets.tickets[0].PaymentID)
}

func TestWebhook_EventInBody(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		ID:                "123456789",
		Status:            "approved",
		TransactionAmount: 20.00,
		ExternalReference: "7",
		PayerEmail:        "payer@example.com",
	})

	body := strings.NewReader(fmt.Sprintf(`{"type":"payment","data":{"id":%s}}`, paymentID))
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", body)
	rec := httptest.NewRecorder()
	f.handler.Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodePayload(t, rec)["handled"])
	assert.Len(t, f.tickets.tickets, 1)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		Status:            "approved",
		TransactionAmount: 20.00,
		ExternalReference: "7",
		PayerEmail:        "payer@example.com",
	})
	url := "/api/payments/webhook?type=payment&data.id=" + paymentID

	first := f.post(t, url)
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.post(t, url)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, f.tickets.tickets, 1)
}

func TestWebhook_MerchantOrderResolution(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		Status:            "approved",
		TransactionAmount: 20.00,
		ExternalReference: "7",
	})
	f.gateway.RegisterMerchantOrder("order-1", paymentID)

	rec := f.post(t, "/api/payments/webhook?topic=merchant_order&id=order-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodePayload(t, rec)["handled"])
	assert.Len(t, f.tickets.tickets, 1)
}

func TestWebhook_MerchantOrderWithoutApprovedPayment(t *testing.T) {
	f := newWebhookFixture()
	f.gateway.RegisterMerchantOrder("order-1", "")

	rec := f.post(t, "/api/payments/webhook?topic=merchant_order&id=order-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodePayload(t, rec)["handled"])
	assert.Empty(t, f.tickets.tickets)
}

func TestWebhook_UnapprovedPayment(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		Status:            "rejected",
		ExternalReference: "7",
	})

	rec := f.post(t, "/api/payments/webhook?type=payment&data.id="+paymentID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodePayload(t, rec)["handled"])
	assert.Empty(t, f.tickets.tickets)
}

func TestWebhook_MissingParams(t *testing.T) {
	f := newWebhookFixture()

	// Notifications with no usable event still get a 200 so the gateway
	// does not redeliver them forever.
	rec := f.post(t, "/api/payments/webhook")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodePayload(t, rec)["handled"])

	rec = f.post(t, "/api/payments/webhook?type=payment")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodePayload(t, rec)["handled"])
	assert.Empty(t, f.tickets.tickets)
}

func TestWebhook_UnknownCartStillAcknowledged(t *testing.T) {
	f := newWebhookFixture()
	paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
		Status:            "approved",
		TransactionAmount: 20.00,
		ExternalReference: "404",
	})

	rec := f.post(t, "/api/payments/webhook?type=payment&data.id="+paymentID)

	// A 200 keeps the gateway from retrying something that can never succeed
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodePayload(t, rec)["handled"])
}

func TestBackURLAcks(t *testing.T) {
	f := newWebhookFixture()

	t.Run("failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/failure?payment_id=p-1", nil)
		rec := httptest.NewRecorder()
		f.handler.Failure(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pending", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/pending?payment_id=p-1", nil)
		rec := httptest.NewRecorder()
		f.handler.Pending(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("success reconciles when it carries a payment id", func(t *testing.T) {
		paymentID := f.gateway.RegisterPayment(&services.PaymentConfirmation{
			Status:            "approved",
			TransactionAmount: 20.00,
			ExternalReference: "7",
			PayerEmail:        "payer@example.com",
		})
		req := httptest.NewRequest(http.MethodGet, "/api/payments/success?payment_id="+paymentID, nil)
		rec := httptest.NewRecorder()
		f.handler.Success(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, f.tickets.tickets, 1)
	})
}
