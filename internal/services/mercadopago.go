package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// MercadoPagoConfig represents MercadoPago payment service configuration
type MercadoPagoConfig struct {
	AccessToken string
	PublicKey   string
	SuccessURL  string
	FailureURL  string
	PendingURL  string
	WebhookURL  string
	Currency    string
}

// MercadoPagoService handles payments via the MercadoPago API. It
// implements PaymentGateway.
type MercadoPagoService struct {
	config  MercadoPagoConfig
	client  *http.Client
	baseURL string
}

// NewMercadoPagoService creates a new MercadoPago payment service
func NewMercadoPagoService(config MercadoPagoConfig) *MercadoPagoService {
	if config.Currency == "" {
		config.Currency = "ARS"
	}
	return &MercadoPagoService{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.mercadopago.com",
	}
}

// mpPayment is the wire form of GET /v1/payments/{id}
type mpPayment struct {
	ID                json.Number    `json:"id"`
	Status            string         `json:"status"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	ExternalReference string         `json:"external_reference"`
	PreferenceID      string         `json:"preference_id"`
	PaymentTypeID     string         `json:"payment_type_id"`
	PaymentMethodID   string         `json:"payment_method_id"`
	Installments      int            `json:"installments"`
	DateApproved      string         `json:"date_approved"`
	Metadata          map[string]any `json:"metadata"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
	PointOfInteraction struct {
		TransactionData struct {
			TicketURL string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// mpMerchantOrder is the wire form of GET /merchant_orders/{id}
type mpMerchantOrder struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	Payments          []struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	} `json:"payments"`
}

// mpPreferenceRequest is the wire form of POST /checkout/preferences
type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             *mpPreferencePayer `json:"payer,omitempty"`
	BackURLs          mpBackURLs         `json:"back_urls"`
	AutoReturn        string             `json:"auto_return,omitempty"`
	BinaryMode        bool               `json:"binary_mode"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
}

type mpPreferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type mpPreferencePayer struct {
	Email string `json:"email"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// mpError represents an error response from MercadoPago
type mpError struct {
	Message string `json:"message"`
	Err     string `json:"error"`
	Status  int    `json:"status"`
}

func (e *mpError) Error() string {
	return fmt.Sprintf("mercadopago error (status %d): %s", e.Status, e.Message)
}

// GetPayment fetches a payment by id and maps it to the validated
// confirmation form the purchase flow consumes.
func (s *MercadoPagoService) GetPayment(id string) (*PaymentConfirmation, error) {
	body, err := s.get(fmt.Sprintf("/v1/payments/%s", id))
	if err != nil {
		return nil, fmt.Errorf("fetching payment %s: %w", id, err)
	}

	var payment mpPayment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("decoding payment %s: %w", id, err)
	}

	return confirmationFromPayment(&payment), nil
}

// ResolveMerchantOrder fetches a merchant order and returns the id of its
// approved payment. An order with no approved payment yet resolves to the
// empty string so the caller can acknowledge and wait for a later event.
func (s *MercadoPagoService) ResolveMerchantOrder(id string) (string, error) {
	body, err := s.get(fmt.Sprintf("/merchant_orders/%s", id))
	if err != nil {
		return "", fmt.Errorf("fetching merchant order %s: %w", id, err)
	}

	var order mpMerchantOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return "", fmt.Errorf("decoding merchant order %s: %w", id, err)
	}

	for _, payment := range order.Payments {
		if payment.Status == PaymentStatusApproved {
			return payment.ID.String(), nil
		}
	}
	return "", nil
}

// CreatePreference creates a checkout preference for a cart. Binary mode
// keeps payments out of the in_process state so the webhook only ever sees
// approved or rejected.
func (s *MercadoPagoService) CreatePreference(req *PreferenceRequest) (*Preference, error) {
	wire := mpPreferenceRequest{
		Items:             make([]mpPreferenceItem, 0, len(req.Items)),
		BackURLs:          mpBackURLs{Success: s.config.SuccessURL, Failure: s.config.FailureURL, Pending: s.config.PendingURL},
		AutoReturn:        "approved",
		BinaryMode:        true,
		ExternalReference: req.ExternalReference,
		NotificationURL:   s.config.WebhookURL,
		Metadata:          req.Metadata,
	}
	for _, item := range req.Items {
		currency := item.Currency
		if currency == "" {
			currency = s.config.Currency
		}
		wire.Items = append(wire.Items, mpPreferenceItem{
			Title:       item.Title,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			CurrencyID:  currency,
		})
	}
	if req.PayerEmail != "" {
		wire.Payer = &mpPreferencePayer{Email: req.PayerEmail}
	}

	jsonData, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshaling preference request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", s.baseURL+"/checkout/preferences", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating preference request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending preference request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading preference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, s.handleAPIError(resp.StatusCode, body)
	}

	var pref Preference
	if err := json.Unmarshal(body, &pref); err != nil {
		return nil, fmt.Errorf("decoding preference response: %w", err)
	}
	return &pref, nil
}

func (s *MercadoPagoService) get(path string) ([]byte, error) {
	httpReq, err := http.NewRequest("GET", s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.AccessToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, s.handleAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func (s *MercadoPagoService) handleAPIError(statusCode int, body []byte) error {
	var apiErr mpError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("mercadopago error (status %d): %s", statusCode, string(body))
	}
	apiErr.Status = statusCode
	return &apiErr
}

// confirmationFromPayment maps the gateway wire payment onto the internal
// confirmation form, flattening the metadata values to strings.
func confirmationFromPayment(p *mpPayment) *PaymentConfirmation {
	method := p.PaymentTypeID
	if p.PaymentMethodID != "" {
		method = p.PaymentMethodID
	}

	receipt := p.TransactionDetails.ExternalResourceURL
	if receipt == "" {
		receipt = p.PointOfInteraction.TransactionData.TicketURL
	}

	metadata := make(map[string]string, len(p.Metadata))
	for key, value := range p.Metadata {
		switch v := value.(type) {
		case string:
			metadata[key] = v
		case float64:
			metadata[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			metadata[key] = v.String()
		case bool:
			metadata[key] = strconv.FormatBool(v)
		}
	}

	var approvedAt *time.Time
	if p.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339, p.DateApproved); err == nil {
			utc := t.UTC()
			approvedAt = &utc
		}
	}

	return &PaymentConfirmation{
		ID:                p.ID.String(),
		Status:            p.Status,
		TransactionAmount: p.TransactionAmount,
		Currency:          p.CurrencyID,
		ExternalReference: p.ExternalReference,
		PreferenceID:      p.PreferenceID,
		PaymentMethod:     method,
		Installments:      p.Installments,
		DateApproved:      approvedAt,
		PayerEmail:        p.Payer.Email,
		Metadata:          metadata,
		ReceiptURL:        receipt,
	}
}
