package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ecommerce-platform/internal/models"
)

// TwilioConfig represents Twilio SMS service configuration
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioSMSService sends SMS via the Twilio REST API. It implements
// SMSService and is used to notify operators when a purchase completes.
type TwilioSMSService struct {
	config  TwilioConfig
	client  *http.Client
	baseURL string
}

// NewTwilioSMSService creates a new Twilio SMS service
func NewTwilioSMSService(config TwilioConfig) *TwilioSMSService {
	return &TwilioSMSService{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.twilio.com",
	}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// SendPurchaseSMS sends a short purchase notification to the given number
func (s *TwilioSMSService) SendPurchaseSMS(phone string, ticket *models.Ticket) error {
	body := fmt.Sprintf("New purchase: ticket %s for $%.2f by %s", ticket.Code, ticket.Amount, ticket.Purchaser)
	return s.sendMessage(phone, body)
}

func (s *TwilioSMSService) sendMessage(to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.config.AccountSID)
	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr twilioError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("failed to send SMS, status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to send SMS: %s (code %d)", apiErr.Message, apiErr.Code)
	}
	return nil
}
