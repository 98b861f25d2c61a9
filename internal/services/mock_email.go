package services

import (
	"log"

	"ecommerce-platform/internal/config"
	"ecommerce-platform/internal/models"
)

// MockEmailService provides an email service that logs instead of sending
// when no Resend API key is configured.
type MockEmailService struct {
	resendService *ResendEmailService
	useResend     bool
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService(resendConfig *config.ResendConfig) *MockEmailService {
	service := &MockEmailService{}

	if resendConfig != nil && resendConfig.APIKey != "" {
		service.resendService = NewResendEmailService(ResendConfig{
			APIKey:    resendConfig.APIKey,
			FromEmail: resendConfig.FromEmail,
			FromName:  resendConfig.FromName,
		})
		service.useResend = true
		log.Println("Email service: Using Resend API")
	} else {
		log.Println("Email service: Using mock (no Resend API key provided)")
	}

	return service
}

// SendPurchaseConfirmation sends a purchase confirmation email
func (s *MockEmailService) SendPurchaseConfirmation(email string, ticket *models.Ticket, items []PurchaseItem) error {
	if s.useResend && s.resendService != nil {
		return s.resendService.SendPurchaseConfirmation(email, ticket, items)
	}

	log.Printf("Mock Email: purchase confirmation for ticket %s sent to %s (%d items, $%.2f)",
		ticket.Code, email, len(items), ticket.Amount)
	return nil
}

// MockSMSService provides an SMS service that logs instead of sending when
// no Twilio credentials are configured.
type MockSMSService struct {
	twilioService *TwilioSMSService
	useTwilio     bool
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService(twilioConfig *config.TwilioConfig) *MockSMSService {
	service := &MockSMSService{}

	if twilioConfig != nil && twilioConfig.AccountSID != "" && twilioConfig.AuthToken != "" {
		service.twilioService = NewTwilioSMSService(TwilioConfig{
			AccountSID: twilioConfig.AccountSID,
			AuthToken:  twilioConfig.AuthToken,
			FromNumber: twilioConfig.FromNumber,
		})
		service.useTwilio = true
		log.Println("SMS service: Using Twilio API")
	} else {
		log.Println("SMS service: Using mock (no Twilio credentials provided)")
	}

	return service
}

// SendPurchaseSMS sends a purchase notification SMS
func (s *MockSMSService) SendPurchaseSMS(phone string, ticket *models.Ticket) error {
	if s.useTwilio && s.twilioService != nil {
		return s.twilioService.SendPurchaseSMS(phone, ticket)
	}

	log.Printf("Mock SMS: purchase notification for ticket %s sent to %s", ticket.Code, phone)
	return nil
}
