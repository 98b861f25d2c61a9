package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecommerce-platform/internal/models"
)

// ResendConfig represents Resend email service configuration
type ResendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// ResendEmailService sends transactional email via the Resend API. It
// implements NotificationService.
type ResendEmailService struct {
	config  ResendConfig
	client  *http.Client
	baseURL string
}

// NewResendEmailService creates a new Resend email service
func NewResendEmailService(config ResendConfig) *ResendEmailService {
	return &ResendEmailService{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.resend.com",
	}
}

// ResendEmailRequest represents the request structure for the Resend API
type ResendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// ResendEmailResponse represents the response from the Resend API
type ResendEmailResponse struct {
	ID string `json:"id"`
}

// ResendErrorResponse represents an error response from the Resend API
type ResendErrorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// SendPurchaseConfirmation emails the purchaser their ticket with the
// fulfilled line items.
func (s *ResendEmailService) SendPurchaseConfirmation(email string, ticket *models.Ticket, items []PurchaseItem) error {
	var rows strings.Builder
	for _, item := range items {
		rows.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%d</td><td>$%.2f</td><td>$%.2f</td></tr>`,
			item.Title, item.Quantity, item.UnitPrice, item.Subtotal()))
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Purchase Confirmation</title>
</head>
<body>
    <h1>Thanks for your purchase!</h1>
    <p>Your ticket code is <strong>%s</strong>.</p>
    <p>Purchase date: %s</p>
    <table border="1" cellpadding="6" cellspacing="0">
        <tr><th>Product</th><th>Quantity</th><th>Unit price</th><th>Subtotal</th></tr>
        %s
    </table>
    <p><strong>Total: $%.2f</strong></p>
</body>
</html>`,
		ticket.Code,
		ticket.PurchaseDatetime.Format("2006-01-02 15:04 MST"),
		rows.String(),
		ticket.Amount,
	)

	textContent := fmt.Sprintf("Thanks for your purchase!\n\nTicket code: %s\nTotal: $%.2f\n", ticket.Code, ticket.Amount)

	return s.sendEmail(ResendEmailRequest{
		From:    s.getFromField(),
		To:      []string{email},
		Subject: fmt.Sprintf("Your purchase confirmation (%s)", ticket.Code),
		HTML:    htmlContent,
		Text:    textContent,
	})
}

// getFromField constructs the from field properly
func (s *ResendEmailService) getFromField() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}

func (s *ResendEmailService) sendEmail(request ResendEmailRequest) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", s.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResp ResendErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("failed to send email, status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to send email: %s", errorResp.Message)
	}

	var response ResendEmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
