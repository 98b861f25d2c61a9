package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketLineTotal(t *testing.T) {
	ticket := &Ticket{
		Items: []TicketItem{
			{ProductID: 1, Quantity: 2, UnitPrice: 10.00, Title: "Widget"},
			{ProductID: 2, Quantity: 1, UnitPrice: 4.50, Title: "Gadget"},
		},
	}

	assert.InDelta(t, 24.50, ticket.LineTotal(), 0.001)
	assert.Zero(t, (&Ticket{}).LineTotal())
}

func TestTicketAmountMatchesItems(t *testing.T) {
	ticket := &Ticket{
		Amount: 20.00,
		Items:  []TicketItem{{ProductID: 1, Quantity: 2, UnitPrice: 10.00}},
	}
	assert.True(t, ticket.AmountMatchesItems())

	ticket.Amount = 20.005
	assert.True(t, ticket.AmountMatchesItems(), "sub-cent drift is tolerated")

	ticket.Amount = 15.00
	assert.False(t, ticket.AmountMatchesItems())
}

func TestTicketBelongsTo(t *testing.T) {
	userID := 42
	ticket := &Ticket{
		Purchaser:  "buyer@example.com",
		PayerEmail: "payer@example.com",
		UserID:     &userID,
	}

	tests := []struct {
		name   string
		email  string
		userID int
		want   bool
	}{
		{"matching user id", "", 42, true},
		{"matching purchaser email", "buyer@example.com", 0, true},
		{"matching payer email", "payer@example.com", 0, true},
		{"different user", "stranger@example.com", 7, false},
		{"anonymous", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ticket.BelongsTo(tt.email, tt.userID))
		})
	}

	t.Run("unowned ticket never matches by id", func(t *testing.T) {
		anonymous := &Ticket{Purchaser: PurchaserUnknown}
		assert.False(t, anonymous.BelongsTo("", 42))
	})
}

func TestTicketIsPaymentOriginated(t *testing.T) {
	assert.True(t, (&Ticket{PaymentID: "pay-1"}).IsPaymentOriginated())
	assert.False(t, (&Ticket{}).IsPaymentOriginated())
}

func TestTicketCreateRequestValidate(t *testing.T) {
	valid := func() *TicketCreateRequest {
		return &TicketCreateRequest{
			Code:      "abc-123",
			Purchaser: "buyer@example.com",
			Amount:    10.00,
			Items:     []TicketItem{{ProductID: 1, Quantity: 1, UnitPrice: 10.00}},
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*TicketCreateRequest)
	}{
		{"missing code", func(r *TicketCreateRequest) { r.Code = "  " }},
		{"missing purchaser", func(r *TicketCreateRequest) { r.Purchaser = "" }},
		{"zero amount", func(r *TicketCreateRequest) { r.Amount = 0 }},
		{"no items", func(r *TicketCreateRequest) { r.Items = nil }},
		{"bad product id", func(r *TicketCreateRequest) { r.Items[0].ProductID = 0 }},
		{"zero quantity", func(r *TicketCreateRequest) { r.Items[0].Quantity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			assert.Error(t, req.Validate())
		})
	}
}
