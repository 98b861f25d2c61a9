package services

import (
	"fmt"

	"ecommerce-platform/internal/models"
)

// TicketService handles ticket reads. Tickets are only ever written by the
// purchase flow.
type TicketService struct {
	tickets TicketRepository
}

// NewTicketService creates a new ticket service
func NewTicketService(tickets TicketRepository) *TicketService {
	return &TicketService{tickets: tickets}
}

// GetTicket returns a ticket by id, enforcing ownership: a non-admin caller
// only sees tickets tied to their own email or user id.
func (s *TicketService) GetTicket(id int, viewer *models.User) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ticket, viewer); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicketByCode returns a ticket by its public code, with the same
// ownership rule as GetTicket.
func (s *TicketService) GetTicketByCode(code string, viewer *models.User) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ticket, viewer); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetMyTickets returns every ticket belonging to the given user, matched by
// user id or by purchaser/payer email.
func (s *TicketService) GetMyTickets(user *models.User) ([]*models.Ticket, error) {
	if user == nil {
		return nil, models.ErrUnauthorized
	}
	tickets, err := s.tickets.GetByPurchaser(user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets for user %d: %w", user.ID, err)
	}
	return tickets, nil
}

func (s *TicketService) authorize(ticket *models.Ticket, viewer *models.User) error {
	if viewer == nil {
		return models.ErrUnauthorized
	}
	if viewer.IsAdmin() {
		return nil
	}
	if !ticket.BelongsTo(viewer.Email, viewer.ID) {
		return models.ErrUnauthorized
	}
	return nil
}
