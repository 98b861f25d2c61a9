package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ecommerce-platform/internal/middleware"
	"ecommerce-platform/internal/services"
)

// TicketHandler handles ticket read endpoints
type TicketHandler struct {
	tickets *services.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Get handles GET /api/tickets/{id}
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	ticket, err := h.tickets.GetTicket(id, middleware.GetUserFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// GetByCode handles GET /api/tickets/by-code/{code}
func (h *TicketHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "ticket code is required")
		return
	}

	ticket, err := h.tickets.GetTicketByCode(code, middleware.GetUserFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// Mine handles GET /api/tickets/mine
func (h *TicketHandler) Mine(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.GetMyTickets(middleware.GetUserFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}
