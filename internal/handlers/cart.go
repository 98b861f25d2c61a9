package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ecommerce-platform/internal/middleware"
	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/services"
)

// CartHandler handles cart HTTP endpoints, including the purchase and
// checkout entry points.
type CartHandler struct {
	carts    *services.CartService
	purchase *services.PurchaseService
	checkout *services.CheckoutService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *services.CartService, purchase *services.PurchaseService, checkout *services.CheckoutService) *CartHandler {
	return &CartHandler{carts: carts, purchase: purchase, checkout: checkout}
}

// Create handles POST /api/carts. The body may seed the cart with items.
func (h *CartHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []models.CartItemInput `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.carts.CreateCart(req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cart)
}

// Get handles GET /api/carts/{cid}
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(cartID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddProduct handles POST /api/carts/{cid}/products/{pid}. The optional
// body carries a quantity, defaulting to 1.
func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	cartID, productID, ok := h.cartAndProductID(w, r)
	if !ok {
		return
	}

	quantity := 1
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err == nil && req.Quantity > 0 {
		quantity = req.Quantity
	}

	cart, err := h.carts.AddProduct(cartID, productID, quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// UpdateQuantity handles PUT /api/carts/{cid}/products/{pid}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	cartID, productID, ok := h.cartAndProductID(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.carts.UpdateItemQuantity(cartID, productID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Replace handles PUT /api/carts/{cid}, swapping the cart contents for the
// items in the body.
func (h *CartHandler) Replace(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req struct {
		Items []models.CartItemInput `json:"items"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.carts.ReplaceCart(cartID, req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveProduct handles DELETE /api/carts/{cid}/products/{pid}
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	cartID, productID, ok := h.cartAndProductID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveProduct(cartID, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Clear handles DELETE /api/carts/{cid}, emptying the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(cartID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Purchase handles POST /api/carts/{cid}/purchase, the direct purchase
// path. Partial fulfillment is a 200 with the leftover product ids; a cart
// with nothing fulfillable is also a 200, with a null ticket.
func (h *CartHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req struct {
		PurchaserEmail string `json:"purchaser_email"`
	}
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := req.PurchaserEmail
	var userID *int
	if user := middleware.GetUserFromContext(r.Context()); user != nil {
		if email == "" {
			email = user.Email
		}
		userID = &user.ID
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "purchaser email is required")
		return
	}

	result, err := h.purchase.ProcessCartPurchase(cartID, email, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Pay handles POST /api/carts/{cid}/pay, creating a gateway checkout
// preference. Carts that already produced a ticket or contain unavailable
// items are refused with a 409.
func (h *CartHandler) Pay(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req struct {
		BuyerEmail string `json:"buyer_email"`
	}
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	email := req.BuyerEmail
	if email == "" && user != nil {
		email = user.Email
	}

	pref, err := h.checkout.CreatePaymentPreference(cartID, email, user)
	if err != nil {
		var unavailable *services.UnavailableItemsError
		switch {
		case errors.Is(err, services.ErrCartAlreadyPurchased):
			writeError(w, http.StatusConflict, "cart already has a ticket")
		case errors.As(err, &unavailable):
			writeErrorDetail(w, http.StatusConflict, "cart items unavailable", map[string]interface{}{
				"unavailable_product_ids": unavailable.ProductIDs,
			})
		default:
			writeDomainError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// ListCarts handles GET /api/carts (admin only)
func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.carts.ListCarts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carts)
}

func (h *CartHandler) cartID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart id")
		return 0, false
	}
	return id, true
}

func (h *CartHandler) cartAndProductID(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return 0, 0, false
	}
	productID, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, 0, false
	}
	return cartID, productID, true
}
