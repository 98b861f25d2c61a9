package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/services"
)

// PaymentHandler handles gateway webhook notifications and checkout
// back-URL acknowledgements.
type PaymentHandler struct {
	gateway  services.PaymentGateway
	purchase *services.PurchaseService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(gateway services.PaymentGateway, purchase *services.PurchaseService) *PaymentHandler {
	return &PaymentHandler{gateway: gateway, purchase: purchase}
}

// Webhook handles POST /api/payments/webhook. Every domain outcome is
// acknowledged with a 200 so the gateway stops retrying; reconciliation
// idempotency makes redelivery of the same event harmless either way.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	kind := query.Get("type")
	if kind == "" {
		kind = query.Get("topic")
	}
	eventID := query.Get("data.id")
	if eventID == "" {
		eventID = query.Get("id")
	}

	// Notifications may carry the event in the JSON body instead of the
	// query string.
	if kind == "" || eventID == "" {
		var body struct {
			Type string `json:"type"`
			Data struct {
				ID json.Number `json:"id"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if kind == "" {
				kind = body.Type
			}
			if eventID == "" {
				eventID = body.Data.ID.String()
			}
		}
	}
	// Still a 200: the gateway retries on non-2xx, and redelivering an
	// event with no id can never succeed.
	if kind == "" || eventID == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"handled": false, "reason": "missing notification type or id"})
		return
	}

	paymentID := eventID
	if kind == "merchant_order" {
		resolved, err := h.gateway.ResolveMerchantOrder(eventID)
		if err != nil {
			log.Printf("ERROR: resolving merchant order %s: %v", eventID, err)
			writeError(w, http.StatusInternalServerError, "gateway lookup failed")
			return
		}
		if resolved == "" {
			// No approved payment on the order yet; a later event will
			// carry it.
			writeJSON(w, http.StatusOK, map[string]interface{}{"handled": false, "reason": "no approved payment"})
			return
		}
		paymentID = resolved
	} else if kind != "payment" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"handled": false, "reason": "ignored notification type"})
		return
	}

	payment, err := h.gateway.GetPayment(paymentID)
	if err != nil {
		log.Printf("ERROR: fetching payment %s: %v", paymentID, err)
		writeError(w, http.StatusInternalServerError, "gateway lookup failed")
		return
	}

	if !payment.IsApproved() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"handled": false, "reason": "payment not approved", "payment_status": payment.Status})
		return
	}

	result, err := h.purchase.ProcessPaymentNotification(payment)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCartNotFound),
			errors.Is(err, models.ErrCartEmpty),
			errors.Is(err, models.ErrInvalidInput):
			// Nothing to reconcile for this payment; retrying will not
			// change that.
			log.Printf("WARN: payment %s not reconcilable: %v", paymentID, err)
			writeJSON(w, http.StatusOK, map[string]interface{}{"handled": false, "reason": err.Error()})
		default:
			log.Printf("ERROR: reconciling payment %s: %v", paymentID, err)
			writeError(w, http.StatusInternalServerError, "reconciliation failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"handled": true,
		"result":  result,
	})
}

// Success handles GET /api/payments/success, the buyer's return from a
// completed checkout. When the redirect carries a payment id, it also
// reconciles immediately instead of waiting on the webhook; the operation
// is idempotent so the two paths cannot double-process.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	paymentID := query.Get("payment_id")
	if paymentID == "" {
		paymentID = query.Get("collection_id")
	}

	response := map[string]interface{}{
		"payment_id":         paymentID,
		"external_reference": query.Get("external_reference"),
	}

	if paymentID != "" {
		payment, err := h.gateway.GetPayment(paymentID)
		if err == nil && payment.IsApproved() {
			if result, err := h.purchase.ProcessPaymentNotification(payment); err == nil {
				response["result"] = result
			} else {
				log.Printf("WARN: reconciling payment %s on success redirect: %v", paymentID, err)
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// Failure handles GET /api/payments/failure
func (h *PaymentHandler) Failure(w http.ResponseWriter, r *http.Request) {
	writeErrorDetail(w, http.StatusBadRequest, "payment failed", map[string]interface{}{
		"payment_id":         r.URL.Query().Get("payment_id"),
		"external_reference": r.URL.Query().Get("external_reference"),
	})
}

// Pending handles GET /api/payments/pending
func (h *PaymentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"payment_id":         r.URL.Query().Get("payment_id"),
		"external_reference": r.URL.Query().Get("external_reference"),
		"state":              "pending",
	})
}
