package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ecommerce-platform/internal/models"
)

// successResponse is the envelope for successful API responses
type successResponse struct {
	Status  string      `json:"status"`
	Payload interface{} `json:"payload"`
}

// errorResponse is the envelope for failed API responses
type errorResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successResponse{Status: "success", Payload: payload}); err != nil {
		log.Printf("ERROR: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorDetail(w, status, message, nil)
}

func writeErrorDetail(w http.ResponseWriter, status int, message string, detail interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Status: "error", Error: message, Detail: detail}); err != nil {
		log.Printf("ERROR: encoding response: %v", err)
	}
}

// writeDomainError maps sentinel domain errors onto HTTP statuses. Unknown
// errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrCartNotFound),
		errors.Is(err, models.ErrTicketNotFound),
		errors.Is(err, models.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrCartEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrDuplicateEntry):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
