package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps the structured error taxonomy onto HTTP statuses.
// Anything that is not a *domain.Error is an internal error.
func respondServiceError(w http.ResponseWriter, err error) {
	var de *domain.Error
	status := http.StatusInternalServerError
	code := "internal"

	if errors.As(err, &de) {
		switch de.Kind {
		case domain.KindValidation, domain.KindEmptyCart:
			status, code = http.StatusBadRequest, string(de.Kind)
		case domain.KindNotFound:
			status, code = http.StatusNotFound, string(de.Kind)
		case domain.KindInsufficientStock, domain.KindInvalidTransition:
			status, code = http.StatusConflict, string(de.Kind)
		case domain.KindUnavailable:
			status, code = http.StatusServiceUnavailable, string(de.Kind)
		}
		respondJSON(w, status, ErrorResponse{
			Error:     de.Message,
			Code:      code,
			ProductID: de.ProductID,
			OrderID:   de.OrderID,
		})
		return
	}

	log.Printf("internal error: %v", err)
	respondError(w, status, code, "internal server error")
}
