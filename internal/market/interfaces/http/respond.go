package http

import (
	"encoding/json"
	"errors"
	"net/http"

	market "microgrid-market/internal/market/domain"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case market.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, market.ErrTradeNotFound), errors.Is(err, market.ErrHouseholdNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, market.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, market.ErrInvalidTransition), market.IsInsufficientEnergy(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		var execErr *market.ExecutionError
		if errors.As(err, &execErr) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
