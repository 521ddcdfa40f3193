package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	devicesapp "microgrid-market/internal/devices/application"
	devices "microgrid-market/internal/devices/domain"
)

// Handler serves /api/v1/devices and /api/v1/devices/{id}[/control].
type Handler struct {
	service *devicesapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *devicesapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("devices handler: nil service")
	}
	return &Handler{service: service}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/devices")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, h.service.List())
	case strings.HasSuffix(rest, "/control") && r.Method == http.MethodPost:
		h.handleControl(w, r, strings.TrimSuffix(rest, "/control"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		device, err := h.service.Get(rest)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, device)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleControl(w http.ResponseWriter, r *http.Request, deviceID string) {
	var body struct {
		Action string                   `json:"action"`
		Params devicesapp.ControlParams `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	device, err := h.service.Control(r.Context(), deviceID, body.Action, body.Params)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, device)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, devices.ErrDeviceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, devicesapp.ErrUnknownAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
