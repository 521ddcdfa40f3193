package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	simulationapp "microgrid-market/internal/simulation/application"
	simulation "microgrid-market/internal/simulation/domain"
)

// Handler serves /api/v1/simulations and /api/v1/scenarios.
type Handler struct {
	stepper *simulationapp.Stepper
}

// NewHandler constructs a handler.
func NewHandler(stepper *simulationapp.Stepper) (*Handler, error) {
	if stepper == nil {
		return nil, errors.New("simulation handler: nil stepper")
	}
	return &Handler{stepper: stepper}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/scenarios" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		respondJSON(w, http.StatusOK, h.stepper.Scenarios())
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/simulations")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleStart(w, r)
	case strings.HasSuffix(rest, "/stop") && r.Method == http.MethodPost:
		h.handleStop(w, strings.TrimSuffix(rest, "/stop"))
	case strings.HasSuffix(rest, "/stats") && r.Method == http.MethodGet:
		h.handleStats(w, strings.TrimSuffix(rest, "/stats"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.handleGet(w, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScenarioID   string   `json:"scenario_id"`
		HouseholdIDs []string `json:"household_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	simID, err := h.stepper.Start(r.Context(), body.ScenarioID, body.HouseholdIDs)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"simulation_id": simID})
}

func (h *Handler) handleStop(w http.ResponseWriter, simID string) {
	sim, err := h.stepper.Stop(simID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sim)
}

func (h *Handler) handleStats(w http.ResponseWriter, simID string) {
	stats, err := h.stepper.Stats(simID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, simID string) {
	sim, err := h.stepper.Get(simID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sim)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, simulation.ErrSimulationNotFound), errors.Is(err, simulation.ErrScenarioNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, simulation.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
