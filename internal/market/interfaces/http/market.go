package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	marketapp "microgrid-market/internal/market/application"
	market "microgrid-market/internal/market/domain"
)

// SnapshotHandler serves GET /api/v1/market/snapshot.
type SnapshotHandler struct {
	engine *marketapp.Engine
}

// NewSnapshotHandler constructs a handler.
func NewSnapshotHandler(engine *marketapp.Engine) (*SnapshotHandler, error) {
	if engine == nil {
		return nil, errors.New("snapshot handler: nil engine")
	}
	return &SnapshotHandler{engine: engine}, nil
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot, err := h.engine.Snapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// HouseholdsHandler serves /api/v1/households and /api/v1/households/{id}.
type HouseholdsHandler struct {
	engine *marketapp.Engine
}

// NewHouseholdsHandler constructs a handler.
func NewHouseholdsHandler(engine *marketapp.Engine) (*HouseholdsHandler, error) {
	if engine == nil {
		return nil, errors.New("households handler: nil engine")
	}
	return &HouseholdsHandler{engine: engine}, nil
}

func (h *HouseholdsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/households")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, h.engine.Households())
	case rest != "" && r.Method == http.MethodGet:
		household, err := h.engine.GetHousehold(rest)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, household)
	case rest != "" && r.Method == http.MethodPatch:
		var patch market.HouseholdPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		household, err := h.engine.UpdateHousehold(rest, patch)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, household)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SheddingHandler serves POST /api/v1/shedding.
type SheddingHandler struct {
	controller *marketapp.SheddingController
}

// NewSheddingHandler constructs a handler.
func NewSheddingHandler(controller *marketapp.SheddingController) (*SheddingHandler, error) {
	if controller == nil {
		return nil, errors.New("shedding handler: nil controller")
	}
	return &SheddingHandler{controller: controller}, nil
}

func (h *SheddingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	affected, err := h.controller.Trigger(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"affected": affected,
		"count":    len(affected),
	})
}
