package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"microgrid-market/internal/auth"
	marketapp "microgrid-market/internal/market/application"
	market "microgrid-market/internal/market/domain"
)

// TradesHandler serves /api/v1/trades and /api/v1/trades/{id}[/confirm|/cancel].
type TradesHandler struct {
	engine *marketapp.Engine
}

// NewTradesHandler constructs a handler.
func NewTradesHandler(engine *marketapp.Engine) (*TradesHandler, error) {
	if engine == nil {
		return nil, errors.New("trades handler: nil engine")
	}
	return &TradesHandler{engine: engine}, nil
}

func (h *TradesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/trades")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
	case rest == "" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, h.engine.ActiveTrades())
	case strings.HasSuffix(rest, "/confirm") && r.Method == http.MethodPost:
		h.handleConfirm(w, r, strings.TrimSuffix(rest, "/confirm"))
	case strings.HasSuffix(rest, "/cancel") && r.Method == http.MethodPost:
		h.handleCancel(w, r, strings.TrimSuffix(rest, "/cancel"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.handleGet(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *TradesHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req market.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	actor := auth.HouseholdIDFromContext(r.Context())
	if actor != "" {
		if req.BuyerID == "" {
			req.BuyerID = actor
		}
		if auth.RoleFromContext(r.Context()) == auth.RoleResident && req.BuyerID != actor {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	trade, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

func (h *TradesHandler) handleConfirm(w http.ResponseWriter, r *http.Request, tradeID string) {
	actor, ok := h.actorID(w, r)
	if !ok {
		return
	}
	trade, err := h.engine.Confirm(r.Context(), tradeID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

func (h *TradesHandler) handleCancel(w http.ResponseWriter, r *http.Request, tradeID string) {
	actor, ok := h.actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
		defer r.Body.Close()
	}
	trade, err := h.engine.Cancel(r.Context(), tradeID, actor, body.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

func (h *TradesHandler) handleGet(w http.ResponseWriter, r *http.Request, tradeID string) {
	trade, err := h.engine.GetTrade(r.Context(), tradeID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

// actorID resolves the acting household: the resident token's household,
// or the actor_id query parameter for operator tokens.
func (h *TradesHandler) actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := auth.HouseholdIDFromContext(r.Context())
	if actor == "" {
		actor = r.URL.Query().Get("actor_id")
	}
	if actor == "" {
		http.Error(w, "actor_id required", http.StatusBadRequest)
		return "", false
	}
	return actor, true
}
