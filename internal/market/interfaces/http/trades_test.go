package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"microgrid-market/internal/auth"
	"microgrid-market/internal/eventing"
	marketapp "microgrid-market/internal/market/application"
	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/market/infrastructure/memory"
	"microgrid-market/internal/registry"
)

func newTestEngine(t *testing.T, autoTrading bool) *marketapp.Engine {
	t.Helper()
	reg := registry.NewHouseholdRegistry()
	households := []*market.Household{
		{
			ID: "seller", Name: "Seller", GenerationKW: 10, Online: true,
			Priority: market.PriorityNormal,
			Policy:   market.TradingPolicy{AutoTrading: autoTrading},
		},
		{
			ID: "buyer", Name: "Buyer", ConsumptionKW: 5, BatteryCapacityKWh: 50,
			Online: true, Priority: market.PriorityNormal,
		},
	}
	for _, h := range households {
		if err := reg.Upsert(h); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	engine, err := marketapp.NewEngine(reg, memory.NewHistoryRepository(0), eventing.NewInMemoryBus(), nil, 0.15)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestTradesHandlerSubmit(t *testing.T) {
	handler, err := NewTradesHandler(newTestEngine(t, true))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"buyer_id":"buyer","seller_id":"seller","energy_amount_kwh":3,"max_price_kwh":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), market.StatusCompleted) {
		t.Fatalf("expected completed trade in response: %s", resp.Body.String())
	}
}

func TestTradesHandlerSubmitValidation(t *testing.T) {
	handler, _ := NewTradesHandler(newTestEngine(t, true))

	body := `{"buyer_id":"buyer","seller_id":"buyer","energy_amount_kwh":3,"max_price_kwh":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTradesHandlerSubmitInsufficient(t *testing.T) {
	handler, _ := NewTradesHandler(newTestEngine(t, true))

	body := `{"buyer_id":"buyer","seller_id":"seller","energy_amount_kwh":99,"max_price_kwh":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestTradesHandlerResidentBuyerMismatch(t *testing.T) {
	handler, _ := NewTradesHandler(newTestEngine(t, true))

	body := `{"buyer_id":"buyer","seller_id":"seller","energy_amount_kwh":3,"max_price_kwh":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), "someone-else", auth.RoleResident, "user-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestTradesHandlerConfirmAndCancel(t *testing.T) {
	engine := newTestEngine(t, false)
	handler, _ := NewTradesHandler(engine)

	submit := func() string {
		body := `{"buyer_id":"buyer","seller_id":"seller","energy_amount_kwh":2,"max_price_kwh":1}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("submit: %d %s", resp.Code, resp.Body.String())
		}
		trades := engine.ActiveTrades()
		return trades[len(trades)-1].ID
	}

	// Seller confirms through its resident identity.
	tradeID := submit()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/"+tradeID+"/confirm", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "seller", auth.RoleResident, "user-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Operator cancels on behalf of the buyer via actor_id.
	tradeID = submit()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/trades/"+tradeID+"/cancel?actor_id=buyer", strings.NewReader(`{"reason":"test"}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Missing actor is a bad request.
	tradeID = submit()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/trades/"+tradeID+"/cancel", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor, got %d", resp.Code)
	}
}

func TestTradesHandlerGetUnknown(t *testing.T) {
	handler, _ := NewTradesHandler(newTestEngine(t, true))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/missing", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSnapshotHandler(t *testing.T) {
	handler, err := NewSnapshotHandler(newTestEngine(t, true))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/market/snapshot", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	for _, field := range []string{"grid_status", "pricing", "households"} {
		if !strings.Contains(resp.Body.String(), field) {
			t.Fatalf("expected %s in snapshot: %s", field, resp.Body.String())
		}
	}
}

func TestHouseholdsHandlerPatch(t *testing.T) {
	handler, err := NewHouseholdsHandler(newTestEngine(t, true))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/households/buyer", strings.NewReader(`{"consumption_kw":2}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"consumption_kw":2`) {
		t.Fatalf("patch not reflected: %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/households/missing", strings.NewReader(`{}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
