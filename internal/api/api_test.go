package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"simexchange/internal/account"
	"simexchange/internal/client"
	"simexchange/internal/exchange"
	"simexchange/internal/historical"
	"simexchange/internal/ledger"
	"simexchange/internal/matching"
	"simexchange/internal/model"
)

func newTestServer(t *testing.T, jwtSecret string) (*httptest.Server, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := model.DefaultAccountConfig()
	acc := account.New("sim", cfg)
	acc.SetBalance("USDT", model.Balance{Total: 10000, Available: 10000})
	led := ledger.New("sim", 1, nil)
	eng := matching.New(acc, led)
	ex := exchange.New("sim", eng, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go ex.Run(ctx)
	cl := client.New(ex)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := historical.NewStore(db, "sim", "BTCUSDT", "trade")

	server := NewServer(cl, store, jwtSecret)
	httpServer := httptest.NewServer(server.Router)

	cleanup := func() {
		httpServer.Close()
		_ = db.Close()
		cancel()
	}
	return httpServer, cleanup
}

func doJSON(t *testing.T, method, url, token string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts, cleanup := newTestServer(t, "")
	defer cleanup()

	var resp struct {
		Status string `json:"status"`
	}
	status := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil, &resp)
	if status != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("healthz status=%d resp=%+v", status, resp)
	}
}

func TestGetBalancesReflectsSeededAccount(t *testing.T) {
	ts, cleanup := newTestServer(t, "")
	defer cleanup()

	var resp struct {
		Balances []model.TokenBalance `json:"balances"`
	}
	status := doJSON(t, http.MethodGet, ts.URL+"/balances", "", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("balances status=%d", status)
	}
	found := false
	for _, b := range resp.Balances {
		if b.Token == "USDT" && b.Balance.Total == 10000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seeded USDT balance in response, got %+v", resp.Balances)
	}
}

func TestGetOpenOrdersEmptyForFreshAccount(t *testing.T) {
	ts, cleanup := newTestServer(t, "")
	defer cleanup()

	// The server exposes no order-mutation route (read-only by design), so
	// a fresh account has nothing resting yet.
	var resp struct {
		Orders []model.Order `json:"orders"`
	}
	status := doJSON(t, http.MethodGet, ts.URL+"/orders/open", "", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("orders/open status=%d", status)
	}
	if len(resp.Orders) != 0 {
		t.Fatalf("expected no resting orders yet, got %d", len(resp.Orders))
	}
}

func TestAdminDropTablesRequiresBearerWhenSecretSet(t *testing.T) {
	ts, cleanup := newTestServer(t, "super-secret")
	defer cleanup()

	var resp struct {
		Error string `json:"error"`
	}
	status := doJSON(t, http.MethodPost, ts.URL+"/admin/drop-tables", "", map[string]string{
		"substring": "2024",
	}, &resp)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d resp=%+v", status, resp)
	}
}

func TestAdminDropTablesOpenWhenSecretEmpty(t *testing.T) {
	ts, cleanup := newTestServer(t, "")
	defer cleanup()

	var resp struct {
		Dropped string `json:"dropped_matching"`
	}
	status := doJSON(t, http.MethodPost, ts.URL+"/admin/drop-tables", "", map[string]string{
		"substring": "2024",
	}, &resp)
	if status != http.StatusOK || resp.Dropped != "2024" {
		t.Fatalf("drop-tables status=%d resp=%+v", status, resp)
	}
}
