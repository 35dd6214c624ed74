package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/codemarket/internal/adapter/storage"
	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/client"
	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/core/service"
)

func newService(t *testing.T, stored ...domain.Item) *service.MarketService {
	t.Helper()
	svc := service.NewMarketService(storage.NewMemoryLedger(stored), storage.NewMemoryTransferLog(), storage.NewMemoryCache(), 1000, zerolog.Nop())
	t.Cleanup(svc.Close)
	go func() {
		for range svc.GetJournalQueue() {
		}
	}()
	return svc
}

func newHTTPServer(t *testing.T, stored ...domain.Item) (*httptest.Server, *client.HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHTTPHandler(newService(t, stored...)), zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, client.NewHTTPClient(srv.URL)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTP_FullMarketFlow(t *testing.T) {
	_, c := newHTTPServer(t, domain.Item{Name: "widget", StoreQuantity: 5})
	ctx := context.Background()

	alice, err := c.Register(ctx, "alice", "alice.example")
	require.NoError(t, err)
	buyer, err := c.Register(ctx, "buyer", "")
	require.NoError(t, err)

	_, err = c.Stock(ctx, "widget", decimal.RequireFromString("2.50"), 5, alice)
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, err = c.Allocate(ctx, "widget", 5, alice)
	require.NoError(t, err)

	receipt, err := c.Stock(ctx, "widget", decimal.RequireFromString("2.50"), 5, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.StoreQuantity)
	assert.Equal(t, 5, receipt.StockQuantity)

	pr, err := c.Purchase(ctx, api.PurchaseRequest{Item: "widget", Count: 3, From: "alice", To: buyer})
	require.NoError(t, err)
	assert.Equal(t, "alice", pr.Seller)
	assert.Equal(t, "buyer", pr.Buyer)
	assert.True(t, pr.Total.Equal(decimal.RequireFromString("7.5")))

	_, err = c.Purchase(ctx, api.PurchaseRequest{Item: "widget", Count: 4, From: "alice", To: buyer})
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	state, err := c.LedgerState(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, state.Vendors, 3)
	require.Len(t, state.Vendors["alice"], 1)
	assert.Equal(t, 2, state.Vendors["alice"][0].StockQuantity)

	names, err := c.VendorNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "buyer"}, names)
	urls, err := c.VendorURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice.example", ""}, urls)
}

func TestHTTP_ErrorStatuses(t *testing.T) {
	srv, c := newHTTPServer(t)
	ctx := context.Background()

	id, err := c.Register(ctx, "alice", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   domain.Kind
	}{
		{"duplicate name", "/register", api.RegisterRequest{VendorName: "alice"}, http.StatusConflict, domain.KindDuplicateVendorName},
		{"empty name", "/register", api.RegisterRequest{}, http.StatusBadRequest, domain.KindInvalidVendorName},
		{"unknown identity", "/api/ledger_state", api.IdentityRequest{UUID: "nope"}, http.StatusNotFound, domain.KindUnknownVendor},
		{"bad count", "/api/purchase", api.PurchaseRequest{Item: "x", Count: 0, From: "alice", To: id}, http.StatusBadRequest, domain.KindInvalidQuantity},
		{"unknown buyer", "/api/purchase", api.PurchaseRequest{Item: "x", Count: 1, From: "alice", To: "nope"}, http.StatusNotFound, domain.KindUnknownBuyer},
		{"unknown item", "/api/purchase", api.PurchaseRequest{Item: "x", Count: 1, From: "alice", To: id}, http.StatusNotFound, domain.KindUnknownItem},
		{"insufficient", "/api/stock", api.StockRequest{Item: "x", Delta: 1, UUID: id}, http.StatusUnprocessableEntity, domain.KindInsufficientQuantity},
		{"negative price", "/api/stock", api.StockRequest{Item: "x", Price: decimal.NewFromInt(-1), UUID: id}, http.StatusBadRequest, domain.KindInvalidPrice},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)

			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Contains(t, body, "error")
			assert.Len(t, body, 1)

			var e api.ErrorBody
			require.NoError(t, json.Unmarshal(body["error"], &e))
			assert.Equal(t, tc.kind, e.Kind)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestHTTP_SuccessHasNoErrorField(t *testing.T) {
	srv, _ := newHTTPServer(t)

	resp := postJSON(t, srv.URL+"/register", api.RegisterRequest{VendorName: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body, "error")
	assert.NotEmpty(t, body["uuid"])
}

func TestHTTP_InvalidBody(t *testing.T) {
	srv, _ := newHTTPServer(t)

	resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	srv, _ := newHTTPServer(t)

	resp, err := http.Get(srv.URL + "/register")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTP_RequestIDEchoed(t *testing.T) {
	srv, _ := newHTTPServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))

	resp2, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.NotEmpty(t, resp2.Header.Get("X-Request-Id"))
}

func TestHTTP_IdempotencyKeyHeader(t *testing.T) {
	srv, c := newHTTPServer(t, domain.Item{Name: "u8", StoreQuantity: 10})
	ctx := context.Background()

	seller, err := c.Register(ctx, "seller", "")
	require.NoError(t, err)
	buyer, err := c.Register(ctx, "buyer", "")
	require.NoError(t, err)
	_, err = c.Allocate(ctx, "u8", 10, seller)
	require.NoError(t, err)
	_, err = c.Stock(ctx, "u8", decimal.NewFromInt(1), 10, seller)
	require.NoError(t, err)

	send := func() int {
		buf, _ := json.Marshal(api.PurchaseRequest{Item: "u8", Count: 1, From: "seller", To: buyer})
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/purchase", bytes.NewReader(buf))
		require.NoError(t, err)
		req.Header.Set("Idempotency-Key", "order-42")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusConflict, send())
}

func TestHTTP_TransfersAndAveragePrices(t *testing.T) {
	srv, c := newHTTPServer(t, domain.Item{Name: "u8", StoreQuantity: 4})
	ctx := context.Background()

	seller, err := c.Register(ctx, "seller", "")
	require.NoError(t, err)
	buyer, err := c.Register(ctx, "buyer", "")
	require.NoError(t, err)
	_, err = c.Allocate(ctx, "u8", 4, seller)
	require.NoError(t, err)
	_, err = c.Stock(ctx, "u8", decimal.RequireFromString("0.75"), 4, seller)
	require.NoError(t, err)
	_, err = c.Purchase(ctx, api.PurchaseRequest{Item: "u8", Count: 1, From: "seller", To: buyer})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/api/transfers", api.IdentityRequest{UUID: seller})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr api.TransfersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	require.Len(t, tr.Transfers, 1)
	assert.Equal(t, "buyer", tr.Transfers[0].Buyer)

	avgResp, err := http.Get(srv.URL + "/api/average_prices")
	require.NoError(t, err)
	defer avgResp.Body.Close()
	var avg map[string]decimal.Decimal
	require.NoError(t, json.NewDecoder(avgResp.Body).Decode(&avg))
	assert.True(t, avg["u8"].Equal(decimal.RequireFromString("0.75")))
}

func TestHTTPClient_HistoryAndPrices(t *testing.T) {
	_, c := newHTTPServer(t, domain.Item{Name: "u8", StoreQuantity: 4})
	ctx := context.Background()

	seller, err := c.Register(ctx, "seller", "")
	require.NoError(t, err)
	buyer, err := c.Register(ctx, "buyer", "")
	require.NoError(t, err)
	_, err = c.Allocate(ctx, "u8", 4, seller)
	require.NoError(t, err)
	_, err = c.Stock(ctx, "u8", decimal.RequireFromString("0.75"), 4, seller)
	require.NoError(t, err)
	_, err = c.Purchase(ctx, api.PurchaseRequest{Item: "u8", Count: 1, From: "seller", To: buyer})
	require.NoError(t, err)

	transfers, err := c.Transfers(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "seller", transfers[0].Seller)

	avg, err := c.AveragePrices(ctx)
	require.NoError(t, err)
	assert.True(t, avg["u8"].Equal(decimal.RequireFromString("0.75")))

	// allocate, stock and purchase each add a point
	points, err := c.PriceHistory(ctx, "u8")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.True(t, points[0].Price.IsZero())
	assert.True(t, points[1].Price.Equal(decimal.RequireFromString("0.75")))
	assert.True(t, points[2].Price.Equal(decimal.RequireFromString("0.75")))
	assert.Less(t, points[0].Version, points[1].Version)
	assert.Less(t, points[1].Version, points[2].Version)

	all, err := c.PriceHistories(ctx)
	require.NoError(t, err)
	require.Len(t, all["u8"], 3)
	assert.Equal(t, points[2].Version, all["u8"][2].Version)

	none, err := c.PriceHistory(ctx, "i128")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = c.Transfers(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownVendor)
}

func TestHTTP_ConcurrentRegistration(t *testing.T) {
	_, c := newHTTPServer(t)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Register(context.Background(), "same", ""); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}
