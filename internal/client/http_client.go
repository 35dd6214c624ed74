package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/core/domain"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func (c *HTTPClient) WithHTTPClient(hc *http.Client) *HTTPClient {
	c.http = hc
	return c
}

func (c *HTTPClient) Register(ctx context.Context, name, url string) (string, error) {
	var resp api.RegisterResponse
	err := c.do(ctx, http.MethodPost, "/register", api.RegisterRequest{VendorName: name, VendorURL: url}, &resp)
	return resp.UUID, err
}

func (c *HTTPClient) Stock(ctx context.Context, item string, price decimal.Decimal, delta int, uuid string) (domain.StockReceipt, error) {
	var resp domain.StockReceipt
	err := c.do(ctx, http.MethodPost, "/api/stock", api.StockRequest{Item: item, Price: price, Delta: delta, UUID: uuid}, &resp)
	return resp, err
}

func (c *HTTPClient) Allocate(ctx context.Context, item string, quantity int, uuid string) (domain.StockReceipt, error) {
	var resp domain.StockReceipt
	err := c.do(ctx, http.MethodPost, "/api/allocate", api.AllocateRequest{Item: item, Quantity: quantity, UUID: uuid}, &resp)
	return resp, err
}

func (c *HTTPClient) Purchase(ctx context.Context, req api.PurchaseRequest) (domain.PurchaseReceipt, error) {
	var resp domain.PurchaseReceipt
	err := c.do(ctx, http.MethodPost, "/api/purchase", req, &resp)
	return resp, err
}

func (c *HTTPClient) LedgerState(ctx context.Context, uuid string) (api.LedgerStateResponse, error) {
	var resp api.LedgerStateResponse
	err := c.do(ctx, http.MethodPost, "/api/ledger_state", api.IdentityRequest{UUID: uuid}, &resp)
	return resp, err
}

func (c *HTTPClient) VendorNames(ctx context.Context) ([]string, error) {
	var resp []string
	err := c.do(ctx, http.MethodGet, "/vendor_names", nil, &resp)
	return resp, err
}

func (c *HTTPClient) VendorURLs(ctx context.Context) ([]string, error) {
	var resp []string
	err := c.do(ctx, http.MethodGet, "/vendor_urls", nil, &resp)
	return resp, err
}

// Transfers, AveragePrices and the price history are served over HTTP only.

func (c *HTTPClient) Transfers(ctx context.Context, uuid string) ([]domain.Transfer, error) {
	var resp api.TransfersResponse
	err := c.do(ctx, http.MethodPost, "/api/transfers", api.IdentityRequest{UUID: uuid}, &resp)
	return resp.Transfers, err
}

func (c *HTTPClient) AveragePrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	var resp map[string]decimal.Decimal
	err := c.do(ctx, http.MethodGet, "/api/average_prices", nil, &resp)
	return resp, err
}

func (c *HTTPClient) PriceHistory(ctx context.Context, item string) ([]domain.PricePoint, error) {
	var resp api.PriceHistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/price_history?item="+neturl.QueryEscape(item), nil, &resp)
	return resp.Points, err
}

func (c *HTTPClient) PriceHistories(ctx context.Context) (map[string][]domain.PricePoint, error) {
	var resp map[string][]domain.PricePoint
	err := c.do(ctx, http.MethodGet, "/api/price_history", nil, &resp)
	return resp, err
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error.Kind == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return e.Error.Err()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
